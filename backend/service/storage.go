package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hivedesk/onboarding/backend/config"
)

// ErrObjectNotFound is returned when a stored file is missing
var ErrObjectNotFound = errors.New("object not found")

// Storage holds the binary content of uploaded documents
type Storage interface {
	EnsureBucket(ctx context.Context) error
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	OpenFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	GetPresignedURL(ctx context.Context, objectName string) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// NewStorage builds the driver selected in cfg
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioService(&cfg.Minio)
	case "gcs":
		return NewGCSService(ctx, &cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
