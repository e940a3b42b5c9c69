package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrObjectExists is returned when an upload would overwrite an existing object
var ErrObjectExists = errors.New("object already exists")

// GCSService stores documents in a Google Cloud Storage bucket
type GCSService struct {
	client *storage.Client
	bucket string
	expiry time.Duration
}

func NewGCSService(ctx context.Context, cfg *config.GCSConfig) (*GCSService, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSService{
		client: client,
		bucket: cfg.Bucket,
		expiry: time.Duration(cfg.ExpireMinutes) * time.Minute,
	}, nil
}

// EnsureBucket checks the bucket is reachable. Buckets are provisioned out of band
func (s *GCSService) EnsureBucket(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	return nil
}

// UploadFile writes the object only if no object with that name exists
func (s *GCSService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	obj := s.client.Bucket(s.bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if size <= model.MaxUploadSize {
		// single request upload; documents are capped below the resumable chunk size
		w.ChunkSize = 0
	}

	if _, err := io.Copy(w, reader); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload file: %w", err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *GCSService) OpenFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return r, nil
}

func (s *GCSService) GetPresignedURL(_ context.Context, objectName string) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(objectName, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(s.expiry),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

func (s *GCSService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (s *GCSService) Close() error {
	return s.client.Close()
}
