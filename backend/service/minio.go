package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hivedesk/onboarding/backend/config"
)

// MinioService stores documents in an S3 compatible bucket
type MinioService struct {
	client *minio.Client
	bucket string
	region string
	expiry time.Duration
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		expiry: time.Duration(cfg.ExpireMinutes) * time.Minute,
	}, nil
}

// EnsureBucket creates the document bucket on first start. Two replicas
// racing to create it both succeed.
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadFile stores a document. Objects carry the original filename as an
// attachment disposition so direct downloads keep their name.
func (s *MinioService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: attachment(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return nil
}

// OpenFile streams a document back. The caller closes the reader
func (s *MinioService) OpenFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", objectName, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the first read
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMinioNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", objectName, err)
	}
	return obj, nil
}

// GetPresignedURL returns a time limited download link for HR reviewers
func (s *MinioService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", attachment(objectName))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return u.String(), nil
}

// DeleteFile removes a document. Removing a missing object succeeds
func (s *MinioService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", objectName, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

// attachment builds a Content-Disposition for the last element of objectName
func attachment(objectName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(objectName)})
}
