package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hivedesk/onboarding/backend/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func TestNewMinioService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:      "localhost:9000",
		AccessKey:     "test",
		SecretKey:     "test",
		Bucket:        "documents",
		Region:        "ap-south-1",
		ExpireMinutes: 15,
	}

	svc, err := NewMinioService(cfg)
	if err != nil {
		t.Fatalf("NewMinioService: %v", err)
	}
	if svc.bucket != "documents" {
		t.Errorf("bucket = %q", svc.bucket)
	}
	if svc.region != "ap-south-1" {
		t.Errorf("region = %q", svc.region)
	}
	if svc.expiry != 15*time.Minute {
		t.Errorf("expiry = %v, want 15m", svc.expiry)
	}
}

func TestNewMinioServiceInvalidEndpoint(t *testing.T) {
	_, err := NewMinioService(&config.MinioConfig{Endpoint: "http://bad endpoint"})
	if err == nil {
		t.Error("expected error for malformed endpoint")
	}
}

func TestMinioServiceGetPresignedURL(t *testing.T) {
	// A fixed region keeps presigning offline
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("test", "test", ""),
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio.New: %v", err)
	}
	svc := &MinioService{client: client, bucket: "documents", expiry: 15 * time.Minute}

	url, err := svc.GetPresignedURL(context.Background(), "emp-1/doc-1/pan.pdf")
	if err != nil {
		t.Fatalf("GetPresignedURL: %v", err)
	}
	if !strings.Contains(url, "/documents/emp-1/doc-1/pan.pdf") {
		t.Errorf("url %q does not address the object", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("url %q missing 15 minute expiry", url)
	}
	if !strings.Contains(url, "response-content-disposition=attachment") || !strings.Contains(url, "pan.pdf") {
		t.Errorf("url %q does not force a named download", url)
	}
}

func TestAttachment(t *testing.T) {
	tests := map[string]string{
		"emp-1/doc-1/pan.pdf":          `attachment; filename=pan.pdf`,
		"emp-1/doc-2/offer letter.pdf": `attachment; filename="offer letter.pdf"`,
	}
	for object, want := range tests {
		if got := attachment(object); got != want {
			t.Errorf("attachment(%q) = %q, want %q", object, got, want)
		}
	}
}

func TestIsMinioNotFound(t *testing.T) {
	if !isMinioNotFound(minio.ErrorResponse{StatusCode: 404}) {
		t.Error("Expected 404 to be not found")
	}
	if !isMinioNotFound(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Error("Expected NoSuchKey to be not found")
	}
	if isMinioNotFound(minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}) {
		t.Error("Expected AccessDenied not to be not found")
	}
}

func TestNewStorageUnknownDriver(t *testing.T) {
	_, err := NewStorage(context.Background(), &config.StorageConfig{Driver: "ftp"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
