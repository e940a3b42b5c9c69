package model

import (
	"fmt"
	"strings"
)

// MaxUploadSize is the largest accepted document (10 MiB)
const MaxUploadSize int64 = 10 * 1024 * 1024

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/png":          true,
	"image/jpg":          true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// AllowedMimeType reports whether contentType is on the upload allowlist.
// Parameters such as "; charset=binary" are ignored.
func AllowedMimeType(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return allowedMimeTypes[mt]
}

// UploadError describes why a file was refused before storage
type UploadError struct {
	Reason string
}

func (e *UploadError) Error() string {
	return e.Reason
}

// ValidateUpload checks the type allowlist and the size limit
func ValidateUpload(contentType string, size int64) error {
	if !AllowedMimeType(contentType) {
		return &UploadError{Reason: "Please upload PDF, JPEG, PNG, or DOC files only"}
	}
	if size > MaxUploadSize {
		return &UploadError{Reason: fmt.Sprintf("File size must be less than %dMB", MaxUploadSize/(1024*1024))}
	}
	return nil
}
