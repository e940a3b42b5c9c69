package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrSlotNotFound     = errors.New("document slot not found")
	ErrUploadInFlight   = errors.New("upload already in progress")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrNoDocumentID     = errors.New("document not available")
	ErrAlreadyVerified  = errors.New("document is already verified")
	ErrNotConfirmed     = errors.New("not confirmed")
	ErrRejected         = errors.New("document verification failed")
	ErrClosed           = errors.New("workflow closed")
)

// ValidationError is a file refused before any network call.
type ValidationError struct {
	SlotID string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UploadError is a failed upload call. The slot keeps its prior state.
type UploadError struct {
	SlotID string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.SlotID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// AnalysisError is a failed or rejecting analysis. The slot stays pending.
type AnalysisError struct {
	SlotID     string
	DocumentID string
	Err        error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s: %v", e.DocumentID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// IsValidationError reports whether err was raised by local validation
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUploadError reports whether err came from the upload call
func IsUploadError(err error) bool {
	var u *UploadError
	return errors.As(err, &u)
}

// IsAnalysisError reports whether err came from analysis
func IsAnalysisError(err error) bool {
	var a *AnalysisError
	return errors.As(err, &a)
}
