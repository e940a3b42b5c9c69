package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrAnalysisNotFound is returned when a document was never analyzed
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrInvalidReview is returned for a review status HR may not set
	ErrInvalidReview = errors.New("review status must be verified or rejected")
)

// AnalysisFailedError wraps an analyzer failure. The document stays reviewable
type AnalysisFailedError struct {
	DocumentID string
	Err        error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.DocumentID, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error { return e.Err }

// UploadInput is one file received from an employee
type UploadInput struct {
	EmployeeID   string
	DocumentType model.DocumentType
	CustomName   string
	Filename     string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// DocumentService coordinates storage, metadata and AI verification
type DocumentService struct {
	storage   Storage
	store     DocumentStore
	analyzer  Analyzer
	cache     AnalysisCache
	threshold float64
	group     singleflight.Group
	now       func() time.Time
}

func NewDocumentService(storage Storage, store DocumentStore, analyzer Analyzer, cache AnalysisCache, threshold float64) *DocumentService {
	if cache == nil {
		cache = noopCache{}
	}
	return &DocumentService{
		storage:   storage,
		store:     store,
		analyzer:  analyzer,
		cache:     cache,
		threshold: threshold,
		now:       time.Now,
	}
}

// Upload validates, stores and records a new pending document
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if err := model.ValidateUpload(in.ContentType, in.Size); err != nil {
		return nil, err
	}

	// the declared size can lie; never buffer more than the limit
	data, err := io.ReadAll(io.LimitReader(in.Body, model.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := model.ValidateUpload(in.ContentType, int64(len(data))); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &model.UploadError{Reason: "File is empty"}
	}

	id := uuid.New().String()
	filename := sanitizeFilename(in.Filename)
	doc := &model.Document{
		ID:                 id,
		EmployeeID:         in.EmployeeID,
		DocumentType:       in.DocumentType,
		CustomName:         in.CustomName,
		OriginalFilename:   filename,
		ObjectName:         fmt.Sprintf("%s/%s/%s", in.EmployeeID, id, filename),
		FileSize:           int64(len(data)),
		MimeType:           in.ContentType,
		FileHash:           ContentHash(data),
		VerificationStatus: model.VerificationPending,
		UploadedAt:         s.now(),
	}

	if strings.EqualFold(in.ContentType, "application/pdf") {
		pages, err := CountPDFPages(data)
		if err != nil {
			logger.Warn(ctx, "could not count pdf pages", "document_id", id, "error", err)
		}
		doc.PageCount = pages
	}

	if err := s.storage.UploadFile(ctx, doc.ObjectName, bytes.NewReader(data), doc.FileSize, doc.MimeType); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		// keep storage and metadata in step
		if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), doc.ObjectName); derr != nil {
			logger.Warn(ctx, "failed to remove orphaned object", "object", doc.ObjectName, "error", derr)
		}
		return nil, err
	}

	logger.Info(ctx, "document uploaded",
		"document_id", id,
		"document_type", doc.DocumentType,
		"size", doc.FileSize,
		"pages", doc.PageCount,
	)
	return doc, nil
}

// Analyze runs AI verification on a stored document. Concurrent calls for
// the same document share one analyzer run.
func (s *DocumentService) Analyze(ctx context.Context, id string) (*model.Analysis, error) {
	v, err, shared := s.group.Do(id, func() (any, error) {
		// callers share the run, so one caller leaving must not cancel it
		return s.analyze(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug(ctx, "analysis shared with concurrent request", "document_id", id)
	}
	a := *v.(*model.Analysis)
	return &a, nil
}

func (s *DocumentService) analyze(ctx context.Context, id string) (*model.Analysis, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := CacheKey(doc.FileHash, doc.DocumentType, doc.CustomName)
	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "analysis cache read failed", "document_id", id, "error", err)
	}

	var analysis *model.Analysis
	if hit {
		analysis = cached
		analysis.DocumentID = doc.ID
		logger.Info(ctx, "analysis served from cache", "document_id", id)
	} else {
		analysis, err = s.runAnalyzer(ctx, doc)
		if err != nil {
			now := s.now()
			doc.VerificationNotes = truncate("AI processing failed: "+err.Error(), 120)
			doc.AIProcessedAt = &now
			if serr := s.store.Save(ctx, doc); serr != nil {
				logger.Error(ctx, "failed to record analysis failure", "document_id", id, "error", serr)
			}
			return nil, &AnalysisFailedError{DocumentID: id, Err: err}
		}
		if err := s.cache.Set(ctx, key, analysis); err != nil {
			logger.Warn(ctx, "analysis cache write failed", "document_id", id, "error", err)
		}
	}

	s.apply(doc, analysis)
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, err
	}

	logger.Info(ctx, "document analyzed",
		"document_id", id,
		"analyzer", s.analyzer.Name(),
		"verification_status", analysis.VerificationStatus,
		"confidence", analysis.ConfidenceScore,
	)
	return analysis, nil
}

func (s *DocumentService) runAnalyzer(ctx context.Context, doc *model.Document) (*model.Analysis, error) {
	rc, err := s.storage.OpenFile(ctx, doc.ObjectName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, model.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}

	finding, err := s.analyzer.Analyze(ctx, AnalyzeInput{
		DocumentType: doc.DocumentType,
		CustomName:   doc.CustomName,
		Filename:     doc.OriginalFilename,
		MimeType:     doc.MimeType,
		PageCount:    doc.PageCount,
		Content:      data,
	})
	if err != nil {
		return nil, err
	}
	return BuildAnalysis(doc, finding, s.threshold, s.now()), nil
}

// apply copies an analysis onto its document. A decision HR already made is kept
func (s *DocumentService) apply(doc *model.Document, a *model.Analysis) {
	processed := a.ProcessedAt
	doc.Analysis = a
	doc.AIConfidence = a.ConfidenceScore
	doc.AIProcessedAt = &processed
	if doc.VerificationStatus != model.VerificationPending {
		return
	}

	doc.VerificationNotes = a.AnalysisNotes
	if a.VerificationStatus != model.VerificationPending {
		doc.VerificationStatus = a.VerificationStatus
		doc.VerifiedBy = "ai:" + s.analyzer.Name()
		doc.VerifiedAt = &processed
	}
}

// GetAnalysis returns the last analysis of a document
func (s *DocumentService) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Analysis == nil {
		return nil, ErrAnalysisNotFound
	}
	return doc.Analysis, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.store.Get(ctx, id)
}

func (s *DocumentService) List(ctx context.Context, filter ListFilter) ([]*model.Document, int64, error) {
	return s.store.List(ctx, filter)
}

// Review records an HR decision
func (s *DocumentService) Review(ctx context.Context, id string, status model.VerificationStatus, notes, reviewer string) (*model.Document, error) {
	if !status.Reviewable() {
		return nil, ErrInvalidReview
	}

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc.VerificationStatus = status
	doc.VerifiedBy = reviewer
	doc.VerifiedAt = &now
	if notes != "" {
		doc.VerificationNotes = notes
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, err
	}

	logger.Info(ctx, "document reviewed", "document_id", id, "verification_status", status, "reviewer", reviewer)
	return doc, nil
}

// Delete removes the stored file and the metadata record
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteFile(ctx, doc.ObjectName); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info(ctx, "document deleted", "document_id", id)
	return nil
}

// Open streams the stored file. The caller closes the reader
func (s *DocumentService) Open(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.OpenFile(ctx, doc.ObjectName)
	if err != nil {
		return nil, nil, err
	}
	return rc, doc, nil
}

// PresignedURL returns a time-limited direct link to the stored file
func (s *DocumentService) PresignedURL(ctx context.Context, id string) (string, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.GetPresignedURL(ctx, doc.ObjectName)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
