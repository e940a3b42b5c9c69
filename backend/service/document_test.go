package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hivedesk/onboarding/backend/model"
)

// memStorage is an in-memory Storage
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	failPut error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) EnsureBucket(context.Context) error { return nil }

func (m *memStorage) UploadFile(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if m.failPut != nil {
		return m.failPut
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	m.uploads++
	return nil
}

func (m *memStorage) OpenFile(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) GetPresignedURL(_ context.Context, name string) (string, error) {
	return "https://storage.test/" + name, nil
}

func (m *memStorage) DeleteFile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

// countingAnalyzer wraps MockAnalyzer and counts calls
type countingAnalyzer struct {
	calls   atomic.Int32
	release chan struct{}
	entered chan struct{}
	err     error
}

func (a *countingAnalyzer) Name() string { return "counting" }

func (a *countingAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*Finding, error) {
	if a.calls.Add(1) == 1 && a.entered != nil {
		close(a.entered)
	}
	if a.release != nil {
		<-a.release
	}
	if a.err != nil {
		return nil, a.err
	}
	return MockAnalyzer{}.Analyze(ctx, in)
}

func newTestService(analyzer Analyzer, cache AnalysisCache) (*DocumentService, *memStorage) {
	storage := newMemStorage()
	svc := NewDocumentService(storage, NewMemoryStore(0), analyzer, cache, 0.8)
	svc.now = func() time.Time { return testEpoch }
	return svc, storage
}

func upload(t *testing.T, svc *DocumentService, filename, content string) *model.Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), UploadInput{
		EmployeeID:   "emp-1",
		DocumentType: model.TypePAN,
		Filename:     filename,
		ContentType:  "image/png",
		Size:         int64(len(content)),
		Body:         strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return doc
}

func TestDocumentServiceUpload(t *testing.T) {
	svc, storage := newTestService(MockAnalyzer{}, nil)

	doc := upload(t, svc, `C:\scans\pan.png`, "png-bytes")

	if doc.VerificationStatus != model.VerificationPending {
		t.Errorf("status = %s", doc.VerificationStatus)
	}
	if doc.OriginalFilename != "pan.png" {
		t.Errorf("filename = %q", doc.OriginalFilename)
	}
	if doc.FileHash != ContentHash([]byte("png-bytes")) {
		t.Errorf("hash = %s", doc.FileHash)
	}
	if got := string(storage.objects[doc.ObjectName]); got != "png-bytes" {
		t.Errorf("stored content = %q", got)
	}
	if !strings.HasPrefix(doc.ObjectName, "emp-1/"+doc.ID+"/") {
		t.Errorf("object name = %q", doc.ObjectName)
	}

	stored, err := svc.Get(context.Background(), doc.ID)
	if err != nil || stored.EmployeeID != "emp-1" {
		t.Errorf("Get = %+v, %v", stored, err)
	}
}

func TestDocumentServiceUploadRejects(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		body        string
	}{
		{"disallowed type", "text/plain", 4, "text"},
		{"declared too large", "application/pdf", model.MaxUploadSize + 1, "x"},
		{"actual too large", "image/png", 10, strings.Repeat("a", int(model.MaxUploadSize)+1)},
		{"empty", "image/png", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, storage := newTestService(MockAnalyzer{}, nil)
			_, err := svc.Upload(context.Background(), UploadInput{
				EmployeeID:  "emp-1",
				Filename:    "f",
				ContentType: tt.contentType,
				Size:        tt.size,
				Body:        strings.NewReader(tt.body),
			})

			var uploadErr *model.UploadError
			if !errors.As(err, &uploadErr) {
				t.Fatalf("err = %v, want *model.UploadError", err)
			}
			if storage.uploads != 0 {
				t.Error("rejected file reached storage")
			}
		})
	}
}

func TestDocumentServiceUploadStorageFailure(t *testing.T) {
	svc, storage := newTestService(MockAnalyzer{}, nil)
	storage.failPut = errors.New("bucket unavailable")

	_, err := svc.Upload(context.Background(), UploadInput{
		EmployeeID: "emp-1", Filename: "a.png", ContentType: "image/png", Size: 1, Body: strings.NewReader("a"),
	})
	if err == nil {
		t.Fatal("expected storage error")
	}
	if _, total, _ := svc.List(context.Background(), ListFilter{}); total != 0 {
		t.Errorf("metadata recorded for failed upload: %d", total)
	}
}

func TestDocumentServiceAnalyzeVerdicts(t *testing.T) {
	tests := []struct {
		filename   string
		wantStatus model.VerificationStatus
	}{
		{"pan.png", model.VerificationVerified},
		{"invalid-pan.png", model.VerificationRejected},
		{"blurry-pan.png", model.VerificationPending},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			svc, _ := newTestService(MockAnalyzer{}, nil)
			doc := upload(t, svc, tt.filename, "content-"+tt.filename)

			a, err := svc.Analyze(context.Background(), doc.ID)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if a.VerificationStatus != tt.wantStatus {
				t.Errorf("analysis status = %s, want %s", a.VerificationStatus, tt.wantStatus)
			}
			if a.ExtractedData["pan_number"] != nil {
				t.Errorf("raw pan field exposed: %v", a.ExtractedData)
			}

			stored, _ := svc.Get(context.Background(), doc.ID)
			if stored.VerificationStatus != tt.wantStatus {
				t.Errorf("document status = %s, want %s", stored.VerificationStatus, tt.wantStatus)
			}
			if stored.Analysis == nil || stored.AIProcessedAt == nil {
				t.Error("analysis not recorded on document")
			}
			if tt.wantStatus == model.VerificationVerified && stored.VerifiedBy != "ai:mock" {
				t.Errorf("verified by = %q", stored.VerifiedBy)
			}
		})
	}
}

func TestDocumentServiceAnalyzeUsesCache(t *testing.T) {
	analyzer := &countingAnalyzer{}
	svc, _ := newTestService(analyzer, NewMemoryCache(time.Hour))

	first := upload(t, svc, "pan.png", "same-bytes")
	second := upload(t, svc, "pan-copy.png", "same-bytes")

	if _, err := svc.Analyze(context.Background(), first.ID); err != nil {
		t.Fatalf("Analyze first: %v", err)
	}
	a, err := svc.Analyze(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("Analyze second: %v", err)
	}

	if n := analyzer.calls.Load(); n != 1 {
		t.Errorf("analyzer calls = %d, want 1", n)
	}
	if a.DocumentID != second.ID {
		t.Errorf("cached analysis document id = %q, want %q", a.DocumentID, second.ID)
	}
}

func TestDocumentServiceAnalyzeCoalesces(t *testing.T) {
	analyzer := &countingAnalyzer{release: make(chan struct{}), entered: make(chan struct{})}
	svc, _ := newTestService(analyzer, nil)
	doc := upload(t, svc, "pan.png", "bytes")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	analyze := func() {
		defer wg.Done()
		_, err := svc.Analyze(context.Background(), doc.ID)
		errs <- err
	}

	wg.Add(1)
	go analyze()
	<-analyzer.entered

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go analyze()
	}
	// give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(analyzer.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Analyze: %v", err)
		}
	}
	if n := analyzer.calls.Load(); n != 1 {
		t.Errorf("analyzer calls = %d, want 1", n)
	}
}

func TestDocumentServiceAnalyzeFailure(t *testing.T) {
	analyzer := &countingAnalyzer{err: errors.New("quota exceeded")}
	svc, _ := newTestService(analyzer, nil)
	doc := upload(t, svc, "pan.png", "bytes")

	_, err := svc.Analyze(context.Background(), doc.ID)

	var failed *AnalysisFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("err = %v, want *AnalysisFailedError", err)
	}
	if failed.DocumentID != doc.ID {
		t.Errorf("failed id = %q", failed.DocumentID)
	}

	stored, _ := svc.Get(context.Background(), doc.ID)
	if stored.VerificationStatus != model.VerificationPending {
		t.Errorf("status = %s, want pending", stored.VerificationStatus)
	}
	if !strings.HasPrefix(stored.VerificationNotes, "AI processing failed: quota exceeded") {
		t.Errorf("notes = %q", stored.VerificationNotes)
	}
	if _, err := svc.GetAnalysis(context.Background(), doc.ID); !errors.Is(err, ErrAnalysisNotFound) {
		t.Errorf("GetAnalysis err = %v", err)
	}
}

func TestDocumentServiceAnalyzeMissing(t *testing.T) {
	svc, _ := newTestService(MockAnalyzer{}, nil)
	if _, err := svc.Analyze(context.Background(), "nope"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestDocumentServiceReview(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(MockAnalyzer{}, nil)
	doc := upload(t, svc, "blurry.png", "bytes")

	if _, err := svc.Review(ctx, doc.ID, model.VerificationPending, "", "hr1"); !errors.Is(err, ErrInvalidReview) {
		t.Errorf("pending review err = %v", err)
	}

	reviewed, err := svc.Review(ctx, doc.ID, model.VerificationRejected, "Wrong card", "hr1")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.VerifiedBy != "hr1" || reviewed.VerificationNotes != "Wrong card" || reviewed.VerifiedAt == nil {
		t.Errorf("reviewed = %+v", reviewed)
	}

	// a later analysis must not overwrite the HR decision
	if _, err := svc.Analyze(ctx, doc.ID); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	stored, _ := svc.Get(ctx, doc.ID)
	if stored.VerificationStatus != model.VerificationRejected || stored.VerifiedBy != "hr1" {
		t.Errorf("HR decision overwritten: %s by %s", stored.VerificationStatus, stored.VerifiedBy)
	}
}

func TestDocumentServiceDeleteAndOpen(t *testing.T) {
	ctx := context.Background()
	svc, storage := newTestService(MockAnalyzer{}, nil)
	doc := upload(t, svc, "pan.png", "bytes")

	rc, opened, err := svc.Open(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "bytes" || opened.ID != doc.ID {
		t.Errorf("opened %q for %s", data, opened.ID)
	}

	url, err := svc.PresignedURL(ctx, doc.ID)
	if err != nil || !strings.HasSuffix(url, doc.ObjectName) {
		t.Errorf("PresignedURL = %q, %v", url, err)
	}

	if err := svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(storage.objects) != 0 {
		t.Error("object left in storage")
	}
	if _, err := svc.Get(ctx, doc.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := svc.Delete(ctx, doc.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}
