// Package workflow drives onboarding documents through upload and AI
// verification. A Manager owns the slot list; every mutation goes through
// its methods.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/portal/api"
	"github.com/hivedesk/onboarding/portal/notify"
)

// DefaultVerifyDelay is how long a verified verdict stays visible as
// pending before the slot flips to verified.
const DefaultVerifyDelay = 2 * time.Second

// API is the slice of the backend the workflow calls.
type API interface {
	UploadDocument(ctx context.Context, file api.File, meta api.Metadata) (api.UploadResult, error)
	AnalyzeDocument(ctx context.Context, documentID string, meta api.Metadata) (api.Analysis, error)
	DownloadDocument(ctx context.Context, documentID string, w io.Writer) (int64, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Manager
type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithVerifyDelay sets the cosmetic pause before a slot shows as verified
func WithVerifyDelay(d time.Duration) Option {
	return func(m *Manager) { m.verifyDelay = d }
}

// WithSelectionReset registers fn to run after every validated upload
// attempt, so a UI can clear its file picker and accept the same file again.
func WithSelectionReset(fn func(slotID string)) Option {
	return func(m *Manager) { m.onReset = fn }
}

func WithSleeper(s Sleeper) Option {
	return func(m *Manager) { m.sleep = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// withClock is used by tests to pin timestamps.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is safe for concurrent use. Slots progress independently; all
// in-flight tracking is keyed by slot id.
type Manager struct {
	api         API
	notifier    notify.Notifier
	verifyDelay time.Duration
	onReset     func(slotID string)
	sleep       Sleeper
	log         *slog.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	idle      *sync.Cond
	active    int
	closed    bool
	order     []string
	slots     map[string]*Slot
	analyses  map[string]*Analysis
	gens      map[string]uint64 // slot id -> generation, bumped whenever a slot is (re)installed
	uploading map[string]uint64 // slot id -> generation that started the upload
	analyzing map[string]flight
	nextID    int
	nextGen   uint64
}

// flight identifies one analysis run. A result is applied only while the
// slot still has the same generation and document id.
type flight struct {
	gen        uint64
	documentID string
}

func New(client API, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		api:         client,
		notifier:    notify.Discard,
		verifyDelay: DefaultVerifyDelay,
		sleep:       sleep,
		log:         slog.Default(),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		slots:       make(map[string]*Slot),
		analyses:    make(map[string]*Analysis),
		gens:        make(map[string]uint64),
		uploading:   make(map[string]uint64),
		analyzing:   make(map[string]flight),
	}
	m.idle = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.Discard
	}
	return m
}

// Seed installs server-provided required slots. A slot with an existing id
// replaces it in place.
func (m *Manager) Seed(slots ...Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range slots {
		if s.Status == "" {
			s.Status = StatusRequired
		}
		if _, ok := m.slots[s.ID]; !ok {
			m.order = append(m.order, s.ID)
		}
		m.slots[s.ID] = &s
		m.nextGen++
		m.gens[s.ID] = m.nextGen
	}
}

// AddCustom adds a user-named required slot
func (m *Manager) AddCustom(name string) (Slot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		err := &ValidationError{Err: errors.New("Please enter a document name")}
		m.notify(notify.LevelError, "", err.Error(), err)
		return Slot{}, err
	}

	m.mu.Lock()
	var id string
	for {
		m.nextID++
		id = "custom-" + strconv.Itoa(m.nextID)
		if _, taken := m.slots[id]; !taken {
			break
		}
	}
	s := &Slot{
		ID:           id,
		Name:         name,
		CustomName:   name,
		DocumentType: string(model.TypeCustomDocument),
		Custom:       true,
		Status:       StatusRequired,
	}
	m.slots[id] = s
	m.order = append(m.order, id)
	m.nextGen++
	m.gens[id] = m.nextGen
	out := *s
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, id, fmt.Sprintf("Added %q to required documents", name), nil)
	return out, nil
}

// Upload validates file locally, uploads it for the slot and, when the
// backend returns a document id, starts analysis in the background.
func (m *Manager) Upload(ctx context.Context, slotID string, file File) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	slot, ok := m.slots[slotID]
	if !ok {
		m.mu.Unlock()
		return ErrSlotNotFound
	}
	if slot.Status == StatusVerified {
		m.mu.Unlock()
		m.notify(notify.LevelError, slotID, "Document is already verified", ErrAlreadyVerified)
		return ErrAlreadyVerified
	}
	if _, busy := m.uploading[slotID]; busy {
		m.mu.Unlock()
		m.notify(notify.LevelError, slotID, "Upload already in progress", ErrUploadInFlight)
		return ErrUploadInFlight
	}

	var verr error
	if file.Body == nil {
		verr = errors.New("Please select a file and document")
	} else {
		verr = model.ValidateUpload(file.ContentType, file.Size)
	}
	if verr != nil {
		m.mu.Unlock()
		err := &ValidationError{SlotID: slotID, Err: verr}
		m.notify(notify.LevelError, slotID, err.Error(), err)
		return err
	}

	gen := m.gens[slotID]
	m.uploading[slotID] = gen
	meta := slot.Metadata()
	m.mu.Unlock()

	defer m.resetSelection(slotID)

	m.log.Debug("uploading document", "slot_id", slotID, "file", file.Name, "size", file.Size, "document_type", meta.DocumentType)
	res, err := m.api.UploadDocument(ctx, file, meta)

	m.mu.Lock()
	if m.uploading[slotID] == gen {
		delete(m.uploading, slotID)
	}
	slot, ok = m.slots[slotID]
	if !ok || m.gens[slotID] != gen {
		// Deleted, or deleted and re-created, while the upload was running.
		m.mu.Unlock()
		m.log.Debug("dropping upload result for removed slot", "slot_id", slotID)
		return ErrSlotNotFound
	}
	if err != nil {
		m.mu.Unlock()
		uerr := &UploadError{SlotID: slotID, Err: err}
		m.notify(notify.LevelError, slotID, uploadMessage(err), uerr)
		return uerr
	}

	slot.Status = StatusPending
	slot.FileName = file.Name
	slot.FileSize = file.Size
	slot.UploadedAt = m.now()
	slot.DocumentID = res.DocumentID
	// A stale verdict belongs to the previous file.
	delete(m.analyses, slotID)
	analyze := res.DocumentID != "" && !m.closed
	if analyze {
		m.reserveAnalysisLocked(slotID, gen, res.DocumentID)
	}
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, slotID, "Document uploaded successfully!", nil)
	if analyze {
		go m.runAnalysis(ctx, slotID, gen, res.DocumentID, meta)
	}
	return nil
}

func uploadMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Upload failed. Please try again."
}

func (m *Manager) resetSelection(slotID string) {
	if m.onReset != nil {
		m.onReset(slotID)
	}
}

// RequestAnalysis starts analysis for a slot that already has a document id.
// The result arrives asynchronously through notifications and Analysis.
func (m *Manager) RequestAnalysis(ctx context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	slot, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if slot.DocumentID == "" {
		return ErrNoDocumentID
	}
	if _, busy := m.analyzing[slotID]; busy {
		return ErrAnalysisInFlight
	}
	gen := m.gens[slotID]
	m.reserveAnalysisLocked(slotID, gen, slot.DocumentID)
	go m.runAnalysis(ctx, slotID, gen, slot.DocumentID, slot.Metadata())
	return nil
}

func (m *Manager) reserveAnalysisLocked(slotID string, gen uint64, documentID string) {
	m.analyzing[slotID] = flight{gen: gen, documentID: documentID}
	m.active++
}

// runAnalysis keeps the values of the caller's ctx but not its deadline:
// the analysis outlives the call that started it and ends only on Close.
func (m *Manager) runAnalysis(parent context.Context, slotID string, gen uint64, documentID string, meta Metadata) {
	defer m.done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(m.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	m.log.Debug("requesting analysis", "slot_id", slotID, "document_id", documentID)
	res, err := m.api.AnalyzeDocument(ctx, documentID, meta)

	m.mu.Lock()
	if m.analyzing[slotID] == (flight{gen: gen, documentID: documentID}) {
		delete(m.analyzing, slotID)
	}
	if !m.currentLocked(slotID, gen, documentID) {
		m.mu.Unlock()
		m.log.Debug("dropping analysis for removed or replaced document", "slot_id", slotID, "document_id", documentID)
		return
	}
	if err != nil {
		m.mu.Unlock()
		aerr := &AnalysisError{SlotID: slotID, DocumentID: documentID, Err: err}
		m.notify(notify.LevelError, slotID, analysisMessage(err), aerr)
		return
	}

	a := &Analysis{
		SlotID:             slotID,
		DocumentID:         documentID,
		VerificationStatus: res.VerificationStatus,
		ConfidenceScore:    res.ConfidenceScore,
		ExtractedData:      res.ExtractedData,
		Issues:             res.Issues,
		AnalysisNotes:      res.AnalysisNotes,
		DocumentType:       res.DocumentType,
		Metadata:           meta,
		AnalyzedAt:         m.now(),
	}
	m.analyses[slotID] = a

	verified := res.VerificationStatus == string(StatusVerified)
	if verified {
		m.active++
	}
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, slotID, "AI analysis completed!", nil)
	switch res.VerificationStatus {
	case string(StatusVerified):
		go m.markVerified(slotID, gen, documentID)
	case string(model.VerificationRejected):
		aerr := &AnalysisError{SlotID: slotID, DocumentID: documentID, Err: ErrRejected}
		m.notify(notify.LevelError, slotID, "Document verification failed. Please upload a valid document.", aerr)
	default:
		m.notify(notify.LevelInfo, slotID, "Document needs manual review by HR.", nil)
	}
}

func analysisMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "AI analysis failed. Document will be reviewed manually."
}

func (m *Manager) markVerified(slotID string, gen uint64, documentID string) {
	defer m.done()

	if err := m.sleep(m.ctx, m.verifyDelay); err != nil {
		return
	}

	m.mu.Lock()
	if !m.currentLocked(slotID, gen, documentID) {
		m.mu.Unlock()
		return
	}
	m.slots[slotID].Status = StatusVerified
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, slotID, "Document verified successfully!", nil)
}

// currentLocked reports whether slotID still holds documentID in generation gen.
func (m *Manager) currentLocked(slotID string, gen uint64, documentID string) bool {
	slot, ok := m.slots[slotID]
	return ok && m.gens[slotID] == gen && slot.DocumentID == documentID
}

func (m *Manager) done() {
	m.mu.Lock()
	m.active--
	if m.active == 0 {
		m.idle.Broadcast()
	}
	m.mu.Unlock()
}

// Delete removes a slot and its cached analysis once c approves. Results
// still in flight for the slot are discarded when they arrive.
func (m *Manager) Delete(slotID string, c Confirmer) error {
	m.mu.Lock()
	slot, ok := m.slots[slotID]
	if !ok {
		m.mu.Unlock()
		return ErrSlotNotFound
	}
	name := slot.DisplayName()
	m.mu.Unlock()

	if c == nil || !c.Confirm(fmt.Sprintf("Are you sure you want to remove %q?", name)) {
		return ErrNotConfirmed
	}

	m.mu.Lock()
	if _, ok := m.slots[slotID]; !ok {
		m.mu.Unlock()
		return ErrSlotNotFound
	}
	delete(m.slots, slotID)
	delete(m.analyses, slotID)
	delete(m.gens, slotID)
	delete(m.uploading, slotID)
	delete(m.analyzing, slotID)
	for i, id := range m.order {
		if id == slotID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.notify(notify.LevelSuccess, slotID, fmt.Sprintf("Removed %q", name), nil)
	return nil
}

// Download streams the slot's stored file into w
func (m *Manager) Download(ctx context.Context, slotID string, w io.Writer) error {
	m.mu.Lock()
	slot, ok := m.slots[slotID]
	var documentID, name string
	if ok {
		documentID, name = slot.DocumentID, slot.DisplayName()
	}
	m.mu.Unlock()

	if !ok {
		return ErrSlotNotFound
	}
	if documentID == "" {
		m.notify(notify.LevelError, slotID, "Document not available for download", ErrNoDocumentID)
		return ErrNoDocumentID
	}

	if _, err := m.api.DownloadDocument(ctx, documentID, w); err != nil {
		m.notify(notify.LevelError, slotID, "Download failed. Please try again.", err)
		return fmt.Errorf("download %s: %w", documentID, err)
	}
	m.notify(notify.LevelSuccess, slotID, "Downloaded "+name, nil)
	return nil
}

// Slots returns a snapshot in insertion order
func (m *Manager) Slots() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Slot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.slots[id])
	}
	return out
}

func (m *Manager) Slot(id string) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// Analysis returns the cached verdict for a slot
func (m *Manager) Analysis(slotID string) (Analysis, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.analyses[slotID]
	if !ok {
		return Analysis{}, false
	}
	return cloneAnalysis(a), true
}

// Analyses returns every cached verdict keyed by slot id
func (m *Manager) Analyses() map[string]Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Analysis, len(m.analyses))
	for id, a := range m.analyses {
		out[id] = cloneAnalysis(a)
	}
	return out
}

func (m *Manager) Uploading(slotID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.uploading[slotID]
	return ok
}

func (m *Manager) Analyzing(slotID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.analyzing[slotID]
	return ok
}

func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Progress{Total: len(m.slots)}
	for _, s := range m.slots {
		switch s.Status {
		case StatusVerified:
			p.Verified++
		case StatusPending:
			p.Pending++
		default:
			p.Required++
		}
	}
	return p
}

// Wait blocks until background analyses and verify delays have finished.
// Uploads are synchronous and are not waited for.
func (m *Manager) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.active > 0 {
		m.idle.Wait()
	}
}

// Close stops background work and waits for it to exit. Pending verify
// delays are abandoned; slots keep their current status.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.Wait()
}

func (m *Manager) notify(level notify.Level, slotID, msg string, err error) {
	m.notifier.Notify(notify.Notification{Level: level, SlotID: slotID, Message: msg, Err: err})
}
