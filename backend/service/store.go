package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/model"
)

// ErrDocumentNotFound is returned when no document has the requested id
var ErrDocumentNotFound = errors.New("document not found")

// ListFilter selects a page of documents. An empty EmployeeID matches everyone
type ListFilter struct {
	EmployeeID string
	Page       int
	PageSize   int
}

// Normalize applies the default page and page size
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return f
}

// DocumentStore persists document metadata
type DocumentStore interface {
	Save(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, filter ListFilter) ([]*model.Document, int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// NewDocumentStore builds the store selected in cfg
func NewDocumentStore(cfg *config.StoreConfig) (DocumentStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.MaxDocuments), nil
	case "postgres", "sqlite":
		return NewGormStore(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	documents    map[string]*model.Document
	mu           sync.RWMutex
	maxDocuments int // 0 = unlimited
	now          func() time.Time
}

func NewMemoryStore(maxDocuments int) *MemoryStore {
	if maxDocuments < 0 {
		maxDocuments = 0
	}
	slog.Info("document store initialized", "driver", "memory", "max_documents", maxDocuments)
	return &MemoryStore{
		documents:    make(map[string]*model.Document),
		maxDocuments: maxDocuments,
		now:          time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.UpdatedAt = s.now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = doc.UpdatedAt
	}
	cp := *doc
	s.documents[doc.ID] = &cp

	s.cleanupIfNeeded()
	return nil
}

// Get returns a copy so callers can mutate it without holding the lock
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*model.Document, int64, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	var matched []*model.Document
	for _, d := range s.documents {
		if filter.EmployeeID == "" || d.EmployeeID == filter.EmployeeID {
			cp := *d
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return []*model.Document{}, total, nil
	}
	end := min(start+filter.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.documents)), nil
}

// cleanupIfNeeded removes the oldest documents once the store exceeds maxDocuments.
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxDocuments <= 0 || len(s.documents) <= s.maxDocuments {
		return
	}

	docs := make([]*model.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})

	removeCount := len(docs) - s.maxDocuments
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old document",
			"document_id", docs[i].ID,
			"uploaded_at", docs[i].UploadedAt,
		)
		delete(s.documents, docs[i].ID)
	}
}

func sortNewestFirst(docs []*model.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
}
