package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hivedesk/onboarding/backend/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// GormStore persists documents in postgres or sqlite
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&model.Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents: %w", err)
	}

	slog.Info("document store initialized", "driver", driver)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, doc *model.Document) error {
	if err := s.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]*model.Document, int64, error) {
	filter = filter.Normalize()

	q := s.db.WithContext(ctx).Model(&model.Document{})
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	docs := []*model.Document{}
	err := q.Order("uploaded_at DESC").Order("id").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Document{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}
