package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/model"
	goredis "github.com/redis/go-redis/v9"
)

// AnalysisCache remembers analyses of identical file content
type AnalysisCache interface {
	Get(ctx context.Context, key string) (*model.Analysis, bool, error)
	Set(ctx context.Context, key string, analysis *model.Analysis) error
}

// ContentHash returns the hex sha256 of data
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CacheKey identifies an analysis by file content and requested type
func CacheKey(fileHash string, docType model.DocumentType, customName string) string {
	if customName != "" {
		return fileHash + ":" + string(docType) + ":" + customName
	}
	return fileHash + ":" + string(docType)
}

// NewAnalysisCache builds the cache selected in cfg
func NewAnalysisCache(ctx context.Context, cfg *config.CacheConfig) (AnalysisCache, error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryCache(ttl), nil
	case "redis":
		return NewRedisCache(ctx, cfg, ttl)
	case "none":
		return noopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

type cacheEntry struct {
	analysis  model.Analysis
	expiresAt time.Time
}

// MemoryCache is a TTL map. Expired entries are dropped on read
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*model.Analysis, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	a := e.analysis
	return &a, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, analysis *model.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{analysis: *analysis, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// RedisCache stores analyses as JSON strings with a TTL
type RedisCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(ctx context.Context, cfg *config.CacheConfig, ttl time.Duration) (*RedisCache, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "hivedesk:analysis:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.Analysis, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var a model.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &a, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, analysis *model.Analysis) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*model.Analysis, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, string, *model.Analysis) error         { return nil }
