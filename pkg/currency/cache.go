package currency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Cache stores one rate table per key until it expires.
type Cache interface {
	// Load returns false when key is absent or expired.
	Load(ctx context.Context, key string) (Table, bool, error)
	Store(ctx context.Context, key string, t Table, ttl time.Duration) error
}

// CachedSource serves rates from Cache and refreshes them from Source once
// they are older than TTL.
type CachedSource struct {
	Source Source
	Cache  Cache
	Key    string
	TTL    time.Duration
	Logger *slog.Logger
}

func (s CachedSource) Rates(ctx context.Context) (Table, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t, ok, err := s.Cache.Load(ctx, s.key())
	switch {
	case err != nil:
		logger.Warn("rate cache load failed", slog.String("error", err.Error()))
	case ok:
		return t, nil
	}

	t, err = s.Source.Rates(ctx)
	if err != nil {
		return Table{}, err
	}

	if err := s.Cache.Store(ctx, s.key(), t, s.TTL); err != nil {
		logger.Warn("rate cache store failed", slog.String("error", err.Error()))
	}
	return t, nil
}

func (s CachedSource) key() string {
	if s.Key == "" {
		return "rates"
	}
	return s.Key
}

type memoryEntry struct {
	table   Table
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Load(_ context.Context, key string) (Table, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Table{}, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Table{}, false, nil
	}
	return e.table, true, nil
}

func (c *MemoryCache) Store(_ context.Context, key string, t Table, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("store %s: ttl must be positive", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{table: t, expires: c.now().Add(ttl)}
	return nil
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Source = CachedSource{}
	_ Source = ECBSource{}
	_ Source = FixedSource{}
)
