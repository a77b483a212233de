package mappingstore

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// Cache is a read-through cache of mappings. Only existing mappings are cached.
type Cache interface {
	Get(ctx context.Context, key models.MappingKey) (*models.SkuMapping, bool, error)
	Set(ctx context.Context, m models.SkuMapping) error
	Delete(ctx context.Context, key models.MappingKey) error
}

// CachedStore serves Get from a Cache in front of a Store. Writes go straight through;
// stale entries are dropped when the change notification arrives, so register the CachedStore
// as a listener on the NotifyingStore that wraps it.
type CachedStore struct {
	inner Store
	cache Cache
	log   ectologger.Logger
}

func NewCachedStore(log ectologger.Logger, inner Store, cache Cache) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, log: log}
}

func (s *CachedStore) Get(ctx context.Context, key models.MappingKey) (*models.SkuMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mappingstore.CachedStore.Get")
	defer span.End()

	if m, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.WithContext(ctx).WithError(err).Warnf("Mapping cache read failed for %s", key)
	} else if ok {
		return m, nil
	}

	m, err := s.inner.Get(ctx, key)
	if err != nil || m == nil {
		return m, err
	}
	if err := s.cache.Set(ctx, *m); err != nil {
		s.log.WithContext(ctx).WithError(err).Warnf("Mapping cache write failed for %s", key)
	}
	return m, nil
}

func (s *CachedStore) Put(ctx context.Context, m models.SkuMapping) (bool, error) {
	return s.inner.Put(ctx, m)
}

func (s *CachedStore) Replace(ctx context.Context, m models.SkuMapping, expectedEntityID string) (*models.SkuMapping, error) {
	return s.inner.Replace(ctx, m, expectedEntityID)
}

// OnMappingChanged drops the cached entry for the changed key.
func (s *CachedStore) OnMappingChanged(ctx context.Context, change Change) {
	if err := s.cache.Delete(ctx, change.Key); err != nil {
		s.log.WithContext(ctx).WithError(err).Errorf("Failed to invalidate cached mapping %s", change.Key)
	}
}

// MemoryCacheConfig configures a MemoryCache
type MemoryCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultMemoryCacheConfig returns sensible defaults
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		MaxSize: 10000,
		TTL:     10 * time.Minute,
	}
}

// MemoryCache is a process-local Cache with TTL expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[models.MappingKey]*cacheEntry
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
}

type cacheEntry struct {
	mapping   models.SkuMapping
	expiresAt time.Time
}

func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMemoryCacheConfig().MaxSize
	}
	return &MemoryCache{
		entries: make(map[models.MappingKey]*cacheEntry),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
	}
}

func (c *MemoryCache) Get(_ context.Context, key models.MappingKey) (*models.SkuMapping, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if exists && (c.ttl <= 0 || time.Now().Before(entry.expiresAt)) {
		c.hits++
		m := entry.mapping
		return &m, true, nil
	}
	c.misses++
	return nil, false, nil
}

func (c *MemoryCache) Set(_ context.Context, m models.SkuMapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if at capacity (clear half)
	if len(c.entries) >= c.maxSize {
		c.evictHalf()
	}
	c.entries[m.MappingKey] = &cacheEntry{mapping: m, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key models.MappingKey) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// evictHalf must be called with the lock held
func (c *MemoryCache) evictHalf() {
	count := 0
	target := len(c.entries) / 2
	for key := range c.entries {
		delete(c.entries, key)
		count++
		if count >= target {
			break
		}
	}
}

// CacheStats returns cache statistics
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
