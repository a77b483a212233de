package mappingstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
)

var testKey = models.MappingKey{SupplierID: "sup-1", SupplierSKU: "SKU-1"}

func mapping(entityID string, source models.MappingSource) models.SkuMapping {
	return models.SkuMapping{MappingKey: testKey, EntityID: entityID, Source: source}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should round trip a mapping", func(t *testing.T) {
		s := NewMemoryStore()

		got, err := s.Get(ctx, testKey)
		require.NoError(t, err)
		assert.Nil(t, got)

		created, err := s.Put(ctx, mapping("mp-1", models.MappingSourceReview))
		require.NoError(t, err)
		assert.True(t, created)

		got, err = s.Get(ctx, testKey)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "mp-1", got.EntityID)
		assert.Equal(t, models.MappingSourceReview, got.Source)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("should treat the same target as a no-op", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Put(ctx, mapping("mp-1", models.MappingSourceAutoMatch))
		require.NoError(t, err)

		created, err := s.Put(ctx, mapping("mp-1", models.MappingSourceReview))
		require.NoError(t, err)
		assert.False(t, created)

		got, _ := s.Get(ctx, testKey)
		assert.Equal(t, models.MappingSourceAutoMatch, got.Source)
	})

	t.Run("should refuse to move a key silently", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Put(ctx, mapping("mp-1", models.MappingSourceReview))
		require.NoError(t, err)

		_, err = s.Put(ctx, mapping("mp-2", models.MappingSourceReview))
		require.Error(t, err)
		assert.True(t, errors.IsMappingConflict(err))

		var conflict *errors.MappingConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "mp-1", conflict.CurrentEntityID)
		assert.Equal(t, "mp-2", conflict.AttemptedEntityID)
	})

	t.Run("should reject incomplete mappings", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Put(ctx, models.SkuMapping{MappingKey: models.MappingKey{SupplierID: "sup-1"}, EntityID: "mp-1"})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("should replace only from the expected target", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Put(ctx, mapping("mp-1", models.MappingSourceReview))
		require.NoError(t, err)

		_, err = s.Replace(ctx, mapping("mp-3", models.MappingSourceOverride), "mp-2")
		assert.True(t, errors.IsMappingConflict(err))

		prev, err := s.Replace(ctx, mapping("mp-3", models.MappingSourceOverride), "mp-1")
		require.NoError(t, err)
		assert.Equal(t, "mp-1", prev.EntityID)

		got, _ := s.Get(ctx, testKey)
		assert.Equal(t, "mp-3", got.EntityID)
		assert.Equal(t, models.MappingSourceOverride, got.Source)
	})

	t.Run("should rewrite the source when replacing onto the same target", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Put(ctx, mapping("mp-1", models.MappingSourceAutoMatch))
		require.NoError(t, err)

		prev, err := s.Replace(ctx, mapping("mp-1", models.MappingSourceReview), "mp-1")
		require.NoError(t, err)
		assert.Equal(t, models.MappingSourceAutoMatch, prev.Source)

		got, _ := s.Get(ctx, testKey)
		assert.Equal(t, "mp-1", got.EntityID)
		assert.Equal(t, models.MappingSourceReview, got.Source)
	})

	t.Run("should not replace a missing mapping", func(t *testing.T) {
		_, err := NewMemoryStore().Replace(ctx, mapping("mp-1", models.MappingSourceReview), "")
		assert.True(t, errors.IsMappingConflict(err))
	})

	t.Run("should let exactly one concurrent writer win", func(t *testing.T) {
		s := NewMemoryStore()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins, conflicts := 0, 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entity := "mp-a"
				if i%2 == 1 {
					entity = "mp-b"
				}
				created, err := s.Put(ctx, mapping(entity, models.MappingSourceReview))
				mu.Lock()
				defer mu.Unlock()
				if created {
					wins++
				}
				if errors.IsMappingConflict(err) {
					conflicts++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, 10, conflicts)
		assert.Equal(t, 1, s.Len())
	})
}

func TestNotifyingStore(t *testing.T) {
	ctx := context.Background()
	var changes []Change
	store := NewNotifyingStore(NewMemoryStore(), ChangeListenerFunc(func(_ context.Context, c Change) {
		changes = append(changes, c)
	}))

	_, err := store.Put(ctx, mapping("mp-1", models.MappingSourceReview))
	require.NoError(t, err)
	_, err = store.Put(ctx, mapping("mp-1", models.MappingSourceReview))
	require.NoError(t, err)
	_, err = store.Put(ctx, mapping("mp-2", models.MappingSourceReview))
	require.Error(t, err)
	_, err = store.Replace(ctx, mapping("mp-2", models.MappingSourceOverride), "mp-1")
	require.NoError(t, err)
	_, err = store.Replace(ctx, mapping("mp-2", models.MappingSourceOverride), "mp-2")
	require.NoError(t, err)
	_, err = store.Replace(ctx, mapping("mp-2", models.MappingSourceReview), "mp-2")
	require.NoError(t, err)

	assert.Equal(t, []Change{
		{Key: testKey, Current: "mp-1", Source: models.MappingSourceReview},
		{Key: testKey, Previous: "mp-1", Current: "mp-2", Source: models.MappingSourceOverride},
		{Key: testKey, Previous: "mp-2", Current: "mp-2", Source: models.MappingSourceReview},
	}, changes)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	cache := NewMemoryCache(DefaultMemoryCacheConfig())
	cached := NewCachedStore(logger, NewMemoryStore(), cache)
	store := NewNotifyingStore(cached, cached)

	got, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, cache.Stats().Size)

	_, err = store.Put(ctx, mapping("mp-1", models.MappingSourceReview))
	require.NoError(t, err)

	got, err = store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "mp-1", got.EntityID)
	got, err = store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "mp-1", got.EntityID)
	assert.Equal(t, int64(1), cache.Stats().Hits)

	_, err = store.Replace(ctx, mapping("mp-2", models.MappingSourceOverride), "mp-1")
	require.NoError(t, err)

	got, err = store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "mp-2", got.EntityID)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("should expire entries", func(t *testing.T) {
		c := NewMemoryCache(MemoryCacheConfig{TTL: time.Millisecond})
		require.NoError(t, c.Set(ctx, mapping("mp-1", models.MappingSourceReview)))
		time.Sleep(5 * time.Millisecond)
		_, ok, err := c.Get(ctx, testKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("should evict half when full", func(t *testing.T) {
		c := NewMemoryCache(MemoryCacheConfig{MaxSize: 4, TTL: time.Minute})
		for _, sku := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, c.Set(ctx, models.SkuMapping{MappingKey: models.MappingKey{SupplierID: "s", SupplierSKU: sku}, EntityID: "x"}))
		}
		assert.Equal(t, 3, c.Stats().Size)

		_, ok, _ := c.Get(ctx, models.MappingKey{SupplierID: "s", SupplierSKU: "e"})
		assert.True(t, ok)
	})
}
