//go:build integration

package skumapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/internal/testsupport"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
)

func TestRepository_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testsupport.Postgres(t), testsupport.Logger())

	key := models.MappingKey{SupplierID: "sup-1", SupplierSKU: "SKU-9"}
	mapping := models.SkuMapping{MappingKey: key, EntityID: "mp-1", Source: models.MappingSourceReview}

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	created, err := repo.Put(ctx, mapping)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("same target is a no-op", func(t *testing.T) {
		created, err := repo.Put(ctx, mapping)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("different target conflicts", func(t *testing.T) {
		other := mapping
		other.EntityID = "mp-2"
		_, err := repo.Put(ctx, other)
		require.Error(t, err)
		var conflict *errors.MappingConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "mp-1", conflict.CurrentEntityID)
		assert.Equal(t, "mp-2", conflict.AttemptedEntityID)
	})

	t.Run("replace needs the current target", func(t *testing.T) {
		next := mapping
		next.EntityID = "mp-3"
		next.Source = models.MappingSourceOverride

		_, err := repo.Replace(ctx, next, "mp-2")
		assert.True(t, errors.IsMappingConflict(err))

		previous, err := repo.Replace(ctx, next, "mp-1")
		require.NoError(t, err)
		assert.Equal(t, "mp-1", previous.EntityID)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "mp-3", got.EntityID)
		assert.Equal(t, models.MappingSourceOverride, got.Source)
	})

	t.Run("replace onto the same target rewrites the source", func(t *testing.T) {
		promoted := mapping
		promoted.EntityID = "mp-3"
		promoted.Source = models.MappingSourceReview

		previous, err := repo.Replace(ctx, promoted, "mp-3")
		require.NoError(t, err)
		assert.Equal(t, models.MappingSourceOverride, previous.Source)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "mp-3", got.EntityID)
		assert.Equal(t, models.MappingSourceReview, got.Source)
	})

	t.Run("replace of a missing key conflicts", func(t *testing.T) {
		missing := models.SkuMapping{MappingKey: models.MappingKey{SupplierID: "sup-1", SupplierSKU: "nope"}, EntityID: "mp-1"}
		_, err := repo.Replace(ctx, missing, "mp-0")
		assert.True(t, errors.IsMappingConflict(err))
	})

	t.Run("invalid mapping", func(t *testing.T) {
		_, err := repo.Put(ctx, models.SkuMapping{MappingKey: models.MappingKey{SupplierID: "sup-1"}, EntityID: "mp-1"})
		assert.True(t, errors.IsValidationError(err))
	})
}
