//go:build integration

package reviewitem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/internal/testsupport"
	"github.com/Ramsey-B/vine/pkg/models"
)

func newItem(id, lineID string, created time.Time) models.ReviewQueueItem {
	return models.ReviewQueueItem{
		ID:           id,
		ImportID:     "imp-1",
		ImportLineID: lineID,
		SupplierID:   "sup-1",
		SupplierSKU:  "SKU-" + lineID,
		ImportLine:   models.ImportLine{ID: lineID, SupplierID: "sup-1", ProducerName: "Chateau Test"},
		MatchStatus:  models.StatusPendingReview,
		Candidates: []models.MatchCandidate{
			{EntityID: "mp-1", EntityType: models.EntityTypeMasterProduct, Score: 0.8, Reasons: models.Reasons{models.ReasonProducerExact}},
		},
		CreatedAt: created,
	}
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testsupport.Postgres(t), testsupport.Logger())
	base := time.Now().UTC().Truncate(time.Millisecond)

	stored, created, err := repo.Create(ctx, newItem("item-1", "line-1", base))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ReviewStatusOpen, stored.Status)

	t.Run("one open item per line", func(t *testing.T) {
		stored, created, err := repo.Create(ctx, newItem("item-dup", "line-1", base.Add(time.Second)))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "item-1", stored.ID)
	})

	got, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chateau Test", got.ImportLine.ProducerName)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, models.Reasons{models.ReasonProducerExact}, got.Candidates[0].Reasons)

	_, _, err = repo.Create(ctx, newItem("item-2", "line-2", base.Add(2*time.Second)))
	require.NoError(t, err)

	t.Run("list pages in creation order", func(t *testing.T) {
		items, total, err := repo.List(ctx, models.ReviewFilter{Status: models.ReviewStatusOpen}, models.Page{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 1)
		assert.Equal(t, "item-1", items[0].ID)

		items, _, err = repo.List(ctx, models.ReviewFilter{Status: models.ReviewStatusOpen}, models.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "item-2", items[0].ID)
	})

	t.Run("resolution is conditional", func(t *testing.T) {
		resolution := models.ResolutionRejected
		by := "reviewer-1"
		now := time.Now().UTC()
		item := *got
		item.Resolution = &resolution
		item.ResolvedBy = &by
		item.ResolvedAt = &now

		ok, err := repo.MarkResolved(ctx, item)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkResolved(ctx, item)
		require.NoError(t, err)
		assert.False(t, ok)

		open, err := repo.FindOpenByLine(ctx, "line-1")
		require.NoError(t, err)
		assert.Nil(t, open)

		count, err := repo.CountRejections(ctx, models.MappingKey{SupplierID: "sup-1", SupplierSKU: "SKU-line-1"})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("a resolved line can be reopened", func(t *testing.T) {
		_, created, err := repo.Create(ctx, newItem("item-3", "line-1", base.Add(3*time.Second)))
		require.NoError(t, err)
		assert.True(t, created)
	})
}
