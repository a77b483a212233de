package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/models"
)

func TestEntities(t *testing.T) {
	vintage := 2019
	a := models.CanonicalEntity{ID: "a", EntityType: models.EntityTypeMasterProduct, ProducerName: "Château Test", Vintage: &vintage}
	b := models.CanonicalEntity{ID: "b", EntityType: models.EntityTypeProducerFamily, ProducerName: "Other"}

	base, err := Entities([]models.CanonicalEntity{a, b})
	require.NoError(t, err)
	assert.Len(t, base, 64)

	t.Run("should ignore provider order", func(t *testing.T) {
		fp, err := Entities([]models.CanonicalEntity{b, a})
		require.NoError(t, err)
		assert.Equal(t, base, fp)
	})

	t.Run("should ignore updated_at", func(t *testing.T) {
		touched := a
		touched.UpdatedAt = time.Now()
		fp, err := Entities([]models.CanonicalEntity{touched, b})
		require.NoError(t, err)
		assert.Equal(t, base, fp)
	})

	t.Run("should change with matchable content", func(t *testing.T) {
		changed := a
		other := 2020
		changed.Vintage = &other
		fp, err := Entities([]models.CanonicalEntity{changed, b})
		require.NoError(t, err)
		assert.NotEqual(t, base, fp)

		fp, err = Entities([]models.CanonicalEntity{a})
		require.NoError(t, err)
		assert.NotEqual(t, base, fp)
	})
}

func TestExcluded(t *testing.T) {
	exclude := map[string]bool{"metadata": true, "updated_at": true}
	assert.True(t, excluded("updated_at", exclude))
	assert.True(t, excluded("metadata.version", exclude))
	assert.False(t, excluded("metadata_version", exclude))
	assert.False(t, excluded("id", nil))
}
