package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/catalog"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/normalizers"
)

func generate(t *testing.T, cfg GeneratorConfig, line models.ImportLine, entities ...models.CanonicalEntity) *Generation {
	t.Helper()
	snap := catalog.NewSnapshot(1, entities, DefaultSimilarity())
	gen, err := NewCandidateGenerator(cfg, NewConfidenceScorer(nil)).
		Generate(context.Background(), snap, nil, normalizers.NormalizeLine(line, normalizers.LineOptions{}))
	require.NoError(t, err)
	return gen
}

func TestCandidateGenerator_Generate(t *testing.T) {
	t.Run("should skip fuzzy search after an identifier hit", func(t *testing.T) {
		gen := generate(t, DefaultGeneratorConfig(), grandVinLine(), grandVin2019(), grandVins2018())
		require.Len(t, gen.candidates, 1)
		assert.Equal(t, "wine-1", gen.candidates[0].entity.ID)
		assert.Equal(t, StageIdentifier, gen.candidates[0].stage)
	})

	t.Run("should add fuzzy candidates when cross validating", func(t *testing.T) {
		cfg := DefaultGeneratorConfig()
		cfg.CrossValidate = true
		gen := generate(t, cfg, grandVinLine(), grandVin2019(), grandVins2018())
		require.Len(t, gen.candidates, 2)
		assert.Equal(t, "wine-1", gen.candidates[0].entity.ID)
		assert.Equal(t, "wine-2", gen.candidates[1].entity.ID)
		assert.Equal(t, StageFuzzy, gen.candidates[1].stage)
	})

	t.Run("should match the case GTIN too", func(t *testing.T) {
		line := grandVinLine()
		line.GTINEach = ""
		line.GTINCase = "01234567890128"
		gen := generate(t, DefaultGeneratorConfig(), line, grandVin2019())
		require.Len(t, gen.candidates, 1)
		assert.True(t, gen.candidates[0].reasons.Has(models.ReasonGTINExact))
	})

	t.Run("should match on LWIN", func(t *testing.T) {
		entity := grandVins2018()
		entity.LWIN = "1012361"
		line := models.ImportLine{ID: "l", SupplierID: "s", LWIN: "1012361", Vintage: "2018"}
		gen := generate(t, DefaultGeneratorConfig(), line, entity)
		require.Len(t, gen.candidates, 1)
		assert.Equal(t, models.Reasons{models.ReasonLWINExact, models.ReasonVintageExact}, gen.candidates[0].reasons)
	})

	t.Run("should drop fuzzy candidates under the evidence floor", func(t *testing.T) {
		line := models.ImportLine{ID: "l", SupplierID: "s", ProducerName: "Château Test"}
		gen := generate(t, DefaultGeneratorConfig(), line, grandVin2019())
		assert.Empty(t, gen.candidates)
	})
}

func TestCandidateGenerator_CompareAttributes(t *testing.T) {
	g := NewCandidateGenerator(DefaultGeneratorConfig(), NewConfidenceScorer(nil))
	sim := DefaultSimilarity()
	normalize := func(line models.ImportLine) models.NormalizedLine {
		return normalizers.NormalizeLine(line, normalizers.LineOptions{})
	}
	entity := normalizers.NormalizeEntity(models.CanonicalEntity{
		ID:           "e",
		EntityType:   models.EntityTypeMasterProduct,
		ProducerName: "Domaine Leflaive",
		ProductName:  "Puligny-Montrachet",
		VolumeML:     750,
		PackType:     "bottle",
	})

	tests := []struct {
		name string
		line models.ImportLine
		want models.Reasons
	}{
		{
			name: "NonVintageMatchesNonVintage",
			line: models.ImportLine{ProducerName: "Domaine Leflaive", Vintage: "NV", Volume: "75cl", PackType: "btl"},
			want: models.Reasons{models.ReasonProducerExact, models.ReasonVintageExact, models.ReasonVolumeExact, models.ReasonPackTypeExact},
		},
		{
			name: "VintageAgainstNonVintageIsMissing",
			line: models.ImportLine{ProductName: "Puligny Montrachet", Vintage: "2020"},
			want: models.Reasons{models.ReasonProductExact, models.ReasonMissingVintage},
		},
		{
			name: "MismatchesOnVolumeAndPack",
			line: models.ImportLine{Vintage: "NV", Volume: "1.5 L", PackType: "can"},
			want: models.Reasons{models.ReasonVintageExact, models.ReasonVolumeMismatch, models.ReasonPackTypeMismatch},
		},
		{
			name: "UnknownAxesAddNothing",
			line: models.ImportLine{ProducerName: "Domaine Leflaiv", Vintage: "NV"},
			want: models.Reasons{models.ReasonProducerFuzzyStrong, models.ReasonVintageExact},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.compareAttributes(sim, normalize(tt.line), entity, nil))
		})
	}

	t.Run("ProducerFamilyIgnoresBottlingAttributes", func(t *testing.T) {
		family := normalizers.NormalizeEntity(models.CanonicalEntity{
			ID:           "f",
			EntityType:   models.EntityTypeProducerFamily,
			ProducerName: "Domaine Leflaive",
			Vintage:      intPtr(2000),
			VolumeML:     1500,
		})
		line := normalize(models.ImportLine{ProducerName: "Domaine Leflaive", Vintage: "2019", Volume: "75cl"})
		assert.Equal(t, models.Reasons{models.ReasonProducerExact}, g.compareAttributes(sim, line, family, nil))
	})
}
