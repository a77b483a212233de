package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/models"
)

func reasons(rs ...models.Reason) models.Reasons {
	var out models.Reasons
	for _, r := range rs {
		out = out.Add(r)
	}
	return out
}

func TestDefaultWeightTable(t *testing.T) {
	table := DefaultWeightTable()
	require.NoError(t, table.Validate())
	assert.Equal(t, WeightTableVersion, table.Version)

	t.Run("should keep fuzzy-only evidence below auto acceptance", func(t *testing.T) {
		a := NewConfidenceScorer(table).Assess(reasons(
			models.ReasonProducerExact,
			models.ReasonProductExact,
			models.ReasonVintageExact,
			models.ReasonVolumeExact,
			models.ReasonPackTypeExact,
		))
		assert.Equal(t, 0.85, a.Score)
		assert.Less(t, a.Score, DefaultPolicyConfig().HighThreshold)
	})

	t.Run("should let identifier evidence reach auto acceptance alone", func(t *testing.T) {
		scorer := NewConfidenceScorer(table)
		assert.GreaterOrEqual(t, scorer.Assess(reasons(models.ReasonGTINExact)).Score, DefaultPolicyConfig().HighThreshold)
		assert.GreaterOrEqual(t, scorer.Assess(reasons(models.ReasonLWINExact)).Score, DefaultPolicyConfig().HighThreshold)
		assert.Equal(t, 1.0, scorer.Assess(reasons(models.ReasonSKUMappingExists)).Score)
	})
}

func TestConfidenceScorer_Assess(t *testing.T) {
	scorer := NewConfidenceScorer(nil)

	tests := []struct {
		name     string
		reasons  models.Reasons
		score    float64
		positive float64
		hard     []models.Reason
		soft     []models.Reason
	}{
		{
			name:    "NoReasons",
			reasons: nil,
		},
		{
			name:     "ClampsAtOne",
			reasons:  reasons(models.ReasonGTINExact, models.ReasonProducerExact, models.ReasonProductExact),
			score:    1.0,
			positive: 1.5,
		},
		{
			name:     "ClampsAtZero",
			reasons:  reasons(models.ReasonPackTypeExact, models.ReasonVintageMismatch, models.ReasonVolumeMismatch),
			score:    0,
			positive: 0.05,
			hard:     []models.Reason{models.ReasonVintageMismatch, models.ReasonVolumeMismatch},
		},
		{
			name:     "SubtractsPenalties",
			reasons:  reasons(models.ReasonProducerFuzzyStrong, models.ReasonProductFuzzyStrong, models.ReasonVintageMismatch),
			score:    0.10,
			positive: 0.40,
			hard:     []models.Reason{models.ReasonVintageMismatch},
		},
		{
			name:     "SoftGuardrails",
			reasons:  reasons(models.ReasonGTINExact, models.ReasonMissingVintage, models.ReasonPackTypeMismatch),
			score:    0.85,
			positive: 0.95,
			soft:     []models.Reason{models.ReasonMissingVintage, models.ReasonPackTypeMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorer.Assess(tt.reasons)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.positive, a.Positive)
			assert.Equal(t, tt.hard, a.Hard)
			assert.Equal(t, tt.soft, a.Soft)
			assert.Equal(t, len(tt.hard) > 0, a.HasHardGuardrail())
			assert.Equal(t, len(tt.soft) > 0, a.HasSoftGuardrail())
		})
	}

	t.Run("should round to four decimals", func(t *testing.T) {
		a := scorer.Assess(reasons(models.ReasonProducerFuzzyStrong, models.ReasonProductFuzzyStrong, models.ReasonVolumeExact))
		assert.Equal(t, 0.5, a.Score)
	})
}

func TestWeightTable_Validate(t *testing.T) {
	t.Run("should require a version", func(t *testing.T) {
		table := DefaultWeightTable()
		table.Version = ""
		assert.Error(t, table.Validate())
	})

	t.Run("should require every reason", func(t *testing.T) {
		table := DefaultWeightTable()
		delete(table.Weights, models.ReasonPackTypeExact)
		assert.ErrorContains(t, table.Validate(), "PACK_TYPE_EXACT")
	})

	t.Run("should reject unknown reasons", func(t *testing.T) {
		table := DefaultWeightTable()
		table.Weights["COLOUR_EXACT"] = Weight{Value: 0.1}
		assert.ErrorContains(t, table.Validate(), "COLOUR_EXACT")
	})

	t.Run("should reject penalties without a guardrail", func(t *testing.T) {
		table := DefaultWeightTable()
		table.Weights[models.ReasonVolumeMismatch] = Weight{Value: -0.25}
		assert.Error(t, table.Validate())
	})

	t.Run("should reject positive guardrails", func(t *testing.T) {
		table := DefaultWeightTable()
		table.Weights[models.ReasonVintageExact] = Weight{Value: 0.15, Guardrail: GuardrailSoft}
		assert.Error(t, table.Validate())
	})

	t.Run("should reject unknown guardrail kinds", func(t *testing.T) {
		table := DefaultWeightTable()
		table.Weights[models.ReasonVintageMismatch] = Weight{Value: -0.3, Guardrail: "medium"}
		assert.Error(t, table.Validate())
	})
}

const tableYAML = `
version: test-1
weights:
  GTIN_EXACT: {weight: 0.9}
  LWIN_EXACT: {weight: 0.9}
  SKU_MAPPING_EXISTS: {weight: 1}
  PRODUCER_EXACT: {weight: 0.3}
  PRODUCER_FUZZY_STRONG: {weight: 0.2}
  PRODUCT_EXACT: {weight: 0.3}
  PRODUCT_FUZZY_STRONG: {weight: 0.2}
  VINTAGE_EXACT: {weight: 0.1}
  VINTAGE_MISMATCH: {weight: -0.4, guardrail: hard}
  MISSING_VINTAGE: {weight: 0, guardrail: soft}
  VOLUME_EXACT: {weight: 0.1}
  VOLUME_MISMATCH: {weight: -0.2, guardrail: hard}
  PACK_TYPE_EXACT: {weight: 0.05}
  PACK_TYPE_MISMATCH: {weight: -0.05, guardrail: soft}
`

func TestLoadWeightTable(t *testing.T) {
	t.Run("should load a complete table", func(t *testing.T) {
		table, err := LoadWeightTable(strings.NewReader(tableYAML))
		require.NoError(t, err)
		assert.Equal(t, "test-1", table.Version)
		assert.Equal(t, Weight{Value: -0.4, Guardrail: GuardrailHard}, table.Weights[models.ReasonVintageMismatch])

		scorer := NewConfidenceScorer(table)
		assert.Equal(t, "test-1", scorer.TableVersion())
		assert.Equal(t, 0.6, scorer.Assess(reasons(models.ReasonProducerExact, models.ReasonProductExact)).Score)
	})

	t.Run("should reject an incomplete table", func(t *testing.T) {
		_, err := LoadWeightTable(strings.NewReader("version: x\nweights:\n  GTIN_EXACT: {weight: 1}\n"))
		assert.Error(t, err)
	})

	t.Run("should reject malformed yaml", func(t *testing.T) {
		_, err := LoadWeightTable(strings.NewReader("version: [unterminated"))
		assert.ErrorContains(t, err, "failed to decode weight table")
	})

	t.Run("should report a missing file", func(t *testing.T) {
		_, err := LoadWeightTableFile("does/not/exist.yaml")
		assert.ErrorContains(t, err, "failed to open weight table")
	})
}
