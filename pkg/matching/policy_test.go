package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/models"
)

func candidate(id string, stage Stage, rs ...models.Reason) generated {
	return generated{
		entity:  models.CanonicalEntity{ID: id, EntityType: models.EntityTypeMasterProduct},
		reasons: reasons(rs...),
		stage:   stage,
	}
}

func TestDecisionPolicy_Decide(t *testing.T) {
	policy := NewDecisionPolicy(DefaultPolicyConfig(), NewConfidenceScorer(nil))
	line := models.NormalizedLine{LineID: "line-1"}

	tests := []struct {
		name       string
		candidates []generated
		status     models.Status
		method     models.MatchMethod
		matched    string
		confidence float64
	}{
		{
			name:   "NoCandidates",
			status: models.StatusNoMatch,
			method: models.MatchMethodNoMatch,
		},
		{
			name: "IdentifierAccepted",
			candidates: []generated{
				candidate("e-1", StageIdentifier, models.ReasonGTINExact, models.ReasonVintageExact),
			},
			status:     models.StatusAutoMatch,
			method:     models.MatchMethodGTINExact,
			matched:    "e-1",
			confidence: 1.0,
		},
		{
			name: "SoftGuardrailAcceptedWithGuards",
			candidates: []generated{
				candidate("e-1", StageIdentifier, models.ReasonLWINExact, models.ReasonProducerExact, models.ReasonMissingVintage),
			},
			status:     models.StatusAutoMatchWithGuards,
			method:     models.MatchMethodLWINExact,
			matched:    "e-1",
			confidence: 1.0,
		},
		{
			name: "HardGuardrailVetoesPerfectScore",
			candidates: []generated{
				candidate("e-1", StageIdentifier, models.ReasonGTINExact, models.ReasonProducerExact, models.ReasonProductExact, models.ReasonVintageMismatch),
			},
			status:     models.StatusPendingReview,
			method:     models.MatchMethodGTINExact,
			confidence: 1.0,
		},
		{
			name: "FuzzyOnlyIsSuggested",
			candidates: []generated{
				candidate("e-1", StageFuzzy, models.ReasonProducerExact, models.ReasonProductExact, models.ReasonVintageExact, models.ReasonVolumeExact, models.ReasonPackTypeExact),
			},
			status:     models.StatusSuggested,
			method:     models.MatchMethodCanonicalSuggest,
			confidence: 0.85,
		},
		{
			name: "TwoPlausibleCandidatesAreSuggested",
			candidates: []generated{
				candidate("e-1", StageIdentifier, models.ReasonGTINExact),
				candidate("e-2", StageFuzzy, models.ReasonProducerExact, models.ReasonProductExact, models.ReasonVolumeExact),
			},
			status:     models.StatusSuggested,
			method:     models.MatchMethodGTINExact,
			confidence: 0.95,
		},
		{
			name: "SKUMappingReportsSKUExact",
			candidates: []generated{
				candidate("e-1", StageSKUMapping, models.ReasonGTINExact, models.ReasonSKUMappingExists),
			},
			status:     models.StatusAutoMatch,
			method:     models.MatchMethodSKUExact,
			matched:    "e-1",
			confidence: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := policy.Decide(line, &Generation{candidates: tt.candidates}, "v1+test")
			require.NoError(t, result.Validate())

			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.method, result.MatchMethod)
			assert.Equal(t, tt.confidence, result.Confidence)
			assert.Equal(t, "line-1", result.ImportLineID)
			assert.Equal(t, "v1+test", result.IndexVersion)
			assert.Len(t, result.Candidates, len(tt.candidates))
			if tt.matched == "" {
				assert.Nil(t, result.MatchedEntityID)
			} else {
				require.NotNil(t, result.MatchedEntityID)
				assert.Equal(t, tt.matched, *result.MatchedEntityID)
			}
		})
	}
}

func TestDecisionPolicy_CandidateOrder(t *testing.T) {
	policy := NewDecisionPolicy(DefaultPolicyConfig(), NewConfidenceScorer(nil))

	// e-fuzzy and e-gtin both score 1.0; the identifier stage wins the tie, then ids decide
	gen := &Generation{candidates: []generated{
		candidate("e-b", StageFuzzy, models.ReasonProducerExact),
		candidate("e-fuzzy", StageFuzzy, models.ReasonProducerExact, models.ReasonProductExact, models.ReasonVintageExact, models.ReasonVolumeExact, models.ReasonSKUMappingExists),
		candidate("e-a", StageFuzzy, models.ReasonProducerExact),
		candidate("e-gtin", StageIdentifier, models.ReasonGTINExact, models.ReasonVolumeExact),
	}}

	result := policy.Decide(models.NormalizedLine{LineID: "l"}, gen, "v1")
	ids := make([]string, len(result.Candidates))
	for i, c := range result.Candidates {
		ids[i] = c.EntityID
	}
	assert.Equal(t, []string{"e-gtin", "e-fuzzy", "e-a", "e-b"}, ids)
	assert.Equal(t, 0.25, result.Candidates[2].Score)
}

func TestDecisionPolicy_Explanation(t *testing.T) {
	policy := NewDecisionPolicy(DefaultPolicyConfig(), NewConfidenceScorer(nil))
	line := models.NormalizedLine{
		LineID:             "l",
		InvalidIdentifiers: []string{"gtin 123 (format)"},
		SuspectIdentifiers: []string{"gtin 1234567890123 (check digit)"},
		Missing:            []string{"vintage"},
	}
	gen := &Generation{
		candidates: []generated{candidate("e-1", StageIdentifier, models.ReasonGTINExact, models.ReasonVintageMismatch)},
		Notes:      []string{"a note"},
	}

	first := policy.Decide(line, gen, "v1")
	second := policy.Decide(line, gen, "v1")
	assert.Equal(t, first, second)

	assert.Contains(t, first.Explanation, "GTIN_EXACT on 'e-1'")
	assert.Contains(t, first.Explanation, "weights "+WeightTableVersion)
	assert.Contains(t, first.Explanation, "hard guardrail VINTAGE_MISMATCH")
	assert.Contains(t, first.Explanation, "a note")
	assert.Contains(t, first.Explanation, "invalid identifiers: gtin 123 (format)")
	assert.Contains(t, first.Explanation, "suspect identifiers: gtin 1234567890123 (check digit)")
	assert.Contains(t, first.Explanation, "missing: vintage")
}

func TestIsCacheWorthy(t *testing.T) {
	id := "e-1"
	tests := []struct {
		name   string
		result models.MatchResult
		want   bool
	}{
		{"gtin auto match", models.MatchResult{Status: models.StatusAutoMatch, MatchMethod: models.MatchMethodGTINExact, MatchedEntityID: &id}, true},
		{"lwin auto match", models.MatchResult{Status: models.StatusAutoMatch, MatchMethod: models.MatchMethodLWINExact, MatchedEntityID: &id}, true},
		{"guarded", models.MatchResult{Status: models.StatusAutoMatchWithGuards, MatchMethod: models.MatchMethodGTINExact, MatchedEntityID: &id}, false},
		{"already mapped", models.MatchResult{Status: models.StatusAutoMatch, MatchMethod: models.MatchMethodSKUExact, MatchedEntityID: &id}, false},
		{"suggested", models.MatchResult{Status: models.StatusSuggested, MatchMethod: models.MatchMethodGTINExact}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCacheWorthy(tt.result))
		})
	}
}

func TestPolicyConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicyConfig().Validate())
	assert.Error(t, PolicyConfig{HighThreshold: 0.5, MediumThreshold: 0.6}.Validate())
	assert.Error(t, PolicyConfig{HighThreshold: 1.2, MediumThreshold: 0.6}.Validate())
	assert.Error(t, PolicyConfig{HighThreshold: 0.9, MediumThreshold: -0.1}.Validate())
}
