package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasons_Add(t *testing.T) {
	var rs Reasons
	rs = rs.Add(ReasonVolumeExact)
	rs = rs.Add(ReasonGTINExact)
	rs = rs.Add(ReasonProducerFuzzyStrong)
	rs = rs.Add(ReasonGTINExact)
	rs = rs.Add(ReasonPackTypeMismatch)

	assert.Equal(t, Reasons{ReasonGTINExact, ReasonProducerFuzzyStrong, ReasonVolumeExact, ReasonPackTypeMismatch}, rs)
	assert.True(t, rs.Has(ReasonVolumeExact))
	assert.False(t, rs.Has(ReasonLWINExact))
	assert.Equal(t, "GTIN_EXACT,PRODUCER_FUZZY_STRONG,VOLUME_EXACT,PACK_TYPE_MISMATCH", rs.String())
}

func TestReason_Vocabulary(t *testing.T) {
	all := AllReasons()
	assert.Len(t, all, 14)
	for i, r := range all {
		assert.True(t, r.Valid())
		assert.Equal(t, i, r.Ordinal())
	}
	assert.False(t, Reason("COLOUR_EXACT").Valid())
	assert.True(t, ReasonLWINExact.IsIdentifier())
	assert.False(t, ReasonSKUMappingExists.IsIdentifier())

	assert.True(t, Reasons{ReasonProducerExact, ReasonLWINExact}.HasIdentifier())
	assert.False(t, Reasons{ReasonSKUMappingExists, ReasonProductExact}.HasIdentifier())
	assert.False(t, Reasons(nil).HasIdentifier())
}

func TestStatus_Rank(t *testing.T) {
	assert.Less(t, StatusNoMatch.Rank(), StatusSuggested.Rank())
	assert.Equal(t, StatusSuggested.Rank(), StatusPendingReview.Rank())
	assert.Less(t, StatusPendingReview.Rank(), StatusAutoMatchWithGuards.Rank())
	assert.Less(t, StatusAutoMatchWithGuards.Rank(), StatusAutoMatch.Rank())

	assert.True(t, StatusPendingReview.NeedsReview())
	assert.False(t, StatusAutoMatchWithGuards.NeedsReview())
}

func TestEnumJSON(t *testing.T) {
	t.Run("should round trip a result", func(t *testing.T) {
		id := "wine-1"
		in := MatchResult{
			ImportLineID:    "line-1",
			Status:          StatusAutoMatch,
			MatchMethod:     MatchMethodGTINExact,
			Confidence:      1,
			MatchedEntityID: &id,
			Candidates: []MatchCandidate{{
				EntityID:   "wine-1",
				EntityType: EntityTypeMasterProduct,
				Score:      1,
				Reasons:    Reasons{ReasonGTINExact, ReasonVintageExact},
			}},
		}
		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"reasons":["GTIN_EXACT","VINTAGE_EXACT"]`)

		var out MatchResult
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})

	t.Run("should refuse unknown values", func(t *testing.T) {
		var r MatchResult
		assert.ErrorContains(t, json.Unmarshal([]byte(`{"status":"MAYBE"}`), &r), "unknown status")
		assert.ErrorContains(t, json.Unmarshal([]byte(`{"match_method":"GUESS"}`), &r), "unknown match method")
		assert.ErrorContains(t, json.Unmarshal([]byte(`{"candidates":[{"reasons":["COLOUR"]}]}`), &r), "unknown reason")

		var res Resolution
		assert.Error(t, json.Unmarshal([]byte(`"MAYBE"`), &res))
		var st ReviewStatus
		assert.Error(t, json.Unmarshal([]byte(`"PENDING"`), &st))

		_, err := json.Marshal(MatchResult{Status: "MAYBE", MatchMethod: MatchMethodNoMatch})
		assert.Error(t, err)
	})
}

func TestMatchResult_Validate(t *testing.T) {
	id := "wine-1"
	assert.NoError(t, (&MatchResult{Status: StatusNoMatch, MatchMethod: MatchMethodNoMatch}).Validate())
	assert.NoError(t, (&MatchResult{Status: StatusSuggested, MatchMethod: MatchMethodCanonicalSuggest}).Validate())
	assert.NoError(t, (&MatchResult{Status: StatusAutoMatch, MatchMethod: MatchMethodSKUExact, MatchedEntityID: &id}).Validate())
	assert.Error(t, (&MatchResult{Status: StatusAutoMatch, MatchMethod: MatchMethodSKUExact}).Validate())
	assert.Error(t, (&MatchResult{Status: StatusNoMatch, MatchMethod: MatchMethodSKUExact}).Validate())
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: 100}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: 100, Offset: 0}, Page{Limit: 501, Offset: -3}.Normalize())
	assert.Equal(t, Page{Limit: 20, Offset: 40}, Page{Limit: 20, Offset: 40}.Normalize())
}

func TestMappingKey(t *testing.T) {
	assert.True(t, MappingKey{SupplierID: "s", SupplierSKU: "k"}.Valid())
	assert.False(t, MappingKey{SupplierID: "s"}.Valid())
	assert.Equal(t, "s:k", MappingKey{SupplierID: "s", SupplierSKU: "k"}.String())
}
