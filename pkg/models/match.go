package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the classification outcome of one match run.
type Status string

const (
	StatusNoMatch             Status = "NO_MATCH"
	StatusSuggested           Status = "SUGGESTED"
	StatusPendingReview       Status = "PENDING_REVIEW"
	StatusAutoMatchWithGuards Status = "AUTO_MATCH_WITH_GUARDS"
	StatusAutoMatch           Status = "AUTO_MATCH"
	StatusConfirmed           Status = "CONFIRMED" // produced by review resolution only
	StatusRejected            Status = "REJECTED"  // produced by review resolution only
)

var statusRanks = map[Status]int{
	StatusNoMatch:             0,
	StatusRejected:            0,
	StatusSuggested:           1,
	StatusPendingReview:       1,
	StatusAutoMatchWithGuards: 2,
	StatusAutoMatch:           3,
	StatusConfirmed:           3,
}

// Valid reports whether s is part of the status vocabulary.
func (s Status) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Rank orders statuses by how strongly they resolve a line:
// NO_MATCH < SUGGESTED = PENDING_REVIEW < AUTO_MATCH_WITH_GUARDS < AUTO_MATCH.
func (s Status) Rank() int {
	return statusRanks[s]
}

// NeedsReview reports whether a result with this status opens a review queue item.
func (s Status) NeedsReview() bool {
	return s == StatusSuggested || s == StatusPendingReview
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %q", string(s))
	}
	return []byte(s), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := parseEnum[Status]("status", string(b), Status.Valid)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MatchMethod records which cascade stage produced the winning candidate.
type MatchMethod string

const (
	MatchMethodGTINExact        MatchMethod = "GTIN_EXACT"
	MatchMethodLWINExact        MatchMethod = "LWIN_EXACT"
	MatchMethodSKUExact         MatchMethod = "SKU_EXACT"
	MatchMethodCanonicalSuggest MatchMethod = "CANONICAL_SUGGEST"
	MatchMethodManual           MatchMethod = "MANUAL"
	MatchMethodNoMatch          MatchMethod = "NO_MATCH"
)

func (m MatchMethod) Valid() bool {
	switch m {
	case MatchMethodGTINExact, MatchMethodLWINExact, MatchMethodSKUExact,
		MatchMethodCanonicalSuggest, MatchMethodManual, MatchMethodNoMatch:
		return true
	}
	return false
}

func (m MatchMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown match method %q", string(m))
	}
	return []byte(m), nil
}

func (m *MatchMethod) UnmarshalText(b []byte) error {
	v, err := parseEnum[MatchMethod]("match method", string(b), MatchMethod.Valid)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Reason is an explainability code attached to a candidate. The vocabulary is part of the
// contract surfaced to reviewers and must not change meaning.
type Reason string

const (
	ReasonGTINExact           Reason = "GTIN_EXACT"
	ReasonLWINExact           Reason = "LWIN_EXACT"
	ReasonSKUMappingExists    Reason = "SKU_MAPPING_EXISTS"
	ReasonProducerExact       Reason = "PRODUCER_EXACT"
	ReasonProducerFuzzyStrong Reason = "PRODUCER_FUZZY_STRONG"
	ReasonProductExact        Reason = "PRODUCT_EXACT"
	ReasonProductFuzzyStrong  Reason = "PRODUCT_FUZZY_STRONG"
	ReasonVintageExact        Reason = "VINTAGE_EXACT"
	ReasonVintageMismatch     Reason = "VINTAGE_MISMATCH"
	ReasonMissingVintage      Reason = "MISSING_VINTAGE"
	ReasonVolumeExact         Reason = "VOLUME_EXACT"
	ReasonVolumeMismatch      Reason = "VOLUME_MISMATCH"
	ReasonPackTypeExact       Reason = "PACK_TYPE_EXACT"
	ReasonPackTypeMismatch    Reason = "PACK_TYPE_MISMATCH"
)

// reasonOrder is the canonical vocabulary order used when serializing reason lists.
var reasonOrder = []Reason{
	ReasonGTINExact,
	ReasonLWINExact,
	ReasonSKUMappingExists,
	ReasonProducerExact,
	ReasonProducerFuzzyStrong,
	ReasonProductExact,
	ReasonProductFuzzyStrong,
	ReasonVintageExact,
	ReasonVintageMismatch,
	ReasonMissingVintage,
	ReasonVolumeExact,
	ReasonVolumeMismatch,
	ReasonPackTypeExact,
	ReasonPackTypeMismatch,
}

var reasonIndex = func() map[Reason]int {
	m := make(map[Reason]int, len(reasonOrder))
	for i, r := range reasonOrder {
		m[r] = i
	}
	return m
}()

// AllReasons returns the reason vocabulary in canonical order.
func AllReasons() []Reason {
	out := make([]Reason, len(reasonOrder))
	copy(out, reasonOrder)
	return out
}

func (r Reason) Valid() bool {
	_, ok := reasonIndex[r]
	return ok
}

// Ordinal is the position of r in the canonical vocabulary order.
func (r Reason) Ordinal() int {
	if i, ok := reasonIndex[r]; ok {
		return i
	}
	return len(reasonOrder)
}

// IsIdentifier reports whether r comes from an exact trade-identifier stage.
func (r Reason) IsIdentifier() bool {
	return r == ReasonGTINExact || r == ReasonLWINExact
}

// HasIdentifier reports whether any reason comes from an exact trade-identifier stage.
func (r Reasons) HasIdentifier() bool {
	for _, reason := range r {
		if reason.IsIdentifier() {
			return true
		}
	}
	return false
}

func (r Reason) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown reason %q", string(r))
	}
	return []byte(r), nil
}

func (r *Reason) UnmarshalText(b []byte) error {
	v, err := parseEnum[Reason]("reason", string(b), Reason.Valid)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Reasons is a set of reason codes kept in canonical order without duplicates.
type Reasons []Reason

// Add inserts r keeping canonical order. Adding an existing reason is a no-op.
func (rs Reasons) Add(r Reason) Reasons {
	for i, existing := range rs {
		if existing == r {
			return rs
		}
		if existing.Ordinal() > r.Ordinal() {
			rs = append(rs, "")
			copy(rs[i+1:], rs[i:])
			rs[i] = r
			return rs
		}
	}
	return append(rs, r)
}

// Has reports whether r is in the set.
func (rs Reasons) Has(r Reason) bool {
	for _, existing := range rs {
		if existing == r {
			return true
		}
	}
	return false
}

func (rs Reasons) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// MatchCandidate is a transient scoring artifact for one canonical entity.
type MatchCandidate struct {
	EntityID   string     `json:"entity_id" db:"entity_id"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	Score      float64    `json:"score" db:"score"`
	Reasons    Reasons    `json:"reasons" db:"reasons"`
}

// HasReason reports whether the candidate carries r.
func (c MatchCandidate) HasReason(r Reason) bool {
	return c.Reasons.Has(r)
}

// MatchResult is the outcome of one pipeline run for one import line. It contains no
// timestamps or generated ids, so identical inputs produce identical results.
type MatchResult struct {
	ImportLineID    string           `json:"import_line_id"`
	Status          Status           `json:"status"`
	Confidence      float64          `json:"confidence"`
	MatchMethod     MatchMethod      `json:"match_method"`
	MatchedEntityID *string          `json:"matched_entity_id"`
	Explanation     string           `json:"explanation"`
	Candidates      []MatchCandidate `json:"candidates"`
	IndexVersion    string           `json:"index_version,omitempty"`
}

// Validate checks the result-level invariants.
func (r *MatchResult) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if !r.MatchMethod.Valid() {
		return fmt.Errorf("invalid match method %q", r.MatchMethod)
	}
	if r.Status != StatusNoMatch && !r.Status.NeedsReview() && (r.MatchedEntityID == nil || *r.MatchedEntityID == "") {
		return fmt.Errorf("status %s requires a matched entity", r.Status)
	}
	if r.Status == StatusNoMatch && r.MatchMethod != MatchMethodNoMatch {
		return fmt.Errorf("status NO_MATCH requires method NO_MATCH, got %s", r.MatchMethod)
	}
	return nil
}

// MatchRecord is one append-only history entry for an import line.
type MatchRecord struct {
	Sequence   int64       `json:"sequence" db:"sequence"`
	RecordedAt time.Time   `json:"recorded_at" db:"recorded_at"`
	Result     MatchResult `json:"result" db:"result"`
}
