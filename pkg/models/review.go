package models

import (
	"fmt"
	"time"
)

// ReviewStatus is the lifecycle state of a review queue item: OPEN → RESOLVED, terminal.
type ReviewStatus string

const (
	ReviewStatusOpen     ReviewStatus = "OPEN"
	ReviewStatusResolved ReviewStatus = "RESOLVED"
)

func (s ReviewStatus) Valid() bool {
	return s == ReviewStatusOpen || s == ReviewStatusResolved
}

func (s ReviewStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown review status %q", string(s))
	}
	return []byte(s), nil
}

func (s *ReviewStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum[ReviewStatus]("review status", string(b), ReviewStatus.Valid)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Resolution is the reviewer's verdict on an item.
type Resolution string

const (
	ResolutionConfirmed Resolution = "CONFIRMED"
	ResolutionRejected  Resolution = "REJECTED"
)

func (r Resolution) Valid() bool {
	return r == ResolutionConfirmed || r == ResolutionRejected
}

func (r Resolution) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown resolution %q", string(r))
	}
	return []byte(r), nil
}

func (r *Resolution) UnmarshalText(b []byte) error {
	v, err := parseEnum[Resolution]("resolution", string(b), Resolution.Valid)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ReviewQueueItem is a non-automatic decision awaiting a human verdict.
type ReviewQueueItem struct {
	ID           string           `json:"id" db:"id"`
	ImportID     string           `json:"import_id" db:"import_id"`
	ImportLineID string           `json:"import_line_id" db:"import_line_id"`
	SupplierID   string           `json:"supplier_id" db:"supplier_id"`
	SupplierSKU  string           `json:"supplier_sku" db:"supplier_sku"`
	ImportLine   ImportLine       `json:"import_line" db:"import_line"`
	Status       ReviewStatus     `json:"status" db:"status"`
	MatchStatus  Status           `json:"match_status" db:"match_status"`
	Candidates   []MatchCandidate `json:"candidates" db:"candidates"`

	Resolution       *Resolution `json:"resolution,omitempty" db:"resolution"`
	ResolvedEntityID *string     `json:"resolved_entity_id,omitempty" db:"resolved_entity_id"`
	Override         bool        `json:"override" db:"override"`
	ResolvedBy       *string     `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
	Note             string      `json:"note,omitempty" db:"note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasCandidate reports whether entityID is in the item's candidate snapshot.
func (i *ReviewQueueItem) HasCandidate(entityID string) bool {
	for _, c := range i.Candidates {
		if c.EntityID == entityID {
			return true
		}
	}
	return false
}

// Candidate returns the snapshot candidate for entityID.
func (i *ReviewQueueItem) Candidate(entityID string) (MatchCandidate, bool) {
	for _, c := range i.Candidates {
		if c.EntityID == entityID {
			return c, true
		}
	}
	return MatchCandidate{}, false
}

// ReviewFilter narrows a review queue listing. Empty fields do not filter.
type ReviewFilter struct {
	ImportID   string       `json:"import_id,omitempty"`
	Status     ReviewStatus `json:"status,omitempty"`
	SupplierID string       `json:"supplier_id,omitempty"`
}

// Page is an offset page request.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit < 1 || p.Limit > 500 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ReviewDecision is a reviewer's resolution request.
type ReviewDecision struct {
	Resolution Resolution `json:"resolution" validate:"required"`
	EntityID   string     `json:"entity_id,omitempty"`
	// Override allows confirming an entity outside the candidate snapshot.
	Override bool `json:"override,omitempty"`
	// ReplaceMapping names the entity the SKU mapping is expected to point at today. When set
	// the existing mapping is replaced instead of rejected as a conflict.
	ReplaceMapping string `json:"replace_mapping,omitempty"`
	ResolvedBy     string `json:"resolved_by,omitempty"`
	Note           string `json:"note,omitempty"`
}
