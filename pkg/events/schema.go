package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/vine/pkg/kafka"
	"github.com/Ramsey-B/vine/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeMappingChanged EventType = "mapping.changed"
	EventTypeMatchRecorded  EventType = "match.recorded"
	EventTypeReviewResolved EventType = "review.resolved"
	EventTypeMatchDeferred  EventType = "match.deferred"
)

// BaseEvent contains common fields for all event payloads
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: kafka.SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}

// MappingChangedEvent tells dependent read caches to drop a supplier SKU.
type MappingChangedEvent struct {
	BaseEvent
	SupplierID       string               `json:"supplier_id"`
	SupplierSKU      string               `json:"supplier_sku"`
	PreviousEntityID string               `json:"previous_entity_id,omitempty"`
	EntityID         string               `json:"entity_id"`
	Source           models.MappingSource `json:"source"`
}

// MatchRecordedEvent carries a stored match result.
type MatchRecordedEvent struct {
	BaseEvent
	ImportID string             `json:"import_id,omitempty"`
	Sequence int64              `json:"sequence"`
	Result   models.MatchResult `json:"result"`
}

// ReviewResolvedEvent is emitted when a reviewer confirms or rejects an item.
type ReviewResolvedEvent struct {
	BaseEvent
	ReviewItemID string             `json:"review_item_id"`
	Resolution   models.Resolution  `json:"resolution"`
	Override     bool               `json:"override"`
	ResolvedBy   string             `json:"resolved_by,omitempty"`
	Result       models.MatchResult `json:"result"`
}

// MatchDeferredEvent hands a line that could not be matched in time back for a later replay.
type MatchDeferredEvent struct {
	BaseEvent
	Reason string            `json:"reason"`
	Line   models.ImportLine `json:"line"`
}
