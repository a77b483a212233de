// Package events publishes the matcher's domain events
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/vine/pkg/kafka"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// Publisher writes events to the event stream. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, event *kafka.Event) error
}

// Emitter handles event emission for the matcher
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) emit(ctx context.Context, event *kafka.Event, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event.Data = data

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}
	return nil
}

// EmitMappingChanged emits a mapping changed event
func (e *Emitter) EmitMappingChanged(ctx context.Context, change mappingstore.Change) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMappingChanged")
	defer span.End()

	return e.emit(ctx, &kafka.Event{
		EventType:  string(EventTypeMappingChanged),
		Key:        change.Key.String(),
		SupplierID: change.Key.SupplierID,
		EntityID:   change.Current,
	}, MappingChangedEvent{
		BaseEvent:        NewBaseEvent(EventTypeMappingChanged),
		SupplierID:       change.Key.SupplierID,
		SupplierSKU:      change.Key.SupplierSKU,
		PreviousEntityID: change.Previous,
		EntityID:         change.Current,
		Source:           change.Source,
	})
}

// OnMappingChanged publishes the change. Publishing failures are logged, not returned: the
// mapping write has already happened.
func (e *Emitter) OnMappingChanged(ctx context.Context, change mappingstore.Change) {
	_ = e.EmitMappingChanged(ctx, change)
}

// EmitMatchRecorded emits a match recorded event
func (e *Emitter) EmitMatchRecorded(ctx context.Context, line models.ImportLine, record models.MatchRecord) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchRecorded")
	defer span.End()

	event := &kafka.Event{
		EventType:    string(EventTypeMatchRecorded),
		Key:          line.ID,
		ImportID:     line.ImportID,
		ImportLineID: line.ID,
		SupplierID:   line.SupplierID,
	}
	if record.Result.MatchedEntityID != nil {
		event.EntityID = *record.Result.MatchedEntityID
	}

	return e.emit(ctx, event, MatchRecordedEvent{
		BaseEvent: NewBaseEvent(EventTypeMatchRecorded),
		ImportID:  line.ImportID,
		Sequence:  record.Sequence,
		Result:    record.Result,
	})
}

// EmitReviewResolved emits a review resolved event
func (e *Emitter) EmitReviewResolved(ctx context.Context, item models.ReviewQueueItem, result models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReviewResolved")
	defer span.End()

	payload := ReviewResolvedEvent{
		BaseEvent:    NewBaseEvent(EventTypeReviewResolved),
		ReviewItemID: item.ID,
		Override:     item.Override,
		Result:       result,
	}
	if item.Resolution != nil {
		payload.Resolution = *item.Resolution
	}
	if item.ResolvedBy != nil {
		payload.ResolvedBy = *item.ResolvedBy
	}

	event := &kafka.Event{
		EventType:    string(EventTypeReviewResolved),
		Key:          item.ImportLineID,
		ImportID:     item.ImportID,
		ImportLineID: item.ImportLineID,
		SupplierID:   item.SupplierID,
	}
	if result.MatchedEntityID != nil {
		event.EntityID = *result.MatchedEntityID
	}
	return e.emit(ctx, event, payload)
}

// OnReviewResolved publishes the resolution.
func (e *Emitter) OnReviewResolved(ctx context.Context, item models.ReviewQueueItem, result models.MatchResult) {
	_ = e.EmitReviewResolved(ctx, item, result)
}

// EmitMatchDeferred emits an event for a line that was not matched because of a retryable
// failure, so it can be replayed.
func (e *Emitter) EmitMatchDeferred(ctx context.Context, line models.ImportLine, reason error) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchDeferred")
	defer span.End()

	return e.emit(ctx, &kafka.Event{
		EventType:    string(EventTypeMatchDeferred),
		Key:          line.ID,
		ImportID:     line.ImportID,
		ImportLineID: line.ID,
		SupplierID:   line.SupplierID,
	}, MatchDeferredEvent{
		BaseEvent: NewBaseEvent(EventTypeMatchDeferred),
		Reason:    reason.Error(),
		Line:      line,
	})
}
