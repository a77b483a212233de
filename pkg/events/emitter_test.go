package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/kafka"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/models"
)

type fakePublisher struct {
	events []*kafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event *kafka.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func newTestEmitter(err error) (*Emitter, *fakePublisher) {
	p := &fakePublisher{err: err}
	return NewEmitter(p, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})), p
}

func TestEmitter_MappingChanged(t *testing.T) {
	emitter, p := newTestEmitter(nil)
	change := mappingstore.Change{
		Key:      models.MappingKey{SupplierID: "sup-1", SupplierSKU: "SKU-1"},
		Previous: "mp-1",
		Current:  "mp-2",
		Source:   models.MappingSourceOverride,
	}

	emitter.OnMappingChanged(context.Background(), change)

	require.Len(t, p.events, 1)
	event := p.events[0]
	assert.Equal(t, "mapping.changed", event.EventType)
	assert.Equal(t, "sup-1:SKU-1", event.Key)
	assert.Equal(t, "mp-2", event.EntityID)

	var payload MappingChangedEvent
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, EventTypeMappingChanged, payload.EventType)
	assert.Equal(t, "mp-1", payload.PreviousEntityID)
	assert.Equal(t, models.MappingSourceOverride, payload.Source)
	assert.Equal(t, kafka.SchemaVersion, payload.SchemaVersion)
}

func TestEmitter_MatchRecorded(t *testing.T) {
	emitter, p := newTestEmitter(nil)
	entity := "wine-1"
	line := models.ImportLine{ID: "line-1", ImportID: "import-1", SupplierID: "sup-1"}
	record := models.MatchRecord{Sequence: 7, Result: models.MatchResult{
		ImportLineID:    "line-1",
		Status:          models.StatusAutoMatch,
		MatchMethod:     models.MatchMethodGTINExact,
		Confidence:      1,
		MatchedEntityID: &entity,
		Candidates:      []models.MatchCandidate{},
	}}

	require.NoError(t, emitter.EmitMatchRecorded(context.Background(), line, record))

	require.Len(t, p.events, 1)
	assert.Equal(t, "line-1", p.events[0].Key)
	assert.Equal(t, "import-1", p.events[0].ImportID)
	assert.Equal(t, "wine-1", p.events[0].EntityID)

	var payload MatchRecordedEvent
	require.NoError(t, json.Unmarshal(p.events[0].Data, &payload))
	assert.Equal(t, int64(7), payload.Sequence)
	assert.Equal(t, record.Result, payload.Result)
}

func TestEmitter_ReviewResolved(t *testing.T) {
	emitter, p := newTestEmitter(nil)
	resolution := models.ResolutionRejected
	by := "reviewer-1"
	entity := "wine-2"
	item := models.ReviewQueueItem{ID: "item-1", ImportLineID: "line-1", SupplierID: "sup-1", Resolution: &resolution, ResolvedBy: &by}

	emitter.OnReviewResolved(context.Background(), item, models.MatchResult{
		ImportLineID:    "line-1",
		Status:          models.StatusRejected,
		MatchMethod:     models.MatchMethodManual,
		MatchedEntityID: &entity,
	})

	require.Len(t, p.events, 1)
	var payload ReviewResolvedEvent
	require.NoError(t, json.Unmarshal(p.events[0].Data, &payload))
	assert.Equal(t, "item-1", payload.ReviewItemID)
	assert.Equal(t, models.ResolutionRejected, payload.Resolution)
	assert.Equal(t, "reviewer-1", payload.ResolvedBy)
	assert.Equal(t, "wine-2", p.events[0].EntityID)
}

func TestEmitter_MatchDeferred(t *testing.T) {
	emitter, p := newTestEmitter(stderrors.New("broker down"))
	line := models.ImportLine{ID: "line-1", SupplierID: "sup-1"}

	err := emitter.EmitMatchDeferred(context.Background(), line, stderrors.New("catalog not loaded"))
	assert.EqualError(t, err, "broker down")

	require.Len(t, p.events, 1)
	var payload MatchDeferredEvent
	require.NoError(t, json.Unmarshal(p.events[0].Data, &payload))
	assert.Equal(t, "catalog not loaded", payload.Reason)
	assert.Equal(t, "line-1", payload.Line.ID)
}
