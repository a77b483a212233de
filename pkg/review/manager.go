// Package review manages the human review queue. Each item moves OPEN → RESOLVED exactly
// once; a CONFIRMED resolution writes the supplier SKU mapping that later runs fast-path on.
package review

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/results"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// EntityChecker reports whether a canonical entity exists. It validates override targets.
type EntityChecker func(ctx context.Context, entityID string) (bool, error)

// EscalationPolicy is told about every rejection with the running rejection count of the SKU.
type EscalationPolicy interface {
	OnRejected(ctx context.Context, item models.ReviewQueueItem, rejections int)
}

// NoEscalation ignores rejections.
type NoEscalation struct{}

func (NoEscalation) OnRejected(context.Context, models.ReviewQueueItem, int) {}

// Observer is told about every resolution after it is stored.
type Observer interface {
	OnReviewResolved(ctx context.Context, item models.ReviewQueueItem, result models.MatchResult)
}

// Options holds the optional collaborators of a Manager.
type Options struct {
	Locker     Locker // cross-instance lock; in-process resolution is always serialized
	Entities   EntityChecker
	Escalation EscalationPolicy
	Observers  []Observer
}

// Manager runs the review queue state machine.
type Manager struct {
	log         ectologger.Logger
	persistence Persistence
	mappings    mappingstore.Store
	results     results.Store
	opts        Options
	locks       *keyedMutex
	now         func() time.Time
}

func NewManager(log ectologger.Logger, persistence Persistence, mappings mappingstore.Store, history results.Store, opts Options) *Manager {
	if opts.Escalation == nil {
		opts.Escalation = NoEscalation{}
	}
	return &Manager{
		log:         log,
		persistence: persistence,
		mappings:    mappings,
		results:     history,
		opts:        opts,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// Open queues a line for review. It is idempotent per import line: an existing OPEN item is
// returned unchanged with created=false.
func (m *Manager) Open(ctx context.Context, line models.ImportLine, result models.MatchResult) (*models.ReviewQueueItem, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Manager.Open")
	defer span.End()

	log := m.log.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithFields(map[string]any{
		"import_line_id": line.ID,
		"status":         result.Status,
	})

	if !result.Status.NeedsReview() {
		return nil, false, errors.NewValidationError(line.ID, fmt.Sprintf("status %s is not reviewable", result.Status), "status")
	}

	existing, err := m.persistence.FindOpenByLine(ctx, line.ID)
	if err != nil {
		log.WithError(err).Error("Failed to look up open review item")
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	item, created, err := m.persistence.Create(ctx, models.ReviewQueueItem{
		ID:           uuid.New().String(),
		ImportID:     line.ImportID,
		ImportLineID: line.ID,
		SupplierID:   line.SupplierID,
		SupplierSKU:  line.SupplierSKU,
		ImportLine:   line,
		Status:       models.ReviewStatusOpen,
		MatchStatus:  result.Status,
		Candidates:   result.Candidates,
		CreatedAt:    m.now().UTC(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to create review item")
		return nil, false, err
	}
	if created {
		log.WithFields(map[string]any{"review_item_id": item.ID}).Info("Review item opened")
	}
	return &item, created, nil
}

// List returns one page of items and the total number of matching items.
func (m *Manager) List(ctx context.Context, filter models.ReviewFilter, page models.Page) ([]models.ReviewQueueItem, int, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Manager.List")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, errors.NewValidationError("", fmt.Sprintf("unknown review status %q", filter.Status), "status")
	}
	return m.persistence.List(ctx, filter, page.Normalize())
}

// RejectionCount returns how often reviewers rejected matches for a supplier SKU.
func (m *Manager) RejectionCount(ctx context.Context, key models.MappingKey) (int, error) {
	return m.persistence.CountRejections(ctx, key)
}

// Resolve applies a reviewer's decision. Concurrent calls for one item are serialized and the
// losers get an AlreadyResolvedError. A mapping conflict leaves the item OPEN.
//
// The mapping is written first, then the item is marked RESOLVED, then the MANUAL result is
// appended. If that append fails the item stays resolved; any later Resolve call for the item
// records the missing result before reporting AlreadyResolvedError.
func (m *Manager) Resolve(ctx context.Context, itemID string, decision models.ReviewDecision) (models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Manager.Resolve")
	defer span.End()

	log := m.log.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithFields(map[string]any{
		"review_item_id": itemID,
		"resolution":     decision.Resolution,
		"entity_id":      decision.EntityID,
	})

	if !decision.Resolution.Valid() {
		return models.MatchResult{}, errors.NewValidationError("", fmt.Sprintf("unknown resolution %q", decision.Resolution), "resolution")
	}

	unlock := m.locks.Lock(itemID)
	defer unlock()

	if m.opts.Locker != nil {
		release, err := m.opts.Locker.Lock(ctx, "review:"+itemID)
		if err != nil {
			log.WithError(err).Error("Failed to acquire review item lock")
			return models.MatchResult{}, httperror.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("review item %s is locked", itemID))
		}
		defer release()
	}

	item, err := m.persistence.Get(ctx, itemID)
	if err != nil {
		log.WithError(err).Error("Failed to get review item")
		return models.MatchResult{}, err
	}
	if item == nil {
		return models.MatchResult{}, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("review item %s not found", itemID))
	}
	if item.Status == models.ReviewStatusResolved {
		if err := m.recordMissingResolution(ctx, item); err != nil {
			log.WithError(err).Error("Failed to record the result of an earlier resolution")
			return models.MatchResult{}, err
		}
		return models.MatchResult{}, alreadyResolved(item)
	}

	resolvedBy := decision.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = vinectx.GetUserID(ctx)
	}

	var result models.MatchResult
	switch decision.Resolution {
	case models.ResolutionConfirmed:
		result, err = m.confirm(ctx, item, decision, resolvedBy)
	case models.ResolutionRejected:
		result, err = m.reject(item, decision, resolvedBy)
	}
	if err != nil {
		log.WithError(err).Warn("Review decision refused")
		return models.MatchResult{}, err
	}

	now := m.now().UTC()
	resolution := decision.Resolution
	item.Resolution = &resolution
	item.ResolvedEntityID = result.MatchedEntityID
	item.ResolvedBy = &resolvedBy
	item.ResolvedAt = &now
	item.Note = decision.Note

	ok, err := m.persistence.MarkResolved(ctx, *item)
	if err != nil {
		log.WithError(err).Error("Failed to mark review item resolved")
		return models.MatchResult{}, err
	}
	if !ok {
		current, getErr := m.persistence.Get(ctx, itemID)
		if getErr != nil || current == nil {
			return models.MatchResult{}, errors.NewAlreadyResolvedError(itemID, "", "")
		}
		return models.MatchResult{}, alreadyResolved(current)
	}
	item.Status = models.ReviewStatusResolved

	if _, err := m.results.Append(ctx, result); err != nil {
		log.WithError(err).Error("Failed to record review result; it is recorded on the next attempt")
		return models.MatchResult{}, err
	}

	if resolution == models.ResolutionRejected {
		key := models.MappingKey{SupplierID: item.SupplierID, SupplierSKU: item.SupplierSKU}
		count, err := m.persistence.CountRejections(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Failed to count rejections")
		} else {
			m.opts.Escalation.OnRejected(ctx, *item, count)
		}
	}

	for _, o := range m.opts.Observers {
		o.OnReviewResolved(ctx, *item, result)
	}

	log.WithFields(map[string]any{"resolved_by": resolvedBy, "override": item.Override}).Info("Review item resolved")
	return result, nil
}

func (m *Manager) confirm(ctx context.Context, item *models.ReviewQueueItem, decision models.ReviewDecision, resolvedBy string) (models.MatchResult, error) {
	if decision.EntityID == "" {
		return models.MatchResult{}, errors.NewValidationError(item.ImportLineID, "a confirmation needs an entity", "entity_id")
	}

	override := !item.HasCandidate(decision.EntityID)
	if override {
		if !decision.Override {
			return models.MatchResult{}, errors.NewInvalidCandidateReferenceError(item.ID, decision.EntityID)
		}
		if m.opts.Entities != nil {
			exists, err := m.opts.Entities(ctx, decision.EntityID)
			if err != nil {
				return models.MatchResult{}, err
			}
			if !exists {
				return models.MatchResult{}, errors.NewInvalidCandidateReferenceError(item.ID, decision.EntityID)
			}
		}
	}
	item.Override = override

	source := models.MappingSourceReview
	if override {
		source = models.MappingSourceOverride
	}
	explanation := explainResolution(models.ResolutionConfirmed, decision.EntityID, override, resolvedBy)

	key := models.MappingKey{SupplierID: item.SupplierID, SupplierSKU: item.SupplierSKU}
	if key.Valid() {
		mapping := models.SkuMapping{MappingKey: key, EntityID: decision.EntityID, Source: source}
		var err error
		if decision.ReplaceMapping != "" {
			_, err = m.mappings.Replace(ctx, mapping, decision.ReplaceMapping)
		} else {
			var created bool
			created, err = m.mappings.Put(ctx, mapping)
			if err == nil && !created {
				// already pointing here; record the human source over an automatic one
				_, err = m.mappings.Replace(ctx, mapping, decision.EntityID)
			}
		}
		if err != nil {
			return models.MatchResult{}, err
		}
	} else {
		explanation += "; line has no supplier sku, no mapping written"
	}

	entityID := decision.EntityID
	return models.MatchResult{
		ImportLineID:    item.ImportLineID,
		Status:          models.StatusConfirmed,
		Confidence:      1.0,
		MatchMethod:     models.MatchMethodManual,
		MatchedEntityID: &entityID,
		Explanation:     explanation,
		Candidates:      item.Candidates,
	}, nil
}

func (m *Manager) reject(item *models.ReviewQueueItem, decision models.ReviewDecision, resolvedBy string) (models.MatchResult, error) {
	entityID := decision.EntityID
	if entityID == "" && len(item.Candidates) > 0 {
		entityID = item.Candidates[0].EntityID
	}
	if entityID == "" {
		return models.MatchResult{}, errors.NewValidationError(item.ImportLineID, "nothing to reject: the item has no candidates", "entity_id")
	}
	if !item.HasCandidate(entityID) {
		return models.MatchResult{}, errors.NewInvalidCandidateReferenceError(item.ID, entityID)
	}

	return models.MatchResult{
		ImportLineID:    item.ImportLineID,
		Status:          models.StatusRejected,
		MatchMethod:     models.MatchMethodManual,
		MatchedEntityID: &entityID,
		Explanation:     explainResolution(models.ResolutionRejected, entityID, false, resolvedBy),
		Candidates:      item.Candidates,
	}, nil
}

// recordMissingResolution appends the MANUAL result of a resolved item when the line's history
// has none since the item was opened.
func (m *Manager) recordMissingResolution(ctx context.Context, item *models.ReviewQueueItem) error {
	if item.Resolution == nil || item.ResolvedEntityID == nil {
		return nil
	}
	status := models.StatusRejected
	confidence := 0.0
	if *item.Resolution == models.ResolutionConfirmed {
		status = models.StatusConfirmed
		confidence = 1.0
	}

	history, err := m.results.History(ctx, item.ImportLineID)
	if err != nil {
		return err
	}
	for _, record := range history {
		r := record.Result
		if r.MatchMethod == models.MatchMethodManual && r.Status == status &&
			r.MatchedEntityID != nil && *r.MatchedEntityID == *item.ResolvedEntityID &&
			!record.RecordedAt.Before(item.CreatedAt) {
			return nil
		}
	}

	var resolvedBy string
	if item.ResolvedBy != nil {
		resolvedBy = *item.ResolvedBy
	}
	entityID := *item.ResolvedEntityID
	_, err = m.results.Append(ctx, models.MatchResult{
		ImportLineID:    item.ImportLineID,
		Status:          status,
		Confidence:      confidence,
		MatchMethod:     models.MatchMethodManual,
		MatchedEntityID: &entityID,
		Explanation:     explainResolution(*item.Resolution, entityID, item.Override, resolvedBy),
		Candidates:      item.Candidates,
	})
	if err == nil {
		m.log.WithContext(ctx).WithFields(map[string]any{
			"review_item_id": item.ID,
			"import_line_id": item.ImportLineID,
		}).Warn("Recorded the result of an earlier resolution")
	}
	return err
}

func explainResolution(resolution models.Resolution, entityID string, override bool, resolvedBy string) string {
	switch {
	case resolution == models.ResolutionRejected:
		return fmt.Sprintf("rejected '%s' by %s", entityID, actor(resolvedBy))
	case override:
		return fmt.Sprintf("override: confirmed '%s' outside the candidate set by %s", entityID, actor(resolvedBy))
	default:
		return fmt.Sprintf("confirmed '%s' by %s", entityID, actor(resolvedBy))
	}
}

func alreadyResolved(item *models.ReviewQueueItem) *errors.AlreadyResolvedError {
	var resolution, by string
	if item.Resolution != nil {
		resolution = string(*item.Resolution)
	}
	if item.ResolvedBy != nil {
		by = *item.ResolvedBy
	}
	return errors.NewAlreadyResolvedError(item.ID, resolution, by)
}

func actor(id string) string {
	if id == "" {
		return "unknown reviewer"
	}
	return id
}
