package matching

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/vine/pkg/catalog"
	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/metrics"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/results"
	"github.com/Ramsey-B/vine/pkg/review"
	"github.com/Ramsey-B/vine/pkg/schema"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// ServiceConfig contains configuration for the matching service.
type ServiceConfig struct {
	BatchConcurrency   int  // lines evaluated in parallel by MatchBatch (default: 8)
	CacheAutoMatches   bool // write SKU mappings for identifier AUTO_MATCH results
	ReviewQueueEnabled bool // open review items for SUGGESTED and PENDING_REVIEW results
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BatchConcurrency:   8,
		CacheAutoMatches:   true,
		ReviewQueueEnabled: true,
	}
}

// IndexSource hands out pinned catalog snapshots. *catalog.VersionedIndex implements it.
type IndexSource interface {
	Acquire(ctx context.Context) (*catalog.Snapshot, error)
}

// Recorder is told about every stored match result.
type Recorder interface {
	EmitMatchRecorded(ctx context.Context, line models.ImportLine, record models.MatchRecord) error
}

// BatchResult is the outcome of one line of a batch. Exactly one of the fields is meaningful
// unless Err is a MappingConflictError, which accompanies a valid Result.
type BatchResult struct {
	Result models.MatchResult
	Err    error
}

// ReviewPage is one page of the review queue.
type ReviewPage struct {
	Items []models.ReviewQueueItem `json:"items"`
	Total int                      `json:"total"`
}

// Service is the matching entry point used by the queue processor and the admin surface.
type Service struct {
	log      ectologger.Logger
	engine   *Engine
	index    IndexSource
	mappings mappingstore.Store
	results  results.Store
	review   *review.Manager
	recorder Recorder
	cfg      ServiceConfig
}

// NewService creates a new matching service. recorder may be nil.
func NewService(
	log ectologger.Logger,
	engine *Engine,
	index IndexSource,
	mappings mappingstore.Store,
	history results.Store,
	reviews *review.Manager,
	recorder Recorder,
	cfg ServiceConfig,
) *Service {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultServiceConfig().BatchConcurrency
	}
	return &Service{
		log:      log,
		engine:   engine,
		index:    index,
		mappings: mappings,
		results:  history,
		review:   reviews,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Match classifies one import line against a pinned catalog version and records the result.
//
// Classification outcomes, NO_MATCH included, are results and never errors. A failed
// cache-worthy mapping write is returned as a MappingConflictError next to the valid result.
func (s *Service) Match(ctx context.Context, line models.ImportLine) (models.MatchResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "matching.Service.Match", map[string]string{
		"import_line_id": line.ID,
		"supplier_id":    line.SupplierID,
	})
	defer span.End()

	if vinectx.GetImportID(ctx) == "" {
		ctx = vinectx.SetImportID(ctx, line.ImportID)
	}
	if vinectx.GetSupplierID(ctx) == "" {
		ctx = vinectx.SetSupplierID(ctx, line.SupplierID)
	}

	start := time.Now()
	log := s.log.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithField("import_line_id", line.ID)

	if err := schema.ValidateImportLine(line).Err(line.ID); err != nil {
		metrics.MatchErrorsTotal.WithLabelValues("validation").Inc()
		log.WithError(err).Warn("Import line rejected")
		return models.MatchResult{}, err
	}

	snap, err := s.index.Acquire(ctx)
	if err != nil {
		metrics.MatchErrorsTotal.WithLabelValues("index_unavailable").Inc()
		log.WithError(err).Warn("Catalog index unavailable; line deferred")
		tracing.RecordError(span, err)
		return models.MatchResult{}, err
	}

	result, err := s.engine.Evaluate(ctx, snap, s.mappings, line)
	if err != nil {
		metrics.MatchErrorsTotal.WithLabelValues("evaluate").Inc()
		tracing.RecordError(span, err)
		return models.MatchResult{}, err
	}

	var sideErr error
	if s.cfg.CacheAutoMatches && IsCacheWorthy(result) && line.SupplierSKU != "" {
		sideErr = s.cacheMapping(ctx, line, *result.MatchedEntityID)
	}

	// Open is idempotent per line; a retry after a failed append reuses the item
	if s.cfg.ReviewQueueEnabled && s.review != nil && result.Status.NeedsReview() {
		item, created, err := s.review.Open(ctx, line, result)
		if err != nil {
			log.WithError(err).Error("Failed to open review item")
			metrics.MatchErrorsTotal.WithLabelValues("review").Inc()
			return models.MatchResult{}, err
		}
		if created {
			metrics.ReviewItemsOpenedTotal.WithLabelValues(string(result.Status)).Inc()
			log = log.WithFields(map[string]any{"review_item_id": item.ID})
		}
	}

	record, err := s.results.Append(ctx, result)
	if err != nil {
		log.WithError(err).Error("Failed to record match result")
		metrics.MatchErrorsTotal.WithLabelValues("record").Inc()
		return models.MatchResult{}, err
	}

	if s.recorder != nil {
		// the result is stored; a lost notification is logged by the recorder
		_ = s.recorder.EmitMatchRecorded(ctx, line, record)
	}

	metrics.MatchOutcomesTotal.WithLabelValues(string(result.Status), string(result.MatchMethod)).Inc()
	metrics.MatchDuration.WithLabelValues(string(result.Status)).Observe(time.Since(start).Seconds())

	log.WithFields(map[string]any{
		"status":        result.Status,
		"match_method":  result.MatchMethod,
		"confidence":    result.Confidence,
		"index_version": result.IndexVersion,
	}).Info("Import line matched")

	return result, sideErr
}

func (s *Service) cacheMapping(ctx context.Context, line models.ImportLine, entityID string) error {
	_, err := s.mappings.Put(ctx, models.SkuMapping{
		MappingKey: models.MappingKey{SupplierID: line.SupplierID, SupplierSKU: line.SupplierSKU},
		EntityID:   entityID,
		Source:     models.MappingSourceAutoMatch,
	})
	if err == nil {
		return nil
	}
	log := s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"import_line_id": line.ID,
		"supplier_sku":   line.SupplierSKU,
		"entity_id":      entityID,
	})
	if errors.IsMappingConflict(err) {
		metrics.MappingConflictsTotal.WithLabelValues("auto_match").Inc()
		log.Warn("Automatic match conflicts with the existing SKU mapping")
	} else {
		log.Error("Failed to cache automatic match")
	}
	return err
}

// MatchBatch evaluates lines in parallel. Each line is isolated: its error lands in its own
// BatchResult and never stops its siblings. Output order follows input order.
func (s *Service) MatchBatch(ctx context.Context, lines []models.ImportLine) []BatchResult {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "matching.Service.MatchBatch", map[string]string{
		"lines": strconv.Itoa(len(lines)),
	})
	defer span.End()

	out := make([]BatchResult, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range lines {
		g.Go(func() error {
			result, err := s.Match(gctx, lines[i])
			out[i] = BatchResult{Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// ListReviewQueue returns one page of review items.
func (s *Service) ListReviewQueue(ctx context.Context, filter models.ReviewFilter, page models.Page) (ReviewPage, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.ListReviewQueue")
	defer span.End()

	items, total, err := s.review.List(ctx, filter, page)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("Failed to list review queue")
		return ReviewPage{}, err
	}
	return ReviewPage{Items: items, Total: total}, nil
}

// ResolveReviewItem applies a reviewer decision and returns the MANUAL result it produced.
func (s *Service) ResolveReviewItem(ctx context.Context, itemID string, decision models.ReviewDecision) (models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.ResolveReviewItem")
	defer span.End()

	result, err := s.review.Resolve(ctx, itemID, decision)
	if err != nil {
		if errors.IsMappingConflict(err) {
			metrics.MappingConflictsTotal.WithLabelValues("review").Inc()
		}
		tracing.RecordError(span, err)
		return models.MatchResult{}, err
	}

	metrics.ReviewResolutionsTotal.WithLabelValues(string(decision.Resolution), strconv.FormatBool(decision.Override)).Inc()
	return result, nil
}

// CurrentResult returns the latest recorded result of a line, or nil.
func (s *Service) CurrentResult(ctx context.Context, importLineID string) (*models.MatchRecord, error) {
	return s.results.Current(ctx, importLineID)
}

// ResultHistory returns every recorded result of a line, oldest first.
func (s *Service) ResultHistory(ctx context.Context, importLineID string) ([]models.MatchRecord, error) {
	return s.results.History(ctx, importLineID)
}
