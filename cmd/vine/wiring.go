package main

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/vine/config"
	"github.com/Ramsey-B/vine/pkg/catalog"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/events"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/matching"
	"github.com/Ramsey-B/vine/pkg/processor"
	"github.com/Ramsey-B/vine/pkg/results"
	"github.com/Ramsey-B/vine/pkg/review"
)

// adapters are the storage backends the matcher runs on.
type adapters struct {
	mappings mappingstore.Store
	reviews  review.Persistence
	results  results.Store
	cache    mappingstore.Cache // optional
	locker   review.Locker      // optional
	emitter  *events.Emitter    // optional
}

func memoryAdapters() adapters {
	return adapters{
		mappings: mappingstore.NewMemoryStore(),
		reviews:  review.NewMemoryPersistence(),
		results:  results.NewMemoryStore(),
	}
}

// matcher is the assembled matching stack.
type matcher struct {
	index   *catalog.VersionedIndex
	service *matching.Service
}

func newEngine(cfg *config.Config, logger ectologger.Logger) (*matching.Engine, error) {
	var table *matching.WeightTable
	if cfg.WeightTablePath != "" {
		loaded, err := matching.LoadWeightTableFile(cfg.WeightTablePath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	return matching.NewEngine(logger, table, matching.EngineConfig{
		Generator: matching.GeneratorConfig{
			FuzzyStrongThreshold: cfg.FuzzyStrongThreshold,
			CandidateFloor:       cfg.CandidateFloor,
			SearchTopK:           cfg.SearchTopK,
			CrossValidate:        cfg.CrossValidate,
		},
		Policy: matching.PolicyConfig{
			HighThreshold:   cfg.HighThreshold,
			MediumThreshold: cfg.MediumThreshold,
		},
		LenientGTIN: cfg.LenientGTIN,
	})
}

func newIndex(cfg *config.Config, logger ectologger.Logger) *catalog.VersionedIndex {
	return catalog.NewVersionedIndex(logger, matching.DefaultSimilarity(), catalog.Config{
		WaitBudget: cfg.CatalogWaitBudget,
	})
}

func buildMatcher(cfg *config.Config, logger ectologger.Logger, index *catalog.VersionedIndex, a adapters) (*matcher, error) {
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := a.mappings
	var listeners []mappingstore.ChangeListener
	if a.cache != nil {
		cached := mappingstore.NewCachedStore(logger, a.mappings, a.cache)
		store = cached
		listeners = append(listeners, cached)
	}
	if a.emitter != nil {
		listeners = append(listeners, a.emitter)
	}
	mappings := mappingstore.NewNotifyingStore(store, listeners...)

	opts := review.Options{
		Entities: func(ctx context.Context, entityID string) (bool, error) {
			snap := index.Current()
			if snap == nil {
				return false, errors.NewIndexUnavailableError("catalog not loaded", 0)
			}
			_, ok := snap.LookupByID(entityID)
			return ok, nil
		},
	}
	if a.locker != nil {
		opts.Locker = a.locker
	}
	var recorder matching.Recorder
	if a.emitter != nil {
		opts.Observers = append(opts.Observers, a.emitter)
		recorder = a.emitter
	}
	reviews := review.NewManager(logger, a.reviews, mappings, a.results, opts)

	service := matching.NewService(logger, engine, index, mappings, a.results, reviews, recorder, matching.ServiceConfig{
		BatchConcurrency:   cfg.MatchWorkerCount,
		CacheAutoMatches:   cfg.CacheAutoMatches,
		ReviewQueueEnabled: cfg.ReviewQueueEnabled,
	})

	logger.WithFields(map[string]any{
		"weight_table": engine.WeightTableVersion(),
		"similarity":   matching.DefaultSimilarity().String(),
	}).Info("Matcher assembled")

	return &matcher{index: index, service: service}, nil
}

func processorConfig(cfg *config.Config) processor.Config {
	return processor.Config{
		Workers:        cfg.MatchWorkerCount,
		QueueSize:      cfg.MatchQueueSize,
		MaxAttempts:    cfg.MatchMaxAttempts,
		InitialBackoff: cfg.MatchRetryBackoff,
		MaxBackoff:     cfg.MatchRetryMaxBackoff,
	}
}
