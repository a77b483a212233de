package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"

	vineerrors "github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// Config contains configuration for the versioned index.
type Config struct {
	WaitBudget time.Duration // how long new readers wait for a rebuild (default: 2s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{WaitBudget: 2 * time.Second}
}

// VersionedIndex serves immutable snapshots and swaps them atomically on rebuild. While a
// rebuild is running new Acquire calls wait; readers holding a snapshot keep using it.
type VersionedIndex struct {
	log        ectologger.Logger
	cfg        Config
	similarity Similarity

	current atomic.Pointer[Snapshot]
	seq     atomic.Int64

	rebuildMu sync.Mutex // one rebuild at a time

	gateMu sync.RWMutex
	gate   chan struct{} // closed while the index is open
}

// NewVersionedIndex creates an empty index. Acquire fails until the first Rebuild completes.
func NewVersionedIndex(log ectologger.Logger, sim Similarity, cfg Config) *VersionedIndex {
	if cfg.WaitBudget <= 0 {
		cfg.WaitBudget = DefaultConfig().WaitBudget
	}
	gate := make(chan struct{})
	close(gate)
	return &VersionedIndex{
		log:        log,
		cfg:        cfg,
		similarity: sim,
		gate:       gate,
	}
}

func (v *VersionedIndex) currentGate() chan struct{} {
	v.gateMu.RLock()
	defer v.gateMu.RUnlock()
	return v.gate
}

// Acquire pins the current snapshot for the caller. It waits up to the wait budget while a
// rebuild is in progress and then fails with a retryable IndexUnavailableError.
func (v *VersionedIndex) Acquire(ctx context.Context) (*Snapshot, error) {
	gate := v.currentGate()
	select {
	case <-gate:
	default:
		timer := time.NewTimer(v.cfg.WaitBudget)
		defer timer.Stop()
		select {
		case <-gate:
		case <-timer.C:
			return nil, vineerrors.NewIndexUnavailableError("rebuild in progress", v.cfg.WaitBudget)
		case <-ctx.Done():
			return nil, vineerrors.NewIndexUnavailableError(ctx.Err().Error(), 0)
		}
	}

	snap := v.current.Load()
	if snap == nil {
		return nil, vineerrors.NewIndexUnavailableError("no catalog loaded", 0)
	}
	return snap, nil
}

// Current returns the live snapshot without waiting, or nil before the first load.
func (v *VersionedIndex) Current() *Snapshot {
	return v.current.Load()
}

// Rebuild loads all entities from the provider and publishes them as a new version. The
// previous snapshot stays live if loading fails.
func (v *VersionedIndex) Rebuild(ctx context.Context, provider Provider) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.VersionedIndex.Rebuild")
	defer span.End()

	v.rebuildMu.Lock()
	defer v.rebuildMu.Unlock()

	log := v.log.WithContext(ctx)

	gate := make(chan struct{})
	v.gateMu.Lock()
	v.gate = gate
	v.gateMu.Unlock()
	defer close(gate)

	start := time.Now()
	entities, err := provider.LoadEntities(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load catalog entities")
		return "", err
	}

	snap := NewSnapshot(v.seq.Add(1), entities, v.similarity)
	v.current.Store(snap)

	log.WithFields(map[string]any{
		"index_version": snap.Version(),
		"entities":      snap.Len(),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Catalog index rebuilt")

	return snap.Version(), nil
}

// Load publishes a fixed entity set as a new version.
func (v *VersionedIndex) Load(ctx context.Context, entities []models.CanonicalEntity) (string, error) {
	return v.Rebuild(ctx, ProviderFunc(func(context.Context) ([]models.CanonicalEntity, error) {
		return entities, nil
	}))
}
