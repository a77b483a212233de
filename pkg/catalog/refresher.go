package catalog

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/vine/pkg/fingerprint"
	"github.com/Ramsey-B/vine/pkg/metrics"
)

// Refresher rebuilds a VersionedIndex from its provider on a fixed interval. A load whose
// content matches the live version is dropped, so the version only moves when the catalog does.
type Refresher struct {
	log      ectologger.Logger
	index    *VersionedIndex
	provider Provider
	interval time.Duration

	published string // fingerprint of the live version
}

func NewRefresher(log ectologger.Logger, index *VersionedIndex, provider Provider, interval time.Duration) *Refresher {
	return &Refresher{log: log, index: index, provider: provider, interval: interval}
}

// Run rebuilds once immediately and then on every tick until ctx is cancelled. Failed
// rebuilds are logged and leave the previous version live.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.Prime(ctx); err != nil {
		return err
	}
	r.Loop(ctx)
	return nil
}

// Prime performs the first rebuild. Matching is unavailable until it succeeds.
func (r *Refresher) Prime(ctx context.Context) error {
	return r.rebuild(ctx)
}

// Loop rebuilds on every tick until ctx is cancelled. A non-positive interval disables it.
func (r *Refresher) Loop(ctx context.Context) {
	if r.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.rebuild(ctx); err != nil {
				r.log.WithContext(ctx).WithError(err).Warn("Catalog refresh failed; keeping previous version")
			}
		}
	}
}

func (r *Refresher) rebuild(ctx context.Context) error {
	entities, err := r.provider.LoadEntities(ctx)
	if err != nil {
		metrics.CatalogRebuildsTotal.WithLabelValues("failed").Inc()
		return err
	}

	fp, err := fingerprint.Entities(entities)
	if err != nil {
		metrics.CatalogRebuildsTotal.WithLabelValues("failed").Inc()
		return err
	}
	if fp == r.published && r.index.Current() != nil {
		metrics.CatalogRebuildsTotal.WithLabelValues("unchanged").Inc()
		r.log.WithContext(ctx).WithField("fingerprint", fp).Debug("Catalog unchanged; keeping current version")
		return nil
	}

	if _, err := r.index.Load(ctx, entities); err != nil {
		metrics.CatalogRebuildsTotal.WithLabelValues("failed").Inc()
		return err
	}
	r.published = fp
	metrics.CatalogRebuildsTotal.WithLabelValues("ok").Inc()
	if snap := r.index.Current(); snap != nil {
		metrics.CatalogEntities.Set(float64(snap.Len()))
	}
	return nil
}
