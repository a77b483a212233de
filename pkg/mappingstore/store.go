// Package mappingstore holds confirmed supplier SKU → canonical entity mappings. Writes are
// per-key compare-and-set: a key never silently changes target.
package mappingstore

import (
	"context"

	"github.com/Ramsey-B/vine/pkg/models"
)

// Store is the mapping persistence contract.
type Store interface {
	// Get returns the mapping for key, or nil when there is none.
	Get(ctx context.Context, key models.MappingKey) (*models.SkuMapping, error)
	// Put creates the mapping. Putting the same target again is a no-op (created=false); a
	// different target fails with a MappingConflictError.
	Put(ctx context.Context, m models.SkuMapping) (created bool, err error)
	// Replace moves an existing mapping to m.EntityID when it currently points at
	// expectedEntityID, and returns the previous mapping. With expectedEntityID equal to
	// m.EntityID it only rewrites the source.
	Replace(ctx context.Context, m models.SkuMapping, expectedEntityID string) (*models.SkuMapping, error)
}

// Change describes a mapping that was created or moved.
type Change struct {
	Key      models.MappingKey
	Previous string // empty when the mapping was created
	Current  string
	Source   models.MappingSource
}

// ChangeListener is told about every mapping change after it is durable.
type ChangeListener interface {
	OnMappingChanged(ctx context.Context, change Change)
}

// ChangeListenerFunc adapts a function to ChangeListener.
type ChangeListenerFunc func(ctx context.Context, change Change)

func (f ChangeListenerFunc) OnMappingChanged(ctx context.Context, change Change) {
	f(ctx, change)
}
