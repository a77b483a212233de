package mappingstore

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[models.MappingKey]models.SkuMapping
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[models.MappingKey]models.SkuMapping),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key models.MappingKey) (*models.SkuMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[key]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) Put(_ context.Context, m models.SkuMapping) (bool, error) {
	if !m.Valid() || m.EntityID == "" {
		return false, errors.NewValidationError("", "mapping needs supplier_id, supplier_sku and entity_id", "supplier_id", "supplier_sku", "entity_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.mappings[m.MappingKey]; ok {
		if existing.EntityID == m.EntityID {
			return false, nil
		}
		return false, errors.NewMappingConflictError(m.SupplierID, m.SupplierSKU, existing.EntityID, m.EntityID)
	}

	now := s.now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.mappings[m.MappingKey] = m
	return true, nil
}

func (s *MemoryStore) Replace(_ context.Context, m models.SkuMapping, expectedEntityID string) (*models.SkuMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.mappings[m.MappingKey]
	if !ok || existing.EntityID != expectedEntityID {
		return nil, errors.NewMappingConflictError(m.SupplierID, m.SupplierSKU, existing.EntityID, m.EntityID)
	}
	if existing.EntityID == m.EntityID && existing.Source == m.Source {
		return &existing, nil
	}

	next := existing
	next.EntityID = m.EntityID
	next.Source = m.Source
	next.UpdatedAt = s.now().UTC()
	s.mappings[m.MappingKey] = next
	return &existing, nil
}

// Len returns the number of stored mappings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}
