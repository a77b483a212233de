package mappingstore

import (
	"context"

	"github.com/Ramsey-B/vine/pkg/models"
)

// NotifyingStore wraps a Store and tells listeners about every successful change. Listeners
// run synchronously after the inner write returns, in registration order.
type NotifyingStore struct {
	Store
	listeners []ChangeListener
}

func NewNotifyingStore(inner Store, listeners ...ChangeListener) *NotifyingStore {
	return &NotifyingStore{Store: inner, listeners: listeners}
}

// Subscribe adds a listener. It is not safe to call concurrently with writes.
func (s *NotifyingStore) Subscribe(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *NotifyingStore) Put(ctx context.Context, m models.SkuMapping) (bool, error) {
	created, err := s.Store.Put(ctx, m)
	if err != nil || !created {
		return created, err
	}
	s.notify(ctx, Change{Key: m.MappingKey, Current: m.EntityID, Source: m.Source})
	return true, nil
}

func (s *NotifyingStore) Replace(ctx context.Context, m models.SkuMapping, expectedEntityID string) (*models.SkuMapping, error) {
	prev, err := s.Store.Replace(ctx, m, expectedEntityID)
	if err != nil {
		return nil, err
	}
	if prev == nil || prev.EntityID != m.EntityID || prev.Source != m.Source {
		change := Change{Key: m.MappingKey, Current: m.EntityID, Source: m.Source}
		if prev != nil {
			change.Previous = prev.EntityID
		}
		s.notify(ctx, change)
	}
	return prev, nil
}

func (s *NotifyingStore) notify(ctx context.Context, change Change) {
	for _, l := range s.listeners {
		l.OnMappingChanged(ctx, change)
	}
}
