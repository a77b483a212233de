// Package results keeps the append-only match history of import lines. The current result of
// a line is the record with the highest sequence; nothing is overwritten or deleted.
package results

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/vine/pkg/models"
)

// Store is the result history contract.
type Store interface {
	Append(ctx context.Context, result models.MatchResult) (models.MatchRecord, error)
	// Current returns the latest record for the line, or nil when the line was never matched.
	Current(ctx context.Context, importLineID string) (*models.MatchRecord, error)
	// History returns every record for the line, oldest first.
	History(ctx context.Context, importLineID string) ([]models.MatchRecord, error)
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	records map[string][]models.MatchRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]models.MatchRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, result models.MatchResult) (models.MatchRecord, error) {
	if err := result.Validate(); err != nil {
		return models.MatchRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := models.MatchRecord{
		Sequence:   s.seq,
		RecordedAt: s.now().UTC(),
		Result:     result,
	}
	s.records[result.ImportLineID] = append(s.records[result.ImportLineID], rec)
	return rec, nil
}

func (s *MemoryStore) Current(_ context.Context, importLineID string) (*models.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[importLineID]
	if len(recs) == 0 {
		return nil, nil
	}
	rec := recs[len(recs)-1]
	return &rec, nil
}

func (s *MemoryStore) History(_ context.Context, importLineID string) ([]models.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[importLineID]
	out := make([]models.MatchRecord, len(recs))
	copy(out, recs)
	return out, nil
}
