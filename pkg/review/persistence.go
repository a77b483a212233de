package review

import (
	"context"
	"sort"
	"sync"

	"github.com/Ramsey-B/vine/pkg/models"
)

// Persistence stores review queue items.
type Persistence interface {
	// Create stores a new OPEN item. When the line already has an OPEN item, that item is
	// returned instead and created is false.
	Create(ctx context.Context, item models.ReviewQueueItem) (stored models.ReviewQueueItem, created bool, err error)
	// Get returns the item, or nil when it does not exist.
	Get(ctx context.Context, id string) (*models.ReviewQueueItem, error)
	// FindOpenByLine returns the OPEN item of an import line, or nil.
	FindOpenByLine(ctx context.Context, importLineID string) (*models.ReviewQueueItem, error)
	// List returns one page of matching items ordered by created_at then id, and the total.
	List(ctx context.Context, filter models.ReviewFilter, page models.Page) ([]models.ReviewQueueItem, int, error)
	// MarkResolved applies the resolution fields of item if, and only if, the stored item is
	// still OPEN. It reports whether the update happened.
	MarkResolved(ctx context.Context, item models.ReviewQueueItem) (bool, error)
	// CountRejections counts REJECTED resolutions for a supplier SKU.
	CountRejections(ctx context.Context, key models.MappingKey) (int, error)
}

// MemoryPersistence is a Persistence held in process memory.
type MemoryPersistence struct {
	mu     sync.RWMutex
	items  map[string]models.ReviewQueueItem
	byLine map[string]string // import line id -> OPEN item id
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		items:  make(map[string]models.ReviewQueueItem),
		byLine: make(map[string]string),
	}
}

func (p *MemoryPersistence) Create(_ context.Context, item models.ReviewQueueItem) (models.ReviewQueueItem, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byLine[item.ImportLineID]; ok {
		return cloneItem(p.items[id]), false, nil
	}
	item.Status = models.ReviewStatusOpen
	p.items[item.ID] = cloneItem(item)
	p.byLine[item.ImportLineID] = item.ID
	return cloneItem(item), true, nil
}

func (p *MemoryPersistence) Get(_ context.Context, id string) (*models.ReviewQueueItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	item, ok := p.items[id]
	if !ok {
		return nil, nil
	}
	out := cloneItem(item)
	return &out, nil
}

func (p *MemoryPersistence) FindOpenByLine(_ context.Context, importLineID string) (*models.ReviewQueueItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byLine[importLineID]
	if !ok {
		return nil, nil
	}
	out := cloneItem(p.items[id])
	return &out, nil
}

func (p *MemoryPersistence) List(_ context.Context, filter models.ReviewFilter, page models.Page) ([]models.ReviewQueueItem, int, error) {
	page = page.Normalize()

	p.mu.RLock()
	matched := make([]models.ReviewQueueItem, 0)
	for _, item := range p.items {
		if filter.ImportID != "" && item.ImportID != filter.ImportID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.SupplierID != "" && item.SupplierID != filter.SupplierID {
			continue
		}
		matched = append(matched, cloneItem(item))
	}
	p.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if page.Offset >= total {
		return []models.ReviewQueueItem{}, total, nil
	}
	end := min(total, page.Offset+page.Limit)
	return matched[page.Offset:end], total, nil
}

func (p *MemoryPersistence) MarkResolved(_ context.Context, item models.ReviewQueueItem) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.items[item.ID]
	if !ok || stored.Status != models.ReviewStatusOpen {
		return false, nil
	}
	stored.Status = models.ReviewStatusResolved
	stored.Resolution = item.Resolution
	stored.ResolvedEntityID = item.ResolvedEntityID
	stored.Override = item.Override
	stored.ResolvedBy = item.ResolvedBy
	stored.ResolvedAt = item.ResolvedAt
	stored.Note = item.Note
	p.items[item.ID] = stored
	delete(p.byLine, stored.ImportLineID)
	return true, nil
}

func (p *MemoryPersistence) CountRejections(_ context.Context, key models.MappingKey) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, item := range p.items {
		if item.SupplierID == key.SupplierID && item.SupplierSKU == key.SupplierSKU &&
			item.Resolution != nil && *item.Resolution == models.ResolutionRejected {
			count++
		}
	}
	return count, nil
}

// cloneItem copies the slices of an item so callers cannot alias stored state.
func cloneItem(item models.ReviewQueueItem) models.ReviewQueueItem {
	item.Candidates = append([]models.MatchCandidate(nil), item.Candidates...)
	for i := range item.Candidates {
		item.Candidates[i].Reasons = append(models.Reasons(nil), item.Candidates[i].Reasons...)
	}
	return item
}
