// Package catalog holds the read-mostly canonical catalog index the matcher consults by exact
// identifier and by similarity search.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/normalizers"
)

// Index is the lookup contract of one catalog version.
type Index interface {
	Version() string
	LookupByIdentifier(kind models.IdentifierKind, value string) (*models.CanonicalEntity, bool)
	LookupByID(id string) (*models.CanonicalEntity, bool)
	SearchSimilar(fields models.NormalizedLine, k int) []models.CanonicalEntity
	Similarity() Similarity
}

// Provider loads the full set of canonical entities for a rebuild.
type Provider interface {
	LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]models.CanonicalEntity, error)

func (f ProviderFunc) LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error) {
	return f(ctx)
}

// Similarity is a named, versioned string similarity in [0,1]. Changing the function means
// bumping the version, which changes every index version built with it.
type Similarity struct {
	Name    string
	Version string
	Compare func(a, b string) float64
}

func (s Similarity) String() string {
	return s.Name + "@" + s.Version
}

// ExactSimilarity scores 1 for equal strings and 0 otherwise.
var ExactSimilarity = Similarity{
	Name:    "exact",
	Version: "1",
	Compare: func(a, b string) float64 {
		if a == b {
			return 1
		}
		return 0
	},
}

// Snapshot is one immutable catalog version. It is safe for any number of concurrent readers.
type Snapshot struct {
	version    string
	seq        int64
	builtAt    time.Time
	similarity Similarity
	entities   []*models.CanonicalEntity // ordered by id
	byID       map[string]*models.CanonicalEntity
	byGTIN     map[string]*models.CanonicalEntity
	byLWIN     map[string]*models.CanonicalEntity
}

// NewSnapshot normalizes entities and builds the identifier maps. When two entities share an
// identifier the one with the lowest id owns it.
func NewSnapshot(seq int64, entities []models.CanonicalEntity, sim Similarity) *Snapshot {
	if sim.Compare == nil {
		sim = ExactSimilarity
	}
	s := &Snapshot{
		version:    fmt.Sprintf("v%d+%s", seq, sim),
		seq:        seq,
		builtAt:    time.Now().UTC(),
		similarity: sim,
		entities:   make([]*models.CanonicalEntity, 0, len(entities)),
		byID:       make(map[string]*models.CanonicalEntity, len(entities)),
		byGTIN:     make(map[string]*models.CanonicalEntity),
		byLWIN:     make(map[string]*models.CanonicalEntity),
	}
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		n := normalizers.NormalizeEntity(e)
		s.byID[n.ID] = &n
	}
	for _, e := range s.byID {
		s.entities = append(s.entities, e)
	}
	sort.Slice(s.entities, func(i, j int) bool { return s.entities[i].ID < s.entities[j].ID })
	for _, e := range s.entities {
		for _, g := range e.GTINs {
			if _, taken := s.byGTIN[g]; !taken {
				s.byGTIN[g] = e
			}
		}
		if e.LWIN != "" {
			if _, taken := s.byLWIN[e.LWIN]; !taken {
				s.byLWIN[e.LWIN] = e
			}
		}
	}
	return s
}

func (s *Snapshot) Version() string        { return s.version }
func (s *Snapshot) Seq() int64             { return s.seq }
func (s *Snapshot) BuiltAt() time.Time     { return s.builtAt }
func (s *Snapshot) Similarity() Similarity { return s.similarity }
func (s *Snapshot) Len() int               { return len(s.entities) }

// LookupByIdentifier finds the entity owning a GTIN or LWIN. GTINs are compared in their
// 14-digit form.
func (s *Snapshot) LookupByIdentifier(kind models.IdentifierKind, value string) (*models.CanonicalEntity, bool) {
	var e *models.CanonicalEntity
	switch kind {
	case models.IdentifierGTIN:
		e = s.byGTIN[normalizers.CanonicalGTIN(value)]
	case models.IdentifierLWIN:
		if lwin, ok := normalizers.NormalizeLWIN(value); ok {
			e = s.byLWIN[lwin]
		}
	}
	if e == nil {
		return nil, false
	}
	out := *e
	return &out, true
}

func (s *Snapshot) LookupByID(id string) (*models.CanonicalEntity, bool) {
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	out := *e
	return &out, true
}

type scoredEntity struct {
	entity *models.CanonicalEntity
	score  float64
}

// SearchSimilar returns up to k entities ranked by name similarity to the line. Producer and
// product are weighted 2:3; entities with no name similarity at all are skipped. Ties resolve
// by entity id.
func (s *Snapshot) SearchSimilar(fields models.NormalizedLine, k int) []models.CanonicalEntity {
	if k <= 0 || (fields.Producer == "" && fields.Product == "") {
		return nil
	}
	scored := make([]scoredEntity, 0, len(s.entities))
	for _, e := range s.entities {
		score := s.nameScore(fields, e)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredEntity{entity: e, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].entity.ID < scored[j].entity.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]models.CanonicalEntity, len(scored))
	for i, se := range scored {
		out[i] = *se.entity
	}
	return out
}

func (s *Snapshot) nameScore(fields models.NormalizedLine, e *models.CanonicalEntity) float64 {
	var sum, weight float64
	if fields.Producer != "" && e.ProducerName != "" {
		sum += 2 * s.similarity.Compare(fields.Producer, e.ProducerName)
		weight += 2
	}
	if fields.Product != "" && e.ProductName != "" {
		sum += 3 * s.similarity.Compare(fields.Product, e.ProductName)
		weight += 3
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}
