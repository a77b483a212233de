package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/Ramsey-B/vine/pkg/catalog"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/models"
)

// GeneratorConfig tunes the candidate cascade.
type GeneratorConfig struct {
	FuzzyStrongThreshold float64 // minimum name similarity for a *_FUZZY_STRONG reason (default: 0.85)
	CandidateFloor       float64 // minimum positive evidence for a fuzzy candidate (default: 0.35)
	SearchTopK           int     // entities requested from the similarity search (default: 10)
	CrossValidate        bool    // also run fuzzy search when an identifier matched
}

// DefaultGeneratorConfig returns sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		FuzzyStrongThreshold: 0.85,
		CandidateFloor:       0.35,
		SearchTopK:           10,
	}
}

// Stage names the cascade stage that contributed a candidate.
type Stage int

const (
	StageIdentifier Stage = iota
	StageSKUMapping
	StageFuzzy
)

// generated is a candidate before scoring.
type generated struct {
	entity  models.CanonicalEntity
	reasons models.Reasons
	stage   Stage
}

// Generation is the cascade output for one line.
type Generation struct {
	candidates []generated
	// Notes are deterministic audit remarks added to the explanation.
	Notes []string
}

// CandidateGenerator runs the ordered match cascade against one pinned catalog snapshot.
type CandidateGenerator struct {
	cfg        GeneratorConfig
	confidence *ConfidenceScorer
}

func NewCandidateGenerator(cfg GeneratorConfig, confidence *ConfidenceScorer) *CandidateGenerator {
	def := DefaultGeneratorConfig()
	if cfg.FuzzyStrongThreshold <= 0 {
		cfg.FuzzyStrongThreshold = def.FuzzyStrongThreshold
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = def.SearchTopK
	}
	if cfg.CandidateFloor < 0 {
		cfg.CandidateFloor = 0
	}
	return &CandidateGenerator{cfg: cfg, confidence: confidence}
}

// Generate runs the cascade:
//  1. GTIN exact (each, then case)
//  2. LWIN exact
//  3. SKU mapping, which short-circuits everything else when its entity is in the snapshot.
//     Reviewer mappings win over identifiers; automatic ones only apply when no identifier matched.
//  4. fuzzy search, when nothing above matched or cross-validation is on
func (g *CandidateGenerator) Generate(ctx context.Context, index catalog.Index, mappings mappingstore.Store, line models.NormalizedLine) (*Generation, error) {
	gen := &Generation{}
	byID := map[string]*generated{}
	add := func(e models.CanonicalEntity, stage Stage, reasons ...models.Reason) *generated {
		c, ok := byID[e.ID]
		if !ok {
			c = &generated{entity: e, stage: stage}
			byID[e.ID] = c
		}
		if stage < c.stage {
			c.stage = stage
		}
		for _, r := range reasons {
			c.reasons = c.reasons.Add(r)
		}
		return c
	}

	for _, gtin := range line.GTINs {
		if e, ok := index.LookupByIdentifier(models.IdentifierGTIN, gtin); ok {
			add(*e, StageIdentifier, models.ReasonGTINExact)
		}
	}
	if line.LWIN != "" {
		if e, ok := index.LookupByIdentifier(models.IdentifierLWIN, line.LWIN); ok {
			add(*e, StageIdentifier, models.ReasonLWINExact)
		}
	}

	key := models.MappingKey{SupplierID: line.SupplierID, SupplierSKU: line.SupplierSKU}
	if key.Valid() && mappings != nil {
		mapping, err := mappings.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		// a mapping written by an automatic match only stands in for identifiers that are gone;
		// while they still resolve, the line classifies exactly as it did when the mapping was made
		if mapping != nil && mapping.Source == models.MappingSourceAutoMatch && len(byID) > 0 {
			mapping = nil
		}
		if mapping != nil {
			if e, ok := index.LookupByID(mapping.EntityID); ok {
				c := add(*e, StageSKUMapping, models.ReasonSKUMappingExists)
				for id := range byID {
					if id != e.ID {
						gen.Notes = append(gen.Notes, fmt.Sprintf("identifier match on '%s' ignored: sku %s is mapped to '%s'", id, key, e.ID))
					}
				}
				sort.Strings(gen.Notes)
				gen.candidates = []generated{*c}
				return gen, nil
			}
			gen.Notes = append(gen.Notes, fmt.Sprintf("sku %s is mapped to '%s', which is not in catalog %s", key, mapping.EntityID, index.Version()))
		}
	}

	identifierMatched := len(byID) > 0
	for _, c := range byID {
		c.reasons = g.compareAttributes(index.Similarity(), line, c.entity, c.reasons)
	}

	if !identifierMatched || g.cfg.CrossValidate {
		for _, e := range index.SearchSimilar(line, g.cfg.SearchTopK) {
			if _, seen := byID[e.ID]; seen {
				continue
			}
			reasons := g.compareAttributes(index.Similarity(), line, e, nil)
			if g.confidence.Assess(reasons).Positive < g.cfg.CandidateFloor {
				continue
			}
			add(e, StageFuzzy, reasons...)
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		gen.candidates = append(gen.candidates, *byID[id])
	}
	return gen, nil
}

// compareAttributes adds one reason per comparable axis. Axes missing on either side yield no
// reason, except vintage which reports MISSING_VINTAGE when it cannot be compared.
func (g *CandidateGenerator) compareAttributes(sim catalog.Similarity, line models.NormalizedLine, e models.CanonicalEntity, reasons models.Reasons) models.Reasons {
	if r, ok := g.nameReason(sim, line.Producer, e.ProducerName, models.ReasonProducerExact, models.ReasonProducerFuzzyStrong); ok {
		reasons = reasons.Add(r)
	}
	if r, ok := g.nameReason(sim, line.Product, e.ProductName, models.ReasonProductExact, models.ReasonProductFuzzyStrong); ok {
		reasons = reasons.Add(r)
	}

	// a producer family groups every bottling, so bottling attributes do not apply
	if e.IsProducerFamily() {
		return reasons
	}

	switch {
	case line.Vintage != nil && e.Vintage != nil:
		if *line.Vintage == *e.Vintage {
			reasons = reasons.Add(models.ReasonVintageExact)
		} else {
			reasons = reasons.Add(models.ReasonVintageMismatch)
		}
	case line.NonVintage && e.Vintage == nil:
		reasons = reasons.Add(models.ReasonVintageExact)
	default:
		reasons = reasons.Add(models.ReasonMissingVintage)
	}

	if line.VolumeML > 0 && e.VolumeML > 0 {
		if line.VolumeML == e.VolumeML {
			reasons = reasons.Add(models.ReasonVolumeExact)
		} else {
			reasons = reasons.Add(models.ReasonVolumeMismatch)
		}
	}

	if line.PackType != "" && e.PackType != "" {
		if line.PackType == e.PackType {
			reasons = reasons.Add(models.ReasonPackTypeExact)
		} else {
			reasons = reasons.Add(models.ReasonPackTypeMismatch)
		}
	}
	return reasons
}

func (g *CandidateGenerator) nameReason(sim catalog.Similarity, a, b string, exact, fuzzy models.Reason) (models.Reason, bool) {
	if a == "" || b == "" {
		return "", false
	}
	if a == b {
		return exact, true
	}
	if sim.Compare != nil && sim.Compare(a, b) >= g.cfg.FuzzyStrongThreshold {
		return fuzzy, true
	}
	return "", false
}
