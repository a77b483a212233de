package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ramsey-B/vine/pkg/models"
)

// PolicyConfig holds the decision thresholds.
type PolicyConfig struct {
	HighThreshold   float64 // minimum score for automatic acceptance (default: 0.90)
	MediumThreshold float64 // minimum score for a candidate to be plausible (default: 0.60)
}

// DefaultPolicyConfig returns sensible defaults.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		HighThreshold:   0.90,
		MediumThreshold: 0.60,
	}
}

// Validate checks the thresholds are ordered and within [0,1].
func (c PolicyConfig) Validate() error {
	if c.MediumThreshold < 0 || c.HighThreshold > 1 || c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= medium (%.2f) <= high (%.2f) <= 1", c.MediumThreshold, c.HighThreshold)
	}
	return nil
}

// DecisionPolicy maps scored candidates onto a status.
type DecisionPolicy struct {
	cfg        PolicyConfig
	confidence *ConfidenceScorer
}

func NewDecisionPolicy(cfg PolicyConfig, confidence *ConfidenceScorer) *DecisionPolicy {
	return &DecisionPolicy{cfg: cfg, confidence: confidence}
}

type scored struct {
	generated
	assessment Assessment
}

// Decide scores every generated candidate and classifies the line.
func (p *DecisionPolicy) Decide(line models.NormalizedLine, gen *Generation, indexVersion string) models.MatchResult {
	result := models.MatchResult{
		ImportLineID: line.LineID,
		IndexVersion: indexVersion,
		Candidates:   []models.MatchCandidate{},
	}

	candidates := make([]scored, 0, len(gen.candidates))
	for _, c := range gen.candidates {
		candidates = append(candidates, scored{generated: c, assessment: p.confidence.Assess(c.reasons)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.assessment.Score != b.assessment.Score {
			return a.assessment.Score > b.assessment.Score
		}
		if pa, pb := priority(a.reasons), priority(b.reasons); pa != pb {
			return pa < pb
		}
		return a.entity.ID < b.entity.ID
	})

	for _, c := range candidates {
		result.Candidates = append(result.Candidates, models.MatchCandidate{
			EntityID:   c.entity.ID,
			EntityType: c.entity.EntityType,
			Score:      c.assessment.Score,
			Reasons:    append(models.Reasons(nil), c.reasons...),
		})
	}

	if len(candidates) == 0 {
		result.Status = models.StatusNoMatch
		result.MatchMethod = models.MatchMethodNoMatch
		result.Explanation = p.explain(line, gen, nil, "no candidates")
		return result
	}

	winner := candidates[0]
	result.Confidence = winner.assessment.Score
	result.MatchMethod = methodFor(winner.reasons)

	plausible := 0
	for _, c := range candidates {
		if c.assessment.Score >= p.cfg.MediumThreshold {
			plausible++
		}
	}

	var verdict string
	switch {
	case winner.assessment.HasHardGuardrail():
		result.Status = models.StatusPendingReview
		verdict = "hard guardrail " + joinReasons(winner.assessment.Hard)
	case winner.assessment.Score >= p.cfg.HighThreshold && plausible == 1:
		if winner.assessment.HasSoftGuardrail() {
			result.Status = models.StatusAutoMatchWithGuards
			verdict = "accepted with guards " + joinReasons(winner.assessment.Soft)
		} else {
			result.Status = models.StatusAutoMatch
			verdict = "accepted"
		}
		id := winner.entity.ID
		result.MatchedEntityID = &id
	case plausible > 1:
		result.Status = models.StatusSuggested
		verdict = fmt.Sprintf("%d plausible candidates", plausible)
	default:
		result.Status = models.StatusSuggested
		verdict = fmt.Sprintf("best score %.4f below %.2f", winner.assessment.Score, p.cfg.HighThreshold)
	}

	result.Explanation = p.explain(line, gen, &winner, verdict)
	return result
}

// IsCacheWorthy reports whether an automatic result may be written to the mapping store.
func IsCacheWorthy(result models.MatchResult) bool {
	if result.Status != models.StatusAutoMatch || result.MatchedEntityID == nil {
		return false
	}
	return result.MatchMethod == models.MatchMethodGTINExact || result.MatchMethod == models.MatchMethodLWINExact
}

// priority ranks the stage behind a reason set: identifier-exact, then SKU mapping, then fuzzy.
func priority(reasons models.Reasons) int {
	switch {
	case reasons.HasIdentifier():
		return 0
	case reasons.Has(models.ReasonSKUMappingExists):
		return 1
	default:
		return 2
	}
}

// methodFor names the winning stage. A mapped SKU always reports SKU_EXACT.
func methodFor(reasons models.Reasons) models.MatchMethod {
	switch {
	case reasons.Has(models.ReasonSKUMappingExists):
		return models.MatchMethodSKUExact
	case reasons.Has(models.ReasonGTINExact):
		return models.MatchMethodGTINExact
	case reasons.Has(models.ReasonLWINExact):
		return models.MatchMethodLWINExact
	default:
		return models.MatchMethodCanonicalSuggest
	}
}

func (p *DecisionPolicy) explain(line models.NormalizedLine, gen *Generation, winner *scored, verdict string) string {
	var parts []string
	if winner != nil {
		parts = append(parts, fmt.Sprintf("%s on '%s' score %.4f [%s] (weights %s): %s",
			methodFor(winner.reasons), winner.entity.ID, winner.assessment.Score, winner.reasons, p.confidence.TableVersion(), verdict))
	} else {
		parts = append(parts, verdict)
	}
	parts = append(parts, gen.Notes...)
	if len(line.InvalidIdentifiers) > 0 {
		parts = append(parts, "invalid identifiers: "+strings.Join(line.InvalidIdentifiers, ", "))
	}
	if len(line.SuspectIdentifiers) > 0 {
		parts = append(parts, "suspect identifiers: "+strings.Join(line.SuspectIdentifiers, ", "))
	}
	if len(line.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(line.Missing, ", "))
	}
	return strings.Join(parts, "; ")
}

func joinReasons(rs []models.Reason) string {
	return models.Reasons(rs).String()
}
