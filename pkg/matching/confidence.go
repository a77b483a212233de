package matching

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/vine/pkg/models"
)

// WeightTableVersion identifies the built-in weight table.
const WeightTableVersion = "2026-10.1"

// Guardrail classifies penalty reasons.
type Guardrail string

const (
	GuardrailNone Guardrail = ""
	// GuardrailHard vetoes automatic acceptance regardless of score.
	GuardrailHard Guardrail = "hard"
	// GuardrailSoft downgrades AUTO_MATCH to AUTO_MATCH_WITH_GUARDS.
	GuardrailSoft Guardrail = "soft"
)

// Weight is the contribution of one reason code.
type Weight struct {
	Value     float64   `yaml:"weight"`
	Guardrail Guardrail `yaml:"guardrail,omitempty"`
}

// WeightTable maps every reason code to its weight. Tables are immutable once built.
type WeightTable struct {
	Version string                   `yaml:"version"`
	Weights map[models.Reason]Weight `yaml:"weights"`
}

// DefaultWeightTable returns the built-in table. Identifier reasons dominate; fuzzy-only
// evidence sums to at most 0.85, below the auto-accept threshold.
func DefaultWeightTable() *WeightTable {
	return &WeightTable{
		Version: WeightTableVersion,
		Weights: map[models.Reason]Weight{
			models.ReasonGTINExact:           {Value: 0.95},
			models.ReasonLWINExact:           {Value: 0.95},
			models.ReasonSKUMappingExists:    {Value: 1.00},
			models.ReasonProducerExact:       {Value: 0.25},
			models.ReasonProducerFuzzyStrong: {Value: 0.18},
			models.ReasonProductExact:        {Value: 0.30},
			models.ReasonProductFuzzyStrong:  {Value: 0.22},
			models.ReasonVintageExact:        {Value: 0.15},
			models.ReasonVolumeExact:         {Value: 0.10},
			models.ReasonPackTypeExact:       {Value: 0.05},
			models.ReasonVintageMismatch:     {Value: -0.30, Guardrail: GuardrailHard},
			models.ReasonVolumeMismatch:      {Value: -0.25, Guardrail: GuardrailHard},
			models.ReasonMissingVintage:      {Value: -0.05, Guardrail: GuardrailSoft},
			models.ReasonPackTypeMismatch:    {Value: -0.05, Guardrail: GuardrailSoft},
		},
	}
}

// Validate checks the table covers the whole vocabulary and that only penalties are guardrails.
func (t *WeightTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("weight table has no version")
	}
	for _, r := range models.AllReasons() {
		w, ok := t.Weights[r]
		if !ok {
			return fmt.Errorf("weight table %s is missing reason %s", t.Version, r)
		}
		switch w.Guardrail {
		case GuardrailNone:
			if w.Value < 0 {
				return fmt.Errorf("reason %s has a negative weight but no guardrail", r)
			}
		case GuardrailHard, GuardrailSoft:
			if w.Value > 0 {
				return fmt.Errorf("guardrail reason %s must not have a positive weight", r)
			}
		default:
			return fmt.Errorf("reason %s has unknown guardrail %q", r, w.Guardrail)
		}
	}
	for r := range t.Weights {
		if !r.Valid() {
			return fmt.Errorf("weight table %s names unknown reason %s", t.Version, r)
		}
	}
	return nil
}

// LoadWeightTable reads a complete YAML weight table.
func LoadWeightTable(r io.Reader) (*WeightTable, error) {
	var t WeightTable
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(err, "failed to decode weight table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadWeightTableFile reads a YAML weight table from disk.
func LoadWeightTableFile(path string) (*WeightTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open weight table %s", path)
	}
	defer f.Close()
	return LoadWeightTable(f)
}

// Assessment is the scored view of one candidate's reasons.
type Assessment struct {
	Score    float64
	Positive float64 // sum of positive weights, before penalties
	Hard     []models.Reason
	Soft     []models.Reason
}

func (a Assessment) HasHardGuardrail() bool { return len(a.Hard) > 0 }
func (a Assessment) HasSoftGuardrail() bool { return len(a.Soft) > 0 }

// ConfidenceScorer converts reason sets into scores. It depends only on its weight table.
type ConfidenceScorer struct {
	table *WeightTable
}

func NewConfidenceScorer(table *WeightTable) *ConfidenceScorer {
	if table == nil {
		table = DefaultWeightTable()
	}
	return &ConfidenceScorer{table: table}
}

func (c *ConfidenceScorer) TableVersion() string {
	return c.table.Version
}

// Assess scores a reason set: positive weights minus penalties, clamped to [0,1] and rounded
// to four decimals.
func (c *ConfidenceScorer) Assess(reasons models.Reasons) Assessment {
	var a Assessment
	var penalties float64
	// reasons are kept in canonical order, so the float sum is order-stable
	for _, r := range reasons {
		w := c.table.Weights[r]
		switch w.Guardrail {
		case GuardrailHard:
			a.Hard = append(a.Hard, r)
		case GuardrailSoft:
			a.Soft = append(a.Soft, r)
		}
		if w.Value >= 0 {
			a.Positive += w.Value
		} else {
			penalties += -w.Value
		}
	}
	a.Positive = round4(a.Positive)
	a.Score = round4(math.Min(1, math.Max(0, a.Positive-penalties)))
	return a
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
