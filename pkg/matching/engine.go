// Package matching reconciles supplier import lines with the canonical catalog: it generates
// candidates, scores their reason codes and classifies the line.
package matching

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/vine/pkg/catalog"
	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/mappingstore"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/normalizers"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// EngineConfig contains configuration for the match engine
type EngineConfig struct {
	Generator   GeneratorConfig
	Policy      PolicyConfig
	LenientGTIN bool // match on GTINs whose check digit fails
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Generator: DefaultGeneratorConfig(),
		Policy:    DefaultPolicyConfig(),
	}
}

// Engine evaluates one line against one pinned catalog snapshot. It holds no mutable state:
// the result depends only on the line, the snapshot and the mapping store contents.
type Engine struct {
	logger     ectologger.Logger
	config     EngineConfig
	confidence *ConfidenceScorer
	generator  *CandidateGenerator
	policy     *DecisionPolicy
}

// NewEngine creates a new match engine. A nil weight table selects the built-in one.
func NewEngine(logger ectologger.Logger, table *WeightTable, config EngineConfig) (*Engine, error) {
	if table == nil {
		table = DefaultWeightTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if config.Policy == (PolicyConfig{}) {
		config.Policy = DefaultPolicyConfig()
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	confidence := NewConfidenceScorer(table)
	return &Engine{
		logger:     logger,
		config:     config,
		confidence: confidence,
		generator:  NewCandidateGenerator(config.Generator, confidence),
		policy:     NewDecisionPolicy(config.Policy, confidence),
	}, nil
}

// WeightTableVersion returns the version of the weight table in use.
func (e *Engine) WeightTableVersion() string {
	return e.confidence.TableVersion()
}

// Normalize derives the comparison record for a line with the engine's identifier options.
func (e *Engine) Normalize(line models.ImportLine) models.NormalizedLine {
	return normalizers.NormalizeLine(line, normalizers.LineOptions{LenientGTIN: e.config.LenientGTIN})
}

// Evaluate runs normalization, the candidate cascade and the decision policy for one line.
func (e *Engine) Evaluate(ctx context.Context, index catalog.Index, mappings mappingstore.Store, line models.ImportLine) (models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Evaluate")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithFields(map[string]any{
		"import_line_id": line.ID,
		"index_version":  index.Version(),
	})

	normalized := e.Normalize(line)

	gen, err := e.generator.Generate(ctx, index, mappings, normalized)
	if err != nil {
		log.WithError(err).Error("Failed to generate candidates")
		tracing.RecordError(span, err)
		return models.MatchResult{}, err
	}

	result := e.policy.Decide(normalized, gen, index.Version())

	log.WithFields(map[string]any{
		"status":     result.Status,
		"method":     result.MatchMethod,
		"confidence": result.Confidence,
		"candidates": len(result.Candidates),
	}).Debug("Line evaluated")

	return result, nil
}
