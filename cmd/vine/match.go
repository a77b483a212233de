package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/vine/pkg/catalog"
	"github.com/Ramsey-B/vine/pkg/models"
)

var (
	matchCatalogPath string
	matchLinesPath   string
	matchWeightsPath string
	matchShowReview  bool

	matchCmd = &cobra.Command{
		Use:   "match",
		Short: "Match a JSON file of import lines against a catalog seed file and print the results",
		Long: `Runs the matcher offline: the catalog is loaded from a seed file, mappings and
review items live in memory for the duration of the run, and one result per line is
written to stdout as JSON in input order.`,
		RunE: runMatch,
	}
)

func init() {
	matchCmd.Flags().StringVar(&matchCatalogPath, "catalog", "", "catalog seed file (canonical entities or winefeed export)")
	matchCmd.Flags().StringVar(&matchLinesPath, "lines", "-", "JSON array of import lines, - for stdin")
	matchCmd.Flags().StringVar(&matchWeightsPath, "weights", "", "YAML weight table replacing the built-in one")
	matchCmd.Flags().BoolVar(&matchShowReview, "review", false, "also print the review queue opened by the run")
	_ = matchCmd.MarkFlagRequired("catalog")
}

type lineOutcome struct {
	ImportLineID string              `json:"import_line_id"`
	Result       *models.MatchResult `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

type matchReport struct {
	IndexVersion string                   `json:"index_version"`
	Results      []lineOutcome            `json:"results"`
	ReviewQueue  []models.ReviewQueueItem `json:"review_queue,omitempty"`
}

func runMatch(cmd *cobra.Command, _ []string) error {
	logger, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()
	ctx := cmd.Context()

	if matchWeightsPath != "" {
		cfg.WeightTablePath = matchWeightsPath
	}

	lines, err := readLines(cmd.InOrStdin(), matchLinesPath)
	if err != nil {
		return err
	}

	index := newIndex(cfg, logger)
	version, err := index.Rebuild(ctx, catalog.FileProvider{Path: matchCatalogPath})
	if err != nil {
		return err
	}

	m, err := buildMatcher(cfg, logger, index, memoryAdapters())
	if err != nil {
		return err
	}

	report := matchReport{IndexVersion: version, Results: make([]lineOutcome, len(lines))}
	for i, outcome := range m.service.MatchBatch(ctx, lines) {
		report.Results[i].ImportLineID = lines[i].ID
		if outcome.Err != nil {
			report.Results[i].Error = outcome.Err.Error()
		}
		if outcome.Result.Status != "" {
			result := outcome.Result
			report.Results[i].Result = &result
		}
	}

	if matchShowReview {
		page, err := m.service.ListReviewQueue(ctx, models.ReviewFilter{Status: models.ReviewStatusOpen}, models.Page{Limit: 500})
		if err != nil {
			return err
		}
		report.ReviewQueue = page.Items
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func readLines(stdin io.Reader, path string) ([]models.ImportLine, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open import lines %s", path)
		}
		defer f.Close()
		r = f
	}

	var lines []models.ImportLine
	if err := json.NewDecoder(r).Decode(&lines); err != nil {
		return nil, errors.Wrap(err, "failed to decode import lines")
	}
	return lines, nil
}
