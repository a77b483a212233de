package matchresult

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/vine/pkg/database"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

type recordRow struct {
	Sequence   int64                              `db:"sequence"`
	RecordedAt time.Time                          `db:"recorded_at"`
	Result     database.JSONB[models.MatchResult] `db:"result"`
}

func (r recordRow) toModel() models.MatchRecord {
	return models.MatchRecord{
		Sequence:   r.Sequence,
		RecordedAt: r.RecordedAt,
		Result:     r.Result.Data,
	}
}

// Repository is the append-only Postgres match history. The full result is kept as JSON;
// the scalar columns exist for reporting queries.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match result repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new record for the line
func (r *Repository) Append(ctx context.Context, result models.MatchResult) (models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Append")
	defer span.End()

	if err := result.Validate(); err != nil {
		return models.MatchRecord{}, errors.NewValidationError(result.ImportLineID, err.Error())
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":         "Append",
		"import_line_id": result.ImportLineID,
		"status":         result.Status,
	})

	recordedAt := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto("match_results")
	ib.Cols("import_line_id", "status", "match_method", "confidence", "matched_entity_id", "index_version", "result", "recorded_at")
	ib.Values(result.ImportLineID, result.Status, result.MatchMethod,
		decimal.NewFromFloat(result.Confidence).Round(4), result.MatchedEntityID,
		result.IndexVersion, database.NewJSONB(result), recordedAt)
	ib.SQL("RETURNING sequence")

	query, args := ib.Build()
	var sequence int64
	if err := r.db.GetContext(ctx, &sequence, query, args...); err != nil {
		log.WithError(err).Error("Failed to append match result")
		return models.MatchRecord{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append match result")
	}

	return models.MatchRecord{Sequence: sequence, RecordedAt: recordedAt, Result: result}, nil
}

// Current returns the latest record of the line, or nil
func (r *Repository) Current(ctx context.Context, importLineID string) (*models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Current")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("sequence", "recorded_at", "result")
	sb.From("match_results")
	sb.Where(sb.Equal("import_line_id", importLineID))
	sb.OrderBy("sequence DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get current match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get current match result")
	}
	record := row.toModel()
	return &record, nil
}

// History returns every record of the line, oldest first
func (r *Repository) History(ctx context.Context, importLineID string) ([]models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.History")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("sequence", "recorded_at", "result")
	sb.From("match_results")
	sb.Where(sb.Equal("import_line_id", importLineID))
	sb.OrderBy("sequence")

	query, args := sb.Build()
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	records := make([]models.MatchRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toModel()
	}
	return records, nil
}
