package reviewitem

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/vine/pkg/database"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

var itemColumns = []string{
	"id", "import_id", "import_line_id", "supplier_id", "supplier_sku", "import_line",
	"status", "match_status", "candidates", "resolution", "resolved_entity_id",
	"override", "resolved_by", "resolved_at", "note", "created_at",
}

// itemRow is the table shape of a review queue item.
type itemRow struct {
	ID               string                                  `db:"id"`
	ImportID         string                                  `db:"import_id"`
	ImportLineID     string                                  `db:"import_line_id"`
	SupplierID       string                                  `db:"supplier_id"`
	SupplierSKU      string                                  `db:"supplier_sku"`
	ImportLine       database.JSONB[models.ImportLine]       `db:"import_line"`
	Status           models.ReviewStatus                     `db:"status"`
	MatchStatus      models.Status                           `db:"match_status"`
	Candidates       database.JSONB[[]models.MatchCandidate] `db:"candidates"`
	Resolution       *models.Resolution                      `db:"resolution"`
	ResolvedEntityID *string                                 `db:"resolved_entity_id"`
	Override         bool                                    `db:"override"`
	ResolvedBy       *string                                 `db:"resolved_by"`
	ResolvedAt       *time.Time                              `db:"resolved_at"`
	Note             string                                  `db:"note"`
	CreatedAt        time.Time                               `db:"created_at"`
}

func (r itemRow) toModel() models.ReviewQueueItem {
	candidates := r.Candidates.Data
	if candidates == nil {
		candidates = []models.MatchCandidate{}
	}
	return models.ReviewQueueItem{
		ID:               r.ID,
		ImportID:         r.ImportID,
		ImportLineID:     r.ImportLineID,
		SupplierID:       r.SupplierID,
		SupplierSKU:      r.SupplierSKU,
		ImportLine:       r.ImportLine.Data,
		Status:           r.Status,
		MatchStatus:      r.MatchStatus,
		Candidates:       candidates,
		Resolution:       r.Resolution,
		ResolvedEntityID: r.ResolvedEntityID,
		Override:         r.Override,
		ResolvedBy:       r.ResolvedBy,
		ResolvedAt:       r.ResolvedAt,
		Note:             r.Note,
		CreatedAt:        r.CreatedAt,
	}
}

// Repository is the Postgres review queue persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new review item repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new OPEN item, or returns the line's existing OPEN item
func (r *Repository) Create(ctx context.Context, item models.ReviewQueueItem) (models.ReviewQueueItem, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":         "Create",
		"review_item_id": item.ID,
		"import_line_id": item.ImportLineID,
	})

	item.Status = models.ReviewStatusOpen
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("review_queue_items")
	ib.Cols("id", "import_id", "import_line_id", "supplier_id", "supplier_sku", "import_line",
		"status", "match_status", "candidates", "override", "note", "created_at")
	ib.Values(item.ID, item.ImportID, item.ImportLineID, item.SupplierID, item.SupplierSKU,
		database.NewJSONB(item.ImportLine), item.Status, item.MatchStatus,
		database.NewJSONB(item.Candidates), false, "", item.CreatedAt)
	// the partial unique index on open items makes a second OPEN item for the line a no-op
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to create review item")
		return models.ReviewQueueItem{}, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review item")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		log.Info("Created review item")
		return item, true, nil
	}

	existing, err := r.FindOpenByLine(ctx, item.ImportLineID)
	if err != nil {
		return models.ReviewQueueItem{}, false, err
	}
	if existing == nil {
		// resolved between the insert and the read
		return models.ReviewQueueItem{}, false, httperror.NewHTTPError(http.StatusConflict, "review item for the line changed concurrently")
	}
	return *existing, false, nil
}

// Get returns an item by ID, or nil
func (r *Repository) Get(ctx context.Context, id string) (*models.ReviewQueueItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemColumns...)
	sb.From("review_queue_items")
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb)
}

// FindOpenByLine returns the OPEN item of an import line, or nil
func (r *Repository) FindOpenByLine(ctx context.Context, importLineID string) (*models.ReviewQueueItem, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.FindOpenByLine")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemColumns...)
	sb.From("review_queue_items")
	sb.Where(
		sb.Equal("import_line_id", importLineID),
		sb.Equal("status", models.ReviewStatusOpen),
	)

	return r.getOne(ctx, sb)
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.ReviewQueueItem, error) {
	query, args := sb.Build()
	var row itemRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review item")
	}
	item := row.toModel()
	return &item, nil
}

// List returns one page of items ordered by creation, and the total count
func (r *Repository) List(ctx context.Context, filter models.ReviewFilter, page models.Page) ([]models.ReviewQueueItem, int, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.List")
	defer span.End()

	page = page.Normalize()

	where := func(equal func(field string, value any) string) []string {
		var exprs []string
		if filter.ImportID != "" {
			exprs = append(exprs, equal("import_id", filter.ImportID))
		}
		if filter.Status != "" {
			exprs = append(exprs, equal("status", filter.Status))
		}
		if filter.SupplierID != "" {
			exprs = append(exprs, equal("supplier_id", filter.SupplierID))
		}
		return exprs
	}

	// Count total
	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("review_queue_items")
	if exprs := where(countSb.Equal); len(exprs) > 0 {
		countSb.Where(exprs...)
	}

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count review items")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count review items")
	}

	// Fetch page
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(itemColumns...)
	sb.From("review_queue_items")
	if exprs := where(sb.Equal); len(exprs) > 0 {
		sb.Where(exprs...)
	}
	sb.OrderBy("created_at", "id")
	sb.Limit(page.Limit).Offset(page.Offset)

	query, args := sb.Build()
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list review items")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review items")
	}

	items := make([]models.ReviewQueueItem, len(rows))
	for i, row := range rows {
		items[i] = row.toModel()
	}
	return items, total, nil
}

// MarkResolved writes the resolution if the stored item is still OPEN
func (r *Repository) MarkResolved(ctx context.Context, item models.ReviewQueueItem) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.MarkResolved")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("review_queue_items")
	ub.Set(
		ub.Assign("status", models.ReviewStatusResolved),
		ub.Assign("resolution", item.Resolution),
		ub.Assign("resolved_entity_id", item.ResolvedEntityID),
		ub.Assign("override", item.Override),
		ub.Assign("resolved_by", item.ResolvedBy),
		ub.Assign("resolved_at", item.ResolvedAt),
		ub.Assign("note", item.Note),
	)
	ub.Where(
		ub.Equal("id", item.ID),
		ub.Equal("status", models.ReviewStatusOpen),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"review_item_id": item.ID,
		}).Error("Failed to resolve review item")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve review item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve review item")
	}
	return n == 1, nil
}

// CountRejections counts REJECTED resolutions recorded for a supplier SKU
func (r *Repository) CountRejections(ctx context.Context, key models.MappingKey) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewitem.Repository.CountRejections")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("review_queue_items")
	sb.Where(
		sb.Equal("supplier_id", key.SupplierID),
		sb.Equal("supplier_sku", key.SupplierSKU),
		sb.Equal("resolution", models.ResolutionRejected),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count rejections")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count rejections")
	}
	return count, nil
}
