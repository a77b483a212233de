package catalogentity

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/vine/pkg/database"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

var entityColumns = []string{
	"id", "entity_type", "lwin", "producer_name", "product_name", "vintage",
	"volume_ml", "pack_type", "country", "region", "updated_at",
}

type gtinRow struct {
	GTIN     string `db:"gtin"`
	EntityID string `db:"entity_id"`
}

// Repository handles canonical entity persistence. It is also the catalog provider the
// index is rebuilt from.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new canonical entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces an entity together with its GTINs
func (r *Repository) Upsert(ctx context.Context, e models.CanonicalEntity) (*models.CanonicalEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogentity.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Upsert",
		"entity_id":   e.ID,
		"entity_type": e.EntityType,
	})

	if e.ID == "" || !e.EntityType.Valid() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "entity needs an id and a valid entity_type")
	}
	e.UpdatedAt = time.Now().UTC()

	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		ib := database.NewInsertBuilder()
		ib.InsertInto("canonical_entities")
		ib.Cols(entityColumns...)
		ib.Values(e.ID, e.EntityType, e.LWIN, e.ProducerName, e.ProductName, e.Vintage,
			e.VolumeML, e.PackType, e.Country, e.Region, e.UpdatedAt)
		ub := ib.OnConflict("id")
		ub.Set(
			ub.Assign("entity_type", database.Excluded("entity_type")),
			ub.Assign("lwin", database.Excluded("lwin")),
			ub.Assign("producer_name", database.Excluded("producer_name")),
			ub.Assign("product_name", database.Excluded("product_name")),
			ub.Assign("vintage", database.Excluded("vintage")),
			ub.Assign("volume_ml", database.Excluded("volume_ml")),
			ub.Assign("pack_type", database.Excluded("pack_type")),
			ub.Assign("country", database.Excluded("country")),
			ub.Assign("region", database.Excluded("region")),
			ub.Assign("updated_at", database.Excluded("updated_at")),
			"deleted_at = NULL",
		)

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		del := database.NewDeleteBuilder()
		del.DeleteFrom("canonical_entity_gtins")
		del.Where(del.Equal("entity_id", e.ID))
		query, args = del.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if len(e.GTINs) == 0 {
			return nil
		}
		gb := database.NewInsertBuilder()
		gb.InsertInto("canonical_entity_gtins")
		gb.Cols("gtin", "entity_id")
		for _, gtin := range e.GTINs {
			gb.Values(gtin, e.ID)
		}
		query, args = gb.Build()
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to upsert canonical entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert canonical entity")
	}

	log.Debug("Upserted canonical entity")
	return &e, nil
}

// Get retrieves an entity by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.CanonicalEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogentity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("canonical_entities")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var e models.CanonicalEntity
	if err := r.db.GetContext(ctx, &e, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("canonical entity %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get canonical entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get canonical entity")
	}

	gtins, err := r.loadGTINs(ctx, id)
	if err != nil {
		return nil, err
	}
	e.GTINs = gtins[id]
	return &e, nil
}

// Delete soft-deletes an entity. It leaves the catalog at the next rebuild.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "catalogentity.Repository.Delete")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("canonical_entities")
	ub.Set(ub.Assign("deleted_at", time.Now().UTC()))
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete canonical entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete canonical entity")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("canonical entity %s not found", id))
	}
	return nil
}

// LoadEntities returns every live entity with its GTINs, ordered by id
func (r *Repository) LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogentity.Repository.LoadEntities")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("canonical_entities")
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("id")

	query, args := sb.Build()
	var entities []models.CanonicalEntity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load canonical entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load canonical entities")
	}

	gtins, err := r.loadGTINs(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range entities {
		entities[i].GTINs = gtins[entities[i].ID]
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entities": len(entities),
	}).Debug("Loaded canonical entities")
	return entities, nil
}

// loadGTINs returns GTINs grouped by entity, for one entity or all of them.
func (r *Repository) loadGTINs(ctx context.Context, entityID string) (map[string][]string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("gtin", "entity_id")
	sb.From("canonical_entity_gtins")
	if entityID != "" {
		sb.Where(sb.Equal("entity_id", entityID))
	}
	sb.OrderBy("entity_id", "gtin")

	query, args := sb.Build()
	var rows []gtinRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load entity gtins")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load entity gtins")
	}

	out := make(map[string][]string)
	for _, row := range rows {
		out[row.EntityID] = append(out[row.EntityID], row.GTIN)
	}
	return out, nil
}
