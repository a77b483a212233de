package skumapping

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
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

var mappingColumns = []string{"supplier_id", "supplier_sku", "entity_id", "source", "created_at", "updated_at"}

// Repository is the Postgres SKU mapping store. Writes are compare-and-set: a key that
// already points elsewhere is never silently overwritten.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

// NewRepository creates a new SKU mapping repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the mapping for a key, or nil
func (r *Repository) Get(ctx context.Context, key models.MappingKey) (*models.SkuMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "skumapping.Repository.Get")
	defer span.End()

	return r.get(ctx, r.db, key, false)
}

func (r *Repository) get(ctx context.Context, q database.Querier, key models.MappingKey, forUpdate bool) (*models.SkuMapping, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(mappingColumns...)
	sb.From("sku_mappings")
	sb.Where(
		sb.Equal("supplier_id", key.SupplierID),
		sb.Equal("supplier_sku", key.SupplierSKU),
	)
	if forUpdate {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var m models.SkuMapping
	if err := q.GetContext(ctx, &m, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"supplier_id":  key.SupplierID,
			"supplier_sku": key.SupplierSKU,
		}).Error("Failed to get sku mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get sku mapping")
	}
	return &m, nil
}

// Put creates the mapping when the key is free
func (r *Repository) Put(ctx context.Context, m models.SkuMapping) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "skumapping.Repository.Put")
	defer span.End()

	if !m.Valid() || m.EntityID == "" {
		return false, errors.NewValidationError("", "mapping needs supplier_id, supplier_sku and entity_id", "supplier_id", "supplier_sku", "entity_id")
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Put",
		"supplier_id":  m.SupplierID,
		"supplier_sku": m.SupplierSKU,
		"entity_id":    m.EntityID,
	})

	now := r.now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto("sku_mappings")
	ib.Cols(mappingColumns...)
	ib.Values(m.SupplierID, m.SupplierSKU, m.EntityID, m.Source, now, now)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to create sku mapping")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create sku mapping")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		log.Info("Created sku mapping")
		return true, nil
	}

	existing, err := r.get(ctx, r.db, m.MappingKey, false)
	if err != nil {
		return false, err
	}
	if existing == nil {
		// deleted between the insert and the read; treat as a lost race
		return false, errors.NewMappingConflictError(m.SupplierID, m.SupplierSKU, "", m.EntityID)
	}
	if existing.EntityID == m.EntityID {
		return false, nil
	}
	return false, errors.NewMappingConflictError(m.SupplierID, m.SupplierSKU, existing.EntityID, m.EntityID)
}

// Replace repoints the key, provided it currently points at expectedEntityID
func (r *Repository) Replace(ctx context.Context, m models.SkuMapping, expectedEntityID string) (*models.SkuMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "skumapping.Repository.Replace")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Replace",
		"supplier_id":  m.SupplierID,
		"supplier_sku": m.SupplierSKU,
		"entity_id":    m.EntityID,
		"expected":     expectedEntityID,
	})

	var previous *models.SkuMapping
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		existing, err := r.get(ctx, tx, m.MappingKey, true)
		if err != nil {
			return err
		}
		if existing == nil || existing.EntityID != expectedEntityID {
			current := ""
			if existing != nil {
				current = existing.EntityID
			}
			return errors.NewMappingConflictError(m.SupplierID, m.SupplierSKU, current, m.EntityID)
		}
		previous = existing
		if existing.EntityID == m.EntityID && existing.Source == m.Source {
			return nil
		}

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("sku_mappings")
		ub.Set(
			ub.Assign("entity_id", m.EntityID),
			ub.Assign("source", m.Source),
			ub.Assign("updated_at", r.now().UTC()),
		)
		ub.Where(
			ub.Equal("supplier_id", m.SupplierID),
			ub.Equal("supplier_sku", m.SupplierSKU),
			ub.Equal("entity_id", expectedEntityID),
		)
		query, args := ub.Build()
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		if errors.IsMappingConflict(err) || httperror.IsHTTPError(err) {
			return nil, err
		}
		log.WithError(err).Error("Failed to replace sku mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace sku mapping")
	}

	log.Info("Replaced sku mapping")
	return previous, nil
}
