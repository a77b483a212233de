package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
)

// ErrProcessorStopped is returned when a line is offered to a stopped worker pool.
var ErrProcessorStopped = stderrors.New("match processor is stopped")

// ValidationError reports a malformed import line. It is recorded against the line and never
// aborts the rest of a batch.
type ValidationError struct {
	LineID  string
	Fields  []string
	Message string
}

func NewValidationError(lineID, msg string, fields ...string) *ValidationError {
	return &ValidationError{LineID: lineID, Message: msg, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("import line '%s' is invalid: %s", e.LineID, e.Message)
	}
	return fmt.Sprintf("import line '%s' is invalid (%s): %s", e.LineID, strings.Join(e.Fields, ", "), e.Message)
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("import_line_id", e.LineID).AddMetaValue("fields", strings.Join(e.Fields, ","))
}

// IndexUnavailableError means the catalog could not be consulted within the wait budget. The
// line is deferred, not classified.
type IndexUnavailableError struct {
	Reason string
	Waited time.Duration
}

func NewIndexUnavailableError(reason string, waited time.Duration) *IndexUnavailableError {
	return &IndexUnavailableError{Reason: reason, Waited: waited}
}

func (e *IndexUnavailableError) Error() string {
	if e.Waited > 0 {
		return fmt.Sprintf("catalog index unavailable after %s: %s", e.Waited, e.Reason)
	}
	return "catalog index unavailable: " + e.Reason
}

func (e *IndexUnavailableError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusServiceUnavailable, e.Error()).AddMetaValue("retryable", "true")
}

// MappingConflictError is a failed compare-and-set on a SKU mapping. It carries both targets so
// a reviewer can choose an explicit replacement.
type MappingConflictError struct {
	SupplierID        string
	SupplierSKU       string
	CurrentEntityID   string
	AttemptedEntityID string
}

func NewMappingConflictError(supplierID, sku, current, attempted string) *MappingConflictError {
	return &MappingConflictError{
		SupplierID:        supplierID,
		SupplierSKU:       sku,
		CurrentEntityID:   current,
		AttemptedEntityID: attempted,
	}
}

func (e *MappingConflictError) Error() string {
	return fmt.Sprintf("sku mapping %s:%s already points at '%s', refusing to map it to '%s'",
		e.SupplierID, e.SupplierSKU, e.CurrentEntityID, e.AttemptedEntityID)
}

func (e *MappingConflictError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("supplier_id", e.SupplierID).
		AddMetaValue("supplier_sku", e.SupplierSKU).
		AddMetaValue("current_entity_id", e.CurrentEntityID).
		AddMetaValue("attempted_entity_id", e.AttemptedEntityID)
}

// AlreadyResolvedError is returned to the loser of a resolution race, or to any later attempt.
type AlreadyResolvedError struct {
	ItemID     string
	Resolution string
	ResolvedBy string
}

func NewAlreadyResolvedError(itemID, resolution, resolvedBy string) *AlreadyResolvedError {
	return &AlreadyResolvedError{ItemID: itemID, Resolution: resolution, ResolvedBy: resolvedBy}
}

func (e *AlreadyResolvedError) Error() string {
	if e.Resolution == "" {
		return fmt.Sprintf("review item '%s' is already resolved", e.ItemID)
	}
	return fmt.Sprintf("review item '%s' is already resolved as %s", e.ItemID, e.Resolution)
}

func (e *AlreadyResolvedError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("review_item_id", e.ItemID).
		AddMetaValue("resolution", e.Resolution).
		AddMetaValue("resolved_by", e.ResolvedBy)
}

// InvalidCandidateReferenceError is a CONFIRMED decision naming an entity outside the item's
// candidate snapshot without the override flag.
type InvalidCandidateReferenceError struct {
	ItemID   string
	EntityID string
}

func NewInvalidCandidateReferenceError(itemID, entityID string) *InvalidCandidateReferenceError {
	return &InvalidCandidateReferenceError{ItemID: itemID, EntityID: entityID}
}

func (e *InvalidCandidateReferenceError) Error() string {
	return fmt.Sprintf("entity '%s' is not a candidate of review item '%s'; set override to confirm it anyway", e.EntityID, e.ItemID)
}

func (e *InvalidCandidateReferenceError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).
		AddMetaValue("review_item_id", e.ItemID).
		AddMetaValue("entity_id", e.EntityID)
}

type httpConvertible interface {
	ToHTTPError() *httperror.HTTPError
}

// ToHTTPError maps any error onto an httperror, defaulting to 500.
func ToHTTPError(err error) *httperror.HTTPError {
	if err == nil {
		return nil
	}
	var conv httpConvertible
	if stderrors.As(err, &conv) {
		return conv.ToHTTPError()
	}
	if httperror.IsHTTPError(err) {
		return httperror.ToHTTPError(err)
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// IsRetryable reports whether the caller should retry the operation with backoff. Nothing in
// the engine retries on its own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var unavailable *IndexUnavailableError
	if stderrors.As(err, &unavailable) {
		return true
	}
	var conv httpConvertible
	if stderrors.As(err, &conv) {
		return false
	}
	if httperror.IsHTTPError(err) {
		return httperror.GetStatusCode(err) >= http.StatusInternalServerError
	}
	return false
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

func IsIndexUnavailable(err error) bool {
	var target *IndexUnavailableError
	return stderrors.As(err, &target)
}

func IsMappingConflict(err error) bool {
	var target *MappingConflictError
	return stderrors.As(err, &target)
}

func IsAlreadyResolved(err error) bool {
	var target *AlreadyResolvedError
	return stderrors.As(err, &target)
}

func IsInvalidCandidateReference(err error) bool {
	var target *InvalidCandidateReferenceError
	return stderrors.As(err, &target)
}

// As is errors.As, re-exported so callers importing this package need not alias the stdlib one.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
