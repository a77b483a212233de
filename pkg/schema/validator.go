// Package schema validates the structure of incoming import lines before they are matched.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError represents a single validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validating an import line
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Err converts an invalid result into a ValidationError for the line, or nil when valid.
func (r ValidationResult) Err(lineID string) error {
	if r.Valid {
		return nil
	}
	fields := make([]string, len(r.Errors))
	msgs := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		fields[i] = fe.Field
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return errors.NewValidationError(lineID, strings.Join(msgs, "; "), fields...)
}

// ValidateImportLine checks the struct tags of the line, that raw_data is JSON and that the
// line carries at least one field the matcher can use.
func ValidateImportLine(line models.ImportLine) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []FieldError{}}
	fail := func(field, msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, FieldError{Field: field, Message: msg})
	}

	if err := validate.Struct(line); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fail(jsonName(fe.StructField()), describe(fe))
			}
		} else {
			fail("line", err.Error())
		}
	}

	if len(line.RawData) > 0 && !json.Valid(line.RawData) {
		fail("raw_data", "is not valid JSON")
	}

	if strings.TrimSpace(line.SupplierSKU) == "" &&
		strings.TrimSpace(line.GTINEach) == "" &&
		strings.TrimSpace(line.GTINCase) == "" &&
		strings.TrimSpace(line.LWIN) == "" &&
		strings.TrimSpace(line.ProducerName) == "" &&
		strings.TrimSpace(line.ProductName) == "" {
		fail("line", "has no identifier and no name to match on")
	}

	return result
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field is missing"
	case "len":
		return fmt.Sprintf("must be %s characters long", fe.Param())
	case "alpha":
		return "must contain letters only"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed rule '%s' with value '%v'", fe.Tag(), fe.Value())
	}
}

var jsonNames = map[string]string{
	"ID":           "id",
	"SupplierID":   "supplier_id",
	"VolumeML":     "volume_ml",
	"ABVPercent":   "abv_percent",
	"UnitsPerCase": "units_per_case",
	"Currency":     "currency",
}

func jsonName(field string) string {
	if n, ok := jsonNames[field]; ok {
		return n
	}
	return strings.ToLower(field)
}
