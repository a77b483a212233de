package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/models"
)

func validLine() models.ImportLine {
	return models.ImportLine{
		ID:           "line-1",
		SupplierID:   "sup-1",
		SupplierSKU:  "SKU-1",
		ProducerName: "Château Test",
	}
}

func TestValidateImportLine_RequiredFields(t *testing.T) {
	t.Run("valid line", func(t *testing.T) {
		result := ValidateImportLine(validLine())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.NoError(t, result.Err("line-1"))
	})

	t.Run("missing supplier", func(t *testing.T) {
		line := validLine()
		line.SupplierID = ""
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "supplier_id", result.Errors[0].Field)
	})

	t.Run("missing id", func(t *testing.T) {
		line := validLine()
		line.ID = ""
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)
		assert.Equal(t, "id", result.Errors[0].Field)
	})
}

func TestValidateImportLine_Fields(t *testing.T) {
	t.Run("currency must be three letters", func(t *testing.T) {
		line := validLine()
		line.Currency = "EURO"
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)
		assert.Equal(t, "currency", result.Errors[0].Field)

		line.Currency = "SEK"
		assert.True(t, ValidateImportLine(line).Valid)
	})

	t.Run("abv within range", func(t *testing.T) {
		line := validLine()
		abv := 140.0
		line.ABVPercent = &abv
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)
		assert.Equal(t, "abv_percent", result.Errors[0].Field)
	})

	t.Run("raw data must be JSON", func(t *testing.T) {
		line := validLine()
		line.RawData = json.RawMessage(`{"namn":`)
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)
		assert.Equal(t, "raw_data", result.Errors[0].Field)
	})

	t.Run("nothing to match on", func(t *testing.T) {
		line := models.ImportLine{ID: "line-2", SupplierID: "sup-1", Vintage: "2019"}
		result := ValidateImportLine(line)
		assert.False(t, result.Valid)

		err := result.Err(line.ID)
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Contains(t, err.Error(), "line-2")
	})
}
