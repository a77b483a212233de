package models

import (
	"fmt"
	"time"
)

// MappingSource records how a SKU mapping came to exist.
type MappingSource string

const (
	MappingSourceReview    MappingSource = "REVIEW"
	MappingSourceAutoMatch MappingSource = "AUTO_MATCH"
	MappingSourceOverride  MappingSource = "OVERRIDE"
)

// MappingKey identifies a supplier's own product code.
type MappingKey struct {
	SupplierID  string `json:"supplier_id" db:"supplier_id"`
	SupplierSKU string `json:"supplier_sku" db:"supplier_sku"`
}

func (k MappingKey) String() string {
	return fmt.Sprintf("%s:%s", k.SupplierID, k.SupplierSKU)
}

// Valid reports whether both halves of the key are present.
func (k MappingKey) Valid() bool {
	return k.SupplierID != "" && k.SupplierSKU != ""
}

// SkuMapping is a confirmed association between a supplier SKU and a canonical entity.
type SkuMapping struct {
	MappingKey
	EntityID  string        `json:"entity_id" db:"entity_id"`
	Source    MappingSource `json:"source" db:"source"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
