package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ImportLine is one supplier-submitted catalog row. It is immutable once created and owned
// by the import batch identified by ImportID.
type ImportLine struct {
	ID         string `json:"id" db:"id" validate:"required"`
	ImportID   string `json:"import_id" db:"import_id"`
	SupplierID string `json:"supplier_id" db:"supplier_id" validate:"required"`

	// Identifiers
	SupplierSKU string `json:"supplier_sku" db:"supplier_sku"`
	GTINEach    string `json:"gtin_each" db:"gtin_each"`
	GTINCase    string `json:"gtin_case" db:"gtin_case"`
	LWIN        string `json:"lwin" db:"lwin"`

	// Descriptive fields
	ProducerName    string   `json:"producer_name" db:"producer_name"`
	ProductName     string   `json:"product_name" db:"product_name"`
	Vintage         string   `json:"vintage" db:"vintage"` // "NV", empty or "0" mean no vintage
	Volume          string   `json:"volume" db:"volume"`   // free text such as "75cl" or "1.5 L"
	VolumeML        int      `json:"volume_ml" db:"volume_ml" validate:"gte=0"`
	ABVPercent      *float64 `json:"abv_percent" db:"abv_percent" validate:"omitempty,gte=0,lte=100"`
	PackType        string   `json:"pack_type" db:"pack_type"`
	UnitsPerCase    int      `json:"units_per_case" db:"units_per_case" validate:"gte=0"`
	CountryOfOrigin string   `json:"country_of_origin" db:"country_of_origin"`
	Region          string   `json:"region" db:"region"`
	GrapeVariety    string   `json:"grape_variety" db:"grape_variety"`

	// Commercial fields
	PriceExVAT *decimal.Decimal `json:"price_ex_vat" db:"price_ex_vat"`
	Currency   string           `json:"currency" db:"currency" validate:"omitempty,len=3,alpha"`

	RawData json.RawMessage `json:"raw_data,omitempty" db:"raw_data"`
}

// NormalizedLine is the comparison record derived from an ImportLine. Fields that could not
// be parsed are left empty and listed in Missing.
type NormalizedLine struct {
	LineID      string
	SupplierID  string
	SupplierSKU string

	// GTINs holds valid GTINs in 14-digit form, each-unit code first.
	GTINs []string
	LWIN  string

	// InvalidIdentifiers keeps rejected codes for the audit trail.
	InvalidIdentifiers []string
	// SuspectIdentifiers are codes used for matching despite a failed check digit.
	SuspectIdentifiers []string

	Producer string
	Product  string

	// Vintage is nil when the line has no vintage. NonVintage is set for NV, empty and zero;
	// an unparsable vintage leaves both unset and is excluded from comparison.
	Vintage    *int
	NonVintage bool

	VolumeML int
	PackType string

	Missing []string
}

// HasVintage reports whether the line states a vintage.
func (n NormalizedLine) HasVintage() bool {
	return n.Vintage != nil
}
