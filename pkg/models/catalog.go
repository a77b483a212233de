package models

import (
	"fmt"
	"time"
)

// EntityType distinguishes the two kinds of canonical entity.
type EntityType string

const (
	EntityTypeMasterProduct  EntityType = "MASTER_PRODUCT"
	EntityTypeProducerFamily EntityType = "PRODUCER_FAMILY"
)

func (t EntityType) Valid() bool {
	return t == EntityTypeMasterProduct || t == EntityTypeProducerFamily
}

func (t EntityType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", string(t))
	}
	return []byte(t), nil
}

func (t *EntityType) UnmarshalText(b []byte) error {
	v, err := parseEnum[EntityType]("entity type", string(b), EntityType.Valid)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IdentifierKind names a trade identifier used for exact lookups.
type IdentifierKind string

const (
	IdentifierGTIN IdentifierKind = "GTIN"
	IdentifierLWIN IdentifierKind = "LWIN"
)

// CanonicalEntity is a master product (a specific bottling) or a producer family record.
type CanonicalEntity struct {
	ID           string     `json:"id" db:"id"`
	EntityType   EntityType `json:"entity_type" db:"entity_type"`
	GTINs        []string   `json:"gtins,omitempty" db:"-"`
	LWIN         string     `json:"lwin,omitempty" db:"lwin"`
	ProducerName string     `json:"producer_name" db:"producer_name"`
	ProductName  string     `json:"product_name,omitempty" db:"product_name"`
	Vintage      *int       `json:"vintage,omitempty" db:"vintage"`
	VolumeML     int        `json:"volume_ml,omitempty" db:"volume_ml"`
	PackType     string     `json:"pack_type,omitempty" db:"pack_type"`
	Country      string     `json:"country,omitempty" db:"country"`
	Region       string     `json:"region,omitempty" db:"region"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}

// IsProducerFamily reports whether the entity is a producer-level grouping.
func (e CanonicalEntity) IsProducerFamily() bool {
	return e.EntityType == EntityTypeProducerFamily
}
