package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/normalizers"
)

// winefeedProduct is the Swedish export format produced by the catalog import scripts
// (Systembolaget-derived). Vintages are carried as a trailing year in the product name.
type winefeedProduct struct {
	Name            string `json:"namn"`
	Producer        string `json:"producent"`
	Country         string `json:"land"`
	Region          string `json:"region"`
	SystembolagetID string `json:"systembolaget_id"`
	GTIN            string `json:"gtin"`
	LWIN            string `json:"lwin"`
	Volume          string `json:"volym"`
}

var trailingVintage = regexp.MustCompile(`\s+(\d{4})$`)

func (p winefeedProduct) toEntity() models.CanonicalEntity {
	e := models.CanonicalEntity{
		EntityType:   models.EntityTypeMasterProduct,
		ProducerName: strings.TrimSpace(p.Producer),
		ProductName:  strings.TrimSpace(p.Name),
		Country:      p.Country,
		Region:       p.Region,
		LWIN:         p.LWIN,
		PackType:     "bottle",
		VolumeML:     750,
	}
	if m := trailingVintage.FindStringSubmatch(e.ProductName); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year >= normalizers.MinVintage && year <= normalizers.MaxVintage {
			e.Vintage = &year
			e.ProductName = strings.TrimSpace(strings.TrimSuffix(e.ProductName, m[0]))
		}
	}
	if ml, ok := normalizers.ParseVolumeML(p.Volume); ok {
		e.VolumeML = ml
	}
	if p.GTIN != "" {
		e.GTINs = []string{p.GTIN}
	}
	e.ID = "sb-" + p.SystembolagetID
	return e
}

// DecodeEntities reads a JSON array of canonical entities. Both the native entity format and
// the winefeed export format are accepted; the format is detected per element.
func DecodeEntities(r io.Reader) ([]models.CanonicalEntity, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode catalog json")
	}

	out := make([]models.CanonicalEntity, 0, len(raw))
	for i, item := range raw {
		var shape map[string]json.RawMessage
		if err := json.Unmarshal(item, &shape); err != nil {
			return nil, errors.Wrapf(err, "catalog entry %d", i)
		}

		if _, isWinefeed := shape["namn"]; isWinefeed {
			var p winefeedProduct
			if err := json.Unmarshal(item, &p); err != nil {
				return nil, errors.Wrapf(err, "catalog entry %d", i)
			}
			if p.SystembolagetID == "" {
				p.SystembolagetID = strconv.Itoa(i)
			}
			out = append(out, p.toEntity())
			continue
		}

		var e models.CanonicalEntity
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, errors.Wrapf(err, "catalog entry %d", i)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if e.EntityType == "" {
			e.EntityType = models.EntityTypeMasterProduct
		}
		out = append(out, e)
	}
	return out, nil
}

// FileProvider loads entities from a JSON seed file on every rebuild.
type FileProvider struct {
	Path string
}

func (p FileProvider) LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open catalog seed %s", p.Path)
	}
	defer f.Close()
	return DecodeEntities(f)
}
