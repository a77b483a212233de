package normalizers

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/vine/pkg/models"
)

// Missing field names recorded on a NormalizedLine.
const (
	FieldProducer = "producer_name"
	FieldProduct  = "product_name"
	FieldVintage  = "vintage"
	FieldVolume   = "volume_ml"
	FieldPackType = "pack_type"
	FieldGTIN     = "gtin"
	FieldLWIN     = "lwin"
)

var lwinLengths = map[int]bool{7: true, 11: true, 16: true, 18: true}

// LineOptions tunes identifier handling.
type LineOptions struct {
	// LenientGTIN keeps structurally valid GTINs whose check digit fails. They are still
	// listed as suspect in the explanation.
	LenientGTIN bool
}

// NormalizeLine derives the comparison record of a raw import line. It never fails and
// never mutates the line: fields that cannot be read are excluded and listed in Missing.
func NormalizeLine(line models.ImportLine, opts LineOptions) models.NormalizedLine {
	out := models.NormalizedLine{
		LineID:      line.ID,
		SupplierID:  strings.TrimSpace(line.SupplierID),
		SupplierSKU: strings.TrimSpace(line.SupplierSKU),
	}

	for _, raw := range []string{line.GTINEach, line.GTINCase} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		res := ParseGTIN(raw)
		switch {
		case res.Usable(opts.LenientGTIN):
			if !containsString(out.GTINs, res.Canonical) {
				out.GTINs = append(out.GTINs, res.Canonical)
			}
			if !res.CheckDigit {
				out.SuspectIdentifiers = append(out.SuspectIdentifiers, fmt.Sprintf("gtin %s (check digit)", strings.TrimSpace(raw)))
			}
		case res.Structural:
			out.InvalidIdentifiers = append(out.InvalidIdentifiers, fmt.Sprintf("gtin %s (check digit)", strings.TrimSpace(raw)))
		default:
			out.InvalidIdentifiers = append(out.InvalidIdentifiers, fmt.Sprintf("gtin %s (format)", strings.TrimSpace(raw)))
		}
	}
	if len(out.GTINs) == 0 {
		out.Missing = append(out.Missing, FieldGTIN)
	}

	if lwin, ok := NormalizeLWIN(line.LWIN); ok {
		out.LWIN = lwin
	} else {
		if strings.TrimSpace(line.LWIN) != "" {
			out.InvalidIdentifiers = append(out.InvalidIdentifiers, fmt.Sprintf("lwin %s (format)", strings.TrimSpace(line.LWIN)))
		}
		out.Missing = append(out.Missing, FieldLWIN)
	}

	out.Producer = NormalizeText(line.ProducerName)
	if out.Producer == "" {
		out.Missing = append(out.Missing, FieldProducer)
	}
	out.Product = NormalizeText(line.ProductName)
	if out.Product == "" {
		out.Missing = append(out.Missing, FieldProduct)
	}

	vintage := ParseVintage(line.Vintage)
	out.Vintage = vintage.Year
	out.NonVintage = vintage.NonVintage
	if vintage.Unparsable {
		out.Missing = append(out.Missing, FieldVintage)
	}

	switch {
	case line.VolumeML > 0:
		out.VolumeML = line.VolumeML
	default:
		if ml, ok := ParseVolumeML(line.Volume); ok {
			out.VolumeML = ml
		} else {
			out.Missing = append(out.Missing, FieldVolume)
		}
	}

	out.PackType = NormalizePackType(line.PackType)
	if out.PackType == "" {
		out.Missing = append(out.Missing, FieldPackType)
	}

	return out
}

// NormalizeLWIN returns the digits of an LWIN when it has a known length (7, 11, 16 or 18).
func NormalizeLWIN(raw string) (string, bool) {
	digits := DigitsOnly(raw)
	if !lwinLengths[len(digits)] || len(digits) != len(Alphanumeric(raw)) {
		return "", false
	}
	return digits, true
}

// NormalizeEntity brings catalog-side comparison fields into the same form as line fields.
func NormalizeEntity(e models.CanonicalEntity) models.CanonicalEntity {
	out := e
	out.ProducerName = NormalizeText(e.ProducerName)
	out.ProductName = NormalizeText(e.ProductName)
	out.PackType = NormalizePackType(e.PackType)
	out.GTINs = nil
	for _, g := range e.GTINs {
		if c := CanonicalGTIN(g); c != "" && !containsString(out.GTINs, c) {
			out.GTINs = append(out.GTINs, c)
		}
	}
	if lwin, ok := NormalizeLWIN(e.LWIN); ok {
		out.LWIN = lwin
	} else {
		out.LWIN = ""
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
