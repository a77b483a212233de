package normalizers

var packTypeSynonyms = map[string]string{
	"bottle":     "bottle",
	"bottles":    "bottle",
	"btl":        "bottle",
	"bt":         "bottle",
	"bouteille":  "bottle",
	"flaska":     "bottle",
	"can":        "can",
	"cans":       "can",
	"burk":       "can",
	"bag in box": "bag_in_box",
	"bib":        "bag_in_box",
	"box":        "bag_in_box",
	"keg":        "keg",
	"fat":        "keg",
	"tetra":      "carton",
	"tetra pak":  "carton",
	"carton":     "carton",
	"pouch":      "pouch",
	"case":       "case",
	"cs":         "case",
}

// NormalizePackType maps a free-text pack description to a canonical code. Unknown values
// are returned in their normalized text form.
func NormalizePackType(raw string) string {
	s := NormalizeText(raw)
	if s == "" {
		return ""
	}
	if canonical, ok := packTypeSynonyms[s]; ok {
		return canonical
	}
	return s
}
