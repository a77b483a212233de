package normalizers

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var volumePattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(ml|cl|dl|l|ltr|litre|liter|litres|liters)?$`)

var namedVolumes = map[string]int{
	"split":          187,
	"demi":           375,
	"half bottle":    375,
	"bottle":         750,
	"standard":       750,
	"magnum":         1500,
	"double magnum":  3000,
	"jeroboam":       3000,
	"rehoboam":       4500,
	"methuselah":     6000,
	"salmanazar":     9000,
	"balthazar":      12000,
	"nebuchadnezzar": 15000,
}

var unitToML = map[string]float64{
	"ml":     1,
	"cl":     10,
	"dl":     100,
	"l":      1000,
	"ltr":    1000,
	"litre":  1000,
	"liter":  1000,
	"litres": 1000,
	"liters": 1000,
}

// ParseVolumeML converts a volume expression ("75cl", "0,75 L", "750 ml", "magnum") to
// milliliters. It returns false when the expression cannot be read.
func ParseVolumeML(raw string) (int, bool) {
	s := strings.TrimSuffix(CollapseWhitespace(strings.ToLower(StripDiacritics(raw))), ".")
	if s == "" {
		return 0, false
	}
	if ml, ok := namedVolumes[s]; ok {
		return ml, true
	}
	m := volumePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	unit := m[2]
	if unit == "" {
		// bare numbers are milliliters when they look like one
		if n < 50 {
			return 0, false
		}
		unit = "ml"
	}
	return int(math.Round(n * unitToML[unit])), true
}
