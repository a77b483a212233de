package normalizers

import (
	"strconv"
	"strings"
)

const (
	MinVintage = 1800
	MaxVintage = 2100
)

var nonVintageMarkers = map[string]bool{
	"":            true,
	"0":           true,
	"nv":          true,
	"n v":         true,
	"non vintage": true,
	"nonvintage":  true,
	"sa":          true, // sans année
}

// VintageResult is the parsed form of a vintage field.
type VintageResult struct {
	Year       *int
	NonVintage bool // explicitly no vintage
	Unparsable bool
}

// ParseVintage reads a year. "NV", empty and zero mean no vintage; anything else that is not
// a year in [MinVintage, MaxVintage] is unparsable.
func ParseVintage(raw string) VintageResult {
	s := CollapseWhitespace(RemovePunctuation(strings.ToLower(raw)))
	if nonVintageMarkers[s] {
		return VintageResult{NonVintage: true}
	}
	s = strings.TrimSuffix(s, " 0") // "2019.0" after punctuation removal
	year, err := strconv.Atoi(s)
	if err != nil || year < MinVintage || year > MaxVintage {
		return VintageResult{Unparsable: true}
	}
	return VintageResult{Year: &year}
}
