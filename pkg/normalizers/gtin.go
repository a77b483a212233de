package normalizers

import "fmt"

var gtinLengths = map[int]bool{8: true, 12: true, 13: true, 14: true}

// GTINCheckDigitValid reports whether the last digit of a GTIN-8/12/13/14 is the mod-10
// check digit of the preceding digits.
func GTINCheckDigitValid(digits string) bool {
	if !gtinLengths[len(digits)] {
		return false
	}
	sum := 0
	// weights alternate 3,1 starting from the digit left of the check digit
	weight := 3
	for i := len(digits) - 2; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		sum += d * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	check := (10 - sum%10) % 10
	return int(digits[len(digits)-1]-'0') == check
}

// GTINResult is the outcome of parsing one GTIN.
type GTINResult struct {
	Raw        string
	Canonical  string // 14-digit, left-padded
	Structural bool   // right length, digits only
	CheckDigit bool
}

// Usable reports whether the code may take part in identifier matching. Lenient mode
// accepts structurally valid codes whose check digit fails.
func (g GTINResult) Usable(lenient bool) bool {
	if !g.Structural {
		return false
	}
	return g.CheckDigit || lenient
}

// ParseGTIN extracts the digits of raw and validates length and check digit.
func ParseGTIN(raw string) GTINResult {
	res := GTINResult{Raw: raw}
	digits := DigitsOnly(raw)
	if digits == "" || len(digits) != len(Alphanumeric(raw)) || !gtinLengths[len(digits)] {
		return res
	}
	res.Structural = true
	res.Canonical = fmt.Sprintf("%014s", digits)
	res.CheckDigit = GTINCheckDigitValid(digits)
	return res
}

// CanonicalGTIN returns the 14-digit comparison form of a catalog-side GTIN, or "" when it
// is not structurally valid.
func CanonicalGTIN(raw string) string {
	res := ParseGTIN(raw)
	if !res.Structural {
		return ""
	}
	return res.Canonical
}
