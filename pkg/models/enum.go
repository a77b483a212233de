package models

import "fmt"

// parseEnum resolves raw against a closed vocabulary. Unknown values are rejected so that
// an invalid status or reason can never be decoded into the domain.
func parseEnum[T ~string](kind, raw string, valid func(T) bool) (T, error) {
	v := T(raw)
	if !valid(v) {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", kind, raw)
	}
	return v, nil
}
