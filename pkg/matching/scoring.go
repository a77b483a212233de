package matching

import (
	"strings"

	"github.com/Ramsey-B/vine/pkg/catalog"
)

// Scorer provides the string comparison algorithms used for fuzzy name matching
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// DefaultSimilarity is the versioned similarity the catalog index ranks with and the
// candidate generator compares names with.
func DefaultSimilarity() catalog.Similarity {
	s := NewScorer()
	return catalog.Similarity{
		Name:    "token-jw",
		Version: "1",
		Compare: s.TokenJaroWinkler,
	}
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)

	jaro := jaro(ra, rb)

	// Winkler boost for a common prefix of up to 4 runes
	prefixLen := 0
	for i := 0; i < len(ra) && i < len(rb) && i < 4; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefixLen++
	}

	return jaro + float64(prefixLen)*0.1*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return jaro([]rune(a), []rune(b))
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// TokenJaroWinkler compares two normalized names token by token. Every token is matched to its
// best counterpart in the other name and weighted by its length; the score is the mean of
// both directions, so extra or missing words cost in proportion to their size.
func (s *Scorer) TokenJaroWinkler(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	return (s.directional(ta, tb) + s.directional(tb, ta)) / 2
}

func (s *Scorer) directional(from, to []string) float64 {
	var weighted, total float64
	for _, t := range from {
		best := 0.0
		for _, u := range to {
			if sim := s.JaroWinkler(t, u); sim > best {
				best = sim
				if best == 1.0 {
					break
				}
			}
		}
		w := float64(len([]rune(t)))
		weighted += best * w
		total += w
	}
	if total == 0 {
		return 0.0
	}
	return weighted / total
}
