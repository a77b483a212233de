package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_JaroWinkler(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "chateau", "chateau", 1.0},
		{"martha", "martha", "marhta", 0.9611},
		{"dwayne", "dwayne", "duane", 0.84},
		{"no overlap", "abc", "xyz", 0.0},
		{"empty side", "", "abc", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.JaroWinkler(tt.a, tt.b), 0.0001)
		})
	}
}

func TestScorer_Jaro(t *testing.T) {
	s := NewScorer()
	assert.InDelta(t, 0.9444, s.Jaro("martha", "marhta"), 0.0001)
	assert.Equal(t, 1.0, s.Jaro("same", "same"))
}

func TestScorer_TokenJaroWinkler(t *testing.T) {
	s := NewScorer()

	t.Run("should be symmetric", func(t *testing.T) {
		a, b := "domaine leflaive", "leflaive domaine puligny"
		assert.Equal(t, s.TokenJaroWinkler(a, b), s.TokenJaroWinkler(b, a))
	})

	t.Run("should ignore word order", func(t *testing.T) {
		assert.Equal(t, 1.0, s.TokenJaroWinkler("grand vin", "vin grand"))
	})

	t.Run("should treat a plural as a strong match", func(t *testing.T) {
		assert.Greater(t, s.TokenJaroWinkler("chateau test", "chateau tests"), 0.95)
		assert.Greater(t, s.TokenJaroWinkler("grand vin", "grand vins"), 0.95)
	})

	t.Run("should charge for extra words by their length", func(t *testing.T) {
		one := s.TokenJaroWinkler("chateau margaux", "chateau margaux rouge")
		two := s.TokenJaroWinkler("chateau margaux", "chateau margaux pavillon rouge")
		assert.Less(t, one, 1.0)
		assert.Less(t, two, one)
		assert.Greater(t, two, 0.5)
	})

	t.Run("should score empty names as unrelated", func(t *testing.T) {
		assert.Equal(t, 0.0, s.TokenJaroWinkler("", ""))
		assert.Equal(t, 0.0, s.TokenJaroWinkler("chateau", "  "))
	})
}

func TestDefaultSimilarity(t *testing.T) {
	sim := DefaultSimilarity()
	assert.Equal(t, "token-jw@1", sim.String())
	assert.Equal(t, 1.0, sim.Compare("x y", "y x"))
}
