package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"match-service/internal/match/model"
)

func TestJaccardSimilarity(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		a, b := "acme peanut butter 500 g", "acme peanut butter 500g"
		assert.Equal(t, jaccardSimilarity(a, b), jaccardSimilarity(b, a))
	})

	t.Run("bounds", func(t *testing.T) {
		pairs := [][2]string{
			{"acme cola", "acme water"},
			{"a b c", "c d e"},
			{"x", ""},
			{"same", "same"},
		}
		for _, p := range pairs {
			j := jaccardSimilarity(p[0], p[1])
			assert.GreaterOrEqual(t, j, 0.0)
			assert.LessOrEqual(t, j, 1.0)
		}
	})

	t.Run("both empty is zero, not perfect", func(t *testing.T) {
		assert.Equal(t, 0.0, jaccardSimilarity("", ""))
	})

	t.Run("identical non-empty is one", func(t *testing.T) {
		assert.Equal(t, 1.0, jaccardSimilarity("acme cola 1l", "acme cola 1l"))
	})

	t.Run("partial overlap", func(t *testing.T) {
		// {acme, cola, 1l} vs {acme, cola, 2l}: 2 common of 4 total
		assert.InDelta(t, 0.5, jaccardSimilarity("acme cola 1l", "acme cola 2l"), 1e-9)
	})
}

func TestCharSimilarity(t *testing.T) {
	t.Run("identical is one", func(t *testing.T) {
		assert.Equal(t, 1.0, charSimilarity("acme cola 1l", "acme cola 1l"))
	})

	t.Run("token order does not matter", func(t *testing.T) {
		assert.Equal(t, 1.0, charSimilarity("cola acme 1l", "acme cola 1l"))
	})

	t.Run("token subset scores one", func(t *testing.T) {
		assert.Equal(t, 1.0, charSimilarity("acme juice", "acme juice orange"))
	})

	t.Run("no common characters scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, charSimilarity("aaaa", "zzzz"))
	})

	t.Run("no common tokens scores low", func(t *testing.T) {
		assert.Less(t, charSimilarity("aaaa bbbb", "zzzz yyyy"), 0.3)
	})
}

func TestScoreCandidateBounds(t *testing.T) {
	opt := model.DefaultOptions()
	pairs := [][2]string{
		{"acme cola 1l", "acme cola 1l"},
		{"acme cola 1l", "acme water 500ml"},
		{"aaaa", "zzzz"},
		{"acme peanut butter 500 g", "acme peanut butter 250g"},
	}
	for _, p := range pairs {
		for _, cos := range []float64{0.0, 0.5, 1.0} {
			c := scoreCandidate(p[0], p[1], 0, cos, opt)
			assert.GreaterOrEqual(t, c.TrueScore, 0.0)
			assert.LessOrEqual(t, c.TrueScore, 1.0)
			assert.GreaterOrEqual(t, c.VariantScore, 0.0)
			assert.LessOrEqual(t, c.VariantScore, 1.0)
		}
	}
}

func TestScoreCandidateWeighting(t *testing.T) {
	opt := model.DefaultOptions()
	// perfect components compose to exactly 1.0 under convex weights
	c := scoreCandidate("acme cola 1l", "acme cola 1l", 0, 1.0, opt)
	assert.InDelta(t, 1.0, c.TrueScore, 1e-9)
	assert.InDelta(t, 1.0, c.VariantScore, 1e-9)
}
