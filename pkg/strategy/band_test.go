package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{1.0, Performance},
		{1.2, Performance},
		{1.6, Performance},
		{1.65, Unclassified},
		{1.7, Balanced},
		{2.0, Balanced},
		{2.3, Balanced},
		{2.35, Unclassified},
		{2.4, CostEfficient},
		{3.0, CostEfficient},
		{0.9, Unclassified},
		{3.1, Unclassified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %.2f", tt.score)
	}
}

func TestClassifyEveryRoundedScore(t *testing.T) {
	// ComputeScore rounds to one decimal, so every reachable score is a
	// multiple of 0.1 between 1.0 and 3.0.
	for i := 10; i <= 30; i++ {
		score := math.Round(float64(i)) / 10
		assert.NotEqual(t, Unclassified, Classify(score), "score %.1f", score)
	}
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "performance", Performance.String())
	assert.Equal(t, "balanced", Balanced.String())
	assert.Equal(t, "cost-efficient", CostEfficient.String())
	assert.Equal(t, "unclassified", Unclassified.String())
	assert.Equal(t, []Band{Performance, Balanced, CostEfficient}, Bands())
}

func TestBandMarshalText(t *testing.T) {
	text, err := CostEfficient.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "cost-efficient", string(text))
}

func TestScoreRange(t *testing.T) {
	low, high, ok := ScoreRange(Balanced)
	assert.True(t, ok)
	assert.Equal(t, 1.7, low)
	assert.Equal(t, 2.3, high)

	for _, b := range Bands() {
		low, high, ok := ScoreRange(b)
		assert.True(t, ok, b.String())
		assert.Equal(t, b, Classify(low))
		assert.Equal(t, b, Classify(high))
	}

	_, _, ok = ScoreRange(Unclassified)
	assert.False(t, ok)
}
