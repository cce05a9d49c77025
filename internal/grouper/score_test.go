package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adscope/explorer-cli/internal/config"
)

func TestScoreAddsSignalWeights(t *testing.T) {
	weights := config.DefaultSignalWeights()

	score, reasons := Score(0.7, map[string]bool{"free_shipping": true}, weights)
	assert.InDelta(t, 0.7+weights["free_shipping"], score, 1e-9)
	assert.Equal(t, []string{"free_shipping"}, reasons)
}

func TestScoreClampedToOne(t *testing.T) {
	weights := config.DefaultSignalWeights()
	all := make(map[string]bool, len(weights))
	for name := range weights {
		all[name] = true
	}

	score, reasons := Score(0.99, all, weights)
	assert.Equal(t, 1.0, score)
	assert.Len(t, reasons, len(weights))
}

func TestScoreMonotonicInSignals(t *testing.T) {
	weights := config.DefaultSignalWeights()

	signals := map[string]bool{}
	prev := 0.0
	for _, name := range []string{"cash_price", "guarantee_trust", "urgency", "cod", "discount_offer"} {
		signals[name] = true
		score, _ := Score(0.5, signals, weights)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestScoreIgnoresFalseAndUnknownSignals(t *testing.T) {
	weights := config.DefaultSignalWeights()

	score, reasons := Score(0.5, map[string]bool{
		"cod":           false,
		"made_up_flag":  true,
		"free_shipping": true,
	}, weights)
	assert.InDelta(t, 0.5+weights["free_shipping"], score, 1e-9)
	assert.Equal(t, []string{"free_shipping"}, reasons)
}

func TestScoreNegativeConfidenceFloorsAtZero(t *testing.T) {
	score, _ := Score(-0.2, nil, config.DefaultSignalWeights())
	assert.Equal(t, 0.0, score)
}

func TestScoreReasonsSorted(t *testing.T) {
	weights := config.DefaultSignalWeights()
	_, reasons := Score(0.1, map[string]bool{
		"urgency": true, "cod": true, "discount_offer": true,
	}, weights)
	assert.Equal(t, []string{"cod", "discount_offer", "urgency"}, reasons)
}
