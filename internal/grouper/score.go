// Package grouper partitions a run's ad extractions into product identities,
// folds per-identity counters, scores each candidate, and upserts the result.
// It consumes what the earlier passes produced: extractions, visual hashes,
// and the semantic map.
package grouper

import "sort"

// Score computes the candidate score for a product: average confidence plus a
// fixed weight per true signal, clamped to [0,1]. It also returns the signal
// names that contributed, in sorted order.
func Score(avgConfidence float64, signals map[string]bool, weights map[string]float64) (float64, []string) {
	score := avgConfidence
	if score < 0 {
		score = 0
	}

	names := make([]string, 0, len(signals))
	for name, on := range signals {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var contributed []string
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			continue
		}
		score += w
		contributed = append(contributed, name)
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, contributed
}
