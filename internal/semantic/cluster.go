// Package semantic groups distinct product-name guesses by meaning. Names are
// embedded, the vectors are clustered bottom-up, and each cluster elects a
// canonical name, so "zapatillas deportivas" and "tenis deportivos" collapse
// into one product identity.
package semantic

import (
	"math"
	"sort"
)

// L2Normalize scales v to unit length in place and returns it. A zero vector
// is returned unchanged.
func L2Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Agglomerative clusters vectors bottom-up with average linkage: the distance
// between two clusters is the mean pairwise euclidean distance, and the two
// closest clusters merge while that distance stays at or below threshold.
// It returns one cluster id per input vector, numbered from 0 in order of
// each cluster's first member.
func Agglomerative(vectors [][]float64, threshold float64) []int {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	// dist[i][j] holds the pairwise vector distances; cluster distances are
	// averaged over members on demand.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			d := euclidean(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	avgLinkage := func(a, b []int) float64 {
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}

	for len(clusters) > 1 {
		bestA, bestB := -1, -1
		bestD := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				if d := avgLinkage(clusters[a], clusters[b]); d < bestD {
					bestD = d
					bestA, bestB = a, b
				}
			}
		}
		if bestD > threshold {
			break
		}
		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}

	// Number clusters by their earliest member so ids are stable for a given
	// input order.
	for _, c := range clusters {
		sort.Ints(c)
	}
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a][0] < clusters[b][0]
	})

	labels := make([]int, n)
	for id, c := range clusters {
		for _, i := range c {
			labels[i] = id
		}
	}
	return labels
}

// ElectCanonical picks the canonical name for a cluster: the member backing
// the most ads, ties broken by shortest then lexicographically smallest name.
func ElectCanonical(members []string, adCounts map[string]int) string {
	if len(members) == 0 {
		return ""
	}
	best := members[0]
	for _, m := range members[1:] {
		cb, cm := adCounts[best], adCounts[m]
		switch {
		case cm > cb:
			best = m
		case cm == cb && len(m) < len(best):
			best = m
		case cm == cb && len(m) == len(best) && m < best:
			best = m
		}
	}
	return best
}
