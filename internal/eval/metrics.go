// Package eval computes retrieval-quality metrics (precision, recall, MRR,
// NDCG) for the query service over a fixed, graded corpus.
package eval

import (
	"math"
	"sort"
)

// Metrics holds the per-query scores computed against top_k results.
type Metrics struct {
	PrecisionAtK float64
	RecallAtK    float64
	MRR          float64
	NDCGAtK      float64
}

// PrecisionAtK returns |topK ∩ expected| / k.
func PrecisionAtK(topK []string, expected map[string]struct{}, k int) float64 {
	if k == 0 {
		return 0
	}
	hits := countHits(topK, expected)
	return float64(hits) / float64(k)
}

// RecallAtK returns |topK ∩ expected| / |expected|.
func RecallAtK(topK []string, expected map[string]struct{}) float64 {
	if len(expected) == 0 {
		return 0
	}
	hits := countHits(topK, expected)
	return float64(hits) / float64(len(expected))
}

// MRR returns 1/rank_of_first_relevant over topK, or 0 if none are relevant.
func MRR(topK []string, expected map[string]struct{}) float64 {
	for i, url := range topK {
		if _, ok := expected[url]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK computes DCG/IDCG using graded relevance, 1-based rank discounting.
func NDCGAtK(topK []string, relevance map[string]int, k int) float64 {
	dcg := 0.0
	for i, url := range topK {
		if i >= k {
			break
		}
		rel := float64(relevance[url])
		if rel == 0 {
			continue
		}
		dcg += rel / math.Log2(float64(i+2))
	}

	idealRels := make([]int, 0, len(relevance))
	for _, rel := range relevance {
		idealRels = append(idealRels, rel)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(idealRels)))

	idcg := 0.0
	for i, rel := range idealRels {
		if i >= k {
			break
		}
		if rel == 0 {
			continue
		}
		idcg += float64(rel) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func countHits(topK []string, expected map[string]struct{}) int {
	hits := 0
	for _, url := range topK {
		if _, ok := expected[url]; ok {
			hits++
		}
	}
	return hits
}
