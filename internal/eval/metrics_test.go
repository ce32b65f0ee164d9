package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func expectedSet(urls ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		m[u] = struct{}{}
	}
	return m
}

// AC01: PrecisionAtK divides hit count by k, not by result count.
func TestPrecisionAtK_DividesByK(t *testing.T) {
	p := PrecisionAtK([]string{"a", "b", "c"}, expectedSet("a"), 10)
	assert.Equal(t, 0.1, p)
}

// AC02: RecallAtK divides hit count by the size of the expected set.
func TestRecallAtK_DividesByExpectedSize(t *testing.T) {
	r := RecallAtK([]string{"a", "x"}, expectedSet("a", "b"))
	assert.Equal(t, 0.5, r)
}

// AC03: MRR is 1/rank of the first relevant hit.
func TestMRR_UsesFirstRelevantRank(t *testing.T) {
	m := MRR([]string{"x", "y", "a"}, expectedSet("a"))
	assert.InDelta(t, 1.0/3.0, m, 1e-9)
}

// AC04: MRR is 0 when nothing in top_k is relevant.
func TestMRR_ZeroWhenNoHits(t *testing.T) {
	m := MRR([]string{"x", "y"}, expectedSet("a"))
	assert.Zero(t, m)
}

// AC05: NDCG is 1.0 when the ranking matches the ideal ordering exactly.
func TestNDCGAtK_PerfectRankingScoresOne(t *testing.T) {
	relevance := map[string]int{"a": 3, "b": 2, "c": 1}
	n := NDCGAtK([]string{"a", "b", "c"}, relevance, 3)
	assert.InDelta(t, 1.0, n, 1e-9)
}

// AC06: NDCG penalizes a reversed ranking.
func TestNDCGAtK_ReversedRankingScoresBelowOne(t *testing.T) {
	relevance := map[string]int{"a": 3, "b": 2, "c": 1}
	n := NDCGAtK([]string{"c", "b", "a"}, relevance, 3)
	assert.Less(t, n, 1.0)
}

// AC07: NDCG is 0 when no returned item has nonzero relevance.
func TestNDCGAtK_ZeroRelevanceScoresZero(t *testing.T) {
	relevance := map[string]int{"a": 3}
	n := NDCGAtK([]string{"x", "y"}, relevance, 2)
	assert.Zero(t, n)
}
