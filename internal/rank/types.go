// Package rank implements the semantic and keyword rankers that feed hybrid
// fusion: independent strategies over the same page corpus, each producing
// an ordered candidate list with its own score.
package rank

import "github.com/historian-labs/historian/internal/store"

// Confidence buckets a result's reliability for display.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DefaultMinSimilarity is the primary semantic selection threshold, validated
// as optimal for normalized passage embeddings per spec.md §4.4.
const DefaultMinSimilarity = 0.70

// FallbackMinSimilarity is tried when no page clears DefaultMinSimilarity.
const FallbackMinSimilarity = 0.45

// SemanticResult is one page surviving semantic ranking.
type SemanticResult struct {
	Page        *store.PageRecord
	Similarity  float64 // max_sim across the page's passages
	Relevance   float64 // max_sim plus a multi-passage boost
	Confidence  Confidence
	TopSnippet  string
}

// KeywordResult is one page surviving keyword ranking.
type KeywordResult struct {
	Page         *store.PageRecord
	Score        float64
	MatchedTerms []string
}

// SemanticOptions configures rank_semantic.
type SemanticOptions struct {
	K             int
	MinSimilarity float64 // 0 selects the spec default
}

func (o SemanticOptions) withDefaults() SemanticOptions {
	if o.K <= 0 {
		o.K = 10
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = DefaultMinSimilarity
	}
	return o
}
