// Package fusion combines the semantic and keyword ranked lists into a
// single ordered result set using weighted Reciprocal Rank Fusion.
package fusion

import (
	"sort"

	"github.com/historian-labs/historian/internal/rank"
	"github.com/historian-labs/historian/internal/store"
)

// DefaultK is the RRF smoothing constant, empirically validated across
// domains (used by Azure AI Search, OpenSearch, etc.) and fixed by spec.md §4.6.
const DefaultK = 60

// DefaultAlpha is the default semantic weight; keyword gets 1-DefaultAlpha.
const DefaultAlpha = 0.7

// Result is a single page after fusion, enriched with fields from whichever
// ranker(s) contributed it.
type Result struct {
	Page         *store.PageRecord
	Score        float64
	Similarity   float64
	KeywordScore float64
	MatchedTerms []string
	TopSnippet   string
	Mode         string
	Confidence   rank.Confidence
	InBothLists  bool
}

// Fuse merges semantic results S and keyword results Q with weight alpha on
// the semantic list (normalized against 1-alpha on keyword), per spec.md
// §4.6: score[page.id] += w_i * 1/(K+r) for each list's 1-based rank r.
func Fuse(semantic []rank.SemanticResult, keyword []rank.KeywordResult, alpha float64, k int) []Result {
	if len(semantic) == 0 && len(keyword) == 0 {
		return []Result{}
	}
	// alpha's zero value is a valid setting (pure keyword ranking); only a
	// negative value falls back to the default.
	if alpha < 0 {
		alpha = DefaultAlpha
	}
	wSemantic := alpha
	wKeyword := 1 - alpha

	index := make(map[string]*Result, len(semantic)+len(keyword))
	order := make([]string, 0, len(semantic)+len(keyword))

	getOrCreate := func(id string, page *store.PageRecord) *Result {
		if r, ok := index[id]; ok {
			return r
		}
		r := &Result{Page: page}
		index[id] = r
		order = append(order, id)
		return r
	}

	// A list whose weight is zero contributes nothing at either extreme
	// alpha — not just a zero score, but no membership either, so
	// alpha=1.0/alpha=0.0 reproduce the single-ranker id set exactly rather
	// than that set plus the other ranker's candidates trailing at score 0.
	if wSemantic > 0 {
		for rankIdx, s := range semantic {
			r := getOrCreate(s.Page.ID, s.Page)
			r.Similarity = s.Similarity
			r.TopSnippet = s.TopSnippet
			r.Score += wSemantic / float64(DefaultK+rankIdx+1)
		}
	}
	if wKeyword > 0 {
		for rankIdx, q := range keyword {
			r := getOrCreate(q.Page.ID, q.Page)
			if r.Similarity > 0 {
				r.InBothLists = true
			}
			r.KeywordScore = q.Score
			r.MatchedTerms = q.MatchedTerms
			r.Score += wKeyword / float64(DefaultK+rankIdx+1)
		}
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := index[id]
		r.Mode = "hybrid"
		r.Confidence = confidence(r.Similarity, r.KeywordScore)
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].InBothLists != results[j].InBothLists {
			return results[i].InBothLists
		}
		return results[i].Page.ID < results[j].Page.ID
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

// confidence implements spec.md §4.6 point 6: high if similarity clears the
// semantic threshold, medium if keyword agreement is strong despite a weak
// semantic match, low otherwise.
func confidence(similarity, keywordScore float64) rank.Confidence {
	switch {
	case similarity >= rank.DefaultMinSimilarity:
		return rank.ConfidenceHigh
	case keywordScore > 0.5:
		return rank.ConfidenceMedium
	default:
		return rank.ConfidenceLow
	}
}
