package rank

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/historian-labs/historian/internal/store"
)

// pageScore is the per-page scan result before selection/sorting.
type pageScore struct {
	page          *store.PageRecord
	maxSim        float64
	topSnippet    string
	strongMatches int
}

// Semantic ranks pages by passage-level cosine similarity to queryVec,
// per spec.md §4.4. Per-page passage scans run concurrently via errgroup,
// each writing only to its own slot in a pre-sized slice — the "sharded
// accumulator" spec.md §5 requires so scans never contend on shared state.
func Semantic(ctx context.Context, pages []*store.PageRecord, queryVec []float32, opts SemanticOptions) ([]SemanticResult, error) {
	opts = opts.withDefaults()
	if len(pages) == 0 {
		return []SemanticResult{}, nil
	}

	scores := make([]pageScore, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			scores[i] = scanPage(page, queryVec, opts.MinSimilarity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selected := selectBySimilarity(scores, opts.MinSimilarity)
	if len(selected) == 0 && opts.MinSimilarity > FallbackMinSimilarity {
		selected = selectBySimilarity(scores, FallbackMinSimilarity)
	}
	if len(selected) == 0 {
		return []SemanticResult{}, nil
	}

	results := make([]SemanticResult, 0, len(selected))
	for _, s := range selected {
		if s.page == nil {
			continue
		}
		relevance := s.maxSim
		if s.strongMatches > 1 {
			relevance += math.Log(float64(s.strongMatches)) * 0.10
		}
		results = append(results, SemanticResult{
			Page:       s.page,
			Similarity: s.maxSim,
			Relevance:  relevance,
			Confidence: confidenceFor(s.maxSim, opts.MinSimilarity),
			TopSnippet: s.topSnippet,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Page.Timestamp > b.Page.Timestamp
	})

	if opts.K < len(results) {
		results = results[:opts.K]
	}
	return results, nil
}

func scanPage(page *store.PageRecord, queryVec []float32, minSimilarity float64) pageScore {
	s := pageScore{page: page}
	if len(page.Passages) == 0 {
		s.page = nil
		return s
	}

	argmax := -1
	for i, p := range page.Passages {
		if len(p.Embedding) == 0 {
			continue
		}
		sim := dot(queryVec, p.Embedding)
		if argmax == -1 || sim > s.maxSim {
			s.maxSim = sim
			argmax = i
		}
		if sim >= minSimilarity {
			s.strongMatches++
		}
	}
	if argmax >= 0 {
		s.topSnippet = page.Passages[argmax].Text
	}
	return s
}

func selectBySimilarity(scores []pageScore, threshold float64) []pageScore {
	var out []pageScore
	for _, s := range scores {
		if s.page != nil && s.maxSim >= threshold {
			out = append(out, s)
		}
	}
	return out
}

func confidenceFor(maxSim, threshold float64) Confidence {
	switch {
	case maxSim >= threshold:
		return ConfidenceHigh
	case maxSim >= threshold-0.05:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
