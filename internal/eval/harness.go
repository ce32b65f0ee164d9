package eval

import (
	"context"
	"fmt"

	"github.com/historian-labs/historian/internal/search"
)

// TestPage is one corpus document indexed before running the query set.
type TestPage struct {
	URL     string
	Title   string
	Content string
}

// Query is one graded query against the corpus.
type Query struct {
	Text         string
	ExpectedURLs []string
	Relevance    map[string]int // url -> 0..5
	Description  string
	Mode         search.Mode
}

// QueryResult holds one query's computed metrics plus the confidence band
// of its top result, for the aggregate confidence-distribution report.
type QueryResult struct {
	Query      Query
	Metrics    Metrics
	Confidence string
}

// Report aggregates metrics across a query set.
type Report struct {
	PerQuery         []QueryResult
	MeanPrecisionAtK float64
	MeanRecallAtK    float64
	MeanMRR          float64
	MeanNDCGAtK      float64
	ConfidenceCounts map[string]int
}

// Run indexes corpus through svc.Index (the same path real indexing uses),
// then runs each query through svc.Search and aggregates metrics.
func Run(ctx context.Context, svc *search.Service, corpus []TestPage, queries []Query, k int) (Report, error) {
	for _, page := range corpus {
		if _, err := svc.Index(ctx, search.IndexInput{URL: page.URL, Title: page.Title, Content: page.Content}); err != nil {
			return Report{}, fmt.Errorf("indexing %s: %w", page.URL, err)
		}
	}

	report := Report{ConfidenceCounts: map[string]int{}}
	for _, q := range queries {
		mode := q.Mode
		if mode == "" {
			mode = search.ModeHybrid
		}
		opts := search.DefaultOptions()
		opts.Mode = mode
		opts.K = k

		results, err := svc.Search(ctx, q.Text, opts)
		if err != nil {
			return Report{}, fmt.Errorf("searching %q: %w", q.Text, err)
		}

		topK := make([]string, len(results))
		for i, r := range results {
			topK[i] = r.Page.URL
		}
		expected := make(map[string]struct{}, len(q.ExpectedURLs))
		for _, url := range q.ExpectedURLs {
			expected[url] = struct{}{}
		}

		m := Metrics{
			PrecisionAtK: PrecisionAtK(topK, expected, k),
			RecallAtK:    RecallAtK(topK, expected),
			MRR:          MRR(topK, expected),
			NDCGAtK:      NDCGAtK(topK, q.Relevance, k),
		}

		confidence := "low"
		if len(results) > 0 {
			confidence = string(results[0].Confidence)
		}

		report.PerQuery = append(report.PerQuery, QueryResult{Query: q, Metrics: m, Confidence: confidence})
		report.ConfidenceCounts[confidence]++
	}

	n := float64(len(queries))
	if n > 0 {
		for _, qr := range report.PerQuery {
			report.MeanPrecisionAtK += qr.Metrics.PrecisionAtK / n
			report.MeanRecallAtK += qr.Metrics.RecallAtK / n
			report.MeanMRR += qr.Metrics.MRR / n
			report.MeanNDCGAtK += qr.Metrics.NDCGAtK / n
		}
	}
	return report, nil
}
