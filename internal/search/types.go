// Package search exposes the query service: the public search/index/delete
// /clear/stats surface that fuses semantic and keyword ranking behind a
// bounded result cache.
package search

import (
	"github.com/historian-labs/historian/internal/rank"
	"github.com/historian-labs/historian/internal/store"
)

// Mode selects which ranker(s) contribute to a search.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid"
)

// Options configures a single search call, per spec.md §6's Query API.
type Options struct {
	K                      int
	MinSimilarity          float64
	Mode                   Mode
	Alpha                  float64
	BoostRecent            bool
	BoostFrequent          bool
	RecencyWeight          float64
	FrequencyWeight        float64
	DegradeOnEmbedFailure  bool
}

// DefaultOptions returns the spec's default Options.
func DefaultOptions() Options {
	return Options{
		K:               10,
		MinSimilarity:   rank.DefaultMinSimilarity,
		Mode:            ModeHybrid,
		Alpha:           0.7,
		BoostRecent:     true,
		BoostFrequent:   true,
		RecencyWeight:   0.15,
		FrequencyWeight: 0.15,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.K <= 0 {
		o.K = d.K
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = d.MinSimilarity
	}
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	// Alpha's zero value (0.0) is a valid, meaningful setting — pure
	// keyword ranking — so only a negative value means "unset."
	if o.Alpha < 0 {
		o.Alpha = d.Alpha
	}
	return o
}

// Result is one ranked page returned from Search.
type Result struct {
	Page         *store.PageRecord
	Similarity   float64
	Relevance    float64
	Mode         string
	Confidence   rank.Confidence
	KeywordScore float64
	MatchedTerms []string
	TopSnippet   string
}

// IndexInput is the payload accepted by Index, per spec.md §6's Indexing API.
type IndexInput struct {
	URL           string
	Title         string
	Content       string
	VisitedAtMS   int64
	DwellTimeSec  int
}

// IndexOutput reports what Index did.
type IndexOutput struct {
	ID              string
	IndexedPassages int
}
