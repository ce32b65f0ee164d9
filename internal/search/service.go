package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/historian-labs/historian/internal/chunk"
	"github.com/historian-labs/historian/internal/embed"
	herrors "github.com/historian-labs/historian/internal/errors"
	"github.com/historian-labs/historian/internal/fusion"
	"github.com/historian-labs/historian/internal/rank"
	"github.com/historian-labs/historian/internal/store"
	"github.com/historian-labs/historian/internal/telemetry"
)

// DefaultTimeout is the default per-search deadline, per spec.md §5.
const DefaultTimeout = 5 * time.Second

// Service is the query service: the single entry point the UI/MCP surface
// calls to index, search, and manage the page store.
type Service struct {
	store    store.Store
	embedder embed.Embedder
	chunker  *chunk.Chunker
	results  *resultCache
	semantic *embeddingCache
	logger   *slog.Logger
	timeout  time.Duration
	nowFn    func() int64
	metrics  *telemetry.QueryMetrics
}

// Config configures a new Service.
type Config struct {
	Store      store.Store
	Embedder   embed.Embedder
	Chunker    *chunk.Chunker
	Logger     *slog.Logger
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
	// Now supplies the current time in ms epoch; nil uses a live clock.
	Now func() int64
	// Metrics records query telemetry for search optimization, per
	// spec.md's query-pattern analysis goal. Nil disables recording.
	Metrics *telemetry.QueryMetrics
}

// New builds a Service from cfg, filling in defaults for anything unset.
func New(cfg Config) *Service {
	if cfg.Chunker == nil {
		cfg.Chunker = chunk.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = defaultNow
	}
	return &Service{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		chunker:  cfg.Chunker,
		results:  newResultCache(cfg.CacheSize, cfg.CacheTTL),
		semantic: newEmbeddingCache(cfg.CacheSize, cfg.CacheTTL),
		logger:   cfg.Logger,
		timeout:  cfg.Timeout,
		nowFn:    now,
		metrics:  cfg.Metrics,
	}
}

func defaultNow() int64 { return time.Now().UnixMilli() }

// Index chunks content, embeds its passages, and stores the resulting page,
// per spec.md §6's Indexing API. Re-indexing the same URL replaces content
// while preserving timestamp and incrementing visit_count (enforced by the
// store layer).
func (s *Service) Index(ctx context.Context, in IndexInput) (IndexOutput, error) {
	passages := s.chunker.Chunk(in.Content)
	if len(passages) == 0 {
		return IndexOutput{}, herrors.ExtractionEmpty(fmt.Sprintf("no usable passages extracted from %s", in.URL), nil)
	}

	storePassages := make([]store.Passage, len(passages))
	reqs := make([]embed.Request, len(passages))
	for i, p := range passages {
		reqs[i] = embed.Request{Text: p.Text, Task: embed.TaskDocument, Title: in.Title}
	}

	vectors, err := s.embedder.EmbedBatch(ctx, reqs)
	if err != nil {
		return IndexOutput{}, err
	}
	for i, p := range passages {
		storePassages[i] = store.Passage{
			ID:        p.ID,
			Text:      p.Text,
			WordCount: p.WordCount,
			Position:  p.Position,
			Quality:   p.Quality,
			Embedding: vectors[i],
		}
	}

	id := pageID(in.URL)
	page := &store.PageRecord{
		ID:           id,
		URL:          in.URL,
		Title:        in.Title,
		Content:      in.Content,
		Passages:     storePassages,
		Timestamp:    in.VisitedAtMS,
		DwellTimeSec: in.DwellTimeSec,
	}
	if page.Timestamp == 0 {
		page.Timestamp = s.nowFn()
	}

	if err := s.store.Put(ctx, page); err != nil {
		return IndexOutput{}, err
	}
	s.results.clear()
	s.semantic.clear()

	return IndexOutput{ID: id, IndexedPassages: len(storePassages)}, nil
}

// Search runs the Pending -> Embedding -> Ranking -> Done|Failed|Cancelled
// state machine described in spec.md §4.6, fusing semantic and keyword
// rankers for mode=hybrid.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := s.nowFn()
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if cached, ok := s.results.get(query, opts); ok {
		s.recordQuery(query, opts.Mode, len(cached), start)
		return cached, nil
	}

	pages, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, finalizeErr(ctx, err)
	}
	if len(pages) == 0 {
		s.recordQuery(query, opts.Mode, 0, start)
		return []Result{}, nil
	}

	candidateK := opts.K * 3

	var semanticResults []rank.SemanticResult
	var keywordResults []rank.KeywordResult

	switch opts.Mode {
	case ModeKeyword:
		keywordResults = rank.Keyword(pages, query, candidateK)
	case ModeSemantic:
		semanticResults, err = s.rankSemantic(ctx, pages, query, opts, candidateK)
		if err != nil {
			return nil, finalizeErr(ctx, err)
		}
	default: // hybrid
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var embedErr error
			semanticResults, embedErr = s.rankSemantic(gctx, pages, query, opts, candidateK)
			return embedErr
		})
		g.Go(func() error {
			keywordResults = rank.Keyword(pages, query, candidateK)
			return nil
		})
		if err := g.Wait(); err != nil {
			if opts.DegradeOnEmbedFailure && herrors.GetCode(err) == "ERR_EMBEDDING_UNAVAILABLE" {
				semanticResults = nil
			} else {
				return nil, finalizeErr(ctx, err)
			}
		}
	}

	var fused []fusion.Result
	if opts.Mode == ModeHybrid {
		fused = fusion.Fuse(semanticResults, keywordResults, opts.Alpha, opts.K)
	} else {
		fused = projectSingleMode(semanticResults, keywordResults, opts.Mode)
		if opts.K < len(fused) {
			fused = fused[:opts.K]
		}
	}

	results := s.enrich(fused, opts)
	s.results.put(query, opts, results)
	s.recordQuery(query, opts.Mode, len(results), start)
	return results, nil
}

// recordQuery logs a completed search to the query-telemetry collector, a
// no-op when no collector was configured.
func (s *Service) recordQuery(query string, mode Mode, resultCount int, startMS int64) {
	if s.metrics == nil {
		return
	}
	qt := telemetry.QueryTypeMixed
	switch mode {
	case ModeSemantic:
		qt = telemetry.QueryTypeSemantic
	case ModeKeyword:
		qt = telemetry.QueryTypeLexical
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   qt,
		ResultCount: resultCount,
		Latency:     time.Duration(s.nowFn()-startMS) * time.Millisecond,
		Timestamp:   time.UnixMilli(s.nowFn()),
	})
}

func (s *Service) rankSemantic(ctx context.Context, pages []*store.PageRecord, query string, opts Options, k int) ([]rank.SemanticResult, error) {
	vec, err := s.embedder.Embed(ctx, embed.Request{Text: query, Task: embed.TaskQuery})
	if err != nil {
		return nil, err
	}
	if cached, ok := s.semantic.get(vec); ok {
		return cached, nil
	}
	results, err := rank.Semantic(ctx, pages, vec, rank.SemanticOptions{K: k, MinSimilarity: opts.MinSimilarity})
	if err != nil {
		return nil, err
	}
	s.semantic.put(vec, results)
	return results, nil
}

func finalizeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return herrors.Cancelled("search", ctx.Err())
	}
	return err
}

// projectSingleMode converts a single ranker's output into fusion.Result so
// single-mode and hybrid searches share one enrichment path.
func projectSingleMode(semantic []rank.SemanticResult, keyword []rank.KeywordResult, mode Mode) []fusion.Result {
	if mode == ModeSemantic {
		out := make([]fusion.Result, len(semantic))
		for i, s := range semantic {
			out[i] = fusion.Result{
				Page:       s.Page,
				Score:      s.Relevance,
				Similarity: s.Similarity,
				TopSnippet: s.TopSnippet,
				Mode:       "semantic",
				Confidence: s.Confidence,
			}
		}
		return out
	}
	out := make([]fusion.Result, len(keyword))
	for i, q := range keyword {
		out[i] = fusion.Result{
			Page:         q.Page,
			Score:        q.Score,
			KeywordScore: q.Score,
			MatchedTerms: q.MatchedTerms,
			Mode:         "keyword",
			Confidence:   rank.ConfidenceMedium,
		}
	}
	return out
}

func (s *Service) enrich(fused []fusion.Result, opts Options) []Result {
	results := make([]Result, len(fused))
	for i, f := range fused {
		relevance := f.Score
		if opts.BoostRecent || opts.BoostFrequent {
			relevance = applyBoosts(relevance, f.Page, opts, s.nowFn())
		}
		results[i] = Result{
			Page:         f.Page,
			Similarity:   f.Similarity,
			Relevance:    relevance,
			Mode:         f.Mode,
			Confidence:   f.Confidence,
			KeywordScore: f.KeywordScore,
			MatchedTerms: f.MatchedTerms,
			TopSnippet:   f.TopSnippet,
		}
	}
	return results
}

// applyBoosts nudges relevance by recency and visit frequency, both capped
// so they can tilt a ranking but never invert a strong semantic/keyword signal.
func applyBoosts(relevance float64, page *store.PageRecord, opts Options, now int64) float64 {
	boosted := relevance
	if opts.BoostRecent && page.Timestamp > 0 {
		ageDays := float64(now-page.Timestamp) / float64(24*60*60*1000)
		if ageDays < 0 {
			ageDays = 0
		}
		recency := 1.0 / (1.0 + ageDays/30.0)
		boosted += opts.RecencyWeight * recency
	}
	if opts.BoostFrequent && page.VisitCount > 1 {
		frequency := math.Log(float64(page.VisitCount)) / math.Log(10)
		boosted += opts.FrequencyWeight * frequency
	}
	return boosted
}

// RecordSearchAccess updates last_accessed for id after a result is opened.
func (s *Service) RecordSearchAccess(ctx context.Context, id string) error {
	return s.store.RecordSearchAccess(ctx, id, s.nowFn())
}

// Delete removes a page and invalidates cached results.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.results.clear()
	s.semantic.clear()
	return nil
}

// Clear empties the store and invalidates cached results.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.results.clear()
	s.semantic.clear()
	return nil
}

// Stats reports store statistics.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

func pageID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}
