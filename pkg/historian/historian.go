// Package historian is the public entry point for embedding history search
// into another program. It wires the on-disk store, embedding backend,
// chunker, and query service into a single handle.
package historian

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/historian-labs/historian/internal/chunk"
	"github.com/historian-labs/historian/internal/config"
	"github.com/historian-labs/historian/internal/embed"
	"github.com/historian-labs/historian/internal/search"
	"github.com/historian-labs/historian/internal/store"
	"github.com/historian-labs/historian/internal/telemetry"
)

// Mode selects which ranker(s) contribute to a search. Re-exported from
// internal/search so callers outside this module never import internal/.
type Mode = search.Mode

const (
	ModeSemantic = search.ModeSemantic
	ModeKeyword  = search.ModeKeyword
	ModeHybrid   = search.ModeHybrid
)

// Options configures a single Search call.
type Options = search.Options

// DefaultOptions returns the default search Options.
func DefaultOptions() Options { return search.DefaultOptions() }

// Result is one ranked page returned from Search.
type Result = search.Result

// IndexInput is the payload accepted by Index.
type IndexInput = search.IndexInput

// IndexOutput reports what Index did.
type IndexOutput = search.IndexOutput

// Stats reports store statistics.
type Stats = store.Stats

// Historian is a handle on one user's indexed browsing history.
type Historian struct {
	svc      *search.Service
	store    store.Store
	embedder embed.Embedder
	metrics  *telemetry.QueryMetrics
}

// Open opens (or creates) the index at cfg.Paths.IndexDir and wires the
// embedding backend, chunker, and query service around it. Pass nil to use
// config.NewConfig()'s defaults (~/.historian, static embeddings).
func Open(cfg *config.Config) (*Historian, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	dbPath := filepath.Join(cfg.Paths.IndexDir, "index.db")
	st, err := store.Open(dbPath, slog.Default())
	if err != nil {
		return nil, err
	}

	base := embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	retrying := embed.NewRetryingEmbedder(base, cfg.Embeddings.CallTimeout, slog.Default())
	cached := embed.NewCachedEmbedder(retrying, cfg.Cache.EmbeddingCacheSize)

	metrics, err := newMetricsCollector(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	svc := search.New(search.Config{
		Store:     st,
		Embedder:  cached,
		Chunker:   chunk.NewWithOptions(chunkOptionsFrom(cfg)),
		Logger:    slog.Default(),
		CacheSize: cfg.Cache.ResultCacheSize,
		CacheTTL:  cfg.Cache.ResultCacheTTL,
		Metrics:   metrics,
	})

	return &Historian{svc: svc, store: st, embedder: cached, metrics: metrics}, nil
}

// newMetricsCollector persists query telemetry to the same database file as
// the page index: query-type counts, top terms and latency buckets are
// flushed there, while zero-result queries and counts stay in memory only.
func newMetricsCollector(st *store.SQLiteStore) (*telemetry.QueryMetrics, error) {
	db := st.DB()
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return nil, err
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return nil, err
	}
	return telemetry.NewQueryMetrics(metricsStore), nil
}

func chunkOptionsFrom(cfg *config.Config) chunk.Options {
	return chunk.Options{
		MaxWordsPerPassage:    cfg.Chunking.MaxWordsPerPassage,
		MaxPassagesPerPage:    cfg.Chunking.MaxPassagesPerPage,
		SiblingMergeThreshold: cfg.Chunking.SiblingMergeThreshold,
		MinQuality:            cfg.Chunking.MinQuality,
		MinPassageWords:       cfg.Chunking.MinPassageWords,
		ContentCapChars:       cfg.Chunking.ContentCapChars,
	}
}

// Index chunks, embeds, and stores a page's content.
func (h *Historian) Index(ctx context.Context, in IndexInput) (IndexOutput, error) {
	return h.svc.Index(ctx, in)
}

// Search runs a hybrid/semantic/keyword search over the indexed history.
func (h *Historian) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	return h.svc.Search(ctx, query, opts)
}

// RecordSearchAccess marks a result as opened, for recency boosting.
func (h *Historian) RecordSearchAccess(ctx context.Context, id string) error {
	return h.svc.RecordSearchAccess(ctx, id)
}

// Delete removes a single page from the index.
func (h *Historian) Delete(ctx context.Context, id string) error {
	return h.svc.Delete(ctx, id)
}

// Clear removes every page from the index.
func (h *Historian) Clear(ctx context.Context) error {
	return h.svc.Clear(ctx)
}

// Stats reports index size and coverage.
func (h *Historian) Stats(ctx context.Context) (Stats, error) {
	return h.svc.Stats(ctx)
}

// Metrics returns the query telemetry collector backing this handle, for
// callers that want to surface zero-result rates or top terms.
func (h *Historian) Metrics() *telemetry.QueryMetrics {
	return h.metrics
}

// EmbedderInfo reports the embedding backend's model name and vector
// dimensions, for diagnosing a dimension mismatch after a model change.
func (h *Historian) EmbedderInfo() (model string, dimensions int) {
	return h.embedder.ModelName(), h.embedder.Dimensions()
}

// Service exposes the underlying query service for callers that need to
// wire it into a transport, such as an MCP server.
func (h *Historian) Service() *search.Service {
	return h.svc
}

// Close releases the index's store resources (file locks, connections).
func (h *Historian) Close() error {
	_ = h.metrics.Close()
	return h.store.Close()
}
