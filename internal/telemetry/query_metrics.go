// Package telemetry tracks aggregate query patterns — how often each ranking
// mode is used, which terms come up often, which queries return nothing —
// entirely on-device, so search quality can be diagnosed without shipping
// any query text off the machine.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryType classifies which ranker(s) served a query.
type QueryType string

const (
	QueryTypeLexical  QueryType = "lexical"
	QueryTypeSemantic QueryType = "semantic"
	QueryTypeMixed    QueryType = "mixed"
)

// LatencyBucket is one bucket of a query-latency histogram.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "p10"
	BucketUnder50ms  LatencyBucket = "p50"
	BucketUnder100ms LatencyBucket = "p100"
	BucketUnder500ms LatencyBucket = "p500"
	BucketOver500ms  LatencyBucket = "p1000"
)

// LatencyToBucket classifies d into its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketOver500ms
	}
}

// QueryEvent is one completed search, as reported to Record.
type QueryEvent struct {
	Query       string
	QueryType   QueryType
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the query came back empty.
func (e QueryEvent) IsZeroResult() bool { return e.ResultCount == 0 }

// ring is a fixed-capacity FIFO buffer that overwrites its oldest entry once
// full, used to bound how much raw query/embedding history is retained.
type ring[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = item
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// oldestFirst returns a copy of the buffer's contents, oldest entry first.
func (r *ring[T]) oldestFirst() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.n)
	if r.n < len(r.buf) {
		copy(out, r.buf[:r.n])
		return out
	}
	copy(out, r.buf[r.next:])
	copy(out[len(r.buf)-r.next:], r.buf[:r.next])
	return out
}

func (r *ring[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// minTermLength excludes stopword-sized noise ("a", "to", "in") from term
// tracking, keeping the top-terms view meaningful without a stopword list.
const minTermLength = 3

// splitTerms lowercases query and returns its words of at least
// minTermLength characters, for frequency tracking.
func splitTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a query term and how often it has appeared.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryMetricsSnapshot is a point-in-time copy of a QueryMetrics collector,
// safe to read or serialize without holding any lock.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	Since               time.Time               `json:"since"`

	// Repetition tracking: how often the same or a near-identical query is
	// re-issued, a signal that the user isn't finding what they want.
	ExactRepeatCount  int64   `json:"exact_repeat_count"`
	ExactRepeatRate   float64 `json:"exact_repeat_rate"`
	SimilarQueryCount int64   `json:"similar_query_count"`
	SimilarQueryRate  float64 `json:"similar_query_rate"`
	UniqueQueryCount  int64   `json:"unique_query_count"`
}

// ZeroResultPercentage is ZeroResultCount over TotalQueries, as a percentage.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryMetricsStore persists query telemetry across restarts.
type QueryMetricsStore interface {
	// SaveQueryTypeCounts upserts daily query type counts.
	SaveQueryTypeCounts(date string, counts map[QueryType]int64) error

	// GetQueryTypeCounts retrieves counts for a date range.
	GetQueryTypeCounts(from, to string) (map[QueryType]int64, error)

	// UpsertTermCounts updates term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms retrieves the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records a query that came back empty.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries retrieves recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases resources.
	Close() error
}

// QueryMetricsConfig tunes a QueryMetrics collector's retention and
// flush cadence.
type QueryMetricsConfig struct {
	TopTermsCapacity    int
	ZeroResultsCapacity int
	FlushInterval       time.Duration // 0 disables auto-flush

	RecentQueriesCapacity    int     // window for exact-repeat detection
	RecentEmbeddingsCapacity int     // window for near-duplicate detection
	SimilarityThreshold      float64 // cosine similarity counted as "similar"
}

// DefaultQueryMetricsConfig is a 100-term, 100-query, 60s-flush collector
// with a 500-query exact-repeat window and a 0.95 similarity threshold.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:         100,
		ZeroResultsCapacity:      100,
		FlushInterval:            60 * time.Second,
		RecentQueriesCapacity:    500,
		RecentEmbeddingsCapacity: 10,
		SimilarityThreshold:      0.95,
	}
}

func (cfg QueryMetricsConfig) withDefaults() QueryMetricsConfig {
	d := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = d.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = d.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = d.RecentQueriesCapacity
	}
	if cfg.RecentEmbeddingsCapacity <= 0 {
		cfg.RecentEmbeddingsCapacity = d.RecentEmbeddingsCapacity
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = d.SimilarityThreshold
	}
	return cfg
}

// QueryMetrics accumulates query telemetry in memory, optionally flushing
// periodically to a QueryMetricsStore. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	queryTypes      map[QueryType]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *ring[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time

	recentQueries     *lru.Cache[string, struct{}]
	exactRepeatCount  int64
	recentEmbeddings  *ring[[]float32]
	similarQueryCount int64

	store       QueryMetricsStore
	config      QueryMetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics builds a collector with default configuration. A nil store
// keeps metrics in memory only; they do not survive a restart.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig builds a collector with custom retention limits.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	cfg = cfg.withDefaults()

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		queryTypes:       make(map[QueryType]int64),
		topTerms:         topTerms,
		zeroResults:      newRing[string](cfg.ZeroResultsCapacity),
		latencies:        make(map[LatencyBucket]int64),
		startTime:        time.Now(),
		recentQueries:    recentQueries,
		recentEmbeddings: newRing[[]float32](cfg.RecentEmbeddingsCapacity),
		store:            store,
		config:           cfg,
		stopCh:           make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one completed query. Safe to call from any goroutine;
// never blocks on storage.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.queryTypes[event.QueryType]++
	m.totalQueries++

	for _, term := range splitTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.push(event.Query)
		m.zeroResultCount++
	}

	m.latencies[LatencyToBucket(event.Latency)]++

	key := normalizedQueryKey(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})
}

// normalizedQueryKey hashes a case/whitespace-normalized query so the
// exact-repeat LRU doesn't retain raw query text any longer than necessary.
func normalizedQueryKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// RecordQueryEmbedding samples embedding, comparing it against recently seen
// query embeddings to detect near-duplicate (not merely exact-repeat)
// queries. Call after Record for queries where an embedding was computed;
// skipping this call leaves exact-repeat tracking intact.
func (m *QueryMetrics) RecordQueryEmbedding(embedding []float32) {
	if len(embedding) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for _, prev := range m.recentEmbeddings.oldestFirst() {
		if cosineSimilarity(embedding, prev) > m.config.SimilarityThreshold {
			m.similarQueryCount++
			break
		}
	}

	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	m.recentEmbeddings.push(cp)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Snapshot copies the collector's current state for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	typeCounts := make(map[QueryType]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		typeCounts[k] = v
	}

	topTerms := make([]TermCount, 0, len(m.topTerms.Keys()))
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool { return topTerms[i].Count > topTerms[j].Count })

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var exactRate, similarRate float64
	if m.totalQueries > 0 {
		exactRate = float64(m.exactRepeatCount) / float64(m.totalQueries)
		similarRate = float64(m.similarQueryCount) / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     typeCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.oldestFirst(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		Since:               m.startTime,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     exactRate,
		SimilarQueryCount:   m.similarQueryCount,
		SimilarQueryRate:    similarRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
	}
}

// Flush persists the in-memory snapshot to the backing store. A no-op when
// no store is configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.RLock()
	snap := m.Snapshot()
	m.mu.RUnlock()

	today := time.Now().Format("2006-01-02")

	if err := m.store.SaveQueryTypeCounts(today, snap.QueryTypeCounts); err != nil {
		return err
	}

	terms := make(map[string]int64, len(snap.TopTerms))
	for _, tc := range snap.TopTerms {
		terms[tc.Term] = tc.Count
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}

	return m.store.SaveLatencyCounts(today, snap.LatencyDistribution)
}

// Close stops auto-flush, flushes one last time, and marks the collector
// closed; subsequent Record/RecordQueryEmbedding calls are silently dropped.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
