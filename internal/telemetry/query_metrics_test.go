package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_FIFOOrder(t *testing.T) {
	r := newRing[string](10)
	r.push("a")
	r.push("b")
	r.push("c")

	assert.Equal(t, []string{"a", "b", "c"}, r.oldestFirst())
}

func TestRing_EvictsOldestPastCapacity(t *testing.T) {
	r := newRing[string](3)
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		r.push(v)
	}

	assert.Equal(t, []string{"c", "d", "e"}, r.oldestFirst())
	assert.Equal(t, 3, r.len())
}

func TestRing_EmptyReturnsEmptyNotNil(t *testing.T) {
	r := newRing[string](5)
	items := r.oldestFirst()
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestLatencyToBucket(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketUnder10ms},
		{9 * time.Millisecond, BucketUnder10ms},
		{10 * time.Millisecond, BucketUnder50ms},
		{49 * time.Millisecond, BucketUnder50ms},
		{50 * time.Millisecond, BucketUnder100ms},
		{99 * time.Millisecond, BucketUnder100ms},
		{100 * time.Millisecond, BucketUnder500ms},
		{499 * time.Millisecond, BucketUnder500ms},
		{500 * time.Millisecond, BucketOver500ms},
		{5 * time.Second, BucketOver500ms},
	}
	for _, tc := range cases {
		t.Run(tc.d.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, LatencyToBucket(tc.d))
		})
	}
}

func TestQueryMetrics_RecordTallysPerType(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "find error handler", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 25 * time.Millisecond})
	m.Record(QueryEvent{Query: "ErrorHandler", QueryType: QueryTypeLexical, ResultCount: 3, Latency: 15 * time.Millisecond})
	m.Record(QueryEvent{Query: "error handling pattern", QueryType: QueryTypeSemantic, ResultCount: 8, Latency: 50 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.QueryTypeCounts[QueryTypeSemantic])
	assert.Equal(t, int64(1), snap.QueryTypeCounts[QueryTypeLexical])
	assert.Equal(t, int64(3), snap.TotalQueries)
}

func TestQueryMetrics_TracksRepeatedTerms(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "error handling", QueryType: QueryTypeMixed, ResultCount: 5, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "error retry", QueryType: QueryTypeMixed, ResultCount: 3, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "error backoff", QueryType: QueryTypeMixed, ResultCount: 2, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "retry backoff", QueryType: QueryTypeMixed, ResultCount: 1, Latency: 10 * time.Millisecond})

	snap := m.Snapshot()
	var errorCount int64
	for _, tc := range snap.TopTerms {
		if tc.Term == "error" {
			errorCount = tc.Count
		}
	}
	assert.Equal(t, int64(3), errorCount)
}

func TestQueryMetrics_CapturesZeroResultQueries(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "nonexistent function", QueryType: QueryTypeSemantic, ResultCount: 0, Latency: 30 * time.Millisecond})
	m.Record(QueryEvent{Query: "found something", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "another miss", QueryType: QueryTypeLexical, ResultCount: 0, Latency: 15 * time.Millisecond})

	snap := m.Snapshot()
	assert.Len(t, snap.ZeroResultQueries, 2)
	assert.Contains(t, snap.ZeroResultQueries, "nonexistent function")
	assert.Contains(t, snap.ZeroResultQueries, "another miss")
}

func TestQueryMetrics_BucketsLatencyAcrossEvents(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "fast", QueryType: QueryTypeLexical, ResultCount: 1, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "medium1", QueryType: QueryTypeLexical, ResultCount: 1, Latency: 25 * time.Millisecond})
	m.Record(QueryEvent{Query: "medium2", QueryType: QueryTypeLexical, ResultCount: 1, Latency: 35 * time.Millisecond})
	m.Record(QueryEvent{Query: "slow", QueryType: QueryTypeLexical, ResultCount: 1, Latency: 200 * time.Millisecond})
	m.Record(QueryEvent{Query: "very slow", QueryType: QueryTypeLexical, ResultCount: 1, Latency: time.Second})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketUnder10ms])
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketUnder50ms])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketUnder500ms])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketOver500ms])
}

func TestQueryMetrics_ConcurrentRecordsAllLand(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	const goroutines, perGoroutine = 100, 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Record(QueryEvent{Query: "test query", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 20 * time.Millisecond})
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, goroutines*perGoroutine, m.Snapshot().TotalQueries)
}

func TestQueryMetrics_ZeroResultRingRespectsCapacity(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 5,
	})
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.Record(QueryEvent{Query: "miss" + string(rune('A'+i)), QueryType: QueryTypeSemantic, ResultCount: 0, Latency: 10 * time.Millisecond})
	}

	snap := m.Snapshot()
	assert.Len(t, snap.ZeroResultQueries, 5)
	assert.Contains(t, snap.ZeroResultQueries, "missJ")
	assert.NotContains(t, snap.ZeroResultQueries, "missA")
}

func TestQueryMetrics_TopTermsRespectsLRUCapacity(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{
		TopTermsCapacity:    5,
		ZeroResultsCapacity: 100,
	})
	defer m.Close()

	for _, q := range []string{"alpha beta", "gamma delta", "epsilon zeta", "eta theta", "iota kappa"} {
		m.Record(QueryEvent{Query: q, QueryType: QueryTypeMixed, ResultCount: 1, Latency: 10 * time.Millisecond})
	}

	assert.LessOrEqual(t, len(m.Snapshot().TopTerms), 5)
}

func TestSplitTerms(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"error handling", []string{"error", "handling"}},
		{"findUser", []string{"finduser"}},
		{"  spaces  around  ", []string{"spaces", "around"}},
		{"", nil},
		{"a", nil},
		{"ab", nil},
		{"abc", []string{"abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, splitTerms(tc.query))
		})
	}
}

func TestQueryEvent_IsZeroResult(t *testing.T) {
	assert.True(t, QueryEvent{Query: "missing", ResultCount: 0}.IsZeroResult())
	assert.False(t, QueryEvent{Query: "found", ResultCount: 5}.IsZeroResult())
}

func TestQueryMetricsSnapshot_ZeroResultPercentage(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	for i := 0; i < 8; i++ {
		m.Record(QueryEvent{Query: "found", QueryType: QueryTypeMixed, ResultCount: 5, Latency: 10 * time.Millisecond})
	}
	for i := 0; i < 2; i++ {
		m.Record(QueryEvent{Query: "missed", QueryType: QueryTypeMixed, ResultCount: 0, Latency: 10 * time.Millisecond})
	}

	assert.InDelta(t, 20.0, m.Snapshot().ZeroResultPercentage(), 0.01)
}

func TestQueryMetrics_CloseThenRecordIsANoOp(t *testing.T) {
	m := NewQueryMetrics(nil)

	m.Record(QueryEvent{Query: "search function", QueryType: QueryTypeSemantic, ResultCount: 10, Latency: 25 * time.Millisecond})
	m.Record(QueryEvent{Query: "ErrorHandler", QueryType: QueryTypeLexical, ResultCount: 3, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "missing pattern", QueryType: QueryTypeMixed, ResultCount: 0, Latency: 100 * time.Millisecond})

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Len(t, snap.ZeroResultQueries, 1)

	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "after close", QueryType: QueryTypeMixed, ResultCount: 1, Latency: 10 * time.Millisecond})
	assert.Equal(t, int64(3), m.Snapshot().TotalQueries, "a closed collector must not record further events")
}

func TestQueryMetrics_ExactRepeatsAreCountedAndRated(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "search function", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "another query", QueryType: QueryTypeSemantic, ResultCount: 3, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "search function", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "search function", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.ExactRepeatCount)
	assert.InDelta(t, 0.5, snap.ExactRepeatRate, 0.01)
}

func TestQueryMetrics_ExactRepeatIgnoresCaseAndWhitespace(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.Record(QueryEvent{Query: "Search Function", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "search function", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})
	m.Record(QueryEvent{Query: "  SEARCH FUNCTION  ", QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.ExactRepeatCount)
}

func TestQueryMetrics_UniqueQueryCount(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	for _, q := range []string{"query a", "query b", "query c", "query a", "query b"} {
		m.Record(QueryEvent{Query: q, QueryType: QueryTypeSemantic, ResultCount: 5, Latency: 10 * time.Millisecond})
	}

	snap := m.Snapshot()
	assert.Equal(t, int64(5), snap.TotalQueries)
	assert.Equal(t, int64(3), snap.UniqueQueryCount)
}

func TestQueryMetrics_SimilarEmbeddingIsCountedOnce(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{SimilarityThreshold: 0.95})
	defer m.Close()

	similarTo1 := []float32{0.99, 0.1, 0, 0}
	orthogonal := []float32{0, 1, 0, 0}

	m.RecordQueryEmbedding([]float32{1, 0, 0, 0})
	m.RecordQueryEmbedding(similarTo1)
	m.RecordQueryEmbedding(orthogonal)

	assert.Equal(t, int64(1), m.Snapshot().SimilarQueryCount)
}

func TestQueryMetrics_EmptyEmbeddingIsIgnored(t *testing.T) {
	m := NewQueryMetrics(nil)
	defer m.Close()

	m.RecordQueryEmbedding(nil)
	m.RecordQueryEmbedding([]float32{})

	assert.Equal(t, int64(0), m.Snapshot().SimilarQueryCount)
}

func TestQueryMetrics_SimilarityWindowForgetsEvictedEmbeddings(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{
		RecentEmbeddingsCapacity: 3,
		SimilarityThreshold:      0.95,
	})
	defer m.Close()

	m.RecordQueryEmbedding([]float32{1, 0})
	m.RecordQueryEmbedding([]float32{0, 1})
	m.RecordQueryEmbedding([]float32{0, 0, 1})
	m.RecordQueryEmbedding([]float32{0, 0, 0, 1}) // evicts [1, 0]

	m.RecordQueryEmbedding([]float32{0.99, 0.01}) // would match the evicted entry

	assert.Equal(t, int64(0), m.Snapshot().SimilarQueryCount)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0}), 0.0001)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0}), 0.0001)
	assert.Greater(t, cosineSimilarity([]float32{1, 0, 0}, []float32{0.99, 0.1, 0}), 0.95)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{}, []float32{}))
}
