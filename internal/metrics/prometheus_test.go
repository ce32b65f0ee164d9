package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historian-labs/historian/internal/telemetry"
)

// AC01: the /metrics handler serves a recorded query as a Prometheus counter.
func TestHandler_ServesRecordedQueryCounts(t *testing.T) {
	qm := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = qm.Close() })

	qm.Record(telemetry.QueryEvent{Query: "coral reefs", QueryType: telemetry.QueryTypeSemantic, ResultCount: 3})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(qm).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "historian_queries_total 1")
	assert.Contains(t, body, `historian_queries_by_type_total{query_type="semantic"} 1`)
}

// AC02: an empty collector still reports zero totals rather than erroring.
func TestHandler_EmptyCollector(t *testing.T) {
	qm := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = qm.Close() })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(qm).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "historian_queries_total 0")
}
