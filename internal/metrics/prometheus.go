// Package metrics exposes historian's query telemetry as Prometheus gauges,
// for an operator dashboard or alerting rule to scrape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/historian-labs/historian/internal/telemetry"
)

// Collector adapts a telemetry.QueryMetrics snapshot to the Prometheus
// collector interface, computing gauge values on every scrape rather than
// tracking a parallel set of counters.
type Collector struct {
	source *telemetry.QueryMetrics

	totalQueries    *prometheus.Desc
	zeroResultCount *prometheus.Desc
	queryTypeCount  *prometheus.Desc
	latencyBucket   *prometheus.Desc
}

// NewCollector wraps source, whose Snapshot is read on every scrape.
func NewCollector(source *telemetry.QueryMetrics) *Collector {
	return &Collector{
		source: source,
		totalQueries: prometheus.NewDesc(
			"historian_queries_total", "Total search queries served.", nil, nil),
		zeroResultCount: prometheus.NewDesc(
			"historian_queries_zero_result_total", "Search queries that returned no results.", nil, nil),
		queryTypeCount: prometheus.NewDesc(
			"historian_queries_by_type_total", "Search queries broken down by ranking mode.", []string{"query_type"}, nil),
		latencyBucket: prometheus.NewDesc(
			"historian_query_latency_bucket_total", "Search queries by latency bucket.", []string{"bucket"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalQueries
	ch <- c.zeroResultCount
	ch <- c.queryTypeCount
	ch <- c.latencyBucket
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.totalQueries, prometheus.CounterValue, float64(snap.TotalQueries))
	ch <- prometheus.MustNewConstMetric(c.zeroResultCount, prometheus.CounterValue, float64(snap.ZeroResultCount))

	for qt, count := range snap.QueryTypeCounts {
		ch <- prometheus.MustNewConstMetric(c.queryTypeCount, prometheus.CounterValue, float64(count), string(qt))
	}
	for bucket, count := range snap.LatencyDistribution {
		ch <- prometheus.MustNewConstMetric(c.latencyBucket, prometheus.CounterValue, float64(count), string(bucket))
	}
}

// Handler returns an http.Handler serving source's metrics in the
// Prometheus text exposition format at, conventionally, "/metrics".
func Handler(source *telemetry.QueryMetrics) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
