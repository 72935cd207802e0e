// Package metrics holds the Prometheus collectors for context ingestion, retrieval and LLM calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pmagent"

// Metrics contains the service's collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIngested *prometheus.CounterVec
	DuplicatesSkipped *prometheus.CounterVec
	DocumentsEvicted  *prometheus.CounterVec
	CollectionSize    *prometheus.GaugeVec
	Queries           *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec
	EmbeddingErrors   *prometheus.CounterVec
	LLMRequests       *prometheus.CounterVec
	LLMDuration       prometheus.Histogram
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		DocumentsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "documents_ingested_total",
				Help:      "Total number of documents inserted or replaced",
			},
			[]string{"collection"},
		),

		DuplicatesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "duplicates_skipped_total",
				Help:      "Total number of ingested texts skipped as duplicates",
			},
			[]string{"collection"},
		),

		DocumentsEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "documents_evicted_total",
				Help:      "Total number of documents evicted by the capacity limit",
			},
			[]string{"collection"},
		),

		CollectionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "collection_documents",
				Help:      "Number of documents in the collection",
			},
			[]string{"collection"},
		),

		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "queries_total",
				Help:      "Total number of nearest-neighbor queries",
			},
			[]string{"collection", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "query_duration_seconds",
				Help:      "Nearest-neighbor query duration in seconds, embedding included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection"},
		),

		EmbeddingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "errors_total",
				Help:      "Total number of failed embedding calls",
			},
			[]string{"operation"},
		),

		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "Total number of LLM completion requests",
			},
			[]string{"agent", "status"},
		),

		LLMDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "request_duration_seconds",
				Help:      "LLM completion duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DocumentsIngested,
		m.DuplicatesSkipped,
		m.DocumentsEvicted,
		m.CollectionSize,
		m.Queries,
		m.QueryDuration,
		m.EmbeddingErrors,
		m.LLMRequests,
		m.LLMDuration,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
