package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "learnbridge"

// Embedding chain metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding batch requests",
		},
		[]string{"provider", "status"}, // ok / retry / error
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding batch request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	EmbeddingFailoversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failovers_total",
			Help:      "Times a provider was abandoned for the next one in the chain",
		},
		[]string{"provider"},
	)
)

// Vectorization run metrics.
var (
	VectorizeRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectorize_runs_total",
			Help:      "Vectorization runs by outcome",
		},
		[]string{"outcome"}, // completed / failed / rejected
	)

	VectorizeStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vectorize_stage_duration_seconds",
			Help:      "Duration of each vectorization stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	VectorizeChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectorize_chunks_total",
			Help:      "Chunks persisted by completed runs",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the run, embedding and HTTP metrics with the default registry.
// Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingFailoversTotal,
			VectorizeRunsTotal,
			VectorizeStageDuration,
			VectorizeChunksTotal,
			httpRequestDuration,
			httpRequestsTotal,
			httpInFlight,
		)
	})
}
