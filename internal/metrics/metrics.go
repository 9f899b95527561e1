package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	FilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "files_total",
			Help:      "Files seen by the ingestion pipeline",
		},
		[]string{"status"}, // "ingested" / "skipped" / "failed"
	)

	RecordsParsedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "records_parsed_total",
			Help:      "Log records parsed successfully",
		},
	)

	RecordsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "records_malformed_total",
			Help:      "Log records skipped as malformed",
		},
	)

	ChunksBuiltTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "chunks_built_total",
			Help:      "Chunks produced by the chunker",
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lograg",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	UpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "upserts_total",
			Help:      "Vector upsert batches by status",
		},
		[]string{"status"},
	)

	UpsertDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lograg",
			Name:      "upsert_duration_seconds",
			Help:      "Vector upsert batch duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lograg",
			Name:      "queries_total",
			Help:      "RAG queries by outcome",
		},
		[]string{"outcome"}, // "answered" / "no_results" / "error"
	)
)

var registered bool

// Register registers the pipeline metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(FilesTotal)
	prometheus.MustRegister(RecordsParsedTotal)
	prometheus.MustRegister(RecordsMalformedTotal)
	prometheus.MustRegister(ChunksBuiltTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(UpsertsTotal)
	prometheus.MustRegister(UpsertDuration)
	prometheus.MustRegister(QueriesTotal)
	registered = true
}
