package metrics

import "github.com/prometheus/client_golang/prometheus"

// Corrective RAG loop metrics.
var (
	RagAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "papersrag",
			Name:      "rag_attempts_total",
			Help:      "Retrieval attempts by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: baseline/hyde, outcome: ok/error
	)

	RagSupportScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "papersrag",
			Name:      "rag_support_score",
			Help:      "Support score distribution per attempt",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"kind"},
	)

	RagAnswerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "papersrag",
			Name:      "rag_answer_duration_seconds",
			Help:      "Full corrective cycle duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"}, // "answered" / "no_answer"
	)

	IndexDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "papersrag",
			Name:      "index_documents",
			Help:      "Number of papers in the active similarity index",
		},
	)
)

var ragMetricsRegistered bool

// RegisterRagMetrics registers corrective-loop metrics. Must be called once from main.
func RegisterRagMetrics() {
	if ragMetricsRegistered {
		return
	}
	prometheus.MustRegister(RagAttemptsTotal)
	prometheus.MustRegister(RagSupportScore)
	prometheus.MustRegister(RagAnswerDuration)
	prometheus.MustRegister(IndexDocuments)
	ragMetricsRegistered = true
}
