package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/pipeline"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// askRequestsTotal counts /api/ask requests by outcome:
	// "ok", "no_answer", "timeout" or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records the latency of /api/ask requests.
	askDurationSeconds *prometheus.HistogramVec

	// answersTotal counts successful answers by composition mode.
	answersTotal *prometheus.CounterVec

	// rebuildsTotal counts rebuild requests by outcome: "ok", "conflict" or "error".
	rebuildsTotal *prometheus.CounterVec

	// indexChunks is the number of chunks in the served snapshot.
	indexChunks prometheus.Gauge

	// indexDocuments is the number of documents in the served snapshot.
	indexDocuments prometheus.Gauge

	// httpRequestsTotal counts all API requests by method, handler and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all API requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportai",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supportai",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"outcome"}),

		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportai",
			Subsystem: "ask",
			Name:      "answers_total",
			Help:      "Answers produced, partitioned by composition mode.",
		}, []string{"mode"}),

		rebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportai",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Rebuild requests, partitioned by outcome.",
		}, []string{"outcome"}),

		indexChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "supportai",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks in the served index snapshot.",
		}),

		indexDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "supportai",
			Subsystem: "index",
			Name:      "documents",
			Help:      "Number of documents in the served index snapshot.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supportai",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeAsk records one /api/ask outcome.
func (m *serverMetrics) observeAsk(ans *answer.Answer, err error, took time.Duration) {
	outcome := askOutcome(ans, err)
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(took.Seconds())
	if err == nil {
		m.answersTotal.WithLabelValues(string(ans.Mode)).Inc()
	}
}

// observeRebuild records one rebuild outcome.
func (m *serverMetrics) observeRebuild(err error) {
	switch {
	case err == nil:
		m.rebuildsTotal.WithLabelValues("ok").Inc()
	case statusFor(err) == http.StatusConflict:
		m.rebuildsTotal.WithLabelValues("conflict").Inc()
	default:
		m.rebuildsTotal.WithLabelValues("error").Inc()
	}
}

// observeIndex publishes the served index size.
func (m *serverMetrics) observeIndex(st pipeline.Stats) {
	m.indexChunks.Set(float64(st.NumChunks))
	m.indexDocuments.Set(float64(st.NumDocuments))
}
