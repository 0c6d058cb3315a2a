package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
	"github.com/54b3r/supportai-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// It must exceed AskTimeout and a full rebuild.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds one /api/ask request (default: 90s).
	AskTimeout time.Duration
	// MaxBodyBytes caps request bodies (default: 10 MiB).
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// MetricsRegistry receives the server metrics. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. If nil,
	// prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// service is the pipeline surface the handlers call. *pipeline.Pipeline
// satisfies it; tests inject a fake.
type service interface {
	Ask(ctx context.Context, question string) (*answer.Answer, error)
	Ingest(ctx context.Context, text, source string) (index.AddStats, error)
	Rebuild(ctx context.Context, docs []rag.Document) (pipeline.Stats, error)
	RebuildFromSource(ctx context.Context, urls []string) (pipeline.Stats, error)
	Stats() pipeline.Stats
	Ready() bool
}

// AskHistory reads the ask log. *store.SQLiteStore satisfies it.
type AskHistory interface {
	RecentAsks(ctx context.Context, n int) ([]store.AskRecord, error)
}

// Server exposes the support pipeline over HTTP.
type Server struct {
	// svc answers, ingests and rebuilds.
	svc service
	// history serves GET /api/history; nil disables the endpoint.
	history AskHistory
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this instance.
	metrics *serverMetrics
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the customer's question.
	Question string `json:"question"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Text is the document text to add.
	Text string `json:"text"`
	// Source identifies the document (URL or label).
	Source string `json:"source"`
}

// rebuildRequest is the JSON body for POST /api/rebuild. With Text the index
// is rebuilt from that single document; otherwise URLs (or the configured
// corpus when empty) are fetched.
type rebuildRequest struct {
	// Text is an optional inline corpus.
	Text string `json:"text,omitempty"`
	// Source labels Text.
	Source string `json:"source,omitempty"`
	// URLs overrides the configured corpus pages.
	URLs []string `json:"urls,omitempty"`
}

// historyResponse is the JSON body for GET /api/history.
type historyResponse struct {
	// Asks holds the most recent answered questions, newest first.
	Asks []store.AskRecord `json:"asks"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	// Error is the failure reason.
	Error string `json:"error"`
}
