package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/qdrant/go-client/qdrant"
)

// IndexPinger reports whether the pipeline is serving a snapshot.
type IndexPinger struct {
	// ready reports pipeline readiness.
	ready func() bool
}

// NewIndexPinger constructs an IndexPinger around a readiness check such as
// (*pipeline.Pipeline).Ready.
func NewIndexPinger(ready func() bool) *IndexPinger {
	return &IndexPinger{ready: ready}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "index" }

// Ping fails until an index has been loaded, ingested or rebuilt.
func (p *IndexPinger) Ping(_ context.Context) error {
	if !p.ready() {
		return errors.New("index not ready")
	}
	return nil
}

// StorePinger probes the SQLite database.
type StorePinger struct {
	// db is pinged on every probe.
	db interface{ Ping() error }
}

// NewStorePinger constructs a StorePinger. *store.SQLiteStore satisfies db.
func NewStorePinger(db interface{ Ping() error }) *StorePinger {
	return &StorePinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "sqlite" }

// Ping checks the database connection.
func (p *StorePinger) Ping(_ context.Context) error {
	if err := p.db.Ping(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// HTTPPinger probes an HTTP backend (e.g. Ollama) with a GET request. Any
// status below 500 counts as reachable, so no tokens are spent on probes.
type HTTPPinger struct {
	// name identifies the backend in readiness responses.
	name string
	// url is requested on every probe.
	url string
	// client performs the probe.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for url.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, client: http.DefaultClient}
}

// Name returns the backend label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues a GET against the configured URL.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
