package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/54b3r/supportai-go/internal/pipeline"
)

type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(pingers ...Pinger) *Server {
	s, _ := newTestServer(&fakeService{}, nil)
	s.pingers = pingers
	return s
}

// Liveness stays 200 while a rebuild is running.
func TestHandleHealth_DuringRebuild(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(&fakeService{stats: pipeline.Stats{Status: pipeline.StatusRebuilding}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
	if body["pipeline"] != "REBUILDING" {
		t.Errorf("pipeline: expected %q, got %q", "REBUILDING", body["pipeline"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantFailed []string
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "index"},
				&fakePinger{name: "sqlite"},
			},
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "qdrant down",
			pingers: []Pinger{
				&fakePinger{name: "index"},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"qdrant"},
		},
		{
			name: "everything down",
			pingers: []Pinger{
				&fakePinger{name: "index", err: errors.New("index not ready")},
				&fakePinger{name: "llm", err: errors.New("timeout")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"index", "llm"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newReadyTestServer(tc.pingers...)
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("got %d checks, want %d", len(resp.Checks), len(tc.pingers))
			}

			var failed []string
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d = %q, want registration order", i, c.Name)
				}
				if c.OK != (c.Error == "") {
					t.Errorf("check %q: ok=%v with error %q", c.Name, c.OK, c.Error)
				}
				if !c.OK {
					failed = append(failed, c.Name)
				}
			}
			if strings.Join(failed, ",") != strings.Join(tc.wantFailed, ",") {
				t.Errorf("failed checks = %v, want %v", failed, tc.wantFailed)
			}
		})
	}
}

// TestIndexPinger verifies the index probe follows pipeline readiness.
func TestIndexPinger(t *testing.T) {
	t.Parallel()

	ready := false
	p := NewIndexPinger(func() bool { return ready })
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected an error before the index is ready")
	}
	ready = true
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("expected nil once ready, got %v", err)
	}
}

// TestHTTPPinger verifies 5xx responses fail and anything else passes.
func TestHTTPPinger(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)

	p := NewHTTPPinger("ollama", srv.URL)
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("200: expected nil, got %v", err)
	}
	status.Store(http.StatusBadGateway)
	if err := p.Ping(context.Background()); err == nil {
		t.Error("502: expected an error")
	}
}

type fakeDB struct{ err error }

func (f fakeDB) Ping() error { return f.err }

// TestStorePinger verifies database errors are surfaced.
func TestStorePinger(t *testing.T) {
	t.Parallel()

	if err := NewStorePinger(fakeDB{}).Ping(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := NewStorePinger(fakeDB{err: errors.New("locked")}).Ping(context.Background()); err == nil {
		t.Error("expected an error")
	}
}
