package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/supportai-go/internal/logging"
)

func TestRequestLogger_GeneratesID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxLogger *slog.Logger
	h := requestLogger(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = logging.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	id := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "generated id %q", id)
	assert.NotNil(t, ctxLogger)

	line := buf.String()
	assert.Contains(t, line, `"request_id":"`+id+`"`)
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"bytes":15`)
	assert.Contains(t, line, `"path":"/api/stats"`)
}

func TestRequestLogger_KeepsCallerID(t *testing.T) {
	t.Parallel()

	h := requestLogger(slog.New(slog.DiscardHandler), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "ticket-4711")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "ticket-4711", w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, strings.Repeat("x", maxRequestIDLen+1), w.Header().Get(requestIDHeader))
}
