package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/supportai-go/internal/rag"
)

// OllamaEmbedder implements rag.Embedder on a local Ollama /api/embed
// endpoint. It needs no credentials and is safe for concurrent use.
type OllamaEmbedder struct {
	// host is the server base URL without a trailing slash.
	host string
	// model is the embedding model name sent with every request.
	model string
	// keepAlive is forwarded as keep_alive; empty uses the server default.
	keepAlive string
	// dim tracks the configured or first observed vector length.
	dim dimension
	// client carries the per-call timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimensions is the expected vector length. Zero learns it from the
	// first response.
	Dimensions int
	// KeepAlive is passed through as Ollama's keep_alive (e.g. "5m").
	KeepAlive string
	// Timeout bounds each HTTP call (default: 60s).
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	e := &OllamaEmbedder{
		host:      strings.TrimRight(cfg.Host, "/"),
		model:     cfg.Model,
		keepAlive: cfg.KeepAlive,
		client:    &http.Client{Timeout: timeout},
	}
	e.dim.set(cfg.Dimensions)
	return e
}

// Name returns "ollama".
func (e *OllamaEmbedder) Name() string { return "ollama" }

// Dimension returns the expected vector length, or 0 before the first call
// when none was configured.
func (e *OllamaEmbedder) Dimension() int { return e.dim.get() }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	// KeepAlive keeps the model loaded between rebuild batches.
	KeepAlive string `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts, KeepAlive: e.keepAlive}
	if err := postJSON(ctx, e.client, e.host+"/api/embed", nil, req, &result, ollamaErrorMessage); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d: %w", len(texts), len(result.Embeddings), rag.ErrEmbedding)
	}
	if err := e.dim.check("ollama embedder", result.Embeddings); err != nil {
		return nil, err
	}
	return result.Embeddings, nil
}

func ollamaErrorMessage(body []byte) string {
	var failed ollamaEmbedResponse
	if json.Unmarshal(body, &failed) != nil {
		return ""
	}
	return failed.Error
}
