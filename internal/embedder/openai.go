// Package embedder provides the vectorizers behind rag.Embedder: the
// statistical TF-IDF fallback, which is fitted on the corpus and persisted
// with the index, and neural backends (OpenAI, Azure OpenAI, Ollama) reached
// over plain HTTP.
package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/54b3r/supportai-go/internal/rag"
)

// DefaultOpenAIBatch is the number of inputs sent per embeddings request. A
// full corpus rebuild is split into requests of at most this size.
const DefaultOpenAIBatch = 96

// OpenAIEmbedder implements rag.Embedder on the OpenAI embeddings API or an
// Azure OpenAI deployment of it. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// endpoint is the fully resolved embeddings URL.
	endpoint string
	// header carries the credential for every request.
	header http.Header
	// model is the model name, or the deployment name on Azure.
	model string
	// dimensions is the requested vector length; 0 omits it.
	dimensions int
	// batch caps the inputs sent per request.
	batch int
	// azure selects the Azure naming and routing.
	azure bool
	// dim tracks the configured or first observed vector length.
	dim dimension
	// client carries the per-call timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	APIKey  string
	// Model is the embedding model, or the deployment name on Azure.
	Model string
	// Dimensions is the requested vector length (0 = model default).
	Dimensions int
	// Azure switches to the api-key header and deployment routing.
	Azure bool
	// APIVersion is the Azure api-version query value.
	APIVersion string
	// BatchSize caps inputs per request (default DefaultOpenAIBatch).
	BatchSize int
	// Timeout bounds each HTTP call (default 30s).
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultOpenAIBatch
	}

	e := &OpenAIEmbedder{
		endpoint:   cfg.BaseURL + "/embeddings",
		header:     http.Header{"Authorization": {"Bearer " + cfg.APIKey}},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batch:      batch,
		azure:      cfg.Azure,
		client:     &http.Client{Timeout: timeout},
	}
	if cfg.Azure {
		e.endpoint = cfg.BaseURL + "/deployments/" + url.PathEscape(cfg.Model) +
			"/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
		e.header = http.Header{"Api-Key": {cfg.APIKey}}
	}
	e.dim.set(cfg.Dimensions)
	return e
}

// Name returns "azure" for Azure OpenAI deployments and "openai" otherwise.
func (e *OpenAIEmbedder) Name() string {
	if e.azure {
		return "azure"
	}
	return "openai"
}

// Dimension returns the expected vector length, or 0 before the first call
// when none was configured.
func (e *OpenAIEmbedder) Dimension() int { return e.dim.get() }

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. Inputs larger than the
// batch size are sent as several sequential requests.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batch {
		end := min(start+e.batch, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("openai embedder: batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	if err := e.dim.check("openai embedder", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result openaiEmbedResponse
	req := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}
	if err := postJSON(ctx, e.client, e.endpoint, e.header, req, &result, openaiErrorMessage); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(result.Data), rag.ErrEmbedding)
	}

	// Results carry their input position and are not guaranteed to be ordered.
	vecs := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("index %d out of range [0, %d): %w", d.Index, len(texts), rag.ErrEmbedding)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func openaiErrorMessage(body []byte) string {
	var failed openaiEmbedResponse
	if json.Unmarshal(body, &failed) != nil || failed.Error == nil {
		return ""
	}
	return failed.Error.Message
}
