// Package rag defines the core types and interfaces of the retrieval
// pipeline: documents, chunks, stored entries, ranked results and the
// embedder contracts. Concrete vectorizers, the index store and the
// composer live in sibling packages and depend only on this one.
package rag

import (
	"context"
	"time"
)

// Document is one unit of ingested source text. It is immutable once stored.
type Document struct {
	// ID is a deterministic identifier derived from Source and a hash of Text.
	ID string `json:"id"`

	// Source is the origin URL or label of the document.
	Source string `json:"source"`

	// Text is the raw document text.
	Text string `json:"-"`

	// Metadata holds arbitrary key-value pairs (topic, fetch status, ...).
	Metadata map[string]string `json:"metadata,omitempty"`

	// IngestedAt is when the document entered the index.
	IngestedAt time.Time `json:"ingested_at"`
}

// Chunk is a bounded passage of a Document, the unit of retrieval.
type Chunk struct {
	// ID is a deterministic identifier derived from DocumentID and Seq.
	ID string `json:"id"`

	// DocumentID is the ID of the owning document.
	DocumentID string `json:"document_id"`

	// Source is copied from the owning document.
	Source string `json:"source"`

	// Seq is the zero-based position of the chunk within its document.
	Seq int `json:"seq"`

	// Text is the passage text.
	Text string `json:"text"`

	// Metadata is copied from the owning document.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Entry is a Chunk paired with its vector: the unit the index stores.
type Entry struct {
	Chunk

	// Vector is the chunk embedding. Its length is the index dimension.
	Vector []float32 `json:"-"`
}

// Result is one ranked retrieval hit.
type Result struct {
	// Chunk is the retrieved passage.
	Chunk Chunk `json:"chunk"`

	// Score is the cosine similarity between the query and the chunk.
	Score float64 `json:"score"`
}

// Embedder converts text into fixed-dimension vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Name identifies the vectorizer kind, e.g. "tfidf" or "ollama".
	// It is persisted next to the index so a restart can detect a swap.
	Name() string

	// Dimension returns the output vector length, or 0 when it is not yet known.
	Dimension() int

	// Embed converts a batch of texts into their corresponding vectors.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FittableEmbedder is a statistical vectorizer that must be fitted on a
// reference corpus before use and whose fitted state can be persisted.
type FittableEmbedder interface {
	Embedder

	// Fit learns the vocabulary and weights from corpus, replacing any previous state.
	Fit(corpus []string) error

	// Fitted reports whether Fit or UnmarshalState has succeeded.
	Fitted() bool

	// MarshalState serializes the fitted state.
	MarshalState() ([]byte, error)

	// UnmarshalState restores a state produced by MarshalState.
	UnmarshalState(data []byte) error

	// Clone returns an unfitted copy with the same options, so fitting a
	// replacement never mutates the instance serving queries.
	Clone() FittableEmbedder
}
