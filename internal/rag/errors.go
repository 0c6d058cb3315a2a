package rag

import "errors"

// Sentinel errors shared by every layer of the retrieval pipeline.
// Callers wrap them with context and match with errors.Is.
var (
	// ErrInvalidConfig reports bad chunking, overlap or top-k parameters.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput reports an empty or whitespace-only question or document.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedding reports text the vectorizer cannot embed (empty, too long,
	// or an unfitted statistical vectorizer).
	ErrEmbedding = errors.New("embedding error")

	// ErrNotReady reports a query issued before the first successful load or ingest.
	ErrNotReady = errors.New("index not ready")

	// ErrRebuildInProgress reports a write that conflicts with a running rebuild.
	ErrRebuildInProgress = errors.New("rebuild in progress")

	// ErrGeneratorUnavailable is internal only: it triggers the extractive path.
	ErrGeneratorUnavailable = errors.New("generator unavailable")

	// ErrDimensionMismatch reports vectors whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
