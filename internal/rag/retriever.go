package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// DefaultTopK is the number of passages returned when no k is configured.
const DefaultTopK = 3

// CosineSimilarity returns dot(a, b) / (|a| * |b|). It returns 0 when either
// vector has zero magnitude. Vectors of different length are the caller's
// problem; Search checks dimensions before calling this.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search ranks entries by cosine similarity to query and returns at most k
// results, highest score first. Equal scores keep insertion order.
func Search(entries []Entry, query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rag: search: k must be >= 1, got %d: %w", k, ErrInvalidConfig)
	}
	if len(entries) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(entries))
	for i := range entries {
		if len(entries[i].Vector) != len(query) {
			return nil, fmt.Errorf("rag: search: entry %s has dimension %d, query has %d: %w",
				entries[i].ID, len(entries[i].Vector), len(query), ErrDimensionMismatch)
		}
		results = append(results, Result{
			Chunk: entries[i].Chunk,
			Score: CosineSimilarity(query, entries[i].Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Retriever embeds a query with the index's embedder and ranks the index
// entries against it.
type Retriever struct {
	// TopK is the number of passages to return (default: DefaultTopK).
	TopK int

	// MinScore drops results scoring below it. Zero keeps everything.
	MinScore float64
}

// NewRetriever constructs a Retriever, applying defaults to zero fields.
// A negative topK is rejected with ErrInvalidConfig.
func NewRetriever(topK int, minScore float64) (*Retriever, error) {
	if topK < 0 {
		return nil, fmt.Errorf("rag: top_k must be >= 1, got %d: %w", topK, ErrInvalidConfig)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	return &Retriever{TopK: topK, MinScore: minScore}, nil
}

// Retrieve embeds query with e and returns the ranked passages from entries.
// When entries is empty the embedder is not called.
func (r *Retriever) Retrieve(ctx context.Context, e Embedder, entries []Entry, query string) ([]Result, error) {
	if len(entries) == 0 {
		return []Result{}, nil
	}

	vectors, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one query: %w", len(vectors), ErrEmbedding)
	}

	results, err := Search(entries, vectors[0], r.TopK)
	if err != nil {
		return nil, err
	}
	if r.MinScore <= 0 {
		return results, nil
	}

	kept := results[:0]
	for _, res := range results {
		if res.Score >= r.MinScore {
			kept = append(kept, res)
		}
	}
	return kept, nil
}
