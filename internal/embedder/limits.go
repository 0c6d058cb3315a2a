package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/supportai-go/internal/rag"
)

// DefaultMaxInputChars is the per-text input cap applied by WithLimits.
const DefaultMaxInputChars = 8000

// Limits bounds the text accepted by an embedder.
type Limits struct {
	// MaxInputChars is the longest accepted text in runes (default: 8000).
	MaxInputChars int

	// Truncate cuts over-long texts to MaxInputChars instead of rejecting them.
	Truncate bool
}

// limited wraps an Embedder with input validation.
type limited struct {
	// inner is the wrapped embedder.
	inner rag.Embedder
	// limits holds the resolved bounds.
	limits Limits
}

// limitedFittable keeps the fittable contract visible through the guard.
type limitedFittable struct {
	*limited
	// fittable is inner viewed as a statistical vectorizer.
	fittable rag.FittableEmbedder
}

// WithLimits wraps e so that empty or whitespace-only texts fail with
// rag.ErrEmbedding and texts longer than MaxInputChars are truncated or
// rejected. When e is a rag.FittableEmbedder the result is one too.
func WithLimits(e rag.Embedder, l Limits) rag.Embedder {
	if l.MaxInputChars <= 0 {
		l.MaxInputChars = DefaultMaxInputChars
	}
	base := &limited{inner: e, limits: l}
	if f, ok := e.(rag.FittableEmbedder); ok {
		return &limitedFittable{limited: base, fittable: f}
	}
	return base
}

func (l *limited) Name() string   { return l.inner.Name() }
func (l *limited) Dimension() int { return l.inner.Dimension() }

// Embed validates every text, then delegates the whole batch.
func (l *limited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	checked := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embedder: text %d is empty: %w", i, rag.ErrEmbedding)
		}
		runes := []rune(text)
		if len(runes) > l.limits.MaxInputChars {
			if !l.limits.Truncate {
				return nil, fmt.Errorf("embedder: text %d has %d characters, limit is %d: %w",
					i, len(runes), l.limits.MaxInputChars, rag.ErrEmbedding)
			}
			text = string(runes[:l.limits.MaxInputChars])
		}
		checked[i] = text
	}
	return l.inner.Embed(ctx, checked)
}

func (l *limitedFittable) Fit(corpus []string) error        { return l.fittable.Fit(corpus) }
func (l *limitedFittable) Fitted() bool                     { return l.fittable.Fitted() }
func (l *limitedFittable) MarshalState() ([]byte, error)    { return l.fittable.MarshalState() }
func (l *limitedFittable) UnmarshalState(data []byte) error { return l.fittable.UnmarshalState(data) }

// Clone clones the wrapped vectorizer and applies the same limits.
func (l *limitedFittable) Clone() rag.FittableEmbedder {
	return WithLimits(l.fittable.Clone(), l.limits).(rag.FittableEmbedder)
}
