package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, vec ...float32) Entry {
	return Entry{Chunk: Chunk{ID: id, Source: "src-" + id, Text: id}, Vector: vec}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero query", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "zero entry", a: []float32{1, 1}, b: []float32{0, 0}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, CosineSimilarity(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSearch_RanksDescending(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		entry("far", 0, 1),
		entry("near", 1, 0.1),
		entry("mid", 1, 1),
	}

	got, err := Search(entries, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Chunk.ID)
	assert.Equal(t, "mid", got[1].Chunk.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		entry("a", 2, 1),
		entry("b", 2, 1),
		entry("c", 2, 1),
		entry("d", 0, 1),
	}

	for range 10 {
		got, err := Search(entries, []float32{1, 1}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID})
	}
}

func TestSearch_FewerThanK(t *testing.T) {
	t.Parallel()

	got, err := Search([]Entry{entry("x", 1), entry("y", 0)}, []float32{1}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearch_EmptyIndex(t *testing.T) {
	t.Parallel()

	got, err := Search(nil, []float32{1, 2}, 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_InvalidK(t *testing.T) {
	t.Parallel()

	for _, k := range []int{0, -1} {
		_, err := Search([]Entry{entry("x", 1)}, []float32{1}, k)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "k=%d: got %v", k, err)
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := Search([]Entry{entry("x", 1, 2, 3)}, []float32{1, 2}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// countingEmbedder maps every text to a fixed vector and counts calls.
type countingEmbedder struct {
	vec   []float32
	calls int
}

func (c *countingEmbedder) Name() string   { return "fixed" }
func (c *countingEmbedder) Dimension() int { return len(c.vec) }
func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vec
	}
	return out, nil
}

func TestRetriever_Defaults(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, r.TopK)

	_, err = NewRetriever(-2, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRetriever_EmptyEntriesSkipsEmbedding(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{vec: []float32{1, 0}}
	r, err := NewRetriever(3, 0)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), emb, nil, "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
}

func TestRetriever_MinScore(t *testing.T) {
	t.Parallel()

	emb := &countingEmbedder{vec: []float32{1, 0}}
	r, err := NewRetriever(3, 0.5)
	require.NoError(t, err)

	entries := []Entry{entry("hit", 1, 0), entry("miss", 0, 1)}
	got, err := r.Retrieve(context.Background(), emb, entries, "q")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hit", got[0].Chunk.ID)
	assert.Equal(t, 1, emb.calls)
}
