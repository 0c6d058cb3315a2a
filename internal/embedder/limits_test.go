package embedder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/supportai-go/internal/rag"
)

// echoEmbedder returns each text's rune count as a one-dimensional vector.
type echoEmbedder struct {
	// got records the texts received by the last Embed call.
	got []string
}

func (e *echoEmbedder) Name() string   { return "echo" }
func (e *echoEmbedder) Dimension() int { return 1 }
func (e *echoEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.got = texts
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = []float32{float32(len([]rune(s)))}
	}
	return out, nil
}

func TestWithLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		limits  Limits
		input   string
		wantErr bool
		wantLen float32
	}{
		{name: "empty rejected", limits: Limits{MaxInputChars: 10, Truncate: true}, input: "", wantErr: true},
		{name: "whitespace rejected", limits: Limits{MaxInputChars: 10, Truncate: true}, input: " \n\t ", wantErr: true},
		{name: "within limit", limits: Limits{MaxInputChars: 10}, input: "hello", wantLen: 5},
		{name: "too long rejected", limits: Limits{MaxInputChars: 4}, input: "hello", wantErr: true},
		{name: "too long truncated", limits: Limits{MaxInputChars: 4, Truncate: true}, input: "héllo", wantLen: 4},
		{name: "default limit", limits: Limits{}, input: strings.Repeat("x", DefaultMaxInputChars), wantLen: DefaultMaxInputChars},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := WithLimits(&echoEmbedder{}, tc.limits)
			vecs, err := e.Embed(context.Background(), []string{tc.input})
			if tc.wantErr {
				if !errors.Is(err, rag.ErrEmbedding) {
					t.Fatalf("Embed() error = %v, want ErrEmbedding", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if vecs[0][0] != tc.wantLen {
				t.Errorf("embedded length = %v, want %v", vecs[0][0], tc.wantLen)
			}
		})
	}
}

func TestWithLimits_KeepsFittable(t *testing.T) {
	t.Parallel()

	e := WithLimits(NewTFIDF(0), Limits{MaxInputChars: 100, Truncate: true})
	f, ok := e.(rag.FittableEmbedder)
	if !ok {
		t.Fatal("WithLimits(TFIDF) is not a FittableEmbedder")
	}
	if err := f.Fit(supportCorpus); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}
	if _, err := f.Embed(context.Background(), []string{""}); !errors.Is(err, rag.ErrEmbedding) {
		t.Errorf("empty text error = %v, want ErrEmbedding", err)
	}

	c := f.Clone()
	if c.Fitted() {
		t.Error("clone is fitted")
	}
	if _, err := c.Embed(context.Background(), []string{" "}); !errors.Is(err, rag.ErrEmbedding) {
		t.Errorf("clone lost the input guard: %v", err)
	}
}

func TestWithLimits_NeuralIsNotFittable(t *testing.T) {
	t.Parallel()

	if _, ok := WithLimits(&echoEmbedder{}, Limits{}).(rag.FittableEmbedder); ok {
		t.Error("neural embedder became fittable through the guard")
	}
}
