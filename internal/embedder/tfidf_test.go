package embedder

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/54b3r/supportai-go/internal/rag"
)

var supportCorpus = []string{
	"Our fiber internet plans offer speeds up to 1 Gbps for the whole household.",
	"TV packages include over 100 channels and a recording box.",
	"Mobile subscriptions come with unlimited calls and 20 GB of data.",
	"Pay your monthly bill by direct debit, or view invoices in the customer portal.",
}

func TestTFIDF_EmbedBeforeFit(t *testing.T) {
	t.Parallel()

	_, err := NewTFIDF(0).Embed(context.Background(), []string{"internet"})
	if !errors.Is(err, rag.ErrEmbedding) {
		t.Fatalf("Embed() before Fit error = %v, want ErrEmbedding", err)
	}
}

func TestTFIDF_FitRejectsEmptyCorpus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		corpus []string
	}{
		{name: "nil", corpus: nil},
		{name: "only stop words", corpus: []string{"the and of", "a to in"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := NewTFIDF(0).Fit(tc.corpus); !errors.Is(err, rag.ErrEmbedding) {
				t.Errorf("Fit() error = %v, want ErrEmbedding", err)
			}
		})
	}
}

func TestTFIDF_DimensionAndNormalization(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(0)
	if err := v.Fit(supportCorpus); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}
	if v.Dimension() == 0 {
		t.Fatal("Dimension() = 0 after Fit")
	}

	vecs, err := v.Embed(context.Background(), []string{"internet speeds", "zzzz unknown"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vecs[0]) != v.Dimension() {
		t.Fatalf("vector length = %d, want %d", len(vecs[0]), v.Dimension())
	}

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("squared norm = %f, want 1", norm)
	}

	for _, x := range vecs[1] {
		if x != 0 {
			t.Fatalf("out-of-vocabulary text produced non-zero vector %v", vecs[1])
		}
	}
}

func TestTFIDF_MaxFeatures(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(3)
	corpus := []string{"alpha alpha alpha beta beta gamma delta", "alpha beta epsilon"}
	if err := v.Fit(corpus); err != nil {
		t.Fatalf("Fit() error: %v", err)
	}
	if v.Dimension() != 3 {
		t.Fatalf("Dimension() = %d, want 3", v.Dimension())
	}

	// alpha(4) and beta(3) win outright; delta, epsilon and gamma tie at 1
	// and delta wins alphabetically.
	want := []string{"alpha", "beta", "delta"}
	if got := v.model.Load().terms; !reflect.DeepEqual(got, want) {
		t.Errorf("vocabulary = %v, want %v", got, want)
	}
}

func TestTFIDF_Deterministic(t *testing.T) {
	t.Parallel()

	a, b := NewTFIDF(0), NewTFIDF(0)
	if err := a.Fit(supportCorpus); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(supportCorpus); err != nil {
		t.Fatal(err)
	}

	text := []string{"How fast is the fiber internet?"}
	va, _ := a.Embed(context.Background(), text)
	va2, _ := a.Embed(context.Background(), text)
	vb, _ := b.Embed(context.Background(), text)
	if !reflect.DeepEqual(va, va2) {
		t.Error("embedding the same text twice differs")
	}
	if !reflect.DeepEqual(va, vb) {
		t.Error("two fits on the same corpus produce different vectors")
	}
}

func TestTFIDF_StateRoundTrip(t *testing.T) {
	t.Parallel()

	orig := NewTFIDF(0)
	if err := orig.Fit(supportCorpus); err != nil {
		t.Fatal(err)
	}
	data, err := orig.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState() error: %v", err)
	}

	restored := NewTFIDF(0)
	if err := restored.UnmarshalState(data); err != nil {
		t.Fatalf("UnmarshalState() error: %v", err)
	}
	if !restored.Fitted() || restored.Dimension() != orig.Dimension() {
		t.Fatalf("restored dim = %d, want %d", restored.Dimension(), orig.Dimension())
	}

	want, _ := orig.Embed(context.Background(), supportCorpus)
	got, _ := restored.Embed(context.Background(), supportCorpus)
	if !reflect.DeepEqual(got, want) {
		t.Error("restored vectorizer embeds differently")
	}
}

func TestTFIDF_UnmarshalRejectsBadState(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"garbage":       "not json",
		"other kind":    `{"kind":"bm25","version":1,"vocabulary":["a"],"idf":[1]}`,
		"other version": `{"kind":"tfidf","version":9,"vocabulary":["a"],"idf":[1]}`,
		"length skew":   `{"kind":"tfidf","version":1,"vocabulary":["a","b"],"idf":[1]}`,
		"empty":         `{"kind":"tfidf","version":1,"vocabulary":[],"idf":[]}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			v := NewTFIDF(0)
			if err := v.UnmarshalState([]byte(data)); err == nil {
				t.Error("UnmarshalState() succeeded, want error")
			}
			if v.Fitted() {
				t.Error("vectorizer fitted after rejected state")
			}
		})
	}
}

func TestTFIDF_CloneIsUnfitted(t *testing.T) {
	t.Parallel()

	v := NewTFIDF(7)
	if err := v.Fit(supportCorpus); err != nil {
		t.Fatal(err)
	}
	c := v.Clone()
	if c.Fitted() {
		t.Error("Clone() is fitted")
	}
	if err := c.Fit([]string{"completely different words here"}); err != nil {
		t.Fatal(err)
	}
	if v.Dimension() == c.Dimension() {
		t.Errorf("fitting the clone changed the original: both dim %d", v.Dimension())
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := tokenize("What internet SPEEDS do you offer? Up to 1 Gbps, it's fast!")
	want := []string{"internet", "speeds", "offer", "gbps", "fast"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize() = %v, want %v", got, want)
	}
}
