package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/54b3r/supportai-go/internal/rag"
)

const (
	// TFIDFName is the vectorizer kind persisted alongside a fitted TF-IDF state.
	TFIDFName = "tfidf"

	// DefaultMaxFeatures caps the TF-IDF vocabulary size.
	DefaultMaxFeatures = 1000

	// tfidfStateVersion is bumped whenever the serialized layout changes.
	tfidfStateVersion = 1
)

// tokenPattern matches words of letters and digits, keeping inner apostrophes.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// tfidfModel is one fitted vocabulary. It is never mutated after Fit.
type tfidfModel struct {
	// index maps a term to its vector position.
	index map[string]int
	// terms lists the vocabulary in vector order.
	terms []string
	// idf holds the smoothed inverse document frequency per position.
	idf []float64
}

// tfidfState is the JSON form of a fitted model.
type tfidfState struct {
	Kind        string    `json:"kind"`
	Version     int       `json:"version"`
	MaxFeatures int       `json:"max_features"`
	Vocabulary  []string  `json:"vocabulary"`
	IDF         []float64 `json:"idf"`
}

// TFIDF is the statistical vectorizer. It must be fitted on a corpus before
// Embed succeeds; the output dimension is the fitted vocabulary size.
// It is safe for concurrent use; Fit swaps the model atomically.
type TFIDF struct {
	// maxFeatures caps the vocabulary at the most frequent terms.
	maxFeatures int
	// model is nil until Fit or UnmarshalState succeeds.
	model atomic.Pointer[tfidfModel]
}

// NewTFIDF returns an unfitted TF-IDF vectorizer. maxFeatures <= 0 selects
// DefaultMaxFeatures.
func NewTFIDF(maxFeatures int) *TFIDF {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &TFIDF{maxFeatures: maxFeatures}
}

// Name returns "tfidf".
func (t *TFIDF) Name() string { return TFIDFName }

// Dimension returns the fitted vocabulary size, or 0 before fitting.
func (t *TFIDF) Dimension() int {
	if m := t.model.Load(); m != nil {
		return len(m.terms)
	}
	return 0
}

// Fitted reports whether a vocabulary is loaded.
func (t *TFIDF) Fitted() bool { return t.model.Load() != nil }

// Clone returns an unfitted vectorizer with the same options.
func (t *TFIDF) Clone() rag.FittableEmbedder { return NewTFIDF(t.maxFeatures) }

// Fit learns the vocabulary and IDF weights from corpus. The vocabulary is the
// maxFeatures terms with the highest corpus-wide count, ties broken
// alphabetically, laid out in alphabetical order.
func (t *TFIDF) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("embedder: tfidf fit: empty corpus: %w", rag.ErrEmbedding)
	}

	counts := make(map[string]int)
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text) {
			counts[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}
	if len(counts) == 0 {
		return fmt.Errorf("embedder: tfidf fit: no usable tokens in %d texts: %w", len(corpus), rag.ErrEmbedding)
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	if len(terms) > t.maxFeatures {
		terms = terms[:t.maxFeatures]
	}
	slices.Sort(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	t.model.Store(newModel(terms, idf))
	return nil
}

// Embed maps each text to an L2-normalized TF-IDF vector. Texts with no
// vocabulary terms map to the zero vector.
func (t *TFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m := t.model.Load()
	if m == nil {
		return nil, fmt.Errorf("embedder: tfidf: vectorizer is not fitted: %w", rag.ErrEmbedding)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

// vector computes one normalized TF-IDF vector.
func (m *tfidfModel) vector(text string) []float32 {
	weights := make([]float64, len(m.terms))
	for _, tok := range tokenize(text) {
		if idx, ok := m.index[tok]; ok {
			weights[idx]++
		}
	}

	var norm float64
	for i, tf := range weights {
		if tf == 0 {
			continue
		}
		weights[i] = tf * m.idf[i]
		norm += weights[i] * weights[i]
	}

	vec := make([]float32, len(weights))
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, w := range weights {
		vec[i] = float32(w / norm)
	}
	return vec
}

// MarshalState serializes the fitted vocabulary and IDF weights as JSON.
func (t *TFIDF) MarshalState() ([]byte, error) {
	m := t.model.Load()
	if m == nil {
		return nil, fmt.Errorf("embedder: tfidf: cannot marshal an unfitted vectorizer: %w", rag.ErrEmbedding)
	}
	data, err := json.Marshal(tfidfState{
		Kind:        TFIDFName,
		Version:     tfidfStateVersion,
		MaxFeatures: t.maxFeatures,
		Vocabulary:  m.terms,
		IDF:         m.idf,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: tfidf: marshal state: %w", err)
	}
	return data, nil
}

// UnmarshalState restores a state written by MarshalState. A state of another
// kind or version, or one whose vocabulary and weights disagree, is rejected
// and leaves the vectorizer unchanged.
func (t *TFIDF) UnmarshalState(data []byte) error {
	var st tfidfState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("embedder: tfidf: decode state: %w", err)
	}
	if st.Kind != TFIDFName || st.Version != tfidfStateVersion {
		return fmt.Errorf("embedder: tfidf: unsupported state %s/v%d", st.Kind, st.Version)
	}
	if len(st.Vocabulary) == 0 || len(st.Vocabulary) != len(st.IDF) {
		return fmt.Errorf("embedder: tfidf: state has %d terms and %d weights", len(st.Vocabulary), len(st.IDF))
	}
	t.model.Store(newModel(st.Vocabulary, st.IDF))
	return nil
}

// newModel indexes terms by position.
func newModel(terms []string, idf []float64) *tfidfModel {
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}
	return &tfidfModel{index: index, terms: terms, idf: idf}
}

// tokenize lowercases text and returns its tokens of two or more runes that
// are not English stop words.
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// stopWords is a compact English stop list.
var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
a about above after again against all almost alone along already also although always am among an and
another any anyhow anyone anything anyway anywhere are around as at be became because become becomes
been before beforehand behind being below beside besides between beyond both but by can cannot could
did do does doing done down during each either else elsewhere enough etc even ever every everyone
everything everywhere except few for former formerly from further get give go had has hasn't have
having he her here hers herself him himself his how however i if in indeed into is isn't it its itself
just keep last latter least less made many may me meanwhile might mine more moreover most mostly much
must my myself namely neither never nevertheless next no nobody none nor not nothing now nowhere of off
often on once one only onto or other others otherwise our ours ourselves out over own per perhaps
please put rather re same see seem seemed seeming seems several she should since so some somehow
someone something sometime sometimes somewhere still such than that the their theirs them themselves
then thence there thereafter thereby therefore therein these they this those though through throughout
thru thus to together too toward towards under until up upon us very via was we well were what whatever
when whence whenever where whereafter whereas whereby wherein whereupon wherever whether which while
who whoever whole whom whose why will with within without would yet you your yours yourself yourselves
don't can't won't you're it's i'm we're they're
`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
