package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/supportai-go/internal/rag"
)

func results(pairs ...string) []rag.Result {
	out := make([]rag.Result, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, rag.Result{
			Chunk: rag.Chunk{Source: pairs[i], Text: pairs[i+1]},
			Score: 1 - float64(i)/10,
		})
	}
	return out
}

// genFunc adapts a function to Generator.
type genFunc func(ctx context.Context, q string, p []Passage) (string, error)

func (f genFunc) Generate(ctx context.Context, q string, p []Passage) (string, error) {
	return f(ctx, q, p)
}

func TestCompose_RejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	called := false
	c := NewComposer(genFunc(func(context.Context, string, []Passage) (string, error) {
		called = true
		return "x", nil
	}), Config{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := c.Compose(context.Background(), q, results("a", "b"))
		assert.ErrorIs(t, err, rag.ErrInvalidInput)
	}
	assert.False(t, called)
}

func TestCompose_NoResults(t *testing.T) {
	t.Parallel()

	a, err := NewComposer(nil, Config{}).Compose(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.False(t, a.Success)
	assert.NotNil(t, a.Sources)
	assert.Empty(t, a.Sources)
	assert.Equal(t, NoInformation, a.Answer)
	assert.Equal(t, ModeNone, a.Mode)
}

func TestCompose_ExtractiveWhenUnavailable(t *testing.T) {
	t.Parallel()

	c := NewComposer(Unavailable{Reason: "MODEL_PROVIDER=none"}, Config{})
	a, err := c.Compose(context.Background(), "What internet speeds do you offer?", results(
		"https://example.com/internet", "Fiber internet up to 1 Gbps.",
		"https://example.com/internet", "Cable internet up to 500 Mbps.",
		"https://example.com/tv", "TV packages.",
	))
	require.NoError(t, err)
	assert.True(t, a.Success)
	assert.Equal(t, ModeExtractive, a.Mode)
	assert.Equal(t, "Based on the documentation: Fiber internet up to 1 Gbps.\n\nCable internet up to 500 Mbps.", a.Answer)
	assert.Equal(t, []string{"https://example.com/internet"}, a.Sources)
	assert.Len(t, a.Passages, 3)
}

func TestCompose_ExtractiveTruncates(t *testing.T) {
	t.Parallel()

	c := NewComposer(nil, Config{MaxAnswerChars: 40})
	a, err := c.Compose(context.Background(), "q", results("s", strings.Repeat("ü", 100)))
	require.NoError(t, err)
	assert.Equal(t, 40, utf8.RuneCountInString(a.Answer))
	assert.True(t, strings.HasSuffix(a.Answer, "..."))
	assert.True(t, strings.HasPrefix(a.Answer, ExtractivePrefix))
}

func TestCompose_Generative(t *testing.T) {
	t.Parallel()

	var got []Passage
	c := NewComposer(genFunc(func(_ context.Context, q string, p []Passage) (string, error) {
		got = p
		return "  We offer up to 1 Gbps.  ", nil
	}), Config{})

	a, err := c.Compose(context.Background(), "speeds?", results("b", "two", "a", "one", "b", "three"))
	require.NoError(t, err)
	assert.Equal(t, ModeGenerative, a.Mode)
	assert.Equal(t, "We offer up to 1 Gbps.", a.Answer)
	assert.Equal(t, []string{"b", "a"}, a.Sources)
	require.Len(t, got, 3)
	assert.Equal(t, "two", got[0].Text, "passages must reach the generator in rank order")
}

func TestCompose_FallsBackOnGeneratorFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  Generator
	}{
		{name: "error", gen: genFunc(func(context.Context, string, []Passage) (string, error) {
			return "", errors.New("boom")
		})},
		{name: "empty output", gen: genFunc(func(context.Context, string, []Passage) (string, error) {
			return "  ", nil
		})},
		{name: "timeout", gen: genFunc(func(ctx context.Context, _ string, _ []Passage) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := NewComposer(tc.gen, Config{GenerateTimeout: 20 * time.Millisecond})
			a, err := c.Compose(context.Background(), "q", results("src", "passage"))
			require.NoError(t, err)
			assert.Equal(t, ModeExtractive, a.Mode)
			assert.True(t, a.Success)
			assert.Equal(t, "Based on the documentation: passage", a.Answer)
		})
	}
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	_, err := Unavailable{Reason: "none"}.Generate(context.Background(), "q", nil)
	assert.ErrorIs(t, err, rag.ErrGeneratorUnavailable)
}
