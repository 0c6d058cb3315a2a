// Package answer composes a reply from retrieved passages. A Generator may
// refine the passages into prose; whenever it is missing, fails or times out
// the composer falls back to an extractive answer built only from the
// retrieved text.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/rag"
)

// Mode names the path that produced an answer.
type Mode string

const (
	// ModeGenerative means a Generator wrote the answer.
	ModeGenerative Mode = "generative"
	// ModeExtractive means the answer is concatenated retrieved text.
	ModeExtractive Mode = "extractive"
	// ModeNone means nothing relevant was retrieved.
	ModeNone Mode = "none"
)

const (
	// NoInformation is the answer given when retrieval finds nothing.
	NoInformation = "I'm sorry, I couldn't find relevant information about your question."

	// ExtractivePrefix introduces an extractive answer.
	ExtractivePrefix = "Based on the documentation: "

	// DefaultExtractivePassages is how many top passages an extractive answer uses.
	DefaultExtractivePassages = 2

	// DefaultMaxAnswerChars caps an extractive answer, in runes.
	DefaultMaxAnswerChars = 1000

	// DefaultGenerateTimeout bounds one Generator call.
	DefaultGenerateTimeout = 60 * time.Second
)

// Passage is one retrieved text handed to a Generator, in rank order.
type Passage struct {
	// Source is the source identifier of the passage.
	Source string `json:"source"`
	// Text is the passage text.
	Text string `json:"text"`
	// Score is the retrieval similarity.
	Score float64 `json:"score"`
}

// Generator turns a question and ranked passages into answer text.
// Implementations return an error wrapping rag.ErrGeneratorUnavailable when
// they cannot serve.
type Generator interface {
	Generate(ctx context.Context, question string, passages []Passage) (string, error)
}

// Unavailable is the Generator used when no generative backend is configured.
// It always reports rag.ErrGeneratorUnavailable.
type Unavailable struct {
	// Reason explains why no backend is available.
	Reason string
}

// Generate always fails with rag.ErrGeneratorUnavailable.
func (u Unavailable) Generate(context.Context, string, []Passage) (string, error) {
	return "", fmt.Errorf("answer: %s: %w", u.Reason, rag.ErrGeneratorUnavailable)
}

// Answer is the composed reply.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`
	// Answer is the reply text.
	Answer string `json:"answer"`
	// Sources lists the distinct sources of the passages used, in rank order.
	Sources []string `json:"sources"`
	// Passages holds the retrieved passages, in rank order.
	Passages []rag.Result `json:"passages"`
	// Success is false only when nothing relevant was retrieved.
	Success bool `json:"success"`
	// Mode is the path that produced Answer.
	Mode Mode `json:"mode"`
}

// Config tunes a Composer. Zero fields take the defaults.
type Config struct {
	// ExtractivePassages is the number of top passages used by the fallback (default: 2).
	ExtractivePassages int
	// MaxAnswerChars truncates extractive answers, in runes (default: 1000).
	MaxAnswerChars int
	// GenerateTimeout bounds one Generator call (default: 60s).
	GenerateTimeout time.Duration
}

// Composer builds answers from retrieval results.
type Composer struct {
	// gen is never nil; Unavailable stands in when no backend exists.
	gen Generator
	// cfg holds the resolved configuration.
	cfg Config
}

// NewComposer returns a Composer. A nil gen is replaced by Unavailable.
func NewComposer(gen Generator, cfg Config) *Composer {
	if gen == nil {
		gen = Unavailable{Reason: "no generator configured"}
	}
	if cfg.ExtractivePassages <= 0 {
		cfg.ExtractivePassages = DefaultExtractivePassages
	}
	if cfg.MaxAnswerChars <= 0 {
		cfg.MaxAnswerChars = DefaultMaxAnswerChars
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	return &Composer{gen: gen, cfg: cfg}
}

// Compose answers question from results, which must be ranked best first.
// An empty question fails with rag.ErrInvalidInput. Generator failures never
// reach the caller; they select the extractive path instead.
func (c *Composer) Compose(ctx context.Context, question string, results []rag.Result) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("answer: question is empty: %w", rag.ErrInvalidInput)
	}

	if len(results) == 0 {
		return &Answer{
			Question: question,
			Answer:   NoInformation,
			Sources:  []string{},
			Passages: []rag.Result{},
			Mode:     ModeNone,
		}, nil
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{Source: r.Chunk.Source, Text: r.Chunk.Text, Score: r.Score}
	}

	text, err := c.generate(ctx, question, passages)
	if err == nil {
		return &Answer{
			Question: question,
			Answer:   text,
			Sources:  distinctSources(passages),
			Passages: results,
			Success:  true,
			Mode:     ModeGenerative,
		}, nil
	}

	log := logging.FromContext(ctx)
	if errors.Is(err, rag.ErrGeneratorUnavailable) {
		log.Debug("answer: generator unavailable, using extractive answer", slog.Any("error", err))
	} else {
		log.Warn("answer: generator failed, using extractive answer", slog.Any("error", err))
	}

	used := passages[:min(c.cfg.ExtractivePassages, len(passages))]
	return &Answer{
		Question: question,
		Answer:   c.extractive(used),
		Sources:  distinctSources(used),
		Passages: results,
		Success:  true,
		Mode:     ModeExtractive,
	}, nil
}

// generate calls the Generator under the configured timeout.
func (c *Composer) generate(ctx context.Context, question string, passages []Passage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	text, err := c.gen.Generate(ctx, question, passages)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("answer: generator returned empty text")
	}
	return strings.TrimSpace(text), nil
}

// extractive joins the passages under ExtractivePrefix and truncates the result.
func (c *Composer) extractive(passages []Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = strings.TrimSpace(p.Text)
	}
	return truncate(ExtractivePrefix+strings.Join(texts, "\n\n"), c.cfg.MaxAnswerChars)
}

// truncate cuts s to limit runes, ending it with "..." when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// distinctSources returns the passage sources in order, first occurrence wins.
func distinctSources(passages []Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		out = append(out, p.Source)
	}
	return out
}
