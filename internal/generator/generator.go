// Package generator turns retrieved passages into a prose answer with a chat
// model. It implements answer.Generator on top of an eino chain made of a
// chat template followed by the model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/budget"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/provider"
)

// systemPrompt instructs the model to answer strictly from the passages.
const systemPrompt = `You are a customer support assistant for a telecom provider.
Answer the customer's question using only the documentation passages below.
If the passages do not contain the answer, say that you could not find it and
suggest contacting customer service. Keep the answer short and friendly, and
do not invent prices, speeds or contract terms.

Documentation passages:
{context}`

// Chat generates answers with a chat model.
type Chat struct {
	// runner is the compiled template → model chain.
	runner compose.Runnable[map[string]any, *schema.Message]
	// maxContextTokens bounds the prompt, passages included.
	maxContextTokens int
	// name identifies the backend in errors.
	name string
}

// New compiles the answer chain around cm. maxContextTokens ≤ 0 selects
// budget.DefaultMaxContextTokens.
func New(ctx context.Context, cm model.BaseChatModel, name string, maxContextTokens int) (*Chat, error) {
	if cm == nil {
		return nil, errors.New("generator: chat model must not be nil")
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{question}"),
	)
	runner, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: compile chain: %w", err)
	}
	return &Chat{runner: runner, maxContextTokens: maxContextTokens, name: name}, nil
}

// Generate answers question from passages, best first. Passages that do not
// fit the context budget are dropped from the tail. An empty completion is an
// error so the caller can fall back.
func (c *Chat) Generate(ctx context.Context, question string, passages []answer.Passage) (string, error) {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = fmt.Sprintf("[%d] (source: %s)\n%s", i+1, p.Source, p.Text)
	}

	fixed := []*schema.Message{
		schema.SystemMessage(strings.Replace(systemPrompt, "{context}", "", 1)),
		schema.UserMessage(question),
	}
	kept := budget.TrimPassages(fixed, blocks, c.maxContextTokens)
	if dropped := len(blocks) - len(kept); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped passages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("budget_tokens", c.maxContextTokens),
		)
	}

	msg, err := c.runner.Invoke(ctx, map[string]any{
		"context":  strings.Join(kept, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("generator: %s: %w", c.name, err)
	}
	out := strings.TrimSpace(msg.Content)
	if out == "" {
		return "", fmt.Errorf("generator: %s returned an empty answer", c.name)
	}
	return out, nil
}

// FromEnv builds the generator selected by MODEL_PROVIDER. It never fails:
// when generation is disabled or the backend cannot be constructed it returns
// answer.Unavailable and logs why, so answers fall back to extraction.
func FromEnv(ctx context.Context, log *slog.Logger) answer.Generator {
	cfg := provider.ConfigFromEnv()
	if cfg.Backend == provider.BackendNone {
		log.Info("generator: disabled, answers are extractive", slog.String("provider", string(cfg.Backend)))
		return answer.Unavailable{Reason: "MODEL_PROVIDER=none"}
	}
	cm, err := provider.New(ctx, cfg)
	if err != nil {
		log.Warn("generator: backend unavailable, answers are extractive", slog.Any("error", err))
		return answer.Unavailable{Reason: err.Error()}
	}
	gen, err := New(ctx, cm, string(cfg.Backend), cfg.Tuning.MaxContextTokens)
	if err != nil {
		log.Warn("generator: chain unavailable, answers are extractive", slog.Any("error", err))
		return answer.Unavailable{Reason: err.Error()}
	}
	log.Info("generator: ready",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.Model()),
	)
	return gen
}
