// Package budget estimates prompt sizes and trims retrieved passages so a
// generative answer fits the model's context window. Backends tokenize
// differently, so sizes are estimated from rune counts: 1 token ≈ 4 runes.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// runesPerToken is the rune-to-token ratio used for estimation.
	runesPerToken = 4

	// messageOverhead is the per-message framing cost most chat APIs charge.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// 8k-context models with room left for the reply. Override via
	// MODEL_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. Non-empty text costs at least
// one token.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	if runes == 0 {
		return 0
	}
	return max(1, runes/runesPerToken)
}

// EstimateMessages returns the estimated prompt cost of msgs: role, content
// and framing for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	}
	return total
}

// TrimPassages drops the lowest-ranked passages until fixed plus the passages
// fit within maxTokens. passages must be ordered best first; the returned
// slice is a prefix of it. Each passage is costed like one message so the
// estimate stays comparable with EstimateMessages.
//
// If fixed alone exceeds the budget the result is empty; callers decide
// whether to generate without context or fall back.
func TrimPassages(fixed []*schema.Message, passages []string, maxTokens int) []string {
	remaining := maxTokens - EstimateMessages(fixed)
	for i, p := range passages {
		cost := messageOverhead + Estimate(p)
		if cost > remaining {
			return passages[:i]
		}
		remaining -= cost
	}
	return passages
}
