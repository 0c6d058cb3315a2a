package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/supportai-go/internal/rag"
)

// requirement is a setting a neural backend cannot start without. Any of the
// listed env keys satisfies it; the first is the embedding specific override.
type requirement struct {
	what string
	keys []string
}

// backendRequirements lists the mandatory settings per embedding backend.
// tfidf and ollama run locally and need nothing.
var backendRequirements = map[string][]requirement{
	TFIDFName: nil,
	"ollama":  nil,
	"openai": {
		{what: "API key", keys: []string{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}},
	},
	"azure": {
		{what: "API key", keys: []string{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"}},
		{what: "endpoint", keys: []string{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"}},
	},
}

// chatModelMarkers are name fragments of generative models. Pointing
// EMBEDDING_MODEL at one of them yields useless vectors.
var chatModelMarkers = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama2", "llama3", "llama-2", "llama-3",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
	"solar", "vicuna", "falcon", "yi-",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range chatModelMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Validate checks the embedding settings before the index is opened, so a
// missing credential fails at startup instead of halfway through a rebuild.
// Suspicious but workable settings are only logged.
func Validate(log *slog.Logger) error {
	backend := Backend()
	if _, known := backendRequirements[backend]; !known {
		return fmt.Errorf("embedder: unknown EMBEDDING_PROVIDER %q, valid values: tfidf, ollama, openai, azure: %w",
			backend, rag.ErrInvalidConfig)
	}

	if err := checkRequirements(backend); err != nil {
		return err
	}

	model := os.Getenv("EMBEDDING_MODEL")
	switch {
	case model == "":
	case backend == TFIDFName:
		log.Warn("embedder: EMBEDDING_MODEL is ignored by the tfidf vectorizer",
			slog.String("model", model),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama, openai or azure to use a neural model"),
		)
	case looksLikeChatModel(model):
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model such as nomic-embed-text or text-embedding-3-small"),
		)
	}
	return nil
}

// checkRequirements reports the first mandatory setting backend is missing.
func checkRequirements(backend string) error {
	for _, r := range backendRequirements[backend] {
		if firstSet(r.keys) == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=%s has no %s, set %s: %w",
				backend, r.what, strings.Join(r.keys, " or "), rag.ErrInvalidConfig)
		}
	}
	return nil
}

// firstSet returns the value of the first non-empty env key.
func firstSet(keys []string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
