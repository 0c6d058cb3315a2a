package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/supportai-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ, override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the expected vector size for a neural backend,
// or 0 for tfidf whose dimension is only known after fitting.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if backend == TFIDFName || backend == "" {
		return 0
	}
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Backend returns the configured embedding backend name (default: tfidf).
func Backend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", TFIDFName)
}

// NewFromEnv constructs the configured vectorizer wrapped in its input limits.
//
// EMBEDDING_PROVIDER picks tfidf (default), ollama, openai or azure. Neural
// backends inherit credentials and endpoints from the chat provider's env vars
// unless EMBEDDING_API_KEY / EMBEDDING_ENDPOINT override them. EMBEDDING_MODEL
// and EMBEDDING_DIMENSIONS override the per-backend defaults (ollama: 768,
// openai/azure: 1536). EMBEDDING_MAX_FEATURES caps the tfidf vocabulary and
// EMBEDDING_MAX_INPUT_CHARS / EMBEDDING_TRUNCATE bound each input text.
func NewFromEnv() (rag.Embedder, error) {
	backend := Backend()
	build, ok := builders[backend]
	if !ok {
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: tfidf, ollama, openai, azure: %w", backend, rag.ErrInvalidConfig)
	}
	if err := checkRequirements(backend); err != nil {
		return nil, err
	}

	limits := Limits{
		MaxInputChars: getEnvInt("EMBEDDING_MAX_INPUT_CHARS", DefaultMaxInputChars),
		Truncate:      getEnvBool("EMBEDDING_TRUNCATE", true),
	}
	return WithLimits(build(), limits), nil
}

// builders construct each backend from env. Mandatory settings have already
// been checked against backendRequirements.
var builders = map[string]func() rag.Embedder{
	TFIDFName: func() rag.Embedder {
		return NewTFIDF(getEnvInt("EMBEDDING_MAX_FEATURES", DefaultMaxFeatures))
	},
	"ollama": func() rag.Embedder {
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       firstSetOr("http://localhost:11434", "EMBEDDING_ENDPOINT", "OLLAMA_HOST"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			Dimensions: DefaultDimensions("ollama"),
			KeepAlive:  os.Getenv("OLLAMA_KEEP_ALIVE"),
		})
	},
	"openai": func() rag.Embedder {
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    firstSetOr("https://api.openai.com/v1", "EMBEDDING_ENDPOINT"),
			APIKey:     firstSet([]string{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: DefaultDimensions("openai"),
			BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", DefaultOpenAIBatch),
		})
	},
	"azure": func() rag.Embedder {
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(firstSet([]string{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"}), "/") + "/openai",
			APIKey:     firstSet([]string{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"}),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: DefaultDimensions("azure"),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
			BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", DefaultOpenAIBatch),
		})
	},
}

func firstSetOr(fallback string, keys ...string) string {
	if v := firstSet(keys); v != "" {
		return v
	}
	return fallback
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the named environment variable, or
// fallback if the variable is unset or not parseable.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
