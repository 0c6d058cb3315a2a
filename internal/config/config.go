// Package config provides file-based configuration for supportai.
// Configuration is loaded with a layered precedence:
// defaults → config file → ./.env → env vars. Environment variables always
// win, so deployments can override any file setting.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. SUPPORTAI_CONFIG environment variable
//  3. ~/.supportai/config.yaml
//  4. ./supportai.yaml
//  5. ./supportai.toml
//
// Files ending in .toml are parsed as TOML, everything else as YAML.
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file structure. Field names mirror
// the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the chat model used for generative answers.
	Model ModelConfig `yaml:"model" toml:"model"`

	// Embedding configures the vectorizer.
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`

	// Chunking configures document splitting.
	Chunking ChunkingConfig `yaml:"chunking" toml:"chunking"`

	// Retrieval configures ranking.
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`

	// Answer configures answer composition.
	Answer AnswerConfig `yaml:"answer" toml:"answer"`

	// Corpus configures the default document source.
	Corpus CorpusConfig `yaml:"corpus" toml:"corpus"`

	// Qdrant configures the optional Qdrant mirror.
	Qdrant QdrantConfig `yaml:"qdrant" toml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Storage configures index persistence.
	Storage StorageConfig `yaml:"storage" toml:"storage"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: none, ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider" toml:"provider"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`
	// Temperature controls response randomness.
	Temperature float32 `yaml:"temperature" toml:"temperature"`
	// MaxContextTokens bounds the prompt, passages included.
	MaxContextTokens int `yaml:"max_context_tokens" toml:"max_context_tokens"`

	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`
	Azure  AzureConfig  `yaml:"azure" toml:"azure"`
	Ark    ArkConfig    `yaml:"ark" toml:"ark"`
	Gemini GeminiConfig `yaml:"gemini" toml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host" toml:"host"`
	Model string `yaml:"model" toml:"model"`
	// KeepAlive holds the embedding model in memory between requests (e.g. "5m").
	KeepAlive string `yaml:"keep_alive" toml:"keep_alive"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Deployment string `yaml:"deployment" toml:"deployment"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// EmbeddingConfig holds vectorizer settings.
type EmbeddingConfig struct {
	// Provider selects the vectorizer (tfidf, ollama, openai, azure).
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" toml:"model"`
	// Dimensions pins the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// MaxFeatures caps the TF-IDF vocabulary.
	MaxFeatures int `yaml:"max_features" toml:"max_features"`
	// MaxInputChars caps each embedded text.
	MaxInputChars int `yaml:"max_input_chars" toml:"max_input_chars"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// BatchSize caps texts per OpenAI/Azure embeddings request.
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
}

// ChunkingConfig holds chunker settings.
type ChunkingConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// RetrievalConfig holds ranking settings.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" toml:"top_k"`
	MinScore float64 `yaml:"min_score" toml:"min_score"`
}

// AnswerConfig holds answer composition settings.
type AnswerConfig struct {
	ExtractivePassages int `yaml:"extractive_passages" toml:"extractive_passages"`
	MaxChars           int `yaml:"max_chars" toml:"max_chars"`
	// GeneratorTimeout is a Go duration string such as "45s".
	GeneratorTimeout string `yaml:"generator_timeout" toml:"generator_timeout"`
}

// CorpusConfig holds the default document source.
type CorpusConfig struct {
	// URLs are fetched by rebuilds that name no source.
	URLs []string `yaml:"urls" toml:"urls"`
	// FetchTimeout is a Go duration string such as "30s".
	FetchTimeout string `yaml:"fetch_timeout" toml:"fetch_timeout"`
	// SampleFallback indexes the built-in sample corpus when the startup
	// bootstrap cannot fetch the corpus.
	SampleFallback bool `yaml:"sample_fallback" toml:"sample_fallback"`
}

// QdrantConfig holds Qdrant mirror settings.
type QdrantConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	Collection string `yaml:"collection" toml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	TLS    bool   `yaml:"tls" toml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format" toml:"format"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DBPath is the SQLite database path, or "memory" for a throwaway index.
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key" toml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Host      string `yaml:"host" toml:"host"`
	// SampleRate is the traced fraction of answers, within (0, 1].
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
}

// envMapping maps config file fields to their corresponding env var names.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"MODEL_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Model.MaxContextTokens) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OLLAMA_KEEP_ALIVE", func(c *Config) string { return c.Model.Ollama.KeepAlive }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_MAX_FEATURES", func(c *Config) string { return intStr(c.Embedding.MaxFeatures) }},
	{"EMBEDDING_MAX_INPUT_CHARS", func(c *Config) string { return intStr(c.Embedding.MaxInputChars) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_MIN_SCORE", func(c *Config) string { return float64Str(c.Retrieval.MinScore) }},
	{"ANSWER_EXTRACTIVE_PASSAGES", func(c *Config) string { return intStr(c.Answer.ExtractivePassages) }},
	{"ANSWER_MAX_CHARS", func(c *Config) string { return intStr(c.Answer.MaxChars) }},
	{"GENERATOR_TIMEOUT", func(c *Config) string { return c.Answer.GeneratorTimeout }},
	{"CORPUS_URL", func(c *Config) string { return strings.Join(c.Corpus.URLs, ",") }},
	{"CORPUS_FETCH_TIMEOUT", func(c *Config) string { return c.Corpus.FetchTimeout }},
	{"CORPUS_SAMPLE_FALLBACK", func(c *Config) string { return boolStr(c.Corpus.SampleFallback) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"SUPPORTAI_HOST", func(c *Config) string { return c.Server.Host }},
	{"SUPPORTAI_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"SUPPORTAI_DB", func(c *Config) string { return c.Storage.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
	{"LANGFUSE_SAMPLE_RATE", func(c *Config) string { return float64Str(c.Tracing.SampleRate) }},
}

// Load reads ./.env and a config file and applies their non-empty values as
// environment variables. Existing env vars are never overwritten (env always
// wins, then .env, then the file). Returns the config file path that was
// loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("config: failed to read .env: %w", err)
	} else if err == nil {
		log.Debug("config: loaded .env")
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		val := m.value(cfg)
		if val == "" || val == "0" || val == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env already set
		}
		os.Setenv(m.envKey, val)
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// parseFile decodes path as TOML or YAML depending on its extension.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("SUPPORTAI_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".supportai", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	for _, p := range []string{"supportai.yaml", "supportai.toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
