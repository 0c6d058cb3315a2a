package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/chunker"
	"github.com/54b3r/supportai-go/internal/ingestion"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
)

// Defaults for settings that have no natural zero value.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8080
	DefaultQdrantPort     = 6334
	MemoryDBPath          = "memory"
	defaultMinScore       = 0.0
	defaultSampleFallback = true
)

// Settings is the resolved runtime configuration, read from the environment
// after Load has layered the config file and .env underneath it.
type Settings struct {
	Chunking  chunker.Options
	TopK      int
	MinScore  float64
	Answer    answer.Config
	Pipeline  pipeline.Config
	Fetcher   ingestion.FetcherConfig
	Qdrant    *rag.QdrantConfig
	DBPath    string
	Host      string
	Port      int
	LogLevel  string
	LogFormat string
}

// FromEnv resolves Settings from environment variables. Unparseable values
// fall back to their defaults.
func FromEnv() Settings {
	s := Settings{
		Chunking: chunker.Options{
			Size:                getEnvInt("CHUNK_SIZE", chunker.DefaultSize),
			Overlap:             getEnvInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
			NormalizeWhitespace: getEnvBool("CHUNK_NORMALIZE_WHITESPACE", true),
		},
		TopK:     getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK),
		MinScore: getEnvFloat("RETRIEVAL_MIN_SCORE", defaultMinScore),
		Answer: answer.Config{
			ExtractivePassages: getEnvInt("ANSWER_EXTRACTIVE_PASSAGES", answer.DefaultExtractivePassages),
			MaxAnswerChars:     getEnvInt("ANSWER_MAX_CHARS", answer.DefaultMaxAnswerChars),
			GenerateTimeout:    getEnvDuration("GENERATOR_TIMEOUT", answer.DefaultGenerateTimeout),
		},
		Pipeline: pipeline.Config{
			SourceURLs:     splitList(getEnvOrDefault("CORPUS_URL", ingestion.DefaultSourceURL)),
			FetchTimeout:   getEnvDuration("CORPUS_FETCH_TIMEOUT", pipeline.DefaultFetchTimeout),
			SampleFallback: getEnvBool("CORPUS_SAMPLE_FALLBACK", defaultSampleFallback),
		},
		Fetcher: ingestion.FetcherConfig{
			Timeout:           getEnvDuration("FETCH_REQUEST_TIMEOUT", ingestion.DefaultTimeout),
			UserAgent:         getEnvOrDefault("FETCH_USER_AGENT", ingestion.DefaultUserAgent),
			RequestsPerSecond: getEnvFloat("FETCH_RATE", 1),
		},
		DBPath:    os.Getenv("SUPPORTAI_DB"), // empty means store.DefaultDBPath
		Host:      getEnvOrDefault("SUPPORTAI_HOST", DefaultHost),
		Port:      getEnvInt("SUPPORTAI_PORT", DefaultPort),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
	}

	// The Qdrant mirror is opt-in: it is only configured when a host is set.
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		s.Qdrant = &rag.QdrantConfig{
			Host:       host,
			Port:       getEnvInt("QDRANT_PORT", DefaultQdrantPort),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS", false),
		}
	}
	return s
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return fallback
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
