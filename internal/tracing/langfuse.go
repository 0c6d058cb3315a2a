// Package tracing wires optional Langfuse tracing into every eino chat
// model call made by the generator.
package tracing

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/supportai-go/internal/version"
)

const (
	defaultHost = "http://localhost:3000"
	traceName   = "supportai.answer"
)

// Config holds the Langfuse settings read from LANGFUSE_* variables.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
	// SampleRate is the fraction of answers traced, within (0, 1].
	SampleRate float64
}

// ConfigFromEnv reads the Langfuse settings. ok is false when either key is
// missing, in which case tracing stays off.
func ConfigFromEnv() (cfg Config, ok bool) {
	cfg = Config{
		Host:       os.Getenv("LANGFUSE_HOST"),
		PublicKey:  os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey:  os.Getenv("LANGFUSE_SECRET_KEY"),
		SampleRate: 1,
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if v, err := strconv.ParseFloat(os.Getenv("LANGFUSE_SAMPLE_RATE"), 64); err == nil && v > 0 && v <= 1 {
		cfg.SampleRate = v
	}
	return cfg, cfg.PublicKey != "" && cfg.SecretKey != ""
}

// Handler builds the eino callback handler and its flush function.
func (c Config) Handler() (callbacks.Handler, func()) {
	return langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:       c.Host,
		PublicKey:  c.PublicKey,
		SecretKey:  c.SecretKey,
		SampleRate: c.SampleRate,
		Name:       traceName,
		Release:    version.Version,
	})
}

// Enable registers the Langfuse handler globally when configured and returns
// the flush function to defer. The flush is a no-op when tracing is off.
func Enable(log *slog.Logger) func() {
	cfg, ok := ConfigFromEnv()
	if !ok {
		log.Debug("tracing: langfuse disabled, LANGFUSE_PUBLIC_KEY/LANGFUSE_SECRET_KEY not set")
		return func() {}
	}
	handler, flush := cfg.Handler()
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled",
		slog.String("host", cfg.Host),
		slog.Float64("sample_rate", cfg.SampleRate),
	)
	return flush
}
