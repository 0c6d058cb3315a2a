package provider

import (
	"context"
	"strings"
	"testing"
)

// validConfig returns a Config that passes Validate for backend b.
func validConfig(b Backend) Config {
	return Config{
		Backend: b,
		Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
		OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o"},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     "key",
			Endpoint:   "https://support.openai.azure.com",
			Deployment: "gpt-4o",
			APIVersion: "2024-02-01",
		},
		Ark:    ProviderArk{APIKey: "ark-test", Model: "ep-20240101-abcde"},
		Gemini: ProviderGemini{APIKey: "AIza-test", Model: "gemini-1.5-pro"},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	for _, b := range []Backend{BackendNone, BackendOllama, BackendOpenAI, BackendAzure, BackendArk, BackendGemini} {
		cfg := validConfig(b)
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: valid config rejected: %v", b, err)
		}
	}

	// Each case breaks exactly one setting of an otherwise valid config and
	// expects the error to name the env var that fixes it.
	tests := []struct {
		backend Backend
		breaks  func(*Config)
		wantErr string
	}{
		{BackendOllama, func(c *Config) { c.Ollama.Model = "" }, "OLLAMA_MODEL"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.APIKey = "" }, "OPENAI_API_KEY"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.Model = "" }, "OPENAI_MODEL"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.APIKey = "" }, "AZURE_OPENAI_API_KEY"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Endpoint = "" }, "AZURE_OPENAI_ENDPOINT"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Deployment = "" }, "AZURE_OPENAI_DEPLOYMENT"},
		{BackendArk, func(c *Config) { c.Ark.APIKey = "" }, "ARK_API_KEY"},
		{BackendArk, func(c *Config) { c.Ark.Model = "" }, "ARK_MODEL"},
		{BackendGemini, func(c *Config) { c.Gemini.APIKey = "" }, "GOOGLE_API_KEY"},
		{BackendGemini, func(c *Config) { c.Gemini.Model = "" }, "GEMINI_MODEL"},
		{BackendOllama, func(c *Config) { c.Tuning.Temperature = 3 }, "MODEL_TEMPERATURE"},
		{"unknown", func(*Config) {}, "unknown backend"},
	}

	for _, tc := range tests {
		t.Run(string(tc.backend)+"/"+tc.wantErr, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(tc.backend)
			tc.breaks(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error naming %q", err, tc.wantErr)
			}
		})
	}
}

// A generation-free deployment must start without any model credentials.
func TestConfigValidate_NoneNeedsNothing(t *testing.T) {
	t.Parallel()
	cfg := Config{Backend: BackendNone}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deployment string
		want       bool
	}{
		// o-series
		{"o1", true},
		{"o1-preview", true},
		{"o1-mini", true},
		{"o3", true},
		{"o3-mini", true},
		{"o3-pro", true},
		{"o4-mini", true},
		{"O1-PREVIEW", true}, // case-insensitive
		{"O3-Mini", true},    // case-insensitive
		// codex
		{"codex-mini", true},
		{"codex", true},
		{"gpt-5.2-codex", false}, // prefix match only
		// chat models
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-4", false},
		{"gpt-4.1", false},
		{"gpt-35-turbo", false},
		{"my-custom-deployment", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.deployment, func(t *testing.T) {
			t.Parallel()
			got := isAzureReasoningModel(tc.deployment)
			if got != tc.want {
				t.Errorf("isAzureReasoningModel(%q) = %v, want %v", tc.deployment, got, tc.want)
			}
		})
	}
}

// TestConfigFromEnv must not run in parallel: it mutates process env.
func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("MODEL_TEMPERATURE", "not-a-number")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendNone {
		t.Errorf("default backend = %q, want %q", cfg.Backend, BackendNone)
	}
	if cfg.Ollama.Model != "llama3" {
		t.Errorf("default ollama model = %q", cfg.Ollama.Model)
	}
	if cfg.Tuning.Temperature != 0.2 {
		t.Errorf("unparseable temperature should fall back to 0.2, got %v", cfg.Tuning.Temperature)
	}

	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4.1")
	t.Setenv("MODEL_MAX_TOKENS", "256")
	cfg = ConfigFromEnv()
	if cfg.Backend != BackendAzure || cfg.Model() != "gpt-4.1" {
		t.Errorf("got backend %q model %q", cfg.Backend, cfg.Model())
	}
	if cfg.Tuning.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", cfg.Tuning.MaxTokens)
	}
}

func TestNew_NoneHasNoModel(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), &Config{Backend: BackendNone}); err == nil {
		t.Error("New() built a chat model for the none backend")
	}
	for b := range constructors {
		if b == BackendNone {
			t.Errorf("constructors must not contain %q", b)
		}
	}
}
