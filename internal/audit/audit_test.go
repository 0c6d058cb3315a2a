package audit

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"OPENAI_API_KEY", "ARK_API_KEY", "QDRANT_API_KEY", "LANGFUSE_SECRET_KEY"} {
		if got := SanitiseKey(key, "sk-abc123"); got != "set" {
			t.Errorf("%s: expected 'set', got %q", key, got)
		}
		if got := SanitiseKey(key, ""); got != "unset" {
			t.Errorf("%s: expected 'unset', got %q", key, got)
		}
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("CORPUS_URL", "https://www.ziggo.nl/internet"); got != "https://www.ziggo.nl/internet" {
		t.Errorf("expected the url, got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestAttrs_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("MODEL_PROVIDER", "openai")

	got := map[string]string{}
	for _, a := range Attrs("ask", "") {
		got[a.Key] = a.Value.String()
	}

	if got["command"] != "ask" || got["config_file"] != "none" {
		t.Errorf("command/config attrs = %q/%q", got["command"], got["config_file"])
	}
	if got["OPENAI_API_KEY"] != "set" {
		t.Errorf("secret leaked or missing: %q", got["OPENAI_API_KEY"])
	}
	if got["MODEL_PROVIDER"] != "openai" {
		t.Errorf("MODEL_PROVIDER = %q", got["MODEL_PROVIDER"])
	}
	if len(got) != len(auditKeys)+2 {
		t.Errorf("got %d attrs, want %d", len(got), len(auditKeys)+2)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	p := filepath.Join(home, ".supportai", "config.yaml")
	if got := sanitiseConfigPath(p); got != filepath.Join("~", ".supportai", "config.yaml") {
		t.Errorf("sanitiseConfigPath(%q) = %q", p, got)
	}
	if got := sanitiseConfigPath("./supportai.toml"); got != "./supportai.toml" {
		t.Errorf("relative path rewritten: %q", got)
	}
}

func TestLogCommandStart(t *testing.T) {
	t.Parallel()
	// Must not panic with a discarding logger.
	LogCommandStart(slog.New(slog.DiscardHandler), "serve", "")
}
