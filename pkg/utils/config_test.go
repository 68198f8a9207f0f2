package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MANGAGUIDE_CONFIG", "")
	t.Setenv("MANGAGUIDE_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.StageTimeout != 15*time.Second {
		t.Fatalf("unexpected stage timeout: %v", cfg.StageTimeout)
	}
	if cfg.Lookup.MaxAttempts != 3 || cfg.Lookup.AttemptDelay != time.Second {
		t.Fatalf("unexpected lookup settings: %+v", cfg.Lookup)
	}
	if cfg.LLMEnabled() {
		t.Fatal("expected LLM estimator disabled without a key")
	}
	if cfg.LLM.MaxAttempts != 3 || cfg.LLM.RetryDelay != time.Second {
		t.Fatalf("unexpected llm retry settings: %+v", cfg.LLM)
	}
	if !cfg.Covers.Enabled || cfg.Covers.GoogleBooksURL == "" || cfg.Covers.JikanURL == "" {
		t.Fatalf("unexpected cover settings: %+v", cfg.Covers)
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "mangaguide.yaml")
	content := `
http_addr: ":9090"
feed_addr: ":7070"
catalog_path: "data/catalog.json"
stage_timeout: 5s
lookup:
  enabled: true
  base_url: "http://lookup.local"
  max_attempts: 2
  attempt_delay: 250ms
llm:
  model: "demo-model"
  max_attempts: 4
  retry_delay: 2s
covers:
  enabled: true
  jikan_url: "http://jikan.local"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANGAGUIDE_CONFIG", path)
	t.Setenv("MANGAGUIDE_HTTP_ADDR", ":7000")
	t.Setenv("MANGAGUIDE_LLM_API_KEY", " secret ")
	t.Setenv("MANGAGUIDE_COVERS_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("expected env to override yaml, got %q", cfg.HTTPAddr)
	}
	if cfg.FeedAddr != ":7070" {
		t.Fatalf("unexpected feed addr: %q", cfg.FeedAddr)
	}
	if cfg.CatalogPath != "data/catalog.json" {
		t.Fatalf("unexpected catalog path: %q", cfg.CatalogPath)
	}
	if cfg.StageTimeout != 5*time.Second {
		t.Fatalf("unexpected stage timeout: %v", cfg.StageTimeout)
	}
	if cfg.Lookup.BaseURL != "http://lookup.local" || cfg.Lookup.MaxAttempts != 2 || cfg.Lookup.AttemptDelay != 250*time.Millisecond {
		t.Fatalf("unexpected lookup settings: %+v", cfg.Lookup)
	}
	if cfg.LLM.Model != "demo-model" || cfg.LLM.APIKey != "secret" {
		t.Fatalf("unexpected llm settings: %+v", cfg.LLM)
	}
	if cfg.LLM.TimeoutSeconds != 15 {
		t.Fatalf("expected llm timeout to keep default, got %d", cfg.LLM.TimeoutSeconds)
	}
	if cfg.LLM.MaxAttempts != 4 || cfg.LLM.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected llm retry settings: %+v", cfg.LLM)
	}
	if cfg.Covers.Enabled || cfg.Covers.JikanURL != "http://jikan.local" || cfg.Covers.Timeout != 5*time.Second {
		t.Fatalf("unexpected cover settings: %+v", cfg.Covers)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MANGAGUIDE_CONFIG", "")
	t.Setenv("MANGAGUIDE_STAGE_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected invalid duration to fail")
	}

	t.Setenv("MANGAGUIDE_STAGE_TIMEOUT", "")
	t.Setenv("MANGAGUIDE_LOG_FORMAT", "xml")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected invalid log format to fail")
	}

	t.Setenv("MANGAGUIDE_LOG_FORMAT", "")
	t.Setenv("MANGAGUIDE_COVERS_ENABLED", "maybe")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected invalid covers flag to fail")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("MANGAGUIDE_CONFIG", "")
	t.Setenv("MANGAGUIDE_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MANGAGUIDE_LLM_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv does not override variables that are already set, even to "".
	os.Unsetenv("MANGAGUIDE_LLM_API_KEY")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
	os.Unsetenv("MANGAGUIDE_LLM_API_KEY")
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		if _, err := NewLogger("debug", format); err != nil {
			t.Fatalf("NewLogger(%q) returned error: %v", format, err)
		}
	}
	if _, err := NewLogger("loud", "json"); err == nil {
		t.Fatal("expected invalid level to fail")
	}
	if _, err := NewLogger("info", "xml"); err == nil {
		t.Fatal("expected invalid format to fail")
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
