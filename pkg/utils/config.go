package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig holds the chat-completion estimator settings. An empty APIKey
// disables that estimator backend.
type LLMConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"` // first backoff, doubled per retry up to 8x
}

// LookupConfig controls the structured MangaUpdates stage.
type LookupConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	MaxAttempts  int           `yaml:"max_attempts"`
	AttemptDelay time.Duration `yaml:"attempt_delay"`
}

// WebTextConfig controls the page-scraping estimator backend.
type WebTextConfig struct {
	Enabled       bool   `yaml:"enabled"`
	PageBaseURL   string `yaml:"page_base_url"`
	SearchBaseURL string `yaml:"search_base_url"`
}

// CoversConfig controls the volume cover lookup stamped onto results.
type CoversConfig struct {
	Enabled        bool          `yaml:"enabled"`
	GoogleBooksURL string        `yaml:"google_books_url"`
	JikanURL       string        `yaml:"jikan_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

type Config struct {
	HTTPAddr     string        `yaml:"http_addr"`
	FeedAddr     string        `yaml:"feed_addr"`    // empty: no TCP feed listener
	CatalogPath  string        `yaml:"catalog_path"` // empty: load catalog from the database
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	StageTimeout time.Duration `yaml:"stage_timeout"`
	Lookup       LookupConfig  `yaml:"lookup"`
	WebText      WebTextConfig `yaml:"web_text"`
	LLM          LLMConfig     `yaml:"llm"`
	Covers       CoversConfig  `yaml:"covers"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":8080",
		LogLevel:     "info",
		LogFormat:    "console",
		StageTimeout: 15 * time.Second,
		Lookup: LookupConfig{
			Enabled:      true,
			BaseURL:      "https://api.mangaupdates.com/v1",
			MaxAttempts:  3,
			AttemptDelay: time.Second,
		},
		WebText: WebTextConfig{
			Enabled:       true,
			PageBaseURL:   "https://wheredoestheanimeleaveoff.com",
			SearchBaseURL: "https://api.duckduckgo.com",
		},
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1/chat/completions",
			Model:          "google/gemini-2.5-flash",
			TimeoutSeconds: 15,
			MaxAttempts:    3,
			RetryDelay:     time.Second,
		},
		Covers: CoversConfig{
			Enabled:        true,
			GoogleBooksURL: "https://www.googleapis.com/books/v1",
			JikanURL:       "https://api.jikan.moe/v4",
			Timeout:        5 * time.Second,
		},
	}
}

// LoadConfig builds the runtime configuration: defaults, then an optional
// YAML file (MANGAGUIDE_CONFIG), then MANGAGUIDE_* environment overrides.
// A .env file in the working directory is loaded first when present.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("MANGAGUIDE_CONFIG")); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MANGAGUIDE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MANGAGUIDE_FEED_ADDR"); v != "" {
		cfg.FeedAddr = v
	}
	if v := os.Getenv("MANGAGUIDE_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("MANGAGUIDE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MANGAGUIDE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("MANGAGUIDE_STAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MANGAGUIDE_STAGE_TIMEOUT: %w", err)
		}
		cfg.StageTimeout = d
	}
	if v := os.Getenv("MANGAGUIDE_LOOKUP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MANGAGUIDE_LOOKUP_ENABLED: %w", err)
		}
		cfg.Lookup.Enabled = b
	}
	if v := os.Getenv("MANGAGUIDE_WEBTEXT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MANGAGUIDE_WEBTEXT_ENABLED: %w", err)
		}
		cfg.WebText.Enabled = b
	}

	if v := os.Getenv("MANGAGUIDE_COVERS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MANGAGUIDE_COVERS_ENABLED: %w", err)
		}
		cfg.Covers.Enabled = b
	}

	// credentials never live in the config file
	key := os.Getenv("MANGAGUIDE_LLM_API_KEY")
	if key == "" {
		key = os.Getenv("OPENROUTER_API_KEY")
	}
	if key != "" {
		cfg.LLM.APIKey = key
	}
	if v := os.Getenv("MANGAGUIDE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MANGAGUIDE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	if c.HTTPAddr == "" {
		c.HTTPAddr = def.HTTPAddr
	}
	c.FeedAddr = strings.TrimSpace(c.FeedAddr)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.StageTimeout <= 0 {
		c.StageTimeout = def.StageTimeout
	}
	if c.Lookup.MaxAttempts <= 0 {
		c.Lookup.MaxAttempts = def.Lookup.MaxAttempts
	}
	if c.Lookup.AttemptDelay < 0 {
		c.Lookup.AttemptDelay = 0
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = int(c.StageTimeout / time.Second)
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = def.LLM.MaxAttempts
	}
	if c.LLM.RetryDelay < 0 {
		c.LLM.RetryDelay = 0
	}
	if c.Covers.Timeout <= 0 {
		c.Covers.Timeout = def.Covers.Timeout
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}
	if c.Lookup.MaxAttempts > 5 {
		return fmt.Errorf("lookup.max_attempts: %d exceeds limit of 5", c.Lookup.MaxAttempts)
	}
	if c.LLM.MaxAttempts > 5 {
		return fmt.Errorf("llm.max_attempts: %d exceeds limit of 5", c.LLM.MaxAttempts)
	}
	if c.Lookup.Enabled && strings.TrimSpace(c.Lookup.BaseURL) == "" {
		return errors.New("lookup.base_url required when lookup is enabled")
	}
	return nil
}

// LLMEnabled reports whether the LLM estimator has credentials.
func (c Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}
