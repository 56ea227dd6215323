// Package config loads tradux settings from defaults, an optional YAML file
// and TRADUX_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tradux/tradux/internal/files"
	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/logger"
)

const (
	ProviderMyMemory = "mymemory"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"

	LedgerSQLite    = "sqlite"
	LedgerPostgREST = "postgrest"
	LedgerMemory    = "memory"
)

const (
	dirName        = ".tradux"
	maxDailyLimit  = 1_000_000
	maxProviderQPS = 50
	minDebounce    = 50 * time.Millisecond
	maxDebounce    = 5 * time.Second
	maxTimeout     = 2 * time.Minute
)

// Config holds every tunable. API keys are not part of it; they live in
// the OS keychain.
type Config struct {
	Provider   string `yaml:"provider" env:"TRADUX_PROVIDER"`
	Model      string `yaml:"model,omitempty" env:"TRADUX_MODEL"`
	SourceLang string `yaml:"source_lang" env:"TRADUX_SOURCE_LANG"`
	TargetLang string `yaml:"target_lang" env:"TRADUX_TARGET_LANG"`

	DailyLimit     int           `yaml:"daily_limit" env:"TRADUX_DAILY_LIMIT"`
	DebounceDelay  time.Duration `yaml:"debounce_delay" env:"TRADUX_DEBOUNCE_DELAY"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TRADUX_REQUEST_TIMEOUT"`
	ProviderQPS    float64       `yaml:"provider_qps" env:"TRADUX_PROVIDER_QPS"`

	Ledger      string `yaml:"ledger" env:"TRADUX_LEDGER"`
	LedgerPath  string `yaml:"ledger_path,omitempty" env:"TRADUX_LEDGER_PATH"`
	LedgerURL   string `yaml:"ledger_url,omitempty" env:"TRADUX_LEDGER_URL"`
	SessionPath string `yaml:"session_path,omitempty" env:"TRADUX_SESSION_PATH"`

	MyMemoryEndpoint string `yaml:"mymemory_endpoint,omitempty" env:"TRADUX_MYMEMORY_ENDPOINT"`
	MyMemoryEmail    string `yaml:"mymemory_email,omitempty" env:"TRADUX_MYMEMORY_EMAIL"`

	LogFile string `yaml:"log_file,omitempty" env:"TRADUX_LOG_FILE"`
	Debug   bool   `yaml:"debug,omitempty" env:"TRADUX_DEBUG"`
}

// Dir returns ~/.tradux.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in settings.
func Default() Config {
	cfg := Config{
		Provider:       ProviderMyMemory,
		SourceLang:     language.Auto,
		TargetLang:     "en",
		DailyLimit:     500,
		DebounceDelay:  300 * time.Millisecond,
		RequestTimeout: 15 * time.Second,
		ProviderQPS:    3,
		Ledger:         LedgerSQLite,
	}
	if dir, err := Dir(); err == nil {
		cfg.LedgerPath = filepath.Join(dir, "usage.db")
		cfg.SessionPath = filepath.Join(dir, "session_id")
	}
	return cfg
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	return load(path, nil)
}

func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	for _, note := range cfg.Normalize() {
		logger.Warn("Config value adjusted", "note", note)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Normalize canonicalizes and clamps values, returning a note per change.
func (c *Config) Normalize() []string {
	var notes []string
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Ledger = strings.ToLower(strings.TrimSpace(c.Ledger))
	c.SourceLang = strings.TrimSpace(c.SourceLang)
	c.TargetLang = strings.TrimSpace(c.TargetLang)

	if c.DailyLimit > maxDailyLimit {
		notes = append(notes, fmt.Sprintf("daily_limit clamped from %d to %d", c.DailyLimit, maxDailyLimit))
		c.DailyLimit = maxDailyLimit
	}
	if c.DebounceDelay < minDebounce {
		notes = append(notes, fmt.Sprintf("debounce_delay raised from %s to %s", c.DebounceDelay, minDebounce))
		c.DebounceDelay = minDebounce
	} else if c.DebounceDelay > maxDebounce {
		notes = append(notes, fmt.Sprintf("debounce_delay lowered from %s to %s", c.DebounceDelay, maxDebounce))
		c.DebounceDelay = maxDebounce
	}
	if c.RequestTimeout > maxTimeout {
		notes = append(notes, fmt.Sprintf("request_timeout lowered from %s to %s", c.RequestTimeout, maxTimeout))
		c.RequestTimeout = maxTimeout
	}
	if c.ProviderQPS > maxProviderQPS {
		notes = append(notes, fmt.Sprintf("provider_qps clamped from %g to %d", c.ProviderQPS, maxProviderQPS))
		c.ProviderQPS = maxProviderQPS
	}
	return notes
}

// Validate rejects settings the reader cannot run with.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderMyMemory, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q (want %s, %s or %s)", c.Provider, ProviderMyMemory, ProviderGemini, ProviderOpenAI)
	}
	if _, err := language.Source(c.SourceLang); err != nil {
		return err
	}
	if _, err := language.Target(c.TargetLang); err != nil {
		return err
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.ProviderQPS < 0 {
		return fmt.Errorf("provider_qps must not be negative")
	}
	switch c.Ledger {
	case LedgerSQLite:
		if c.LedgerPath == "" {
			return fmt.Errorf("ledger_path is required for the sqlite ledger")
		}
	case LedgerPostgREST:
		if c.LedgerURL == "" {
			return fmt.Errorf("ledger_url is required for the postgrest ledger")
		}
	case LedgerMemory:
	default:
		return fmt.Errorf("unknown ledger %q", c.Ledger)
	}
	if c.SessionPath == "" {
		return fmt.Errorf("session_path is required")
	}
	return nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return files.AtomicWrite(path, data, 0o600)
}
