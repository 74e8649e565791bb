package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Staging     StagingConfig  `toml:"staging"`
	Logging     LoggingConfig  `toml:"logging"`
	Scraper     ScraperConfig  `toml:"scraper"`
	LLM         LLMConfig      `toml:"llm"`
	Security    SecurityConfig `toml:"security"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// StagingConfig controls the staged-row store between extract and commit
type StagingConfig struct {
	Root            string `toml:"root"`             // Staging file directory (default: ./output/staging)
	InlineThreshold int    `toml:"inline_threshold"` // Payloads under this many bytes stay inline on the job record
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScraperConfig contains defaults applied when a web source leaves them unset
type ScraperConfig struct {
	UserAgent          string        `toml:"user_agent"`
	RequestTimeout     time.Duration `toml:"request_timeout"`      // Per-fetch HTTP timeout
	ConnectTimeout     time.Duration `toml:"connect_timeout"`      // TCP/TLS connect timeout
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"` // Browser settle time after network idle
	HybridMinTextSize  int           `toml:"hybrid_min_text_size"` // Visible-text floor before hybrid falls back to browser
	Headless           bool          `toml:"headless"`
	NoSandbox          bool          `toml:"no_sandbox"`
}

// LLMConfig contains provider configuration for the extraction LLM
type LLMConfig struct {
	Provider    string        `toml:"provider"` // "claude" or "gemini"
	APIKey      string        `toml:"api_key"`
	Model       string        `toml:"model"`
	Temperature float32       `toml:"temperature"`
	MaxTokens   int           `toml:"max_tokens"`
	Timeout     time.Duration `toml:"timeout"`
}

// SecurityConfig holds the secret box key for data source credentials
type SecurityConfig struct {
	EncryptionKey string `toml:"encryption_key"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/syncengine",
			},
		},
		Staging: StagingConfig{
			Root:            "./output/staging",
			InlineThreshold: 1 << 20, // 1 MiB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Scraper: ScraperConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:     30 * time.Second,
			ConnectTimeout:     10 * time.Second,
			JavaScriptWaitTime: 3 * time.Second,
			HybridMinTextSize:  512,
			Headless:           true,
			NoSandbox:          false,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
			MaxTokens:   8192,
			Timeout:     2 * time.Minute,
		},
	}
}

// LoadConfig reads TOML configuration from path, applies defaults for unset
// fields, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STAGING_ROOT"); v != "" {
		config.Staging.Root = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		config.Security.EncryptionKey = v
	}
	if v := os.Getenv("SYNCENGINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("SYNCENGINE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SYNCENGINE_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
}

// ValidateCronSpec validates a standard 5-field cron expression
func ValidateCronSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("cron expression is empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}
