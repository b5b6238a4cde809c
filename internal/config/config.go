// Package config provides configuration loading and validation for the CLI.
// Values come from an optional JSON file, overridden by BLOGCAST_* environment
// variables, with defaults filled last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds everything the pipeline needs to talk to its collaborators.
type Config struct {
	// Provider credentials and endpoints.
	GeminiAPIKey   string `json:"gemini_api_key,omitempty"`
	AvatarBaseURL  string `json:"avatar_base_url,omitempty" validate:"omitempty,url"`
	AvatarAPIKey   string `json:"avatar_api_key,omitempty"`
	ComposeBaseURL string `json:"compose_base_url,omitempty" validate:"omitempty,url"`
	CatalogBaseURL string `json:"catalog_base_url,omitempty" validate:"omitempty,url"`

	// Persistence. DatabaseURL selects the postgres tier; otherwise pipeline
	// state lives as JSON files under StorageDir.
	StorageDir  string `json:"storage_dir,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	// Stage tuning.
	PollIntervalSeconds int     `json:"poll_interval_seconds,omitempty" validate:"omitempty,gte=1"`
	MaxPollAttempts     int     `json:"max_poll_attempts,omitempty" validate:"omitempty,gte=1"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	WordsPerSecond      float64 `json:"words_per_second,omitempty" validate:"omitempty,gt=0"`
	AspectRatio         string  `json:"aspect_ratio,omitempty"`

	// Behavior.
	Verbose bool `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		StorageDir:          ".blogcast",
		PollIntervalSeconds: 5,
		MaxPollAttempts:     60,
		SimilarityThreshold: 0.9,
		WordsPerSecond:      2.5,
		AspectRatio:         "16:9",
	}
}

// Load reads configuration from an optional JSON file, applies environment
// overrides, fills defaults and validates the result. An empty path skips
// the file step.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from BLOGCAST_* variables, plus GEMINI_API_KEY
// for parity with other Gemini tooling.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiAPIKey, "BLOGCAST_GEMINI_API_KEY")
	setString(&c.AvatarBaseURL, "BLOGCAST_AVATAR_BASE_URL")
	setString(&c.AvatarAPIKey, "BLOGCAST_AVATAR_API_KEY")
	setString(&c.ComposeBaseURL, "BLOGCAST_COMPOSE_BASE_URL")
	setString(&c.CatalogBaseURL, "BLOGCAST_CATALOG_BASE_URL")
	setString(&c.StorageDir, "BLOGCAST_STORAGE_DIR")
	setString(&c.DatabaseURL, "BLOGCAST_DATABASE_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")

	if v := os.Getenv("BLOGCAST_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("BLOGCAST_MAX_POLL_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPollAttempts = n
		}
	}
	if v := os.Getenv("BLOGCAST_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SimilarityThreshold = f
		}
	}
}

func (c *Config) fillDefaults() {
	d := Defaults()
	if c.StorageDir == "" {
		c.StorageDir = d.StorageDir
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = d.PollIntervalSeconds
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = d.MaxPollAttempts
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.WordsPerSecond == 0 {
		c.WordsPerSecond = d.WordsPerSecond
	}
	if c.AspectRatio == "" {
		c.AspectRatio = d.AspectRatio
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
