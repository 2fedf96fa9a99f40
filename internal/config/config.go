// Package config loads the runner configuration.
//
// DESIGN: The config file is optional — the tool must run with zero
// arguments — so Load falls back to documented defaults when no file is
// present. The API key is the one hard requirement and always comes from
// the MACKEREL_API_KEY environment variable, never from the file.
// YAML values support ${VAR:-default} environment expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mackerelops/alert-report/internal/logging"
)

// APIKeyEnv is the environment variable that must carry the Mackerel
// API key. Its absence is the only fatal startup condition.
const APIKeyEnv = "MACKEREL_API_KEY"

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" (yaml.v3 only handles raw nanosecond integers natively).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration '%s': %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for a report run.
type Config struct {
	BaseURL     string         `yaml:"base_url"`     // Mackerel API origin
	Timezone    string         `yaml:"timezone"`     // window resolution and display zone
	CacheDir    string         `yaml:"cache_dir"`    // alert cache directory
	OutputPath  string         `yaml:"output_path"`  // CSV destination
	PageLimit   int            `yaml:"page_limit"`   // alerts per page
	HTTPTimeout Duration       `yaml:"http_timeout"` // per-request timeout
	Logging     logging.Config `yaml:"logging"`
	History     HistoryConfig  `yaml:"history"`
	Upload      UploadConfig   `yaml:"upload"`

	// APIKey is populated from the environment, not the file.
	APIKey string `yaml:"-"`
}

// HistoryConfig controls the sqlite run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database file
}

// UploadConfig controls the optional S3 upload of the finished report.
type UploadConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		BaseURL:     "https://api.mackerelio.com",
		Timezone:    "Asia/Tokyo",
		CacheDir:    "cache",
		OutputPath:  "output/external_alerts.csv",
		PageLimit:   100,
		HTTPTimeout: Duration(30 * time.Second),
		Logging:     logging.Config{Level: "info", Format: "auto", Output: "stderr"},
		History:     HistoryConfig{Enabled: true, Path: "cache/history.db"},
	}
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from an optional YAML file, overlays it on
// the defaults, resolves the API key from the environment, and
// validates. path == "" means "defaults only".
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		expanded := expandEnvWithDefaults(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	cfg.APIKey = os.Getenv(APIKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%s is not set", APIKeyEnv)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is required")
	}
	if c.PageLimit < 1 {
		return fmt.Errorf("invalid page_limit: %d (must be >= 1)", c.PageLimit)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Upload.Enabled && c.Upload.Bucket == "" {
		return fmt.Errorf("upload.bucket is required when upload is enabled")
	}
	return nil
}

// Location resolves the configured timezone. Validate guarantees this
// cannot fail after a successful Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
