package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Match policies understood by the matcher.
const (
	PolicyFirst = "first"
	PolicyBest  = "best"
)

// Config holds the application's configuration values.
type Config struct {
	Threshold        int           `yaml:"threshold"`
	RedirectCode     string        `yaml:"redirect_code"`
	NoiseMarkers     []string      `yaml:"noise_markers"`
	MatchPolicy      string        `yaml:"match_policy"`
	CanonicalizeURLs bool          `yaml:"canonicalize_urls"`
	MaxConcurrency   int           `yaml:"max_concurrency"`
	ScoreWorkers     int           `yaml:"score_workers"`
	EntryTimeout     time.Duration `yaml:"entry_timeout"`
	DatabaseDriver   string        `yaml:"database_driver"`
	DatabaseURL      string        `yaml:"database_url"`
	HTTPPort         string        `yaml:"http_port"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Threshold:      90,
		RedirectCode:   "302",
		NoiseMarkers:   []string{"partner.archive-it.org"},
		MatchPolicy:    PolicyFirst,
		MaxConcurrency: 4,
		ScoreWorkers:   8,
		DatabaseDriver: "sqlite",
		DatabaseURL:    "replaywatch.db",
		HTTPPort:       "8080",
		ShutdownGrace:  10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "auto",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// REPLAYWATCH_CONFIG, and environment variables, in that order.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("REPLAYWATCH_CONFIG"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Threshold = getEnvInt("REPLAYWATCH_THRESHOLD", c.Threshold)
	c.RedirectCode = getEnv("REPLAYWATCH_REDIRECT_CODE", c.RedirectCode)
	if v, ok := os.LookupEnv("REPLAYWATCH_NOISE_MARKERS"); ok {
		c.NoiseMarkers = splitList(v)
	}
	c.MatchPolicy = getEnv("REPLAYWATCH_MATCH_POLICY", c.MatchPolicy)
	c.CanonicalizeURLs = getEnvBool("REPLAYWATCH_CANONICALIZE_URLS", c.CanonicalizeURLs)
	c.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", c.MaxConcurrency)
	c.ScoreWorkers = getEnvInt("REPLAYWATCH_SCORE_WORKERS", c.ScoreWorkers)
	c.EntryTimeout = getEnvDuration("REPLAYWATCH_ENTRY_TIMEOUT", c.EntryTimeout)
	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.ShutdownGrace = getEnvDuration("SHUTDOWN_GRACE", c.ShutdownGrace)
	c.LogLevel = getEnv("REPLAYWATCH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("REPLAYWATCH_LOG_FORMAT", c.LogFormat)
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", c.Threshold)
	}
	switch c.MatchPolicy {
	case PolicyFirst, PolicyBest:
	default:
		return fmt.Errorf("unknown match policy %q (must be %s or %s)", c.MatchPolicy, PolicyFirst, PolicyBest)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.ScoreWorkers < 1 {
		return fmt.Errorf("score workers must be positive, got %d", c.ScoreWorkers)
	}
	if c.EntryTimeout < 0 {
		return fmt.Errorf("entry timeout must not be negative, got %s", c.EntryTimeout)
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	return nil
}

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as an integer.
func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Helper function to get an environment variable as a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
