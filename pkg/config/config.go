// Package config handles pointloss configuration via YAML files and
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--workers, --backend, etc.)
//  2. Environment variables (POINTLOSS_*)
//  3. Config file (pointloss.yaml)
//  4. Built-in defaults
//
// Environment variables (all use POINTLOSS_ prefix):
//
// Compute:
//   - POINTLOSS_WORKERS=8
//   - POINTLOSS_BACKEND="cpu" or "vulkan"
//   - POINTLOSS_BACKEND_FALLBACK=true
//
// Match schedule:
//   - POINTLOSS_MATCH_LEVELS=8
//   - POINTLOSS_MATCH_INIT_TEMP=4.0
//   - POINTLOSS_MATCH_TEMP_DECAY=0.25
//   - POINTLOSS_MATCH_ALTERNATIONS=4
//
// Logging:
//   - POINTLOSS_LOG_LEVEL="info"
//   - POINTLOSS_LOG_FORMAT="text" or "json"
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/match"
)

// Config holds all pointloss configuration.
type Config struct {
	// Compute settings: workers and backend selection.
	Compute ComputeConfig `yaml:"compute"`

	// Match holds the refinement schedule of the match engine.
	Match match.Schedule `yaml:"match"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// ComputeConfig holds execution settings.
type ComputeConfig struct {
	// Workers bounds concurrent kernel goroutines. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Backend selects the execution backend ("cpu" or "vulkan").
	Backend string `yaml:"backend"`
	// Fallback falls back to the CPU backend when the requested
	// accelerator is unavailable.
	Fallback bool `yaml:"fallback"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// LoadDefaults returns the built-in defaults: CPU backend with fallback,
// GOMAXPROCS workers, the default match schedule and info-level text logs.
func LoadDefaults() *Config {
	return &Config{
		Compute: ComputeConfig{
			Workers:  0,
			Backend:  string(compute.BackendCPU),
			Fallback: true,
		},
		Match: match.DefaultSchedule(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, applies POINTLOSS_*
// environment overrides on top, and validates the result. A missing file is
// not an error; defaults plus environment apply.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults with POINTLOSS_* environment overrides
// applied, without reading any file.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	applyEnvVars(cfg)
	return cfg
}

// FindConfigFile returns the first config file that exists among the
// standard locations, or "" when none does.
func FindConfigFile() string {
	candidates := []string{
		"pointloss.yaml",
		"pointloss.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "pointloss", "pointloss.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func applyEnvVars(cfg *Config) {
	cfg.Compute.Workers = getEnvInt("POINTLOSS_WORKERS", cfg.Compute.Workers)
	cfg.Compute.Backend = getEnv("POINTLOSS_BACKEND", cfg.Compute.Backend)
	cfg.Compute.Fallback = getEnvBool("POINTLOSS_BACKEND_FALLBACK", cfg.Compute.Fallback)

	cfg.Match.Levels = getEnvInt("POINTLOSS_MATCH_LEVELS", cfg.Match.Levels)
	cfg.Match.InitTemp = getEnvFloat32("POINTLOSS_MATCH_INIT_TEMP", cfg.Match.InitTemp)
	cfg.Match.TempDecay = getEnvFloat32("POINTLOSS_MATCH_TEMP_DECAY", cfg.Match.TempDecay)
	cfg.Match.Alternations = getEnvInt("POINTLOSS_MATCH_ALTERNATIONS", cfg.Match.Alternations)

	cfg.Logging.Level = getEnv("POINTLOSS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("POINTLOSS_LOG_FORMAT", cfg.Logging.Format)
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Compute.Workers < 0 {
		return fmt.Errorf("compute.workers must be >= 0, got %d", c.Compute.Workers)
	}
	switch compute.Backend(c.Compute.Backend) {
	case compute.BackendCPU, compute.BackendVulkan:
	default:
		return fmt.Errorf("compute.backend must be %q or %q, got %q",
			compute.BackendCPU, compute.BackendVulkan, c.Compute.Backend)
	}
	if err := c.Match.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ComputeConfig converts the compute section into a compute.Config with the
// configured logger attached.
func (c *Config) ComputeConfig() *compute.Config {
	return &compute.Config{
		Workers:         c.Compute.Workers,
		Backend:         compute.Backend(c.Compute.Backend),
		FallbackOnError: c.Compute.Fallback,
		Logger:          c.Logger(),
	}
}

// Logger builds a slog.Logger on stderr from the logging section.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat32(key string, defaultVal float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
