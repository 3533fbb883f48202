// Package config loads the service configuration: defaults, then an optional
// YAML file, then environment variables (a .env file is read first when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full service configuration.
type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Model    ModelConfig    `yaml:"model"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	History  HistoryConfig  `yaml:"history"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// ModelConfig locates the classifier artifact. Watch only warns on change;
// the artifact is never reloaded in place.
type ModelConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// DatabaseConfig points at the sqlite prediction log. An empty path disables it.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the zap logger. File enables a rotated log file.
type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Development bool   `yaml:"development"`
}

// HistoryConfig sizes the in-memory prediction history.
type HistoryConfig struct {
	LRUSize int `yaml:"lru_size"`
}

// Default returns a configuration that serves the shipped model on :8000.
func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Port:           8000,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
		Model: ModelConfig{
			Type: "decision_tree",
			Path: "models/iris_tree.json",
		},
		Database: DatabaseConfig{Path: "data/predictions.db"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		History: HistoryConfig{LRUSize: 1024},
	}
}

// Load builds the configuration. A missing file at path is not an error; a
// file that exists but does not parse is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envStr("IRIS_ENV", cfg.Env)
	cfg.HTTP.Port = envInt("IRIS_PORT", cfg.HTTP.Port)
	cfg.HTTP.Timeout = envDur("IRIS_HTTP_TIMEOUT", cfg.HTTP.Timeout)
	if origins := os.Getenv("IRIS_ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = splitList(origins)
	}
	cfg.Model.Type = envStr("IRIS_MODEL_TYPE", cfg.Model.Type)
	cfg.Model.Path = envStr("IRIS_MODEL_PATH", cfg.Model.Path)
	cfg.Model.Watch = envBool("IRIS_MODEL_WATCH", cfg.Model.Watch)
	if v, ok := os.LookupEnv("IRIS_DB_PATH"); ok {
		cfg.Database.Path = v
	}
	cfg.Log.Level = envStr("IRIS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envStr("IRIS_LOG_FILE", cfg.Log.File)
	cfg.Log.Development = envBool("IRIS_LOG_DEVELOPMENT", cfg.Log.Development)
	cfg.History.LRUSize = envInt("IRIS_HISTORY_SIZE", cfg.History.LRUSize)
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("invalid http timeout %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body size %d", c.HTTP.MaxBodyBytes)
	}
	if c.History.LRUSize <= 0 {
		return fmt.Errorf("invalid history size %d", c.History.LRUSize)
	}
	return nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
