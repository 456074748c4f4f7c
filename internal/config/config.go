package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the searchidx CLI and emulator configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Retry    RetryConfig    `yaml:"retry"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Emulator EmulatorConfig `yaml:"emulator"`
}

// ServiceConfig identifies the remote search service and index.
type ServiceConfig struct {
	Name       string `yaml:"name"` // bare service name or full endpoint URL
	Index      string `yaml:"index"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetryConfig holds the 503 retry policy.
type RetryConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// BatchConfig holds bulk indexing settings.
type BatchConfig struct {
	MaxSize     int `yaml:"max_size"`
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, dev, local (default: local)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// EmulatorConfig holds the local service emulator settings.
type EmulatorConfig struct {
	Addr        string `yaml:"addr"`
	APIKey      string `yaml:"api_key"`
	MetricsPath string `yaml:"metrics_path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// LoadEnv reads config/<env>.yaml.
func LoadEnv(env string) (Config, error) {
	return Load(findConfigPath(env))
}

// Parse decodes YAML configuration, expanding ${VAR} and ${VAR:-default} first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Service.APIVersion == "" {
		c.Service.APIVersion = "2016-09-01"
	}
	if c.Service.TimeoutSec <= 0 {
		c.Service.TimeoutSec = 60
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 30 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Batch.MaxSize <= 0 {
		c.Batch.MaxSize = 1000
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = 4
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.Emulator.Addr == "" {
		c.Emulator.Addr = "127.0.0.1:7700"
	}
	if c.Emulator.MetricsPath == "" {
		c.Emulator.MetricsPath = "/metrics"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.Service.Index == "" {
		return fmt.Errorf("service.index is required")
	}
	if c.Retry.MaxAttempts > 3 {
		return fmt.Errorf("retry.max_attempts must be at most 3, got %d", c.Retry.MaxAttempts)
	}
	if c.Batch.MaxSize > 1000 {
		return fmt.Errorf("batch.max_size must be at most 1000, got %d", c.Batch.MaxSize)
	}
	switch c.Logging.Env {
	case "prod", "dev", "local":
	default:
		return fmt.Errorf("logging.env must be one of prod, dev, local, got %q", c.Logging.Env)
	}
	if !strings.HasPrefix(c.Emulator.MetricsPath, "/") {
		return fmt.Errorf("emulator.metrics_path must start with /, got %q", c.Emulator.MetricsPath)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
