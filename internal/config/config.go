package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process settings for the scoring service.
type Config struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ModelPath       string        `yaml:"model_path"`
	DBPath          string        `yaml:"db_path"`
	SilentDB        bool          `yaml:"silent_db"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Host:            "localhost",
		Port:            "5001",
		ModelPath:       "credit_model_v2.json",
		DBPath:          filepath.Join("data", "credit-risk.db"),
		LogLevel:        "info",
		LogFormat:       "text",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := env("HOST"); v != "" {
		c.Host = v
	}
	if v := env("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			c.Port = v
		}
	}
	if v := env("MODEL_PATH"); v != "" {
		c.ModelPath = v
	}
	if v := env("CREDIT_RISK_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := env("SILENT_DB"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SilentDB = b
		}
	}
	if v := env("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if d, ok := parseDuration(env("READ_TIMEOUT")); ok {
		c.ReadTimeout = d
	}
	if d, ok := parseDuration(env("WRITE_TIMEOUT")); ok {
		c.WriteTimeout = d
	}
	if d, ok := parseDuration(env("SHUTDOWN_TIMEOUT")); ok {
		c.ShutdownTimeout = d
	}
}

func parseDuration(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
