package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "HOST", "PORT", "MODEL_PATH", "READ_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:5001", cfg.Addr())
	assert.Equal(t, "credit_model_v2.json", cfg.ModelPath)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 0.0.0.0
port: "8080"
model_path: /models/file.json
allowed_origins:
  - http://localhost:3000
write_timeout: 5s
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MODEL_PATH", "/models/env.json.gz")
	t.Setenv("PORT", "")
	t.Setenv("HOST", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("WRITE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "/models/env.json.gz", cfg.ModelPath)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	env := map[string]string{
		"PORT":             "not-a-port",
		"SILENT_DB":        "maybe",
		"READ_TIMEOUT":     "-3s",
		"SHUTDOWN_TIMEOUT": "soon",
		"ALLOWED_ORIGINS":  " http://a.example , ,http://b.example",
		"LOG_FORMAT":       "json",
	}
	cfg := Defaults()
	cfg.applyEnv(func(k string) string { return env[k] })

	def := Defaults()
	assert.Equal(t, def.Port, cfg.Port)
	assert.False(t, cfg.SilentDB)
	assert.Equal(t, def.ReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, def.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
}
