package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL",
		"SAGACITY_CACHE_BACKEND",
		"SAGACITY_SQLITE_PATH",
		"SAGACITY_LANGUAGES",
		"SAGACITY_MAX_GRAM",
		"SAGACITY_CORPUS_DIR",
		"SAGACITY_SAMPLE_SIZE",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME",
		"SAGACITY_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, "sagacity-cache.db", cfg.SQLitePath)
	assert.Equal(t, []string{"english"}, cfg.Languages)
	assert.Equal(t, 3, cfg.MaxGram)
	assert.Equal(t, 4, cfg.SampleSize)
	assert.Equal(t, "sagacity", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OTELInsecure)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/sagacity")
	t.Setenv("SAGACITY_CACHE_BACKEND", "postgres")
	t.Setenv("SAGACITY_LANGUAGES", " english , french ,")
	t.Setenv("SAGACITY_MAX_GRAM", "2")
	t.Setenv("SAGACITY_SAMPLE_SIZE", "8")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("SAGACITY_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CachePostgres, cfg.CacheBackend)
	assert.Equal(t, []string{"english", "french"}, cfg.Languages)
	assert.Equal(t, 2, cfg.MaxGram)
	assert.Equal(t, 8, cfg.SampleSize)
	assert.True(t, cfg.OTELInsecure)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAGACITY_MAX_GRAM", "three")
	t.Setenv("SAGACITY_SAMPLE_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxGram)
	assert.Equal(t, 4, cfg.SampleSize)
}

func TestValidate(t *testing.T) {
	valid := Config{
		CacheBackend: CacheMemory,
		Languages:    []string{"english"},
		MaxGram:      3,
		SampleSize:   4,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "redis" }},
		{"postgres cache without dsn", func(c *Config) { c.CacheBackend = CachePostgres }},
		{"zero max gram", func(c *Config) { c.MaxGram = 0 }},
		{"no languages", func(c *Config) { c.Languages = nil }},
		{"zero sample size", func(c *Config) { c.SampleSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidatePostgresCacheWithDSN(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "postgres://localhost/sagacity",
		CacheBackend: CachePostgres,
		Languages:    []string{"english"},
		MaxGram:      3,
		SampleSize:   4,
	}
	assert.NoError(t, cfg.Validate())
}
