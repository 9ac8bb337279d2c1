// Package config loads and validates engine configuration from
// environment variables. Scoring configuration itself (profiles, rules)
// is data, not environment — this covers only the ambient concerns:
// storage, caching, languages, logging, telemetry.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config holds all engine configuration.
type Config struct {
	// DatabaseURL is the Postgres DSN for rules, profiles, and the
	// rejection log. Empty means in-memory stores (tests, embedding).
	DatabaseURL string

	// CacheBackend selects the evaluation cache store: memory, sqlite,
	// or postgres. The postgres backend reuses DatabaseURL.
	CacheBackend string
	// SQLitePath is the cache database file for the sqlite backend.
	SQLitePath string

	// Languages are the likelihood model languages trained at start-up.
	Languages []string
	// MaxGram is the trained n-gram table depth.
	MaxGram int
	// CorpusDir optionally overrides the embedded training corpora with
	// <dir>/<language>.txt files.
	CorpusDir string

	// SampleSize is the default per-choice rationale sample bound.
	SampleSize int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:  envStr("DATABASE_URL", ""),
		CacheBackend: envStr("SAGACITY_CACHE_BACKEND", CacheMemory),
		SQLitePath:   envStr("SAGACITY_SQLITE_PATH", "sagacity-cache.db"),
		Languages:    envList("SAGACITY_LANGUAGES", []string{"english"}),
		MaxGram:      envInt("SAGACITY_MAX_GRAM", 3),
		CorpusDir:    envStr("SAGACITY_CORPUS_DIR", ""),
		SampleSize:   envInt("SAGACITY_SAMPLE_SIZE", 4),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "sagacity"),
		LogLevel:     envStr("SAGACITY_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	switch c.CacheBackend {
	case CacheMemory, CacheSQLite, CachePostgres:
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.CacheBackend)
	}
	if c.CacheBackend == CachePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("config: postgres cache backend requires DATABASE_URL")
	}
	if c.MaxGram < 1 {
		return fmt.Errorf("config: SAGACITY_MAX_GRAM must be >= 1")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("config: SAGACITY_LANGUAGES must name at least one language")
	}
	if c.SampleSize < 1 {
		return fmt.Errorf("config: SAGACITY_SAMPLE_SIZE must be >= 1")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
