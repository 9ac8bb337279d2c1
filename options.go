package sagacity

import "log/slog"

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	databaseURL   string
	languages     []string
	maxGram       int
	corpusDir     string
	sampleSize    int
	cacheStore    CacheStore
	rejectionSink RejectionSink
	rulesStore    RulesStore
	profileStore  ProfileStore
}

// WithLogger sets the structured logger for the Engine.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabaseURL overrides the database connection string from config
// (DATABASE_URL env var). An empty URL selects in-memory stores.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLanguages overrides the likelihood model languages from config
// (SAGACITY_LANGUAGES env var).
func WithLanguages(languages ...string) Option {
	return func(o *resolvedOptions) { o.languages = languages }
}

// WithMaxGram overrides the n-gram depth of the likelihood models.
func WithMaxGram(maxGram int) Option {
	return func(o *resolvedOptions) { o.maxGram = maxGram }
}

// WithCorpusDir trains likelihood models from <dir>/<language>.txt
// files instead of the embedded corpora.
func WithCorpusDir(dir string) Option {
	return func(o *resolvedOptions) { o.corpusDir = dir }
}

// WithSampleSize sets the default per-choice rationale sample bound
// used when a SelectionRequest leaves PerChoice zero.
func WithSampleSize(n int) Option {
	return func(o *resolvedOptions) { o.sampleSize = n }
}

// WithCacheStore replaces the configured evaluation cache backend.
func WithCacheStore(store CacheStore) Option {
	return func(o *resolvedOptions) { o.cacheStore = store }
}

// WithRejectionSink replaces the configured rejection log store.
// Only the last call wins.
func WithRejectionSink(sink RejectionSink) Option {
	return func(o *resolvedOptions) { o.rejectionSink = sink }
}

// WithRulesStore replaces the configured rules backend with a
// host-provided store.
func WithRulesStore(store RulesStore) Option {
	return func(o *resolvedOptions) { o.rulesStore = store }
}

// WithProfileStore replaces the configured profile backend with a
// host-provided store.
func WithProfileStore(store ProfileStore) Option {
	return func(o *resolvedOptions) { o.profileStore = store }
}
