// Package sagacity is the public API for embedding the rationale
// quality engine.
//
// Consumers construct an Engine and drive it directly:
//
//	eng, err := sagacity.New(
//	    sagacity.WithVersion(version),
//	    sagacity.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer eng.Close(ctx)
//
//	outcome, err := eng.EvaluateValidation(ctx, sagacity.ScopeAssignment, text)
//
// The import graph enforces a strict no-cycle rule: sagacity (root)
// imports internal/*, but internal/* never imports the root. Public
// types (Rationale, Binding, etc.) are standalone structs with no
// internal imports; conversion helpers live here because this is the
// only file that sees both sides of the boundary.
package sagacity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sagelearn/sagacity/internal/config"
	"github.com/sagelearn/sagacity/internal/criteria"
	"github.com/sagelearn/sagacity/internal/engine"
	"github.com/sagelearn/sagacity/internal/evalcache"
	"github.com/sagelearn/sagacity/internal/lang"
	"github.com/sagelearn/sagacity/internal/mcp"
	"github.com/sagelearn/sagacity/internal/memstore"
	"github.com/sagelearn/sagacity/internal/model"
	"github.com/sagelearn/sagacity/internal/selector"
	"github.com/sagelearn/sagacity/internal/storage"
	"github.com/sagelearn/sagacity/internal/telemetry"
	"github.com/sagelearn/sagacity/migrations"
)

// profileCreator is the slice of the store surface that only profile
// administration needs. Satisfied by both the Postgres store and the
// in-memory store.
type profileCreator interface {
	CreateProfile(ctx context.Context, q model.Quality) (model.Quality, error)
}

// Engine is the embedded quality engine lifecycle. Construct with
// New(), release resources with Close(). Engine has no public fields —
// use New() options to configure it.
type Engine struct {
	cfg          config.Config
	db           *storage.DB // nil when running on in-memory stores
	sqliteCache  *storage.SQLiteCache
	profiles     profileCreator
	agg          *engine.Aggregator
	sel          *selector.Selector
	mcpSrv       *mcp.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
	sampleSize   int
}

// New initialises the engine. It loads configuration, trains language
// models, connects storage (or falls back to in-memory stores when no
// database is configured), runs migrations, and wires the scoring
// pipeline. It starts no goroutines.
func New(opts ...Option) (*Engine, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if len(o.languages) > 0 {
		cfg.Languages = o.languages
	}
	if o.maxGram > 0 {
		cfg.MaxGram = o.maxGram
	}
	if o.corpusDir != "" {
		cfg.CorpusDir = o.corpusDir
	}
	if o.sampleSize > 0 {
		cfg.SampleSize = o.sampleSize
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("sagacity starting", "version", version, "languages", cfg.Languages)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Train language models up front; likelihood scoring is pure after this.
	var models *lang.Models
	if cfg.CorpusDir != "" {
		models, err = lang.NewFromDir(cfg.CorpusDir, cfg.Languages, cfg.MaxGram)
	} else {
		models, err = lang.New(cfg.Languages, cfg.MaxGram)
	}
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("language models: %w", err)
	}
	registry := criteria.NewRegistry(models)

	eng := &Engine{
		cfg:          cfg,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
		sampleSize:   cfg.SampleSize,
	}

	// Persistent stores when a database is configured, in-memory otherwise.
	var (
		rulesStore   engine.RulesStore
		profileStore engine.ProfileStore
		sink         engine.RejectionSink
		mem          *memstore.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
		eng.db = db
		eng.profiles = db
		rulesStore, profileStore, sink = db, db, db
	} else {
		mem = memstore.New()
		eng.profiles = mem
		rulesStore, profileStore, sink = mem, mem, mem
		logger.Info("no DATABASE_URL, using in-memory stores")
	}

	if o.rejectionSink != nil {
		sink = &rejectionSinkAdapter{sink: o.rejectionSink}
	}
	if o.rulesStore != nil {
		rulesStore = &rulesStoreAdapter{store: o.rulesStore}
	}
	if o.profileStore != nil {
		adapter := &profileStoreAdapter{store: o.profileStore}
		profileStore = adapter
		eng.profiles = adapter
	}

	cacheStore, err := eng.newCacheStore(o, mem)
	if err != nil {
		eng.closePartial()
		return nil, err
	}

	eng.agg = engine.New(registry, rulesStore, profileStore, evalcache.New(cacheStore), sink, logger)
	eng.sel = selector.New(eng.agg, logger)
	eng.mcpSrv = mcp.New(eng.agg, eng.sel, version, logger)

	return eng, nil
}

// newCacheStore resolves the evaluation cache backend: an explicit
// option wins, then the configured backend.
func (e *Engine) newCacheStore(o resolvedOptions, mem *memstore.Store) (evalcache.Store, error) {
	if o.cacheStore != nil {
		return o.cacheStore, nil
	}
	switch e.cfg.CacheBackend {
	case config.CacheSQLite:
		sc, err := storage.NewSQLiteCache(e.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite cache: %w", err)
		}
		e.sqliteCache = sc
		return sc, nil
	case config.CachePostgres:
		if e.db == nil {
			return nil, fmt.Errorf("postgres cache backend requires a database")
		}
		return e.db, nil
	default:
		if mem != nil {
			return mem, nil
		}
		return memstore.New(), nil
	}
}

// closePartial releases what New had wired before failing.
func (e *Engine) closePartial() {
	if e.db != nil {
		e.db.Close()
	}
	if e.otelShutdown != nil {
		_ = e.otelShutdown(context.Background())
	}
}

// Close releases storage connections and flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	var firstErr error
	if e.sqliteCache != nil {
		if err := e.sqliteCache.Close(); err != nil {
			firstErr = err
		}
	}
	if e.db != nil {
		e.db.Close()
	}
	if err := e.otelShutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// MCPServer returns the MCP server for transport setup (stdio, SSE).
func (e *Engine) MCPServer() *mcpserver.MCPServer {
	return e.mcpSrv.MCPServer()
}

// EvaluateValidation gates one rationale against the validation profile
// active for the scope. Rejections are appended to the audit log before
// the outcome returns.
func (e *Engine) EvaluateValidation(ctx context.Context, scope Scope, text string) (ValidationOutcome, error) {
	result, reasons, err := e.agg.Validate(ctx, model.Scope(scope), text)
	if err != nil {
		return ValidationOutcome{}, err
	}
	return ValidationOutcome{
		Accepted: result.Passed(),
		Score:    result.Score,
		Criteria: toPublicCriteria(result.Criteria),
		Reasons:  toPublicReasons(reasons),
	}, nil
}

// EvaluateForRanking scores a batch of rationales with the evaluation
// profile active for the scope. Results preserve input order and never
// reject anything.
func (e *Engine) EvaluateForRanking(ctx context.Context, scope Scope, texts []string) ([]QualityScore, error) {
	answers := make([]model.Answer, len(texts))
	for i, t := range texts {
		answers[i] = model.TextAnswer(t)
	}
	results, err := e.agg.Rank(ctx, model.Scope(scope), answers)
	if err != nil {
		return nil, err
	}
	scores := make([]QualityScore, len(results))
	for i, r := range results {
		scores[i] = QualityScore{
			Rationale: texts[i],
			Score:     r.Score,
			Criteria:  toPublicCriteria(r.Criteria),
		}
	}
	return scores, nil
}

// RankRationales scores a batch of rationales carrying full answer
// context, enabling the context-aware criteria that EvaluateForRanking
// cannot reach from bare text.
func (e *Engine) RankRationales(ctx context.Context, scope Scope, rationales []Rationale) ([]QualityScore, error) {
	answers := make([]model.Answer, len(rationales))
	for i, r := range rationales {
		answers[i] = toAnswer(r)
	}
	results, err := e.agg.Rank(ctx, model.Scope(scope), answers)
	if err != nil {
		return nil, err
	}
	scores := make([]QualityScore, len(results))
	for i, r := range results {
		scores[i] = QualityScore{
			Rationale: rationales[i].Text,
			Score:     r.Score,
			Criteria:  toPublicCriteria(r.Criteria),
		}
	}
	return scores, nil
}

// SelectRationales builds a quality-weighted review set for one
// student. A zero PerChoice falls back to the configured sample size.
func (e *Engine) SelectRationales(ctx context.Context, req SelectionRequest) (Selection, error) {
	perChoice := req.PerChoice
	if perChoice == 0 {
		perChoice = e.sampleSize
	}

	q := selector.Query{
		Scope:         model.Scope(req.Scope),
		Viewer:        req.Viewer,
		ViewerChoice:  req.ViewerChoice,
		ViewerCorrect: req.ViewerCorrect,
		Excluded:      req.Excluded,
		PerChoice:     perChoice,
		Seed:          req.Seed,
	}
	q.Choices = make([]selector.Choice, len(req.Choices))
	for i, c := range req.Choices {
		q.Choices[i] = selector.Choice{Label: c.Label, Correct: c.Correct}
	}
	q.Candidates = make([]model.Answer, len(req.Candidates))
	for i, r := range req.Candidates {
		q.Candidates[i] = toAnswer(r)
	}

	result, err := e.sel.Select(ctx, q)
	if err != nil {
		return Selection{}, err
	}

	sel := Selection{
		Groups:     make([]SelectionGroup, len(result.Groups)),
		SelfOption: result.SelfOption,
	}
	for i, g := range result.Groups {
		group := SelectionGroup{
			Label:      g.Label,
			Correct:    g.Correct,
			Rationales: make([]Rationale, len(g.Rationales)),
		}
		for j, a := range g.Rationales {
			group.Rationales[j] = toPublicRationale(a)
		}
		sel.Groups[i] = group
	}
	return sel, nil
}

// CreateProfile creates an empty quality profile for a scope and use
// type. Criteria are attached afterwards with AddCriterion.
func (e *Engine) CreateProfile(ctx context.Context, scope Scope, useType UseType) (uuid.UUID, error) {
	profile, err := e.profiles.CreateProfile(ctx, model.Quality{
		Scope:   model.Scope(scope),
		UseType: model.UseType(useType),
	})
	if err != nil {
		return uuid.Nil, err
	}
	return profile.ID, nil
}

// AddCriterion binds a criterion to a profile, deduplicating the rules
// by content. Binding a criterion that is already bound replaces the
// earlier binding; the previous state is returned for audit.
func (e *Engine) AddCriterion(ctx context.Context, profileID uuid.UUID, rules RuleSet, weight float64) (Binding, *Binding, error) {
	binding, previous, err := e.agg.AddCriterion(ctx, profileID, model.Rules{
		CriterionName: rules.Criterion,
		Threshold:     rules.Threshold,
		Fields:        model.RuleFields(rules.Fields),
	}, weight)
	if err != nil {
		return Binding{}, nil, err
	}
	var prev *Binding
	if previous != nil {
		p := toPublicBinding(*previous)
		prev = &p
	}
	return toPublicBinding(binding), prev, nil
}

// UpdateCriterionWeight changes a binding's weight, returning the old
// and new values. Weight 0 disables the criterion without removing it.
func (e *Engine) UpdateCriterionWeight(ctx context.Context, profileID uuid.UUID, criterion string, weight float64) (Binding, float64, float64, error) {
	binding, oldW, newW, err := e.agg.UpdateCriterionWeight(ctx, profileID, criterion, weight)
	if err != nil {
		return Binding{}, 0, 0, err
	}
	return toPublicBinding(binding), oldW, newW, nil
}

// RemoveCriterion detaches a criterion from a profile and returns the
// removed binding.
func (e *Engine) RemoveCriterion(ctx context.Context, profileID uuid.UUID, criterion string) (Binding, error) {
	binding, err := e.agg.RemoveCriterion(ctx, profileID, criterion)
	if err != nil {
		return Binding{}, err
	}
	return toPublicBinding(binding), nil
}

// ListCriteria describes the registered criteria. Beta criteria are
// hidden unless includeBeta is set.
func (e *Engine) ListCriteria(includeBeta bool) []CriterionInfo {
	described := e.agg.ListCriteria(includeBeta)
	infos := make([]CriterionInfo, len(described))
	for i, c := range described {
		scopes := make([]Scope, len(c.Scopes))
		for j, s := range c.Scopes {
			scopes[j] = Scope(s)
		}
		infos[i] = CriterionInfo{
			Name:            c.Name,
			Version:         c.Version,
			Beta:            c.IsBeta,
			Scopes:          scopes,
			RuleFields:      c.RuleFields,
			Description:     c.Description,
			RequiresContext: c.RequiresContext,
		}
	}
	return infos
}

// InvalidateCached removes the cached evaluation of one (text,
// criterion, rules) combination.
func (e *Engine) InvalidateCached(ctx context.Context, text, criterion string, version int, rulesID uuid.UUID) error {
	return e.agg.InvalidateCached(ctx, text, criterion, version, rulesID)
}

// ---- boundary conversions ----

func toAnswer(r Rationale) model.Answer {
	return model.Answer{
		ID:            r.ID,
		Rationale:     r.Text,
		Contributor:   r.Contributor,
		HasContext:    true,
		FirstChoice:   r.Choice,
		FirstCorrect:  r.Correct,
		SecondChoice:  r.SecondChoice,
		SecondCorrect: r.SecondCorrect,
		TimesShown:    r.TimesShown,
		TimesChosen:   r.TimesChosen,
		ShowToOthers:  r.ShowToOthers,
	}
}

func toPublicRationale(a model.Answer) Rationale {
	return Rationale{
		ID:            a.ID,
		Text:          a.Rationale,
		Contributor:   a.Contributor,
		Choice:        a.FirstChoice,
		Correct:       a.FirstCorrect,
		SecondChoice:  a.SecondChoice,
		SecondCorrect: a.SecondCorrect,
		TimesShown:    a.TimesShown,
		TimesChosen:   a.TimesChosen,
		ShowToOthers:  a.ShowToOthers,
	}
}

func toPublicCriteria(results []model.CriterionResult) []CriterionScore {
	if results == nil {
		return nil
	}
	out := make([]CriterionScore, len(results))
	for i, r := range results {
		out[i] = CriterionScore{
			Name:      r.Name,
			Version:   r.Version,
			Weight:    r.Weight,
			Score:     r.Score,
			Threshold: r.Threshold,
			Passed:    !r.Failed(),
			Detail:    r.Detail,
		}
	}
	return out
}

func toPublicReasons(reasons []model.RejectionReason) []RejectionReason {
	if reasons == nil {
		return nil
	}
	out := make([]RejectionReason, len(reasons))
	for i, r := range reasons {
		out[i] = RejectionReason{
			Criterion: r.Criterion,
			Version:   r.Version,
			Score:     r.Score,
			Threshold: r.Threshold,
		}
	}
	return out
}

func toPublicBinding(b model.UsesCriterion) Binding {
	return Binding{
		ID:        b.ID,
		ProfileID: b.QualityID,
		Criterion: b.CriterionName,
		Version:   b.CriterionVersion,
		RulesID:   b.RulesID,
		Weight:    b.Weight,
		CreatedAt: b.CreatedAt,
	}
}

// rejectionSinkAdapter lets external sinks receive audit records
// without importing internal packages.
type rejectionSinkAdapter struct {
	sink RejectionSink
}

func (a *rejectionSinkAdapter) Append(ctx context.Context, rejected model.RejectedAnswer) error {
	return a.sink.Append(ctx, RejectedRationale{
		ID:        rejected.ID,
		ProfileID: rejected.QualityID,
		Rationale: rejected.Rationale,
		Reasons:   toPublicReasons(rejected.Reasons),
		CreatedAt: rejected.CreatedAt,
	})
}

// rulesStoreAdapter bridges a host-provided RulesStore to the internal
// store surface. The content hash is computed here so external stores
// only have to compare it.
type rulesStoreAdapter struct {
	store RulesStore
}

func (a *rulesStoreAdapter) GetRules(ctx context.Context, id uuid.UUID) (model.Rules, error) {
	stored, err := a.store.GetRules(ctx, id)
	if err != nil {
		return model.Rules{}, err
	}
	return fromStoredRules(stored), nil
}

func (a *rulesStoreAdapter) GetOrCreateRules(ctx context.Context, rules model.Rules) (model.Rules, error) {
	stored, err := a.store.GetOrCreateRules(ctx, StoredRules{
		ID:          rules.ID,
		Criterion:   rules.CriterionName,
		Threshold:   rules.Threshold,
		Fields:      rules.Fields,
		ContentHash: rules.ContentHash(),
		CreatedAt:   rules.CreatedAt,
	})
	if err != nil {
		return model.Rules{}, err
	}
	return fromStoredRules(stored), nil
}

func fromStoredRules(stored StoredRules) model.Rules {
	return model.Rules{
		ID:            stored.ID,
		CriterionName: stored.Criterion,
		Threshold:     stored.Threshold,
		Fields:        model.RuleFields(stored.Fields),
		CreatedAt:     stored.CreatedAt,
	}
}

// profileStoreAdapter bridges a host-provided ProfileStore to the
// internal store surface.
type profileStoreAdapter struct {
	store ProfileStore
}

func (a *profileStoreAdapter) CreateProfile(ctx context.Context, q model.Quality) (model.Quality, error) {
	profile, err := a.store.CreateProfile(ctx, toPublicProfile(q))
	if err != nil {
		return model.Quality{}, err
	}
	return fromPublicProfile(profile), nil
}

func (a *profileStoreAdapter) GetProfile(ctx context.Context, id uuid.UUID) (model.Quality, error) {
	profile, err := a.store.GetProfile(ctx, id)
	if err != nil {
		return model.Quality{}, err
	}
	return fromPublicProfile(profile), nil
}

func (a *profileStoreAdapter) ProfileForScope(ctx context.Context, scope model.Scope, useType model.UseType) (model.Quality, error) {
	profile, err := a.store.ProfileForScope(ctx, Scope(scope), UseType(useType))
	if err != nil {
		return model.Quality{}, err
	}
	return fromPublicProfile(profile), nil
}

func (a *profileStoreAdapter) PutBinding(ctx context.Context, binding model.UsesCriterion) (model.UsesCriterion, *model.UsesCriterion, error) {
	stored, previous, err := a.store.PutBinding(ctx, toPublicBinding(binding))
	if err != nil {
		return model.UsesCriterion{}, nil, err
	}
	var prev *model.UsesCriterion
	if previous != nil {
		p := fromPublicBinding(*previous)
		prev = &p
	}
	return fromPublicBinding(stored), prev, nil
}

func (a *profileStoreAdapter) DeleteBinding(ctx context.Context, qualityID uuid.UUID, criterionName string) (model.UsesCriterion, error) {
	binding, err := a.store.DeleteBinding(ctx, qualityID, criterionName)
	if err != nil {
		return model.UsesCriterion{}, err
	}
	return fromPublicBinding(binding), nil
}

func toPublicProfile(q model.Quality) Profile {
	profile := Profile{
		ID:        q.ID,
		Scope:     Scope(q.Scope),
		UseType:   UseType(q.UseType),
		CreatedAt: q.CreatedAt,
	}
	for _, b := range q.Criteria {
		profile.Criteria = append(profile.Criteria, toPublicBinding(b))
	}
	return profile
}

func fromPublicProfile(p Profile) model.Quality {
	q := model.Quality{
		ID:        p.ID,
		Scope:     model.Scope(p.Scope),
		UseType:   model.UseType(p.UseType),
		CreatedAt: p.CreatedAt,
	}
	for _, b := range p.Criteria {
		q.Criteria = append(q.Criteria, fromPublicBinding(b))
	}
	return q
}

func fromPublicBinding(b Binding) model.UsesCriterion {
	return model.UsesCriterion{
		ID:               b.ID,
		QualityID:        b.ProfileID,
		CriterionName:    b.Criterion,
		CriterionVersion: b.Version,
		RulesID:          b.RulesID,
		Weight:           b.Weight,
		CreatedAt:        b.CreatedAt,
	}
}
