// Package bootstrap assembles the process: storage, providers, the job queue,
// the orchestrator and the HTTP router.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"screenplay-analyzer/internal/analyses"
	"screenplay-analyzer/internal/extract"
	"screenplay-analyzer/internal/jobqueue"
	"screenplay-analyzer/internal/orchestrator"
	"screenplay-analyzer/internal/progress"
	"screenplay-analyzer/internal/providers"
	"screenplay-analyzer/internal/providers/anthropic"
	"screenplay-analyzer/internal/providers/openaicompat"
	"screenplay-analyzer/internal/reconcile"
	"screenplay-analyzer/internal/services/health"
	"screenplay-analyzer/internal/shared/config"
	"screenplay-analyzer/internal/shared/server"
	"screenplay-analyzer/internal/shared/storage/db"
	"screenplay-analyzer/internal/shared/telemetry"
	"screenplay-analyzer/internal/usage"
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Redis        *redis.Client
	Queue        *jobqueue.Queue
	Tracker      *progress.Tracker
	Store        analyses.Store
	Usage        *usage.Service
	Orchestrator *orchestrator.Orchestrator
	Analyses     *analyses.Service
	Health       *health.Service
}

// Build prepares every dependency and the router. Workers are not started;
// call Start.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rdb, err := buildRedis(ctx, cfg)
	if err != nil {
		closeQuietly(sqlDB, nil)
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Redis: rdb}
	app.buildServices()
	app.Router = server.NewRouter(cfg, server.Deps{
		Health: app.Health,
		Features: []server.RouteRegistrar{
			analyses.NewHandler(app.Analyses, app.Tracker),
			usage.NewHandler(app.Usage),
		},
	})
	return app, nil
}

// Start launches the job workers under ctx.
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
}

// Close drains the queue and releases connections.
func (a *App) Close(ctx context.Context) error {
	err := a.Queue.Close(ctx)
	closeQuietly(a.DB, a.Redis)
	return err
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database unavailable", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_progress", map[string]any{"reason": "redis unavailable", "error": err})
			return nil, nil
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (a *App) buildServices() {
	cfg := a.Config

	var progressStore progress.Store = progress.NewMemoryStore()
	if a.Redis != nil {
		progressStore = progress.NewRedisStore(a.Redis, cfg.ProgressRetention)
	}
	a.Tracker = progress.NewTracker(progressStore, progress.Options{
		Interval:  cfg.ProgressInterval,
		MaxIdle:   cfg.ProgressMaxIdle,
		Retention: cfg.ProgressRetention,
	})

	var ledger usage.Ledger = usage.NewMemoryLedger()
	if a.DB != nil {
		a.Store = &analyses.PGRepo{DB: a.DB}
		ledger = usage.NewPGLedger(a.DB)
	} else {
		a.Store = analyses.NewMemoryRepo()
	}
	a.Usage = usage.NewServiceWithLedger(ledger)
	a.Usage.CostLimit = cfg.MonthlyCostLimit
	a.Usage.AnalysisLimit = cfg.MonthlyAnalysisLimit

	set := BuildProviders(cfg.Providers)
	a.Orchestrator = &orchestrator.Orchestrator{
		Primary:     set.Primary,
		Secondaries: set.Secondaries,
		Source:      set.Source,
		Progress:    a.Tracker,
		Store:       a.Store,
		Usage:       a.Usage,
		Reconciler:  reconcile.New(),
	}

	a.Queue = jobqueue.New(cfg.JobConcurrency, cfg.JobTimeout)
	a.Analyses = &analyses.Service{
		Store:          a.Store,
		Usage:          a.Usage,
		Queue:          a.Queue,
		Runner:         a.Orchestrator,
		Extractor:      extract.Extractor{},
		Progress:       a.Tracker,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	a.Health = health.NewService().SetQueueStats(func() map[string]any {
		st := a.Queue.Stats()
		return map[string]any{
			"queued":    st.Queued,
			"running":   st.Running,
			"workers":   st.Workers,
			"processed": st.Processed,
			"failed":    st.Failed,
		}
	})
	if a.DB != nil {
		a.Health.AddCheck("database", a.DB.PingContext)
	}
	if a.Redis != nil {
		a.Health.AddCheck("redis", func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })
	}
	for _, p := range set.All() {
		a.Health.SetProvider(p.Name(), p.Enabled())
	}
}

// ProviderSet is every configured analysis backend.
type ProviderSet struct {
	Primary     providers.Provider
	Secondaries []providers.Provider
	Source      providers.Provider
}

// All lists the providers in run order.
func (s ProviderSet) All() []providers.Provider {
	out := []providers.Provider{s.Source, s.Primary}
	return append(out, s.Secondaries...)
}

// BuildProviders maps credentials onto backends. Backends without a key stay
// registered but disabled, and are logged once here.
func BuildProviders(pc config.ProviderConfig) ProviderSet {
	compat := func(name, key, baseURL, model string, jsonMode bool) providers.Sender {
		return openaicompat.New(openaicompat.Options{
			Provider: name,
			APIKey:   key,
			BaseURL:  baseURL,
			Model:    model,
			JSONMode: jsonMode,
		})
	}

	var image providers.ImageSender
	if strings.TrimSpace(pc.OpenAIAPIKey) != "" {
		image = openaicompat.NewImage(openaicompat.Options{
			Provider: providers.ImageGeneration,
			APIKey:   pc.OpenAIAPIKey,
			BaseURL:  pc.OpenAIBaseURL,
			Model:    pc.OpenAIImageModel,
		})
	}

	set := ProviderSet{
		Primary: providers.NewCraft(anthropic.New(pc.AnthropicAPIKey, pc.AnthropicModel, pc.AnthropicURL, nil), pc.AnthropicModel),
		Source: providers.NewSourceMaterial(
			compat(providers.SourceMaterial, pc.OpenAIAPIKey, pc.OpenAIBaseURL, pc.OpenAISourceModel, true), pc.OpenAISourceModel),
		Secondaries: []providers.Provider{
			providers.NewRealityCheck(compat(providers.RealityCheck, pc.XAIAPIKey, pc.XAIBaseURL, pc.XAIModel, true), pc.XAIModel),
			providers.NewCommercial(compat(providers.Commercial, pc.OpenAIAPIKey, pc.OpenAIBaseURL, pc.OpenAIModel, true), pc.OpenAIModel),
			providers.NewExcellence(compat(providers.Excellence, pc.OpenAIAPIKey, pc.OpenAIBaseURL, pc.OpenAIExcellenceModel, true), pc.OpenAIExcellenceModel),
			providers.NewFinancial(compat(providers.Financial, pc.DeepSeekAPIKey, pc.DeepSeekBaseURL, pc.DeepSeekModel, false), pc.DeepSeekModel),
			providers.NewMarketResearch(compat(providers.MarketResearch, pc.PerplexityAPIKey, pc.PerplexityBaseURL, pc.PerplexityModel, false), pc.PerplexityModel),
			providers.NewImage(image, pc.OpenAIImageModel),
		},
	}

	var disabled []string
	for _, p := range set.All() {
		if !p.Enabled() {
			disabled = append(disabled, p.Name())
		}
	}
	if len(disabled) > 0 {
		telemetry.Warn("providers.disabled", map[string]any{"providers": strings.Join(disabled, ",")})
	}
	return set
}

func closeQuietly(sqlDB *sql.DB, rdb *redis.Client) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
