package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sitecraft-ai/sitecraft-backend/config"
	"github.com/sitecraft-ai/sitecraft-backend/internal/attachments"
	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	authmw "github.com/sitecraft-ai/sitecraft-backend/internal/auth/middleware"
	cronjob "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/cron"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/engine"
	enthttp "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/http"
	entrepo "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/repository"
	entservice "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/service"
	galleryhttp "github.com/sitecraft-ai/sitecraft-backend/internal/gallery/http"
	galleryrepo "github.com/sitecraft-ai/sitecraft-backend/internal/gallery/repository"
	galleryservice "github.com/sitecraft-ai/sitecraft-backend/internal/gallery/service"
	genhttp "github.com/sitecraft-ai/sitecraft-backend/internal/generation/http"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/llm"
	genservice "github.com/sitecraft-ai/sitecraft-backend/internal/generation/service"
	"github.com/sitecraft-ai/sitecraft-backend/internal/ledger"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	"github.com/sitecraft-ai/sitecraft-backend/internal/session"
	"github.com/sitecraft-ai/sitecraft-backend/internal/storage/postgres"
	wshttp "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/http"
	wsrepo "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/repository"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

// App is the wired service.
type App struct {
	Router    *gin.Engine
	Sessions  *session.Manager
	scheduler *cronjob.Scheduler

	redis  *redis.Client
	pool   *pgxpool.Pool
	ledger *sql.DB
}

// Build connects every backing service and wires the HTTP surface.
// Postgres is optional: without DB_DSN the ledger is a no-op and the
// gallery is not mounted.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewLogger(ctx)
	app := &App{}

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	app.redis = rdb

	var recorder ledger.Recorder = ledger.Noop{}
	var ledgerRepo *ledger.Repository
	if cfg.Database.DSN != "" {
		sqlDB, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.ledger = sqlDB
		ledgerRepo = ledger.NewRepository(sqlDB)
		recorder = ledgerRepo

		pool, err := OpenDB(ctx, DBOptions{DSN: cfg.Database.DSN})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.pool = pool
	} else {
		log.LogWarn("bootstrap", "DB_DSN not set; credit ledger and gallery disabled")
	}

	seeds, err := config.LoadPlans(cfg.Credits.PlansFile)
	if err != nil {
		app.Close()
		return nil, err
	}
	plans := PlanTable(seeds)
	if _, ok := plans[cfg.Credits.DefaultPlan]; !ok {
		app.Close()
		return nil, fmt.Errorf("default plan %q missing from %s", cfg.Credits.DefaultPlan, cfg.Credits.PlansFile)
	}

	var (
		store    entservice.ProfileStore
		verifier authmw.TokenVerifier
	)
	if cfg.Firebase.ProjectID != "" || cfg.Firebase.CredentialsPath != "" {
		fb, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			app.Close()
			return nil, err
		}
		verifier = fb.Auth
		if fb.Database != nil {
			store = entrepo.NewFirebaseStore(fb.Database, cfg.Firebase.ProfilePollInterval)
		}
	} else {
		log.LogWarn("bootstrap", "Firebase not configured; trusting X-User-Id")
	}
	if store == nil {
		rs := entrepo.NewRedisStore(rdb)
		if err := rs.SeedPlans(ctx, plans); err != nil {
			log.LogError("bootstrap.plans", err)
		}
		store = rs
	}

	ent := entservice.New(store, recorder, plans, engine.Options{
		DefaultPlan: cfg.Credits.DefaultPlan,
		Location:    cfg.Credits.Location(),
	})
	app.Sessions = session.NewManager(ent, wsrepo.NewRepository(rdb), wsservice.Options{DefaultModel: cfg.AI.DefaultModel})

	registry := llm.NewRegistry(llm.RegistryConfig{
		PlatformKeys: map[string]string{
			llm.ProviderGemini: cfg.AI.GeminiAPIKey,
			llm.ProviderOpenAI: cfg.AI.OpenAIAPIKey,
		},
		Clients: map[string]llm.Client{
			llm.ProviderGemini: llm.NewGeminiClient(),
			llm.ProviderOpenAI: llm.NewOpenAIClient(cfg.AI.OpenAIBaseURL),
		},
		Tiers:     cfg.AI.ModelTiers,
		RateLimit: cfg.AI.RateLimit,
		RateBurst: cfg.AI.RateBurst,
	})
	orchestrator := genservice.New(app.Sessions, registry, ent, genservice.Options{
		MaxRetries:      cfg.AI.MaxRetries,
		Backoff:         cfg.AI.RetryBackoff,
		Timeout:         cfg.AI.RequestTimeout,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		HistoryWindow:   cfg.AI.HistoryWindow,
	})
	app.Sessions.OnLogout(func(uid string) { orchestrator.Cancel(uid) })

	uploader, err := attachments.NewS3Uploader(ctx, cfg.Storage)
	if err != nil {
		log.LogError("bootstrap.attachments", err)
		uploader = attachments.NewUploader(nil, "", "")
	}

	deps := RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DB:             app.pool,
		Redis:          rdb,
		Verifier:       verifier,
		Workspace:      wshttp.New(app.Sessions),
		Generation:     genhttp.New(orchestrator),
		Attachments:    attachments.NewHandler(uploader, cfg.Storage.MaxUploadSize),
	}
	// keep a nil repository out of the interface
	if ledgerRepo != nil {
		deps.Session = enthttp.New(app.Sessions, ent, ledgerRepo)
	} else {
		deps.Session = enthttp.New(app.Sessions, ent, nil)
	}
	if app.pool != nil {
		gallery := galleryservice.New(galleryrepo.NewRepo(app.pool), app.Sessions, ent)
		deps.Gallery = galleryhttp.New(gallery)
	}
	app.Router = BuildRouter(deps)

	app.scheduler = cronjob.NewScheduler(cfg.Credits.SweepSpec, cfg.Credits.Location(), app.Sessions)
	if err := app.scheduler.Start(); err != nil {
		app.Close()
		return nil, fmt.Errorf("start sweep: %w", err)
	}

	return app, nil
}

// Close ends every session and releases connections.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.Sessions != nil {
		for _, uid := range a.Sessions.UIDs() {
			a.Sessions.Logout(uid)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
