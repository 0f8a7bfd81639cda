package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/history"
	"sentiment-api/internal/sentiment"
	"sentiment-api/internal/services/health"
	"sentiment-api/internal/shared/config"
	"sentiment-api/internal/shared/server"
	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/storage/db"
	"sentiment-api/internal/shared/telemetry"
	"sentiment-api/internal/worker"
)

const historyDrainTimeout = 5 * time.Second

// App holds shared dependencies and the wired router.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Worker         sentiment.Invoker
	HistoryRepo    history.Repo
	Sentiment      *sentiment.Service
	AnalyzeHandler *sentiment.Handler
	HistoryHandler *history.Handler
}

// Option overrides a dependency before services are built.
type Option func(*App)

// WithWorker replaces the process-backed inference worker.
func WithWorker(w sentiment.Invoker) Option {
	return func(a *App) { a.Worker = w }
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	cfg = config.Normalize(cfg)

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}
	for _, opt := range opts {
		opt(app)
	}
	if app.Worker == nil {
		app.Worker = worker.NewClient(worker.Options{
			Python:     cfg.PythonPath,
			PythonArgs: cfg.PythonArgs(),
			Script:     cfg.PredictScript,
			Timeout:    cfg.WorkerTimeout(),
		})
	}

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Health:         health.NewService(),
		AnalyzeHandler: app.AnalyzeHandler,
		HistoryHandler: app.HistoryHandler,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"config":  cfg.String(),
		"history": historyKind(app.DB),
	})
	return app, nil
}

// Close waits for pending history writes, then releases the database pool.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Sentiment != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyDrainTimeout)
		if err := a.Sentiment.Wait(ctx); err != nil {
			telemetry.Warn("bootstrap.history_drain_incomplete", map[string]any{"error": err})
		}
		cancel()
	}
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err})
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.no_database", map[string]any{"env": cfg.Env})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromConfig(db.DefaultServerOptions(), cfg))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{
				"error":    err,
				"fallback": "memory",
			})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.HistoryRepo = &history.PGRepo{DB: app.DB}
	} else {
		app.HistoryRepo = history.NewMemoryRepo(app.Config.HistoryMemoryLimit)
	}

	var analyzeMW []gin.HandlerFunc
	rule := middleware.RateLimitRule{Rate: app.Config.AnalyzeRatePerSec, Burst: app.Config.AnalyzeRateBurst}
	if rule.Enabled() {
		analyzeMW = append(analyzeMW, middleware.RateLimit(middleware.NewRateLimiter(rule, nil)))
	}

	app.Sentiment = sentiment.NewService(app.Worker, app.HistoryRepo)
	app.AnalyzeHandler = sentiment.NewHandler(app.Sentiment, app.Config.MaxBodyBytes, analyzeMW...)
	app.HistoryHandler = history.NewHandler(app.HistoryRepo)

	if app.AnalyzeHandler == nil || app.HistoryHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func isDevLike(env string) bool {
	switch env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func historyKind(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}
