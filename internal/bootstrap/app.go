package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/analyses"
	"legal-analyzer/internal/documents"
	"legal-analyzer/internal/extract"
	"legal-analyzer/internal/intake"
	"legal-analyzer/internal/llm"
	"legal-analyzer/internal/llm/gemini"
	"legal-analyzer/internal/llm/openai"
	"legal-analyzer/internal/services/health"
	"legal-analyzer/internal/shared/config"
	"legal-analyzer/internal/shared/server"
	"legal-analyzer/internal/shared/server/middleware"
	"legal-analyzer/internal/shared/storage/db"
	"legal-analyzer/internal/shared/storage/spool"
	"legal-analyzer/internal/shared/telemetry"
	"legal-analyzer/internal/users"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	LLM    llm.Client
	Spool  *spool.Spool

	DocumentsRepo    documents.Repo
	AnalysesRepo     analyses.Repo
	UsersRepo        users.Repo
	DocumentsService *documents.Service
	AnalysesService  *analyses.Service
	UsersService     *users.Service
	Analyzer         *analyses.Analyzer
	Pipeline         *intake.Pipeline
	RateLimiter      *middleware.RateLimiter

	closers []io.Closer
}

// Build wires repositories, the LLM provider, the intake pipeline and routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB)
	}

	client, closer, err := buildLLM(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.LLM = client
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	buildServices(app)
	app.Router = buildRouter(app)
	return app, nil
}

// Close releases the database pool and provider connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Info("bootstrap.storage", map[string]any{"backend": "memory"})
		} else {
			telemetry.Warn("bootstrap.storage", map[string]any{
				"backend": "memory",
				"env":     cfg.Env,
				"reason":  "DATABASE_URL empty; data will not survive a restart",
			})
		}
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.storage", map[string]any{"backend": "memory", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	telemetry.Info("bootstrap.storage", map[string]any{"backend": "postgres"})
	return sqlDB, nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, io.Closer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		if strings.TrimSpace(cfg.LLMModel) == "" {
			return nil, nil, fmt.Errorf("LLM_MODEL is required when LLM_PROVIDER=openai")
		}
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return placeholder(cfg.LLMProvider), nil, nil
		}
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTimeout)
		if err != nil {
			return nil, nil, err
		}
		logProvider(client.Name(), cfg.LLMModel)
		return client, nil, nil
	case config.ProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return placeholder(cfg.LLMProvider), nil, nil
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, cfg.LLMTimeout)
		if err != nil {
			return nil, nil, err
		}
		logProvider(client.Name(), cfg.LLMModel)
		return client, client, nil
	default:
		return placeholder(cfg.LLMProvider), nil, nil
	}
}

func placeholder(provider string) llm.Client {
	telemetry.Warn("bootstrap.llm", map[string]any{
		"provider": provider,
		"reason":   "no API key configured; analyses will fail",
	})
	return llm.PlaceholderClient{}
}

func logProvider(name, model string) {
	telemetry.Info("bootstrap.llm", map[string]any{"provider": name, "model": model})
}

func buildServices(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.DocumentsService = documents.NewService(app.DocumentsRepo)
	app.AnalysesService = analyses.NewService(app.AnalysesRepo)
	app.UsersService = users.NewService(app.UsersRepo)

	app.Spool = spool.New(app.Config.SpoolDir)
	app.Analyzer = analyses.NewAnalyzer(app.LLM)
	app.Pipeline = &intake.Pipeline{
		Extractor: extract.New(app.Spool),
		Analyzer:  app.Analyzer,
		Documents: app.DocumentsService,
		Analyses:  app.AnalysesService,
	}
	app.RateLimiter = middleware.NewRateLimiter(nil)
}

func buildRouter(app *App) *gin.Engine {
	rule := middleware.PerMinute(app.Config.UploadRatePerMinute, app.Config.UploadRateBurst)
	guard := middleware.RateLimit(app.RateLimiter, "intake", rule)

	return server.NewRouter(app.Config,
		health.NewService(),
		intake.NewHandler(app.Pipeline, guard),
		documents.NewHandler(app.DocumentsService),
		analyses.NewHandler(app.AnalysesService, app.DocumentsRepo),
	)
}
