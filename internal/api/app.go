package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scaffyhq/scaffy/internal/agent"
	"github.com/scaffyhq/scaffy/internal/config"
	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/llm"
	"github.com/scaffyhq/scaffy/internal/queue"
	"github.com/scaffyhq/scaffy/internal/repository"
	"github.com/scaffyhq/scaffy/internal/runner"
	"github.com/scaffyhq/scaffy/internal/storage"
	"github.com/scaffyhq/scaffy/internal/storage/sqlite"
)

// App holds all application dependencies
type App struct {
	Config  *config.Config
	Store   storage.Store
	LLM     *llm.Registry
	Parser  *agent.ParserAgent
	Codegen *agent.CodegenAgent
	Helper  *agent.HelperAgent
	Runner  *runner.Service

	// Queue components are nil unless RABBITMQ_URL is set.
	Queue    *queue.Connection
	Producer *queue.Producer
	Consumer *queue.Consumer

	logger *slog.Logger
	db     *sqlite.DB
	pg     *repository.PostgresStore
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		logger: logger,
	}

	// Storage: Postgres when DATABASE_URL is set, embedded SQLite otherwise.
	if cfg.UsesPostgres() {
		pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.pg = pg
		app.Store = pg
	} else {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		app.db = db
		app.Store = sqlite.NewStore(db)
	}

	// LLM providers
	app.LLM = llm.NewRegistry()
	if err := initLLMProviders(app.LLM, cfg); err != nil {
		app.closeStore()
		return nil, fmt.Errorf("init LLM providers: %w", err)
	}
	provider, err := app.LLM.Default()
	if err != nil {
		app.closeStore()
		return nil, fmt.Errorf("no default LLM provider: %w", err)
	}

	// Agents
	app.Parser = agent.NewParserAgent(provider, logger)
	app.Codegen = agent.NewCodegenAgent(provider, logger)
	app.Helper = agent.NewHelperAgent(provider, logger)

	// Runner service
	executor, err := initExecutor(cfg, logger)
	if err != nil {
		app.closeStore()
		return nil, err
	}
	app.Runner = runner.NewService(executor, logger)

	// Optional async test generation through RabbitMQ. With the queue
	// wired, parsing returns immediately and tests are attached later.
	if cfg.UsesQueue() {
		conn, err := queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			app.closeStore()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		app.Queue = conn
		app.Producer = queue.NewProducer(conn)
		app.Consumer = queue.NewConsumer(conn, app.generateTests, app.Store, queue.ConsumerConfig{
			Workers: cfg.QueueWorkers,
		})
		app.Parser.DeferTestGeneration()
	}

	return app, nil
}

// generateTests is the queue handler: it re-reads the breakdown so test
// generation sees the stored file structure, not a stale job payload.
func (a *App) generateTests(ctx context.Context, job *queue.TestGenJob) ([]domain.TestCase, error) {
	breakdown, err := a.Store.GetBreakdown(ctx, job.BreakdownID)
	if err != nil {
		return nil, fmt.Errorf("load breakdown %s: %w", job.BreakdownID, err)
	}
	return a.Parser.GenerateTestCases(ctx, job.AssignmentText, breakdown.Files, job.TargetLanguage), nil
}

// CheckStore verifies storage connectivity for readiness probes.
func (a *App) CheckStore(ctx context.Context) error {
	if a.pg != nil {
		return a.pg.Ping(ctx)
	}
	return a.db.PingContext(ctx)
}

// initLLMProviders sets up LLM providers based on configuration. Every
// provider is wrapped with circuit breaking, retry, and rate limiting.
func initLLMProviders(registry *llm.Registry, cfg *config.Config) error {
	resilient := func(p llm.Provider) llm.Provider {
		return llm.NewResilientProvider(p, llm.DefaultResilientConfig())
	}

	switch cfg.LLMProvider {
	case "claude":
		provider := llm.NewClaudeProvider(llm.ClaudeConfig{
			APIKey: cfg.LLMAPIKey,
			Model:  cfg.LLMModel,
		})
		registry.Register("claude", resilient(provider))
		return registry.SetDefault("claude")

	case "ollama":
		model := cfg.LLMModel
		if model == "" || model == "claude-sonnet-4-20250514" {
			model = "llama3.2:latest"
		}
		provider := llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   model,
		})
		registry.Register("ollama", resilient(provider))
		return registry.SetDefault("ollama")

	default:
		return fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// initExecutor selects the sandbox backing the runner service.
func initExecutor(cfg *config.Config, logger *slog.Logger) (runner.Executor, error) {
	timeout := time.Duration(cfg.RunnerTimeout) * time.Second

	switch cfg.Executor {
	case "docker":
		exec, err := runner.NewDockerExecutor(runner.DockerExecutorConfig{
			MemoryMB: cfg.RunnerMemoryMB,
			CPULimit: cfg.RunnerCPULimit,
			Timeout:  timeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create docker executor: %w", err)
		}
		return exec, nil
	default:
		return runner.NewPistonExecutor(runner.PistonConfig{
			BaseURL: cfg.PistonURL,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	}
}

func (a *App) closeStore() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// Close cleans up application resources
func (a *App) Close() error {
	if a.Consumer != nil {
		a.Consumer.Stop()
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.logger.Error("failed to close queue connection", "error", err)
		}
	}
	a.closeStore()
	return nil
}
