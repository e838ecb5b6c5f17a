package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scaffyhq/scaffy/internal/agent"
	"github.com/scaffyhq/scaffy/internal/config"
	"github.com/scaffyhq/scaffy/internal/llm"
	"github.com/scaffyhq/scaffy/internal/mcp"
	"github.com/scaffyhq/scaffy/internal/runner"
	"github.com/scaffyhq/scaffy/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	scaffyDir, err := config.EnsureScaffyDir()
	if err != nil {
		return fmt.Errorf("ensure scaffy dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Stdout carries the MCP transport, so logs go to stderr only.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Daemon.LogLevel),
	}))
	slog.SetDefault(logger)

	db, err := sqlite.Open(filepath.Join(scaffyDir, "data", "scaffy.db"))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	store := sqlite.NewStore(db)

	provider, err := selectProvider(cfg)
	if err != nil {
		return err
	}

	executor, err := selectExecutor(cfg, logger)
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Config{
		Parser:  agent.NewParserAgent(provider, logger),
		Codegen: agent.NewCodegenAgent(provider, logger),
		Helper:  agent.NewHelperAgent(provider, logger),
		Runner:  runner.NewService(executor, logger),
		Store:   store,
	})

	logger.Info("scaffy MCP server starting on stdio")
	return server.ServeStdio(context.Background())
}

// selectProvider picks the configured LLM provider, or with "auto" prefers
// Claude when an API key is present and falls back to Ollama.
func selectProvider(cfg *config.LocalConfig) (llm.Provider, error) {
	name := cfg.LLM.DefaultProvider
	if name == "" || name == "auto" {
		if p := cfg.LLM.Providers["claude"]; p != nil && p.Enabled && p.APIKey != "" {
			name = "claude"
		} else {
			name = "ollama"
		}
	}

	pc := cfg.LLM.Providers[name]
	if pc == nil || !pc.Enabled {
		return nil, fmt.Errorf("LLM provider %q is not configured", name)
	}

	var base llm.Provider
	switch name {
	case "claude":
		if pc.APIKey == "" {
			return nil, fmt.Errorf("no API key for claude; add it to ~/.scaffy/secrets.yaml")
		}
		base = llm.NewClaudeProvider(llm.ClaudeConfig{
			APIKey: pc.APIKey,
			Model:  pc.Model,
		})
	case "ollama":
		base = llm.NewOllamaProvider(llm.OllamaConfig{
			BaseURL: pc.URL,
			Model:   pc.Model,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}

	return llm.NewResilientProvider(base, llm.DefaultResilientConfig()), nil
}

func selectExecutor(cfg *config.LocalConfig, logger *slog.Logger) (runner.Executor, error) {
	timeout := time.Duration(cfg.Runner.Docker.TimeoutSeconds) * time.Second

	switch cfg.Runner.Executor {
	case "docker":
		exec, err := runner.NewDockerExecutor(runner.DockerExecutorConfig{
			MemoryMB: cfg.Runner.Docker.MemoryMB,
			CPULimit: cfg.Runner.Docker.CPULimit,
			Timeout:  timeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create docker executor: %w", err)
		}
		return exec, nil
	default:
		return runner.NewPistonExecutor(runner.PistonConfig{
			BaseURL: cfg.Runner.PistonURL,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
