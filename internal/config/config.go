// Package config loads server configuration from environment variables,
// with an optional YAML file for local daemon mode (local.go).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port  int
	Debug bool

	// Storage: Postgres when DATABASE_URL is set, SQLite otherwise.
	DatabaseURL string
	SQLitePath  string

	// Queue: async test generation when set, inline when empty.
	RabbitMQURL  string
	QueueWorkers int

	// LLM
	LLMProvider     string // claude, ollama
	LLMAPIKey       string
	LLMModel        string
	OllamaURL       string
	MaxOutputTokens int

	// Runner
	Executor       string // piston, docker
	PistonURL      string
	RunnerTimeout  int // seconds
	RunnerMemoryMB int
	RunnerCPULimit float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		Debug:           getEnvBool("DEBUG", false),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "scaffy.db"),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		QueueWorkers:    getEnvInt("QUEUE_WORKERS", 2),
		LLMProvider:     getEnv("LLM_PROVIDER", "claude"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-20250514"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 4000),
		Executor:        getEnv("EXECUTOR", "piston"),
		PistonURL:       getEnv("PISTON_URL", "https://emkc.org/api/v2/piston"),
		RunnerTimeout:   getEnvInt("RUNNER_TIMEOUT", 10),
		RunnerMemoryMB:  getEnvInt("RUNNER_MEMORY_MB", 256),
		RunnerCPULimit:  getEnvFloat("RUNNER_CPU_LIMIT", 0.5),
	}

	if cfg.LLMProvider == "claude" && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY must be set when LLM_PROVIDER is claude")
	}
	if cfg.Executor != "piston" && cfg.Executor != "docker" {
		return nil, fmt.Errorf("EXECUTOR must be piston or docker, got %q", cfg.Executor)
	}

	return cfg, nil
}

// UsesPostgres reports whether the Postgres store should be wired.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// UsesQueue reports whether test generation runs through RabbitMQ.
func (c *Config) UsesQueue() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
