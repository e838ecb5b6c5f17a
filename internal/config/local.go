package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local daemon mode, loaded from
// ~/.scaffy/config.yaml with API keys split out into secrets.yaml.
type LocalConfig struct {
	Daemon DaemonConfig      `yaml:"daemon"`
	LLM    LLMConfig         `yaml:"llm"`
	Runner LocalRunnerConfig `yaml:"runner"`
}

// DaemonConfig holds daemon server settings.
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"` // for Ollama
	APIKey  string `yaml:"-"`             // loaded from secrets.yaml
}

// LocalRunnerConfig holds code execution settings.
type LocalRunnerConfig struct {
	Executor  string             `yaml:"executor"` // piston, docker
	PistonURL string             `yaml:"piston_url,omitempty"`
	Docker    DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings.
type DockerRunnerConfig struct {
	MemoryMB       int     `yaml:"memory_mb"`
	CPULimit       float64 `yaml:"cpu_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SecretsConfig holds API keys loaded from secrets.yaml.
type SecretsConfig struct {
	Providers map[string]struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"providers"`
}

// ScaffyDir returns the path to ~/.scaffy.
func ScaffyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".scaffy"), nil
}

// EnsureScaffyDir creates ~/.scaffy and subdirectories if they don't exist.
func EnsureScaffyDir() (string, error) {
	dir, err := ScaffyDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode.
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"ollama": {
					Enabled: true,
					URL:     "http://localhost:11434",
					Model:   "llama3",
				},
			},
		},
		Runner: LocalRunnerConfig{
			Executor:  "piston",
			PistonURL: "https://emkc.org/api/v2/piston",
			Docker: DockerRunnerConfig{
				MemoryMB:       256,
				CPULimit:       0.5,
				TimeoutSeconds: 10,
			},
		},
	}
}

// LoadLocalConfig loads configuration from ~/.scaffy/config.yaml.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := ScaffyDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	// Missing config means defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads API keys from secrets.yaml.
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.scaffy/config.yaml.
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureScaffyDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
