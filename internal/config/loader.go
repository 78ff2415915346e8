package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".gitpulse", "gitpulse.json")
	}

	// Return default config if file doesn't exist; env vars still apply below
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("GITPULSE")
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	l.applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".gitpulse")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "gitpulse.log")
	}

	return cfg, nil
}

// applyEnvOverrides picks up well-known credentials from the process
// environment so the host works without a config file.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && cfg.GitHub.Token == "" {
		cfg.GitHub.Token = token
	}

	hasProvider := func(provider string) bool {
		for _, p := range cfg.Engine.Profiles {
			if p.Provider == provider {
				return true
			}
		}
		return false
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && !hasProvider("anthropic") {
		cfg.Engine.Profiles = append(cfg.Engine.Profiles, EngineProfile{
			ID:       "env-anthropic",
			Provider: "anthropic",
			APIKey:   key,
			Priority: 1,
		})
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && !hasProvider("openai") {
		cfg.Engine.Profiles = append(cfg.Engine.Profiles, EngineProfile{
			ID:       "env-openai",
			Provider: "openai",
			APIKey:   key,
			Priority: 2,
		})
	}
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".gitpulse", "gitpulse.json")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("github", cfg.GitHub)
	v.Set("engine", cfg.Engine)
	v.Set("host", cfg.Host)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
