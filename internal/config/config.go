package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main GitPulse configuration
type Config struct {
	// GitHub data API access
	GitHub GitHubConfig `json:"github" mapstructure:"github"`

	// Engine (reasoning model) configuration
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Host (agentic loop) configuration
	Host HostConfig `json:"host" mapstructure:"host"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint (empty disables the listener)
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// GitHubConfig holds GitHub API client configuration
type GitHubConfig struct {
	Token          string `json:"token" mapstructure:"token"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// EngineConfig holds reasoning engine configuration
type EngineConfig struct {
	Model       string          `json:"model" mapstructure:"model"`
	Temperature float64         `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int             `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries  int             `json:"max_retries" mapstructure:"max_retries"`
	Profiles    []EngineProfile `json:"profiles" mapstructure:"profiles"`
}

// EngineProfile represents one provider credential with failover priority
type EngineProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// HostConfig holds the orchestration loop configuration
type HostConfig struct {
	MaxIterations          int  `json:"max_iterations" mapstructure:"max_iterations"`
	WorkerPoolSize         int  `json:"worker_pool_size" mapstructure:"worker_pool_size"`
	DispatchTimeoutSeconds int  `json:"dispatch_timeout_seconds" mapstructure:"dispatch_timeout_seconds"`
	Transcripts            bool `json:"transcripts" mapstructure:"transcripts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the optional prometheus listener configuration
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			BaseURL:        "https://api.github.com",
			TimeoutSeconds: 30,
		},
		Engine: EngineConfig{
			Model:       "claude-sonnet-4",
			Temperature: 0.2,
			MaxTokens:   4096,
			MaxRetries:  3,
			Profiles:    []EngineProfile{},
		},
		Host: HostConfig{
			MaxIterations:          5,
			WorkerPoolSize:         4,
			DispatchTimeoutSeconds: 30,
			Transcripts:            true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{},
		DataDir: "",
	}
}

// String returns a JSON representation with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.GitHub.Token != "" {
		masked.GitHub.Token = "***"
	}
	profiles := make([]EngineProfile, len(c.Engine.Profiles))
	copy(profiles, c.Engine.Profiles)
	for i := range profiles {
		if profiles[i].APIKey != "" {
			profiles[i].APIKey = "***"
		}
	}
	masked.Engine.Profiles = profiles

	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
