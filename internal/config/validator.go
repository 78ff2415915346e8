package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a full configuration for startup-fatal problems.
func (v *Validator) Validate(cfg *Config) error {
	if len(cfg.Engine.Profiles) == 0 {
		return fmt.Errorf("at least one engine profile is required (set ANTHROPIC_API_KEY or OPENAI_API_KEY, or add engine.profiles)")
	}
	for _, profile := range cfg.Engine.Profiles {
		if err := v.ValidateProfile(profile); err != nil {
			return err
		}
	}

	if err := v.ValidateModel(cfg.Engine.Model); err != nil {
		return err
	}
	if cfg.Engine.Temperature < 0 || cfg.Engine.Temperature > 1 {
		return fmt.Errorf("engine temperature must be between 0 and 1")
	}
	if cfg.Engine.MaxTokens < 0 {
		return fmt.Errorf("engine max_tokens cannot be negative")
	}

	if cfg.Host.MaxIterations <= 0 {
		return fmt.Errorf("host max_iterations must be positive")
	}
	if cfg.Host.WorkerPoolSize < 1 || cfg.Host.WorkerPoolSize > 32 {
		return fmt.Errorf("host worker_pool_size must be between 1 and 32")
	}
	if cfg.Host.DispatchTimeoutSeconds <= 0 {
		return fmt.Errorf("host dispatch_timeout_seconds must be positive")
	}

	if cfg.GitHub.BaseURL == "" {
		return fmt.Errorf("github base_url cannot be empty")
	}

	return nil
}

// ValidateProfile validates an engine profile
func (v *Validator) ValidateProfile(profile EngineProfile) error {
	if profile.ID == "" {
		return fmt.Errorf("engine profile id cannot be empty")
	}
	if profile.Provider != "anthropic" && profile.Provider != "openai" {
		return fmt.Errorf("engine profile %s: unsupported provider %q", profile.ID, profile.Provider)
	}
	return v.ValidateAPIKey(profile.APIKey, profile.Provider)
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}
