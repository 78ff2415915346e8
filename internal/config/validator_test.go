package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Engine.Profiles = []EngineProfile{
		{ID: "primary", Provider: "anthropic", APIKey: "sk-ant-test123", Priority: 1},
	}
	return cfg
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, v.Validate(validConfig()))
	})

	t.Run("no profiles", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Profiles = nil
		err := v.Validate(cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine profile")
	})

	t.Run("zero max iterations", func(t *testing.T) {
		cfg := validConfig()
		cfg.Host.MaxIterations = 0
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("worker pool out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Host.WorkerPoolSize = 64
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Temperature = 1.5
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("empty base url", func(t *testing.T) {
		cfg := validConfig()
		cfg.GitHub.BaseURL = ""
		assert.Error(t, v.Validate(cfg))
	})
}

func TestValidator_ValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		wantErr  bool
	}{
		{"valid anthropic key", "sk-ant-abc123", "anthropic", false},
		{"valid openai key", "sk-abc123", "openai", false},
		{"empty key", "", "anthropic", true},
		{"wrong anthropic prefix", "sk-abc123", "anthropic", true},
		{"wrong openai prefix", "key-abc123", "openai", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_ValidateProfile(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProfile(EngineProfile{ID: "a", Provider: "openai", APIKey: "sk-x"}))
	assert.Error(t, v.ValidateProfile(EngineProfile{Provider: "openai", APIKey: "sk-x"}))
	assert.Error(t, v.ValidateProfile(EngineProfile{ID: "a", Provider: "gemini", APIKey: "x"}))
}
