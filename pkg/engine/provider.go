package engine

import (
	"context"
	"fmt"
)

// Provider is an LLM API provider.
type Provider interface {
	// Call makes one model API call.
	Call(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name.
	Provider() string
}

// ProviderCreator creates providers from profiles.
type ProviderCreator interface {
	NewProvider(profile Profile) (Provider, error)
}

// ProviderFactory is the default ProviderCreator.
type ProviderFactory struct{}

// NewProvider creates a provider for the profile's vendor.
func (f *ProviderFactory) NewProvider(profile Profile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
