package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/gitpulse/internal/observability"
	"github.com/harun/gitpulse/internal/tracing"
)

// Config holds client construction parameters.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Profiles    []Profile
	Factory     ProviderCreator
}

// Client drives one reasoning step at a time against a set of provider
// profiles: priority order, per-profile cooldown after failures, and
// exponential backoff on transient errors within a profile.
type Client struct {
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	factory     ProviderCreator
	logger      zerolog.Logger

	profiles []Profile
	mu       sync.RWMutex
}

// NewClient creates an engine client.
func NewClient(cfg Config) (*Client, error) {
	observability.EnsureRegistered()

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one profile is required")
	}

	factory := cfg.Factory
	if factory == nil {
		factory = &ProviderFactory{}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	profiles := make([]Profile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	return &Client{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		maxRetries:  maxRetries,
		factory:     factory,
		profiles:    profiles,
		logger:      log.With().Str("component", "engine").Logger(),
	}, nil
}

// Decide runs one reasoning step over the conversation and returns the
// model's decision. Tool call IDs in the decision are always present
// and unique; missing provider IDs are synthesized.
func (c *Client) Decide(ctx context.Context, messages []Message, tools []ToolSpec, systemPrompt string) (*Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "gitpulse.engine", "engine.decide",
		attribute.String("model", c.model),
	)
	defer span.End()

	wireTools, fromWire := wireSpecs(tools)

	response, err := c.callWithFailover(ctx, Request{
		Model:        c.model,
		Messages:     wireMessages(messages),
		Tools:        wireTools,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	calls := normalizeToolCallIDs(response.ToolCalls)
	for i, call := range calls {
		if catalogName, ok := fromWire[call.Name]; ok {
			calls[i].Name = catalogName
		}
	}

	return &Decision{
		FinalAnswer: response.Content,
		ToolCalls:   calls,
		Usage:       response.Usage,
	}, nil
}

// wireSpecs rewrites tool names into their wire form and returns the
// reverse mapping for translating the model's tool calls back.
func wireSpecs(tools []ToolSpec) ([]ToolSpec, map[string]string) {
	wired := make([]ToolSpec, len(tools))
	fromWire := make(map[string]string, len(tools))
	for i, tool := range tools {
		wire := WireToolName(tool.Name)
		fromWire[wire] = tool.Name
		tool.Name = wire
		wired[i] = tool
	}
	return wired, fromWire
}

// wireMessages rewrites assistant tool-call names into their wire form
// so replayed history matches the tool specs the provider was given.
func wireMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i, msg := range out {
		if len(msg.ToolCalls) == 0 {
			continue
		}
		calls := make([]ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		for j := range calls {
			calls[j].Name = WireToolName(calls[j].Name)
		}
		out[i].ToolCalls = calls
	}
	return out
}

// normalizeToolCallIDs guarantees every tool call carries a unique ID.
// Synthesized IDs are deterministic so a given decision always yields
// the same request ordering.
func normalizeToolCallIDs(calls []ToolCall) []ToolCall {
	seen := make(map[string]bool, len(calls))
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		if call.ID == "" || seen[call.ID] {
			call.ID = fmt.Sprintf("call_%04d", i+1)
		}
		seen[call.ID] = true
		out[i] = call
	}
	return out
}

func (c *Client) callWithFailover(ctx context.Context, request Request) (*Response, error) {
	c.mu.RLock()
	profiles := make([]Profile, len(c.profiles))
	copy(profiles, c.profiles)
	c.mu.RUnlock()

	logger := tracing.LoggerFromContext(ctx, c.logger)

	var lastErr error
	for _, profile := range profiles {
		start := time.Now()

		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}
		observability.SetProviderCooldown(profile.Provider, false)

		provider, err := c.factory.NewProvider(profile)
		if err != nil {
			observability.RecordEngineRun(profile.Provider, time.Since(start), false)
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			continue
		}

		response, err := c.callWithRetry(ctx, provider, request)
		if err == nil {
			c.markSuccess(profile.ID)
			observability.RecordEngineRun(profile.Provider, time.Since(start), true)
			return response, nil
		}

		lastErr = err
		observability.RecordEngineRun(profile.Provider, time.Since(start), false)
		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Profile failed")
		c.markFailure(profile.ID)

		if !IsRetryableError(err) {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no usable provider profile")
	}
	return nil, fmt.Errorf("all provider profiles failed: %w", lastErr)
}

// callWithRetry retries transient failures with exponential backoff:
// 1s, 2s, 4s.
func (c *Client) callWithRetry(ctx context.Context, provider Provider, request Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == c.maxRetries-1 {
			break
		}

		delay := time.Duration(1000*(1<<attempt)) * time.Millisecond
		c.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after transient error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func (c *Client) markSuccess(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount = 0
			c.profiles[i].CooldownUntil = nil
			observability.SetProviderCooldown(c.profiles[i].Provider, false)
			break
		}
	}
}

// markFailure escalates the profile's cooldown linearly with its
// consecutive failure count.
func (c *Client) markFailure(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount++
			cooldown := time.Now().UnixMilli() + int64(60000*c.profiles[i].FailureCount)
			c.profiles[i].CooldownUntil = &cooldown
			observability.SetProviderCooldown(c.profiles[i].Provider, true)
			break
		}
	}
}
