package engine

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/domains"
)

type fakeProvider struct {
	name      string
	responses []*Response
	errs      []error
	calls     int
	requests  []Request
}

func (p *fakeProvider) Provider() string { return p.name }

func (p *fakeProvider) Call(_ context.Context, req Request) (*Response, error) {
	p.requests = append(p.requests, req)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return &Response{Content: "done"}, nil
}

type fakeFactory struct {
	providers map[string]*fakeProvider
}

func (f *fakeFactory) NewProvider(profile Profile) (Provider, error) {
	p, ok := f.providers[profile.ID]
	if !ok {
		return nil, errors.New("no provider for profile")
	}
	return p, nil
}

func newTestClient(t *testing.T, factory ProviderCreator, profiles ...Profile) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Model:      "claude-sonnet-4",
		MaxRetries: 1,
		Profiles:   profiles,
		Factory:    factory,
	})
	require.NoError(t, err)
	return c
}

func TestDecide_FinalAnswer(t *testing.T) {
	provider := &fakeProvider{name: "anthropic", responses: []*Response{
		{Content: "The repo has 9000 stars.", Usage: &TokenUsage{InputTokens: 10, OutputTokens: 5}},
	}}
	c := newTestClient(t, &fakeFactory{providers: map[string]*fakeProvider{"p1": provider}},
		Profile{ID: "p1", Provider: "anthropic", Priority: 1})

	decision, err := c.Decide(context.Background(), []Message{{Role: "user", Content: "stars?"}}, nil, "system")
	require.NoError(t, err)
	assert.True(t, decision.IsFinal())
	assert.Equal(t, "The repo has 9000 stars.", decision.FinalAnswer)
	assert.Equal(t, 10, decision.Usage.InputTokens)
}

func TestDecide_ToolCalls(t *testing.T) {
	provider := &fakeProvider{name: "anthropic", responses: []*Response{
		{ToolCalls: []ToolCall{
			{ID: "toolu_abc", Name: "repo.get_repo_info", Arguments: map[string]interface{}{"owner": "a", "repo": "b"}},
		}},
	}}
	c := newTestClient(t, &fakeFactory{providers: map[string]*fakeProvider{"p1": provider}},
		Profile{ID: "p1", Provider: "anthropic", Priority: 1})

	decision, err := c.Decide(context.Background(), nil, nil, "")
	require.NoError(t, err)
	assert.False(t, decision.IsFinal())
	require.Len(t, decision.ToolCalls, 1)
	assert.Equal(t, "toolu_abc", decision.ToolCalls[0].ID)
}

func TestDecide_FailoverToSecondProfile(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", errs: []error{errors.New("rate limit: 429")}}
	backup := &fakeProvider{name: "openai", responses: []*Response{{Content: "from backup"}}}
	factory := &fakeFactory{providers: map[string]*fakeProvider{"p1": primary, "p2": backup}}
	c := newTestClient(t, factory,
		Profile{ID: "p1", Provider: "anthropic", Priority: 1},
		Profile{ID: "p2", Provider: "openai", Priority: 2})

	decision, err := c.Decide(context.Background(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "from backup", decision.FinalAnswer)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestDecide_NonRetryableErrorStopsFailover(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", errs: []error{errors.New("invalid api key")}}
	backup := &fakeProvider{name: "openai"}
	factory := &fakeFactory{providers: map[string]*fakeProvider{"p1": primary, "p2": backup}}
	c := newTestClient(t, factory,
		Profile{ID: "p1", Provider: "anthropic", Priority: 1},
		Profile{ID: "p2", Provider: "openai", Priority: 2})

	_, err := c.Decide(context.Background(), nil, nil, "")
	require.Error(t, err)
	assert.Equal(t, 0, backup.calls)
}

func TestDecide_SkipsProfileInCooldown(t *testing.T) {
	cooldown := time.Now().Add(time.Hour).UnixMilli()
	cold := &fakeProvider{name: "anthropic"}
	warm := &fakeProvider{name: "openai", responses: []*Response{{Content: "warm"}}}
	factory := &fakeFactory{providers: map[string]*fakeProvider{"p1": cold, "p2": warm}}
	c := newTestClient(t, factory,
		Profile{ID: "p1", Provider: "anthropic", Priority: 1, CooldownUntil: &cooldown},
		Profile{ID: "p2", Provider: "openai", Priority: 2})

	decision, err := c.Decide(context.Background(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "warm", decision.FinalAnswer)
	assert.Equal(t, 0, cold.calls)
}

func TestDecide_AllProfilesFail(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", errs: []error{errors.New("503 unavailable")}}
	backup := &fakeProvider{name: "openai", errs: []error{errors.New("502 bad gateway")}}
	factory := &fakeFactory{providers: map[string]*fakeProvider{"p1": primary, "p2": backup}}
	c := newTestClient(t, factory,
		Profile{ID: "p1", Provider: "anthropic", Priority: 1},
		Profile{ID: "p2", Provider: "openai", Priority: 2})

	_, err := c.Decide(context.Background(), nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all provider profiles failed")
}

func TestNormalizeToolCallIDs(t *testing.T) {
	calls := normalizeToolCallIDs([]ToolCall{
		{ID: "", Name: "a"},
		{ID: "toolu_x", Name: "b"},
		{ID: "toolu_x", Name: "c"}, // duplicate
		{ID: "", Name: "d"},
	})

	assert.Equal(t, "call_0001", calls[0].ID)
	assert.Equal(t, "toolu_x", calls[1].ID)
	assert.Equal(t, "call_0003", calls[2].ID)
	assert.Equal(t, "call_0004", calls[3].ID)

	// Determinism: same input, same IDs
	again := normalizeToolCallIDs([]ToolCall{
		{ID: "", Name: "a"},
		{ID: "toolu_x", Name: "b"},
		{ID: "toolu_x", Name: "c"},
		{ID: "", Name: "d"},
	})
	assert.Equal(t, calls, again)
}

func TestSpecFor(t *testing.T) {
	spec := SpecFor(catalog.ToolDefinition{
		Name:        "repo.get_repo_info",
		Description: "Get repository info",
		Parameters: []catalog.ToolParameter{
			{Name: "owner", Type: "string", Description: "Owner", Required: true},
			{Name: "limit", Type: "integer", Description: "Limit", Default: 10},
		},
	})

	assert.Equal(t, "repo.get_repo_info", spec.Name)
	props := spec.InputSchema["properties"].(map[string]interface{})
	assert.Contains(t, props, "owner")
	assert.Equal(t, 10, props["limit"].(map[string]interface{})["default"])
	assert.Equal(t, []string{"owner"}, spec.InputSchema["required"])
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("internal error: 500"), true},
		{"timeout", errors.New("read tcp: ETIMEDOUT"), true},
		{"auth error", errors.New("invalid api key"), false},
		{"bad request", errors.New("400 bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Profiles: []Profile{{ID: "p"}}})
	assert.Error(t, err)

	_, err = NewClient(Config{Model: "m"})
	assert.Error(t, err)
}

func TestDecide_ToolNamesTranslatedForProvider(t *testing.T) {
	provider := &fakeProvider{name: "anthropic", responses: []*Response{
		{ToolCalls: []ToolCall{
			{ID: "toolu_1", Name: "repo_get_repo_info", Arguments: map[string]interface{}{"owner": "golang", "repo": "go"}},
		}},
	}}
	c := newTestClient(t, &fakeFactory{providers: map[string]*fakeProvider{"p1": provider}},
		Profile{ID: "p1", Provider: "anthropic", Priority: 1})

	messages := []Message{
		{Role: "user", Content: "stars?"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_0001", Name: "issue.list_issues"}}},
	}
	tools := []ToolSpec{{Name: "repo.get_repo_info"}, {Name: "issue.list_issues"}}

	decision, err := c.Decide(context.Background(), messages, tools, "system")
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	sent := provider.requests[0]
	assert.Equal(t, "repo_get_repo_info", sent.Tools[0].Name)
	assert.Equal(t, "issue_list_issues", sent.Tools[1].Name)
	assert.Equal(t, "issue_list_issues", sent.Messages[1].ToolCalls[0].Name)

	// The caller's history is not mutated.
	assert.Equal(t, "issue.list_issues", messages[1].ToolCalls[0].Name)

	// The model's tool calls come back under catalog names.
	require.Len(t, decision.ToolCalls, 1)
	assert.Equal(t, "repo.get_repo_info", decision.ToolCalls[0].Name)
}

func TestWireToolName_AcceptedByProviders(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	services := domains.All(nil)
	sources := make([]catalog.ToolSource, len(services))
	for i, svc := range services {
		sources[i] = svc
	}
	cat, err := catalog.Build(sources...)
	require.NoError(t, err)

	for _, def := range cat.Definitions() {
		wire := WireToolName(def.Name)
		assert.True(t, pattern.MatchString(wire), "tool name %q maps to invalid wire name %q", def.Name, wire)
	}
}
