package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/gitpulse/pkg/catalog"
)

type stubService struct {
	domain  catalog.Domain
	tools   []catalog.ToolDefinition
	invoked []string
	result  interface{}
	err     error
}

func (s *stubService) Domain() catalog.Domain          { return s.domain }
func (s *stubService) Tools() []catalog.ToolDefinition { return s.tools }

func (s *stubService) Invoke(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
	s.invoked = append(s.invoked, action)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.result, s.err
}

func echoTool() catalog.ToolDefinition {
	return catalog.ToolDefinition{
		Name:        "echo",
		Description: "Echo a value back",
		Parameters: []catalog.ToolParameter{
			{Name: "value", Type: "string", Description: "Value to echo", Required: true},
			{Name: "count", Type: "integer", Description: "Repeat count", Default: 1},
		},
	}
}

func newTestRouter(t *testing.T, svc *stubService) *Router {
	t.Helper()
	r, err := New(svc)
	require.NoError(t, err)
	return r
}

func TestDispatch_Success(t *testing.T) {
	svc := &stubService{
		domain: catalog.DomainRepo,
		tools:  []catalog.ToolDefinition{echoTool()},
		result: map[string]string{"echoed": "hi"},
	}
	r := newTestRouter(t, svc)

	result := r.Dispatch(context.Background(), ToolCallRequest{
		ID:        "call_0001",
		ToolName:  "repo.echo",
		Arguments: map[string]interface{}{"value": "hi"},
	})

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "call_0001", result.RequestID)
	assert.Equal(t, []string{"echo"}, svc.invoked)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(result.Payload, &payload))
	assert.Equal(t, "hi", payload["echoed"])
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := newTestRouter(t, &stubService{domain: catalog.DomainRepo, tools: []catalog.ToolDefinition{echoTool()}})

	result := r.Dispatch(context.Background(), ToolCallRequest{
		ID:       "call_0002",
		ToolName: "repo.does_not_exist",
	})

	assert.Equal(t, StatusInvalidCall, result.Status)
	assert.Contains(t, result.ErrorMessage, "unknown tool")
	assert.True(t, result.Recoverable())
}

func TestDispatch_SchemaViolations(t *testing.T) {
	svc := &stubService{domain: catalog.DomainRepo, tools: []catalog.ToolDefinition{echoTool()}}
	r := newTestRouter(t, svc)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing required", map[string]interface{}{}},
		{"wrong type", map[string]interface{}{"value": 42}},
		{"unknown argument", map[string]interface{}{"value": "hi", "extra": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Dispatch(context.Background(), ToolCallRequest{
				ID:        "call_0003",
				ToolName:  "repo.echo",
				Arguments: tt.args,
			})
			assert.Equal(t, StatusInvalidCall, result.Status)
			assert.NotEmpty(t, result.ErrorMessage)
		})
	}

	// The service must never see an invalid call
	assert.Empty(t, svc.invoked)
}

func TestDispatch_DomainError(t *testing.T) {
	svc := &stubService{
		domain: catalog.DomainIssue,
		tools:  []catalog.ToolDefinition{echoTool()},
		err:    errors.New("upstream returned 500"),
	}
	r := newTestRouter(t, svc)

	result := r.Dispatch(context.Background(), ToolCallRequest{
		ID:        "call_0004",
		ToolName:  "issue.echo",
		Arguments: map[string]interface{}{"value": "hi"},
	})

	assert.Equal(t, StatusDomainError, result.Status)
	assert.Contains(t, result.ErrorMessage, "upstream returned 500")
	assert.True(t, result.Recoverable())
}

func TestDispatch_CancelledContext(t *testing.T) {
	svc := &stubService{domain: catalog.DomainRepo, tools: []catalog.ToolDefinition{echoTool()}}
	r := newTestRouter(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := r.Dispatch(ctx, ToolCallRequest{
		ID:        "call_0005",
		ToolName:  "repo.echo",
		Arguments: map[string]interface{}{"value": "hi"},
	})

	assert.Equal(t, StatusTransportError, result.Status)
	assert.False(t, result.Recoverable())
}

func TestNew_CatalogConflict(t *testing.T) {
	first := &stubService{domain: catalog.DomainRepo, tools: []catalog.ToolDefinition{echoTool()}}
	second := &stubService{domain: catalog.DomainRepo, tools: []catalog.ToolDefinition{echoTool()}}

	_, err := New(first, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrCatalogConflict)
}

func TestRouter_CatalogMatchesRoutes(t *testing.T) {
	svc := &stubService{domain: catalog.DomainPR, tools: []catalog.ToolDefinition{echoTool()}}
	r := newTestRouter(t, svc)

	names := r.Catalog().Names()
	require.Len(t, names, 1)
	assert.Equal(t, "pr.echo", names[0])
}
