package engine

import (
	"strings"

	"github.com/harun/gitpulse/pkg/catalog"
)

// Message is one entry in the conversation handed to a provider.
type Message struct {
	Role       string                 `json:"role"` // user, assistant, tool
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolSpec describes one tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// WireToolName converts a qualified catalog name to the character set
// providers accept for tool names ([a-zA-Z0-9_-]): the domain separator
// becomes an underscore. Domain prefixes contain no underscores, so the
// mapping is reversible.
func WireToolName(name string) string {
	return strings.ReplaceAll(name, catalog.Separator, "_")
}

// SpecFor converts a catalog definition into the provider-facing spec.
func SpecFor(def catalog.ToolDefinition) ToolSpec {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		prop := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return ToolSpec{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
}

// Request contains the parameters for one provider call.
type Request struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is the raw provider output for one call.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Decision is one reasoning step: either a final answer or a batch of
// tool calls, never both interpreted at once. Tool call IDs are unique
// within the decision.
type Decision struct {
	FinalAnswer string
	ToolCalls   []ToolCall
	Usage       *TokenUsage
}

// IsFinal reports whether the model produced an answer instead of
// requesting tools.
func (d *Decision) IsFinal() bool {
	return len(d.ToolCalls) == 0
}

// Profile is one provider credential with failover state.
type Profile struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"` // anthropic, openai
	APIKey        string `json:"api_key"`
	Priority      int    `json:"priority"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
	FailureCount  int    `json:"failure_count"`
}

// IsRetryableError reports whether a provider error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection refused") {
		return true
	}
	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}
	// Server errors
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}

	return false
}
