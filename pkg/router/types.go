package router

import "encoding/json"

// Status classifies a dispatch outcome.
type Status string

const (
	// StatusSuccess means the domain produced a result.
	StatusSuccess Status = "success"
	// StatusDomainError means the domain ran and failed; the failure is
	// folded back to the model as data.
	StatusDomainError Status = "domain_error"
	// StatusInvalidCall means the request never reached a domain:
	// unknown tool or arguments that failed schema validation.
	StatusInvalidCall Status = "invalid_call"
	// StatusTransportError means the dispatch channel itself failed.
	StatusTransportError Status = "transport_error"
)

// ToolCallRequest is one tool invocation requested by the engine.
type ToolCallRequest struct {
	ID        string                 `json:"id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResult is the outcome of one dispatch, correlated to its
// request by RequestID.
type ToolCallResult struct {
	RequestID    string          `json:"request_id"`
	ToolName     string          `json:"tool_name"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Recoverable reports whether the host can fold this result back into
// the conversation and let the model continue.
func (r ToolCallResult) Recoverable() bool {
	return r.Status != StatusTransportError
}
