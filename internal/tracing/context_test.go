package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithConversationID(t *testing.T) {
	ctx := context.Background()

	ctx = WithConversationID(ctx, "conv-1")

	if got := GetConversationID(ctx); got != "conv-1" {
		t.Errorf("Expected conversation ID conv-1, got %s", got)
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "call-0001")

	if got := GetRequestID(ctx); got != "call-0001" {
		t.Errorf("Expected request ID call-0001, got %s", got)
	}
}

func TestGetFromEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" {
		t.Error("Expected empty trace ID from empty context")
	}
	if GetConversationID(ctx) != "" {
		t.Error("Expected empty conversation ID from empty context")
	}
	if GetRequestID(ctx) != "" {
		t.Error("Expected empty request ID from empty context")
	}
}

func TestFromContextAndNewContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithConversationID(ctx, "conv-1")
	ctx = WithRequestID(ctx, "call-0002")

	tc := FromContext(ctx)

	if tc.TraceID != "trace-1" || tc.ConversationID != "conv-1" || tc.RequestID != "call-0002" {
		t.Errorf("FromContext returned unexpected values: %+v", tc)
	}

	rebuilt := NewContext(context.Background(), tc)
	if GetTraceID(rebuilt) != "trace-1" {
		t.Error("NewContext did not carry trace ID")
	}
	if GetConversationID(rebuilt) != "conv-1" {
		t.Error("NewContext did not carry conversation ID")
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("NewRequestContext did not set a trace ID")
	}
}
