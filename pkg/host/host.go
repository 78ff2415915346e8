package host

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/gitpulse/internal/observability"
	"github.com/harun/gitpulse/internal/tracing"
	"github.com/harun/gitpulse/pkg/connection"
	"github.com/harun/gitpulse/pkg/engine"
	"github.com/harun/gitpulse/pkg/router"
	"github.com/harun/gitpulse/pkg/transcript"
)

// Abort reasons reported on Answer when a conversation cannot finish
// normally.
const (
	AbortIterationLimit  = "iteration_limit_exceeded"
	AbortEngineError     = "engine_error"
	AbortConnectionError = "connection_error"
)

// Decider is the reasoning boundary. One call is one reasoning step:
// the returned decision carries either a final answer or a batch of
// tool calls.
type Decider interface {
	Decide(ctx context.Context, messages []engine.Message, tools []engine.ToolSpec, systemPrompt string) (*engine.Decision, error)
}

// Config controls the dispatch loop.
type Config struct {
	MaxIterations   int
	WorkerPoolSize  int
	DispatchTimeout time.Duration
	SystemPrompt    string
}

// Answer is the outcome of one conversation. Aborted answers still
// carry best-effort text so callers always have something to show.
type Answer struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Iterations     int    `json:"iterations"`
	ToolsInvoked   int    `json:"tools_invoked"`
	Aborted        bool   `json:"aborted"`
	AbortReason    string `json:"abort_reason,omitempty"`
}

// Host drives conversations: it hands the tool catalog to the engine,
// dispatches the tool calls each decision requests, folds the results
// back into the conversation, and stops at a final answer or an abort.
type Host struct {
	engine      Decider
	manager     *connection.Manager
	transcripts *transcript.Store
	cfg         Config
	logger      zerolog.Logger
}

// New creates a Host. The transcript store may be nil, in which case
// conversations are not persisted.
func New(decider Decider, manager *connection.Manager, store *transcript.Store, cfg Config) *Host {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	return &Host{
		engine:      decider,
		manager:     manager,
		transcripts: store,
		cfg:         cfg,
		logger:      log.With().Str("component", "host").Logger(),
	}
}

// Run executes one full conversation for the query. The session opened
// for the conversation is released on every exit path, including aborts
// and cancellation.
func (h *Host) Run(ctx context.Context, query string) (*Answer, error) {
	conversationID, _ := gonanoid.New()
	ctx = tracing.WithConversationID(tracing.NewRequestContext(ctx), conversationID)

	ctx, span := tracing.StartSpan(ctx, "gitpulse.host", "host.run",
		attribute.String("conversation_id", conversationID),
	)
	defer span.End()

	observability.ConversationStarted()

	answer := &Answer{ConversationID: conversationID}
	defer func() {
		observability.ConversationFinished(answer.Iterations)
	}()

	h.logger.Info().
		Str("conversation_id", conversationID).
		Msg("Conversation started")
	h.record(conversationID, transcript.Event{
		Kind: transcript.EventQuery,
		Text: query,
	})

	session, err := h.manager.Connect(ctx)
	if err != nil {
		return h.abort(answer, AbortConnectionError,
			"I could not reach the tool backend, so the analysis never started.", err), nil
	}
	defer h.manager.Close(session)

	defs, err := session.Client().ListTools(ctx)
	if err != nil {
		return h.abort(answer, AbortConnectionError,
			"I could not load the tool catalog from the backend.", err), nil
	}
	specs := make([]engine.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, engine.SpecFor(def))
	}

	messages := []engine.Message{{Role: "user", Content: query}}

	for iteration := 1; iteration <= h.cfg.MaxIterations; iteration++ {
		answer.Iterations = iteration

		decision, err := h.engine.Decide(ctx, messages, specs, h.cfg.SystemPrompt)
		if err != nil {
			return h.abort(answer, AbortEngineError,
				"The reasoning engine failed before the analysis could finish.", err), nil
		}
		h.record(conversationID, transcript.Event{
			Kind:      transcript.EventDecision,
			Iteration: iteration,
			Text:      decision.FinalAnswer,
			Metadata:  map[string]interface{}{"tool_calls": len(decision.ToolCalls)},
		})

		if decision.IsFinal() {
			answer.Text = decision.FinalAnswer
			h.logger.Info().
				Str("conversation_id", conversationID).
				Int("iterations", iteration).
				Int("tools_invoked", answer.ToolsInvoked).
				Msg("Conversation finished")
			h.record(conversationID, transcript.Event{
				Kind:      transcript.EventAnswer,
				Iteration: iteration,
				Text:      decision.FinalAnswer,
			})
			return answer, nil
		}

		messages = append(messages, engine.Message{
			Role:      "assistant",
			Content:   decision.FinalAnswer,
			ToolCalls: decision.ToolCalls,
		})

		requests := make([]router.ToolCallRequest, len(decision.ToolCalls))
		for i, call := range decision.ToolCalls {
			requests[i] = router.ToolCallRequest{
				ID:        call.ID,
				ToolName:  call.Name,
				Arguments: call.Arguments,
			}
		}

		if err := h.manager.EnsureReady(ctx, session); err != nil {
			return h.abort(answer, AbortConnectionError,
				"The connection to the tool backend was lost and could not be restored.", err), nil
		}

		results := h.dispatchAll(ctx, session, requests)
		if err := ctx.Err(); err != nil {
			// In-flight work has drained; the partial results are
			// discarded rather than folded into a stale conversation.
			return nil, err
		}

		results, err = h.retryTransportFailures(ctx, session, requests, results)
		if err != nil {
			return h.abort(answer, AbortConnectionError,
				"The connection to the tool backend was lost and could not be restored.", err), nil
		}

		sort.Slice(results, func(i, j int) bool {
			return results[i].RequestID < results[j].RequestID
		})

		answer.ToolsInvoked += len(results)
		for _, result := range results {
			h.record(conversationID, transcript.Event{
				Kind:      transcript.EventDispatch,
				Iteration: iteration,
				Tool:      result.ToolName,
				RequestID: result.RequestID,
				Status:    string(result.Status),
			})
			messages = append(messages, toolMessage(result))
		}
	}

	return h.abort(answer, AbortIterationLimit,
		fmt.Sprintf("I was unable to complete the analysis within %d reasoning steps. The partial results gathered so far did not converge to an answer.", h.cfg.MaxIterations),
		nil), nil
}

// dispatchAll runs every request through a bounded worker pool and
// collects the results. Dispatch contexts are detached from the caller
// so in-flight tool calls drain instead of returning half-written
// results when the conversation is cancelled.
func (h *Host) dispatchAll(ctx context.Context, session *connection.Session, requests []router.ToolCallRequest) []router.ToolCallResult {
	if len(requests) == 0 {
		return nil
	}

	workers := h.cfg.WorkerPoolSize
	if workers > len(requests) {
		workers = len(requests)
	}

	jobs := make(chan router.ToolCallRequest, len(requests))
	out := make(chan router.ToolCallResult, len(requests))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				out <- h.dispatchOne(ctx, session, req)
			}
		}()
	}

	for _, req := range requests {
		jobs <- req
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]router.ToolCallResult, 0, len(requests))
	for result := range out {
		results = append(results, result)
	}
	return results
}

func (h *Host) dispatchOne(ctx context.Context, session *connection.Session, req router.ToolCallRequest) router.ToolCallResult {
	dispatchCtx := tracing.WithRequestID(tracing.CloneContext(ctx), req.ID)
	dispatchCtx, cancel := context.WithTimeout(dispatchCtx, h.cfg.DispatchTimeout)
	defer cancel()

	return session.Client().Dispatch(dispatchCtx, req)
}

// retryTransportFailures applies the one-reconnect policy: when any
// result in the batch failed at the transport level, the session is
// re-established once and only the failed requests are re-dispatched.
// A second transport failure in the same batch, or a failed reconnect,
// ends the conversation.
func (h *Host) retryTransportFailures(ctx context.Context, session *connection.Session, requests []router.ToolCallRequest, results []router.ToolCallResult) ([]router.ToolCallResult, error) {
	failed := make(map[string]bool)
	for _, result := range results {
		if !result.Recoverable() {
			failed[result.RequestID] = true
		}
	}
	if len(failed) == 0 {
		return results, nil
	}

	h.logger.Warn().
		Int("failed", len(failed)).
		Msg("Transport failures in dispatch batch, attempting reconnect")

	if err := h.manager.EnsureReady(ctx, session); err != nil {
		return nil, err
	}

	retry := make([]router.ToolCallRequest, 0, len(failed))
	for _, req := range requests {
		if failed[req.ID] {
			retry = append(retry, req)
		}
	}

	retried := h.dispatchAll(ctx, session, retry)
	for _, result := range retried {
		if !result.Recoverable() {
			return nil, fmt.Errorf("%w: dispatch failed after reconnect: %s",
				connection.ErrConnection, result.ErrorMessage)
		}
	}

	merged := make([]router.ToolCallResult, 0, len(results))
	for _, result := range results {
		if !failed[result.RequestID] {
			merged = append(merged, result)
		}
	}
	return append(merged, retried...), nil
}

// toolMessage folds one dispatch result back into the conversation.
// Recoverable failures are surfaced to the model as error payloads so
// it can adjust and retry on its own.
func toolMessage(result router.ToolCallResult) engine.Message {
	content := string(result.Payload)
	if result.Status != router.StatusSuccess {
		content = fmt.Sprintf(`{"error":%q,"status":%q}`, result.ErrorMessage, result.Status)
	}
	return engine.Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: result.RequestID,
		Metadata:   map[string]interface{}{"tool_name": result.ToolName},
	}
}

func (h *Host) abort(answer *Answer, reason, text string, cause error) *Answer {
	answer.Aborted = true
	answer.AbortReason = reason
	answer.Text = text

	event := h.logger.Error()
	if cause != nil {
		event = event.Err(cause)
	}
	event.
		Str("conversation_id", answer.ConversationID).
		Str("reason", reason).
		Int("iterations", answer.Iterations).
		Msg("Conversation aborted")

	h.record(answer.ConversationID, transcript.Event{
		Kind:      transcript.EventAbort,
		Iteration: answer.Iterations,
		Status:    reason,
		Text:      text,
	})
	return answer
}

func (h *Host) record(conversationID string, event transcript.Event) {
	if h.transcripts == nil {
		return
	}
	if err := h.transcripts.Append(conversationID, event); err != nil {
		h.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("Failed to append transcript event")
	}
}
