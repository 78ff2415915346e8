package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/connection"
	"github.com/harun/gitpulse/pkg/engine"
	"github.com/harun/gitpulse/pkg/router"
	"github.com/harun/gitpulse/pkg/transcript"
)

type fakeDecider struct {
	mu        sync.Mutex
	decisions []*engine.Decision
	errs      []error
	calls     int
	seen      [][]engine.Message
}

func (d *fakeDecider) Decide(_ context.Context, messages []engine.Message, _ []engine.ToolSpec, _ string) (*engine.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := make([]engine.Message, len(messages))
	copy(snapshot, messages)
	d.seen = append(d.seen, snapshot)

	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.decisions) {
		return d.decisions[i], nil
	}
	return d.decisions[len(d.decisions)-1], nil
}

type fakeBackend struct {
	mu         sync.Mutex
	pingErr    error
	pingFn     func(n int) error // optional, n is the 1-based ping count
	pings      int
	dispatch   func(req router.ToolCallRequest) router.ToolCallResult
	dispatched []string
	closed     bool
}

func (b *fakeBackend) ListTools(context.Context) ([]catalog.ToolDefinition, error) {
	return []catalog.ToolDefinition{
		{Name: "repo.get_repo_info", Description: "repo info", Domain: catalog.DomainRepo},
	}, nil
}

func (b *fakeBackend) Ping(context.Context) error {
	b.mu.Lock()
	b.pings++
	n := b.pings
	fn := b.pingFn
	err := b.pingErr
	b.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return err
}

func (b *fakeBackend) pingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pings
}

func (b *fakeBackend) Dispatch(_ context.Context, req router.ToolCallRequest) router.ToolCallResult {
	b.mu.Lock()
	b.dispatched = append(b.dispatched, req.ID)
	b.mu.Unlock()
	return b.dispatch(req)
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func newTestHost(decider Decider, backend connection.RouterClient, cfg Config) *Host {
	manager := connection.NewManager(func(context.Context) (connection.RouterClient, error) {
		return backend, nil
	})
	return New(decider, manager, nil, cfg)
}

func toolCalls(names ...string) []engine.ToolCall {
	calls := make([]engine.ToolCall, len(names))
	for i, name := range names {
		calls[i] = engine.ToolCall{
			ID:        fmt.Sprintf("call_%04d", i+1),
			Name:      name,
			Arguments: map[string]interface{}{"owner": "golang", "repo": "go"},
		}
	}
	return calls
}

func successResult(req router.ToolCallRequest) router.ToolCallResult {
	return router.ToolCallResult{
		RequestID: req.ID,
		ToolName:  req.ToolName,
		Status:    router.StatusSuccess,
		Payload:   json.RawMessage(`{"ok":true}`),
	}
}

func TestRun_FinalAnswerWithoutTools(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{FinalAnswer: "The repository looks healthy."},
	}}
	backend := &fakeBackend{}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "how healthy is golang/go?")
	require.NoError(t, err)

	assert.False(t, answer.Aborted)
	assert.Equal(t, "The repository looks healthy.", answer.Text)
	assert.Equal(t, 1, answer.Iterations)
	assert.Equal(t, 0, answer.ToolsInvoked)
	assert.NotEmpty(t, answer.ConversationID)
	assert.True(t, backend.isClosed(), "session must be released after the answer")
}

func TestRun_ResultsFoldedBackInRequestOrder(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info", "issue.list_issues", "pr.list_pull_requests")},
		{FinalAnswer: "done"},
	}}
	// Later requests finish first so completion order is the reverse
	// of request order.
	backend := &fakeBackend{dispatch: func(req router.ToolCallRequest) router.ToolCallResult {
		switch req.ID {
		case "call_0001":
			time.Sleep(30 * time.Millisecond)
		case "call_0002":
			time.Sleep(15 * time.Millisecond)
		}
		return successResult(req)
	}}
	host := newTestHost(decider, backend, Config{WorkerPoolSize: 3})

	answer, err := host.Run(context.Background(), "full report please")
	require.NoError(t, err)
	require.False(t, answer.Aborted)
	assert.Equal(t, 2, answer.Iterations)
	assert.Equal(t, 3, answer.ToolsInvoked)

	require.Len(t, decider.seen, 2)
	second := decider.seen[1]
	// user + assistant + three tool results
	require.Len(t, second, 5)

	var order []string
	for _, msg := range second[2:] {
		require.Equal(t, "tool", msg.Role)
		order = append(order, msg.ToolCallID)
	}
	assert.Equal(t, []string{"call_0001", "call_0002", "call_0003"}, order)
}

func TestRun_IterationLimitAborts(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
	}}
	backend := &fakeBackend{dispatch: successResult}
	host := newTestHost(decider, backend, Config{MaxIterations: 2})

	answer, err := host.Run(context.Background(), "never converges")
	require.NoError(t, err)

	assert.True(t, answer.Aborted)
	assert.Equal(t, AbortIterationLimit, answer.AbortReason)
	assert.Equal(t, 2, answer.Iterations)
	assert.Equal(t, 2, answer.ToolsInvoked)
	assert.NotEmpty(t, answer.Text)
	assert.True(t, backend.isClosed())
}

func TestRun_EngineErrorAborts(t *testing.T) {
	decider := &fakeDecider{errs: []error{errors.New("all provider profiles failed")}}
	backend := &fakeBackend{}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, answer.Aborted)
	assert.Equal(t, AbortEngineError, answer.AbortReason)
	assert.True(t, backend.isClosed())
}

func TestRun_ConnectFailureAborts(t *testing.T) {
	manager := connection.NewManager(func(context.Context) (connection.RouterClient, error) {
		return nil, errors.New("backend unavailable")
	})
	host := New(&fakeDecider{decisions: []*engine.Decision{{FinalAnswer: "x"}}}, manager, nil, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, answer.Aborted)
	assert.Equal(t, AbortConnectionError, answer.AbortReason)
	assert.Equal(t, 0, answer.Iterations)
}

func TestRun_RecoverableErrorFoldedBack(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
		{FinalAnswer: "recovered"},
	}}
	backend := &fakeBackend{dispatch: func(req router.ToolCallRequest) router.ToolCallResult {
		return router.ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       router.StatusDomainError,
			ErrorMessage: "repository not found",
		}
	}}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.False(t, answer.Aborted)
	assert.Equal(t, "recovered", answer.Text)

	require.Len(t, decider.seen, 2)
	last := decider.seen[1][len(decider.seen[1])-1]
	assert.Equal(t, "tool", last.Role)
	assert.Contains(t, last.Content, "domain_error")
	assert.Contains(t, last.Content, "repository not found")
}

func TestRun_TransportErrorRetriedOnceAfterReconnect(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info", "issue.list_issues")},
		{FinalAnswer: "done"},
	}}

	var mu sync.Mutex
	failedOnce := false
	backend := &fakeBackend{}
	backend.dispatch = func(req router.ToolCallRequest) router.ToolCallResult {
		mu.Lock()
		defer mu.Unlock()
		if req.ID == "call_0002" && !failedOnce {
			failedOnce = true
			return router.ToolCallResult{
				RequestID:    req.ID,
				ToolName:     req.ToolName,
				Status:       router.StatusTransportError,
				ErrorMessage: "broken pipe",
			}
		}
		return successResult(req)
	}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.False(t, answer.Aborted)
	assert.Equal(t, "done", answer.Text)
	assert.Equal(t, 2, answer.ToolsInvoked, "only unique requests count after the retry merge")

	// call_0002 dispatched twice: the failed attempt plus the retry.
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Len(t, backend.dispatched, 3)
}

func TestRun_SecondTransportFailureAborts(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
	}}
	backend := &fakeBackend{dispatch: func(req router.ToolCallRequest) router.ToolCallResult {
		return router.ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       router.StatusTransportError,
			ErrorMessage: "connection reset",
		}
	}}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, answer.Aborted)
	assert.Equal(t, AbortConnectionError, answer.AbortReason)
	assert.True(t, backend.isClosed())
}

func TestRun_FailedReconnectAborts(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
	}}

	dials := 0
	backend := &fakeBackend{dispatch: func(req router.ToolCallRequest) router.ToolCallResult {
		return router.ToolCallResult{
			RequestID: req.ID,
			ToolName:  req.ToolName,
			Status:    router.StatusTransportError,
		}
	}}
	manager := connection.NewManager(func(context.Context) (connection.RouterClient, error) {
		dials++
		if dials > 1 {
			return nil, errors.New("backend gone")
		}
		return backend, nil
	})
	host := New(decider, manager, nil, Config{})

	// The initial ping succeeds; the session degrades before the first
	// dispatch turn so EnsureReady has to redial.
	backend.pingFn = func(n int) error {
		if n == 1 {
			return nil
		}
		return errors.New("ping timeout")
	}

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, answer.Aborted)
	assert.Equal(t, AbortConnectionError, answer.AbortReason)
	assert.Equal(t, 2, dials, "exactly one reconnect attempt")
	assert.True(t, backend.isClosed(), "failed session must be torn down")
}

func TestRun_SessionVerifiedBeforeEachDispatchTurn(t *testing.T) {
	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
		{ToolCalls: toolCalls("issue.list_issues")},
		{FinalAnswer: "done"},
	}}
	backend := &fakeBackend{dispatch: successResult}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(context.Background(), "q")
	require.NoError(t, err)
	require.False(t, answer.Aborted)

	// One ping at connect, one before each of the two dispatch turns.
	assert.Equal(t, 3, backend.pingCount())
}

func TestRun_TranscriptRecordsConversation(t *testing.T) {
	store, err := transcript.NewStore(t.TempDir())
	require.NoError(t, err)

	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
		{FinalAnswer: "summary"},
	}}
	backend := &fakeBackend{dispatch: successResult}
	manager := connection.NewManager(func(context.Context) (connection.RouterClient, error) {
		return backend, nil
	})
	host := New(decider, manager, store, Config{})

	answer, err := host.Run(context.Background(), "summarize golang/go")
	require.NoError(t, err)
	require.False(t, answer.Aborted)

	entries, err := store.Load(answer.ConversationID)
	require.NoError(t, err)

	var kinds []transcript.EventKind
	for _, entry := range entries {
		kinds = append(kinds, entry.Event.Kind)
	}
	assert.Equal(t, []transcript.EventKind{
		transcript.EventQuery,
		transcript.EventDecision,
		transcript.EventDispatch,
		transcript.EventDecision,
		transcript.EventAnswer,
	}, kinds)
}

func TestRun_CancellationDiscardsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	decider := &fakeDecider{decisions: []*engine.Decision{
		{ToolCalls: toolCalls("repo.get_repo_info")},
	}}
	backend := &fakeBackend{dispatch: func(req router.ToolCallRequest) router.ToolCallResult {
		cancel()
		time.Sleep(10 * time.Millisecond)
		return successResult(req)
	}}
	host := newTestHost(decider, backend, Config{})

	answer, err := host.Run(ctx, "q")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, answer)
	assert.True(t, backend.isClosed(), "session must be released on cancellation")
}
