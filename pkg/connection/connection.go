// Package connection owns the logical channel between the host and the
// router: session state, liveness checks, and the single-reconnect
// recovery policy. State transitions happen here and nowhere else.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harun/gitpulse/internal/observability"
	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/router"
)

// ErrConnection indicates the channel to the router could not be
// established or recovered. It is fatal for the current conversation.
var ErrConnection = errors.New("connection error")

// State is the liveness state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateDegraded     State = "degraded"
)

// RouterClient is the channel abstraction the manager supervises. The
// in-process implementation wraps the router directly; a remote one
// would speak a wire protocol. The manager does not care which.
type RouterClient interface {
	ListTools(ctx context.Context) ([]catalog.ToolDefinition, error)
	Ping(ctx context.Context) error
	Dispatch(ctx context.Context, req router.ToolCallRequest) router.ToolCallResult
	Close() error
}

// Dialer creates a fresh RouterClient. Reconnects dial a new client
// rather than reviving the failed one.
type Dialer func(ctx context.Context) (RouterClient, error)

// Session is the connection handle the manager hands out. Its state is
// written only by the manager.
type Session struct {
	mu     sync.RWMutex
	client RouterClient
	state  State
}

// State returns the session's current liveness state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Client returns the underlying router client.
func (s *Session) Client() RouterClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Session) set(state State, client RouterClient) {
	s.mu.Lock()
	s.state = state
	if client != nil {
		s.client = client
	}
	s.mu.Unlock()
}

// Manager owns session lifecycles.
type Manager struct {
	dial   Dialer
	logger zerolog.Logger
}

// NewManager creates a connection manager around a dialer.
func NewManager(dial Dialer) *Manager {
	return &Manager{
		dial:   dial,
		logger: log.With().Str("component", "connection").Logger(),
	}
}

// Connect establishes a session and verifies it with a ping. A failure
// here is startup-fatal: there is no session to degrade yet.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	session := &Session{state: StateConnecting}

	client, err := m.dial(ctx)
	if err != nil {
		session.set(StateDisconnected, nil)
		return nil, fmt.Errorf("%w: dial failed: %v", ErrConnection, err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		session.set(StateDisconnected, nil)
		return nil, fmt.Errorf("%w: initial ping failed: %v", ErrConnection, err)
	}

	session.set(StateReady, client)
	observability.RecordConnectionAudit(ctx, "connect", "ready")
	m.logger.Info().Msg("Session established")
	return session, nil
}

// EnsureReady verifies the session is live before a dispatch round.
// On ping failure the session degrades and exactly one reconnect is
// attempted; if that also fails the session is torn down and the
// conversation must abort with ErrConnection.
func (m *Manager) EnsureReady(ctx context.Context, session *Session) error {
	if session.State() == StateDisconnected {
		return fmt.Errorf("%w: session is closed", ErrConnection)
	}

	if err := session.Client().Ping(ctx); err == nil {
		session.set(StateReady, nil)
		return nil
	}

	m.logger.Warn().Msg("Ping failed, attempting reconnect")
	session.set(StateDegraded, nil)
	observability.RecordReconnect()
	observability.RecordConnectionAudit(ctx, "reconnect", "degraded")

	old := session.Client()
	session.set(StateConnecting, nil)

	client, err := m.dial(ctx)
	if err == nil {
		err = client.Ping(ctx)
		if err != nil {
			_ = client.Close()
		}
	}
	if err != nil {
		_ = old.Close()
		session.set(StateDisconnected, nil)
		observability.RecordConnectionAudit(ctx, "reconnect", "failed")
		return fmt.Errorf("%w: reconnect failed: %v", ErrConnection, err)
	}

	_ = old.Close()
	session.set(StateReady, client)
	observability.RecordConnectionAudit(ctx, "reconnect", "ready")
	m.logger.Info().Msg("Session recovered")
	return nil
}

// Close releases the session. It is safe to call on every exit path;
// closing a closed session is a no-op.
func (m *Manager) Close(session *Session) error {
	if session == nil || session.State() == StateDisconnected {
		return nil
	}

	client := session.Client()
	session.set(StateDisconnected, nil)

	var err error
	if client != nil {
		err = client.Close()
	}
	observability.RecordConnectionAudit(context.Background(), "close", "disconnected")
	m.logger.Info().Msg("Session released")
	return err
}
