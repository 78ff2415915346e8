package connection

import (
	"context"

	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/router"
)

// InProcess adapts a router into a RouterClient without any wire
// protocol in between.
type InProcess struct {
	router *router.Router
}

// NewInProcess wraps a router as an in-process client.
func NewInProcess(r *router.Router) *InProcess {
	return &InProcess{router: r}
}

// InProcessDialer returns a Dialer that hands out in-process clients
// for the given router.
func InProcessDialer(r *router.Router) Dialer {
	return func(_ context.Context) (RouterClient, error) {
		return NewInProcess(r), nil
	}
}

// ListTools returns the catalog's qualified tool definitions.
func (c *InProcess) ListTools(_ context.Context) ([]catalog.ToolDefinition, error) {
	return c.router.Catalog().Definitions(), nil
}

// Ping reports liveness; in-process the router is always reachable
// unless the context is already dead.
func (c *InProcess) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Dispatch forwards to the router.
func (c *InProcess) Dispatch(ctx context.Context, req router.ToolCallRequest) router.ToolCallResult {
	return c.router.Dispatch(ctx, req)
}

// Close releases nothing; the router is owned by the caller.
func (c *InProcess) Close() error {
	return nil
}
