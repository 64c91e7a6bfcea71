package transport

import (
	"context"
	"net"
)

// Listener abstracts how a server obtains a net.Listener.
// The ingest server only depends on this, so tests can hand it a listener
// that fails on demand.
type Listener interface {
	Listen(ctx context.Context) (net.Listener, error)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context) (net.Listener, error)

func (f ListenerFunc) Listen(ctx context.Context) (net.Listener, error) { return f(ctx) }
