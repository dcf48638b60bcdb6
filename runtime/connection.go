package runtime

import (
	"context"

	"github.com/pithecene-io/courier/message"
)

// Connection is the publishing side of an established bidirectional
// connection. Its lifecycle is owned elsewhere; the runtime only reads
// readiness and writes through it.
type Connection interface {
	// Ready reports whether the connection can accept a message now.
	Ready() bool
	// Err returns the error that faulted the connection, or nil.
	Err() error
	// Send writes msg, honoring ctx cancellation and deadline.
	Send(ctx context.Context, msg message.Message) error
}

// ConnectionSource resolves the connection a step publishes through.
type ConnectionSource interface {
	Connection(ctx context.Context) (Connection, error)
}

// ConnectionFunc adapts a function to ConnectionSource.
type ConnectionFunc func(ctx context.Context) (Connection, error)

// Connection calls f.
func (f ConnectionFunc) Connection(ctx context.Context) (Connection, error) {
	return f(ctx)
}

// StaticConnection returns a source that always yields conn.
func StaticConnection(conn Connection) ConnectionSource {
	return ConnectionFunc(func(context.Context) (Connection, error) {
		return conn, nil
	})
}
