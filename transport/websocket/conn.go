// Package websocket provides a WebSocket connection a publish step can send
// through. Dial returns immediately; the handshake runs in the background
// and the connection reports readiness and faults while it runs.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/runtime"
)

// DefaultHandshakeTimeout bounds the opening handshake.
const DefaultHandshakeTimeout = 45 * time.Second

// ErrClosed is reported once the connection has been closed locally.
var ErrClosed = errors.New("connection is closed")

// ErrNotConnected is returned by Send before the handshake completes.
var ErrNotConnected = errors.New("connection is not established")

// DialError is a failed opening handshake.
type DialError struct {
	URL string
	// StatusCode is the HTTP status of a rejected upgrade, 0 if none.
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unable to connect to %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("unable to connect to %s: %v", e.URL, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Options configures a connection.
type Options struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Header is sent with the opening handshake.
	Header http.Header
	// HandshakeTimeout bounds the handshake. Zero uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
	// OnMessage receives messages sent by the server. Nil discards them.
	OnMessage func(msg message.Message)
	// Logger receives connection lifecycle logs. Nil discards them.
	Logger *log.Logger
}

// Conn is a client WebSocket connection. It implements runtime.Connection
// and runtime.ConnectionSource.
type Conn struct {
	opts   Options
	logger *log.Logger

	mu     sync.RWMutex
	ws     *websocket.Conn
	err    error
	closed bool

	writeMu   sync.Mutex
	cancel    context.CancelFunc
	connected chan struct{}
	done      chan struct{}
}

var (
	_ runtime.Connection       = (*Conn)(nil)
	_ runtime.ConnectionSource = (*Conn)(nil)
)

// Dial starts connecting to opts.URL in the background and returns at once.
// Canceling ctx aborts a handshake still in progress.
func Dial(ctx context.Context, opts Options) *Conn {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		opts:      opts,
		logger:    logger,
		cancel:    cancel,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.dial(ctx)
	return c
}

func (c *Conn) dial(ctx context.Context) {
	defer close(c.connected)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		dialErr := &DialError{URL: c.opts.URL, Err: err}
		if resp != nil {
			dialErr.StatusCode = resp.StatusCode
		}
		c.logger.Warn("websocket handshake failed", map[string]any{
			"url":         c.opts.URL,
			"status_code": dialErr.StatusCode,
			"error":       err.Error(),
		})
		c.setErr(dialErr)
		close(c.done)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		close(c.done)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.logger.Info("websocket connected", map[string]any{"url": c.opts.URL})
	go c.readLoop(ws)
}

// readLoop drains server messages so control frames are processed, and
// records the error that ends the connection.
func (c *Conn) readLoop(ws *websocket.Conn) {
	defer close(c.done)
	for {
		typ, r, err := ws.NextReader()
		if err != nil {
			c.setErr(fmt.Errorf("connection lost: %w", err))
			return
		}
		if c.opts.OnMessage == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			c.setErr(fmt.Errorf("connection lost: %w", err))
			return
		}
		if typ == websocket.TextMessage {
			c.opts.OnMessage(message.NewText(string(data)))
		} else {
			c.opts.OnMessage(message.NewBinary(data))
		}
	}
}

// setErr records the first fault. Faults after a local close are ignored.
func (c *Conn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && !c.closed {
		c.err = err
	}
}

// Connection returns c. It lets a Conn serve as a runtime.ConnectionSource.
func (c *Conn) Connection(context.Context) (runtime.Connection, error) {
	return c, nil
}

// Connected is closed when the handshake finishes, successfully or not.
func (c *Conn) Connected() <-chan struct{} {
	return c.connected
}

// Ready reports whether the handshake completed and the connection is usable.
func (c *Conn) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ws != nil && c.err == nil && !c.closed
}

// Err returns the fault that made the connection unusable, or nil.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.err
}

// Send writes msg as one text or binary frame. The write is bounded by the
// ctx deadline and abandoned when ctx is canceled. Writes are serialized.
func (c *Conn) Send(ctx context.Context, msg message.Message) error {
	c.mu.RLock()
	ws, err, closed := c.ws, c.err, c.closed
	c.mu.RUnlock()
	switch {
	case closed:
		return ErrClosed
	case err != nil:
		return err
	case ws == nil:
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	typ := websocket.TextMessage
	if msg.Frame() == message.FrameBinary {
		typ = websocket.BinaryMessage
	}

	// gorilla re-applies its stored write deadline per frame, so a deadline
	// set on the socket from here can be overwritten. Ending ctx mid-write
	// closes the socket instead; a partial frame leaves it unusable anyway.
	stop := context.AfterFunc(ctx, func() {
		c.setErr(fmt.Errorf("connection lost: write abandoned: %w", context.Cause(ctx)))
		_ = ws.UnderlyingConn().Close()
	})
	err = ws.WriteMessage(typ, msg.Payload())
	stop()
	if err != nil {
		c.setErr(fmt.Errorf("connection lost: %w", err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Close sends a close frame, closes the connection and waits for the
// background goroutines to exit.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		<-c.done
		return nil
	}

	c.writeMu.Lock()
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	err := ws.Close()
	<-c.done
	return err
}
