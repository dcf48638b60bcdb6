package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/courier/message"
)

// manualClock is a Clock advanced explicitly by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeConn is a scriptable Connection.
type fakeConn struct {
	readyAfter  time.Time // zero means ready immediately
	neverReady  bool
	fault       error
	readyChecks atomic.Int32
	sendFn      func(ctx context.Context, msg message.Message) error

	mu   sync.Mutex
	sent []message.Message
}

func (c *fakeConn) Ready() bool {
	c.readyChecks.Add(1)
	if c.neverReady {
		return false
	}
	return c.readyAfter.IsZero() || !time.Now().Before(c.readyAfter)
}

func (c *fakeConn) Err() error { return c.fault }

func (c *fakeConn) Send(ctx context.Context, msg message.Message) error {
	if c.sendFn != nil {
		if err := c.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Sent() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// blockingSend blocks until ctx is done and returns its error.
func blockingSend(ctx context.Context, _ message.Message) error {
	<-ctx.Done()
	return ctx.Err()
}
