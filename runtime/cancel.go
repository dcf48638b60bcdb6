package runtime

import (
	"sync"
	"sync/atomic"
)

// CancellationToken is a one-way signal requesting early abort of an
// in-progress publish. It is safe to set from any goroutine and is never
// cleared once set. The zero value is an unset token.
type CancellationToken struct {
	canceled   atomic.Bool
	initOnce   sync.Once
	cancelOnce sync.Once
	done       chan struct{}
}

// NewCancellationToken returns an unset token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel sets the token. Repeated calls are no-ops.
func (t *CancellationToken) Cancel() {
	t.init()
	t.cancelOnce.Do(func() {
		t.canceled.Store(true)
		close(t.done)
	})
}

// Canceled reports whether the token has been set. A nil token is never set.
func (t *CancellationToken) Canceled() bool {
	if t == nil {
		return false
	}
	return t.canceled.Load()
}

// Done returns a channel closed when the token is set.
// A nil token returns a nil channel, which never fires.
func (t *CancellationToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	t.init()
	return t.done
}

func (t *CancellationToken) init() {
	t.initOnce.Do(func() { t.done = make(chan struct{}) })
}
