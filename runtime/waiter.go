package runtime

import "time"

// DefaultPollInterval is how often readiness is polled while waiting.
const DefaultPollInterval = 20 * time.Millisecond

// WaitResult is the outcome of waiting for a connection.
type WaitResult int

const (
	// WaitReady means the connection can accept a message.
	WaitReady WaitResult = iota
	// WaitTimedOut means the deadline passed first.
	WaitTimedOut
	// WaitCanceled means the cancellation token was set.
	WaitCanceled
	// WaitFaulted means the connection reported an error.
	WaitFaulted
)

func (r WaitResult) String() string {
	switch r {
	case WaitReady:
		return "ready"
	case WaitTimedOut:
		return "timed_out"
	case WaitCanceled:
		return "canceled"
	case WaitFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Waiter polls a connection until it is ready to send.
type Waiter struct {
	// PollInterval is the sleep between readiness checks.
	// Zero uses DefaultPollInterval.
	PollInterval time.Duration
}

// WaitUntilReady blocks until conn is ready, the deadline passes, the token
// is set, or the connection faults. A token set before the call returns
// WaitCanceled without checking readiness. The returned error is only set
// for WaitFaulted.
func (w *Waiter) WaitUntilReady(conn Connection, token *CancellationToken, deadline Deadline) (WaitResult, error) {
	interval := DefaultPollInterval
	if w != nil && w.PollInterval > 0 {
		interval = w.PollInterval
	}

	for {
		if token.Canceled() {
			return WaitCanceled, nil
		}
		if conn.Ready() {
			return WaitReady, nil
		}
		if err := conn.Err(); err != nil {
			return WaitFaulted, err
		}
		if deadline.Expired() {
			return WaitTimedOut, nil
		}

		sleep := min(interval, deadline.Remaining())
		if sleep <= 0 {
			sleep = time.Millisecond
		}
		timer := time.NewTimer(sleep)
		select {
		case <-token.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
