package runtime

import (
	"context"
	"errors"

	"github.com/pithecene-io/courier/message"
)

// SendResult is the outcome of a bounded send.
type SendResult int

const (
	// SendSent means the transport accepted the message.
	SendSent SendResult = iota
	// SendTimedOut means the deadline passed before the write finished.
	SendTimedOut
	// SendCanceled means the token was set before the write or aborted it.
	SendCanceled
	// SendFailed means the transport rejected the write.
	SendFailed
)

func (r SendResult) String() string {
	switch r {
	case SendSent:
		return "sent"
	case SendTimedOut:
		return "timed_out"
	case SendCanceled:
		return "canceled"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Publisher performs one bounded, cancellable write. It never retries.
type Publisher struct{}

// Send writes msg through conn. The write is bounded by deadline and
// aborted when token is set. Transport failures return a *SendError.
func (p *Publisher) Send(ctx context.Context, conn Connection, msg message.Message, token *CancellationToken, deadline Deadline) (SendResult, error) {
	if token.Canceled() {
		return SendCanceled, nil
	}
	if deadline.Expired() {
		return SendTimedOut, nil
	}

	sendCtx, cancel := deadline.Context(ctx)
	defer cancel()

	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-sendCtx.Done():
		}
	}()

	// A completed write is sent even if the token was set meanwhile; the
	// token and ctx only classify failed writes.
	err := conn.Send(sendCtx, msg)
	if err == nil {
		return SendSent, nil
	}

	switch {
	case token.Canceled():
		return SendCanceled, nil
	case errors.Is(sendCtx.Err(), context.DeadlineExceeded):
		return SendTimedOut, nil
	case ctx.Err() != nil:
		return SendCanceled, nil
	}
	return SendFailed, &SendError{Err: err}
}
