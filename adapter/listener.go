package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/runtime"
)

// DefaultNotifyTimeout bounds one notification including retries.
const DefaultNotifyTimeout = 30 * time.Second

// Listener publishes a StepCompletedEvent for every finished step.
// Publish failures are logged and never change the step result.
type Listener struct {
	ctx     context.Context
	adapter Adapter
	timeout time.Duration
	logger  *log.Logger
}

var _ runtime.Listener = (*Listener)(nil)

// NewListener wraps a. Notifications are abandoned once ctx is done; a nil
// ctx never abandons them. A zero timeout uses DefaultNotifyTimeout and a
// nil logger discards logs.
func NewListener(ctx context.Context, a Adapter, timeout time.Duration, logger *log.Logger) *Listener {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Listener{ctx: ctx, adapter: a, timeout: timeout, logger: logger}
}

// StepFinished publishes the result's event synchronously.
func (l *Listener) StepFinished(result *runtime.ExecutionResult) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	event := NewStepCompletedEvent(result.Report())
	if err := l.adapter.Publish(ctx, event); err != nil {
		l.logger.Error("failed to publish step completion", map[string]any{
			"invocation_id": event.InvocationID,
			"error":         err.Error(),
		})
		return
	}
	l.logger.Debug("published step completion", map[string]any{
		"invocation_id": event.InvocationID,
		"status":        event.Status,
	})
}
