package runtime

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/types"
)

func finishedResult(status types.StepStatus, messages []string, err error, elapsed time.Duration) *ExecutionResult {
	clock := newManualClock()
	r := newExecutionResult(clock, "inv", "step", message.KindText)
	for _, m := range messages {
		r.addMessage(m)
	}
	switch status {
	case types.StepStatusFailed:
		if err != nil {
			r.failWith(err)
		} else {
			r.fail()
		}
	case types.StepStatusCanceled:
		r.cancel()
	default:
		r.succeed(0)
	}
	clock.Advance(elapsed)
	r.finalize()
	return r
}

func TestRenderOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result *ExecutionResult
		want   string
	}{
		{
			name:   "canceled",
			result: finishedResult(types.StepStatusCanceled, []string{DiagCanceled}, nil, time.Second),
			want:   "CANCELED",
		},
		{
			name:   "failed with diagnostics",
			result: finishedResult(types.StepStatusFailed, []string{"first.", "second."}, nil, 0),
			want:   "Unable to publish the message (first. second.)",
		},
		{
			name:   "failed with cause",
			result: finishedResult(types.StepStatusFailed, []string{"ignored"}, errors.New("socket closed"), 0),
			want:   "Error during message publishing: socket closed",
		},
		{
			name:   "succeeded",
			result: finishedResult(types.StepStatusOK, nil, nil, 1234*time.Millisecond),
			want:   "The message has been published within 1234 ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Outcome())
			assert.Equal(t, tt.want, RenderOutcome(tt.result))
			assert.Equal(t, RenderOutcome(tt.result), RenderOutcome(tt.result))
		})
	}
}

func TestExecutionResult_StatusOnlyMovesForward(t *testing.T) {
	r := newExecutionResult(newManualClock(), "inv", "step", message.KindText)
	r.cancel()
	r.fail()
	r.failWith(errors.New("late"))
	r.succeed(10)

	assert.Equal(t, types.StepStatusCanceled, r.Status())
	assert.Nil(t, r.Err())
	assert.Zero(t, r.BytesSent())
	assert.Equal(t, []Phase{PhaseIdle, PhaseCanceled}, r.Phases())
}

func TestExecutionResult_FinalizeOnce(t *testing.T) {
	clock := newManualClock()
	r := newExecutionResult(clock, "inv", "step", message.KindText)
	r.succeed(1)
	clock.Advance(5 * time.Millisecond)
	assert.True(t, r.finalize())

	clock.Advance(time.Hour)
	assert.False(t, r.finalize())
	assert.Equal(t, 5*time.Millisecond, r.Elapsed())
	assert.Equal(t, "The message has been published within 5 ms", r.Outcome())
}

func TestExecutionResult_MessagesAreCopied(t *testing.T) {
	r := newExecutionResult(newManualClock(), "inv", "step", message.KindText)
	r.addMessage("a")
	msgs := r.Messages()
	msgs[0] = "mutated"
	assert.Equal(t, []string{"a"}, r.Messages())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
	assert.Equal(t, "*runtime.emptyErr", Describe(&emptyErr{}))
	assert.Equal(t, "unable to send the message: broken pipe",
		Describe(&SendError{Err: errors.New("broken pipe")}))
	assert.Equal(t, "port closed",
		Describe(&silentWrapper{err: fmt.Errorf("dial: %w", errors.New("port closed"))}))
	assert.Equal(t, "*runtime.silentWrapper", Describe(&silentWrapper{err: &emptyErr{}}))
}

type emptyErr struct{}

func (*emptyErr) Error() string { return "" }

// silentWrapper wraps err without a message of its own.
type silentWrapper struct{ err error }

func (*silentWrapper) Error() string   { return "" }
func (w *silentWrapper) Unwrap() error { return w.err }
