package runtime

import (
	"time"

	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/types"
)

// Phase is a state of the publish state machine.
type Phase string

// Phases, in the order a successful invocation visits them.
const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseWaiting    Phase = "waiting_for_connection"
	PhaseSending    Phase = "sending"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
	PhaseCanceled   Phase = "canceled"
)

// IsTerminal returns true for phases that end an invocation.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseCanceled
}

// ExecutionResult accumulates the state of one invocation. It is created
// when the invocation starts, mutated while it runs and finalized exactly
// once on exit. It is never reused.
type ExecutionResult struct {
	clock Clock

	invocationID string
	step         string
	kind         message.Kind

	status    types.StepStatus
	messages  []string
	err       error
	phases    []Phase
	bytesSent int

	startedAt time.Time
	elapsed   time.Duration
	outcome   string
	finalized bool
}

func newExecutionResult(clock Clock, invocationID, step string, kind message.Kind) *ExecutionResult {
	return &ExecutionResult{
		clock:        clock,
		invocationID: invocationID,
		step:         step,
		kind:         kind,
		status:       types.StepStatusOK,
		phases:       []Phase{PhaseIdle},
		startedAt:    clock.Now(),
	}
}

// InvocationID returns the unique id of the invocation.
func (r *ExecutionResult) InvocationID() string { return r.invocationID }

// Step returns the step name.
func (r *ExecutionResult) Step() string { return r.step }

// Kind returns the declared message kind.
func (r *ExecutionResult) Kind() message.Kind { return r.kind }

// Status returns the current status.
func (r *ExecutionResult) Status() types.StepStatus { return r.status }

// Messages returns a copy of the diagnostic messages.
func (r *ExecutionResult) Messages() []string {
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Err returns the captured cause, or nil.
func (r *ExecutionResult) Err() error { return r.err }

// Phases returns the phases visited, starting with PhaseIdle.
func (r *ExecutionResult) Phases() []Phase {
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Phase returns the current phase.
func (r *ExecutionResult) Phase() Phase { return r.phases[len(r.phases)-1] }

// BytesSent returns the payload size written, 0 unless the send succeeded.
func (r *ExecutionResult) BytesSent() int { return r.bytesSent }

// StartedAt returns when the invocation started.
func (r *ExecutionResult) StartedAt() time.Time { return r.startedAt }

// Elapsed returns the measured duration. Zero until finalized.
func (r *ExecutionResult) Elapsed() time.Duration { return r.elapsed }

// Outcome returns the human-readable summary. Empty until finalized.
func (r *ExecutionResult) Outcome() string { return r.outcome }

// Finalized reports whether the timer has stopped and the outcome is set.
func (r *ExecutionResult) Finalized() bool { return r.finalized }

// Report returns the serializable view of the result.
func (r *ExecutionResult) Report() types.StepReport {
	report := types.StepReport{
		Type:            types.StepReportType,
		ContractVersion: types.ContractVersion,
		InvocationID:    r.invocationID,
		Step:            r.step,
		MessageKind:     string(r.kind),
		Status:          r.status,
		Messages:        r.Messages(),
		Outcome:         r.outcome,
		StartedAt:       r.startedAt.UTC(),
		ElapsedMs:       r.elapsed.Milliseconds(),
		BytesSent:       r.bytesSent,
	}
	if r.err != nil {
		report.Error = Describe(r.err)
	}
	return report
}

func (r *ExecutionResult) addMessage(msg string) {
	r.messages = append(r.messages, msg)
}

func (r *ExecutionResult) enter(p Phase) {
	if r.Phase().IsTerminal() {
		return
	}
	r.phases = append(r.phases, p)
}

// fail moves OK to FAILED. Any other status is left alone.
func (r *ExecutionResult) fail() {
	if r.status != types.StepStatusOK {
		return
	}
	r.status = types.StepStatusFailed
	r.enter(PhaseFailed)
}

// failWith fails the result and captures err as its cause.
func (r *ExecutionResult) failWith(err error) {
	if r.status != types.StepStatusOK {
		return
	}
	r.err = err
	r.fail()
}

// cancel moves OK to CANCELED.
func (r *ExecutionResult) cancel() {
	if r.status != types.StepStatusOK {
		return
	}
	r.status = types.StepStatusCanceled
	r.enter(PhaseCanceled)
}

func (r *ExecutionResult) succeed(bytesSent int) {
	if r.status != types.StepStatusOK {
		return
	}
	r.bytesSent = bytesSent
	r.enter(PhaseSucceeded)
}

// finalize stops the timer and computes the outcome. Only the first call
// has an effect.
func (r *ExecutionResult) finalize() bool {
	if r.finalized {
		return false
	}
	r.elapsed = r.clock.Now().Sub(r.startedAt)
	if r.status == types.StepStatusOK && !r.Phase().IsTerminal() {
		// Reached only when execution stopped without a transition, which
		// the controller treats as a failure.
		r.status = types.StepStatusFailed
		r.enter(PhaseFailed)
	}
	r.outcome = RenderOutcome(r)
	r.finalized = true
	return true
}
