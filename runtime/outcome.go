package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/courier/types"
)

// Outcome strings and prefixes.
const (
	OutcomeCanceled      = "CANCELED"
	outcomeUnableFormat  = "Unable to publish the message (%s)"
	outcomeErrorPrefix   = "Error during message publishing: "
	outcomeSuccessFormat = "The message has been published within %d ms"
)

// RenderOutcome derives the human-readable summary of a result. It depends
// only on the result's status, diagnostics, cause and elapsed time, so
// rendering the same finished result twice yields the same string.
//
// Mapping:
//   - CANCELED: "CANCELED"
//   - FAILED without cause: "Unable to publish the message (<diagnostics>)"
//   - FAILED with cause: "Error during message publishing: <cause>"
//   - otherwise: "The message has been published within <n> ms"
func RenderOutcome(r *ExecutionResult) string {
	switch r.status {
	case types.StepStatusCanceled:
		return OutcomeCanceled
	case types.StepStatusFailed:
		if r.err == nil {
			return fmt.Sprintf(outcomeUnableFormat, strings.Join(r.messages, " "))
		}
		return outcomeErrorPrefix + Describe(r.err)
	default:
		return fmt.Sprintf(outcomeSuccessFormat, r.elapsed.Milliseconds())
	}
}

// Describe returns the user-facing description of err: its message, which
// for wrapping errors includes the cause. An empty message falls back to the
// innermost non-empty message in the chain, then to the type name.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	var inner string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		if msg := e.Error(); msg != "" {
			inner = msg
		}
	}
	if inner != "" {
		return inner
	}
	return fmt.Sprintf("%T", err)
}
