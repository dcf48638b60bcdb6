// Package types defines core domain types shared across courier packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import "time"

// StepStatus is the terminal status of a publish step invocation.
type StepStatus string

// Step status constants. A result starts as OK and moves at most once to
// FAILED or CANCELED.
const (
	StepStatusOK       StepStatus = "OK"
	StepStatusFailed   StepStatus = "FAILED"
	StepStatusCanceled StepStatus = "CANCELED"
)

// IsTerminalFailure returns true for statuses that end an invocation early.
func (s StepStatus) IsTerminalFailure() bool {
	return s == StepStatusFailed || s == StepStatusCanceled
}

// StepReportType is the type discriminant for step report frames.
const StepReportType = "step_report"

// StepReport is the immutable, serializable view of a finished invocation.
// It is what leaves the process: rendered by the CLI, framed over IPC and
// published by adapters.
type StepReport struct {
	// Type is always "step_report".
	Type string `msgpack:"type" json:"type" yaml:"type"`
	// ContractVersion is the report contract version.
	ContractVersion string `msgpack:"contract_version" json:"contract_version" yaml:"contract_version"`
	// InvocationID uniquely identifies the invocation.
	InvocationID string `msgpack:"invocation_id" json:"invocation_id" yaml:"invocation_id"`
	// Step is the step name.
	Step string `msgpack:"step" json:"step" yaml:"step"`
	// MessageKind is the declared message kind name.
	MessageKind string `msgpack:"message_kind" json:"message_kind" yaml:"message_kind"`
	// Status is the terminal status.
	Status StepStatus `msgpack:"status" json:"status" yaml:"status"`
	// Messages are the ordered diagnostic messages.
	Messages []string `msgpack:"messages,omitempty" json:"messages,omitempty" yaml:"messages,omitempty"`
	// Error is the captured cause description, if any.
	Error string `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	// Outcome is the human-readable summary.
	Outcome string `msgpack:"outcome" json:"outcome" yaml:"outcome"`
	// StartedAt is the invocation start time in UTC.
	StartedAt time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
	// ElapsedMs is the measured duration in milliseconds.
	ElapsedMs int64 `msgpack:"elapsed_ms" json:"elapsed_ms" yaml:"elapsed_ms"`
	// BytesSent is the payload size written to the connection (0 unless OK).
	BytesSent int `msgpack:"bytes_sent" json:"bytes_sent" yaml:"bytes_sent"`
}
