// Package adapter publishes step completion notifications to downstream
// systems. Concrete adapters live in subpackages; NewListener bridges any
// adapter to the controller's result listeners.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/courier/types"
)

// EventTypeStepCompleted is the event type of every published event.
const EventTypeStepCompleted = "step_completed"

// StepCompletedEvent is the payload published when a publish step finishes.
type StepCompletedEvent struct {
	ContractVersion string   `json:"contract_version"`
	EventType       string   `json:"event_type"` // always "step_completed"
	InvocationID    string   `json:"invocation_id"`
	Step            string   `json:"step"`
	MessageKind     string   `json:"message_kind"`
	Status          string   `json:"status"` // OK, FAILED or CANCELED
	Outcome         string   `json:"outcome"`
	Error           string   `json:"error,omitempty"`
	Messages        []string `json:"messages,omitempty"`
	Timestamp       string   `json:"timestamp"` // RFC 3339, when the step started
	DurationMs      int64    `json:"duration_ms"`
	BytesSent       int      `json:"bytes_sent"`
}

// NewStepCompletedEvent builds the event for a finished step.
func NewStepCompletedEvent(report types.StepReport) *StepCompletedEvent {
	return &StepCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeStepCompleted,
		InvocationID:    report.InvocationID,
		Step:            report.Step,
		MessageKind:     report.MessageKind,
		Status:          string(report.Status),
		Outcome:         report.Outcome,
		Error:           report.Error,
		Messages:        report.Messages,
		Timestamp:       report.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:      report.ElapsedMs,
		BytesSent:       report.BytesSent,
	}
}

// Adapter publishes step completion events to a downstream system.
type Adapter interface {
	// Publish sends an event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *StepCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
