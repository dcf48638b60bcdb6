// Package step implements the publish step: its configurable state, the
// named properties and persisted settings a host reads and writes, and
// execution through a runtime.Controller.
package step

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/runtime"
	"github.com/pithecene-io/courier/types"
)

// Property names exposed to hosts.
const (
	PropertyMessageType = "MessageType"
	PropertyMessage     = "Message"
	PropertyTimeout     = "Timeout"
)

// ErrNegativeTimeout is returned by SetTimeout for negative values.
var ErrNegativeTimeout = errors.New("timeout must not be negative")

// UnknownPropertyError is returned when a property name is not recognized.
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %q", e.Name)
}

// PublishStep is the configured state of one publish step.
// It is safe for concurrent use; each Execute call snapshots the state.
type PublishStep struct {
	mu            sync.RWMutex
	name          string
	kind          message.Kind
	message       string
	timeoutMillis int
}

// New creates a step with the default kind, an empty message and no timeout.
func New(name string) *PublishStep {
	return &PublishStep{name: name, kind: message.DefaultKind}
}

// Name returns the step name.
func (s *PublishStep) Name() string { return s.name }

// Kind returns the selected message kind.
func (s *PublishStep) Kind() message.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// SetMessageKind selects kind. Unknown kinds are ignored. Selecting a
// numeric kind while the message does not parse as that kind resets the
// message to "0"; other kinds never alter the message.
func (s *PublishStep) SetMessageKind(kind message.Kind) bool {
	if !kind.Known() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	s.message = message.Coerce(kind, s.message)
	return true
}

// Message returns the raw, unexpanded message text.
func (s *PublishStep) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// SetMessage assigns the message text. While a numeric kind is selected,
// text that does not parse as that kind is ignored and false is returned.
func (s *PublishStep) SetMessage(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !message.Accepts(s.kind, raw) {
		return false
	}
	s.message = raw
	return true
}

// Timeout returns the timeout in milliseconds. 0 means no deadline.
func (s *PublishStep) Timeout() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeoutMillis
}

// SetTimeout sets the timeout in milliseconds.
func (s *PublishStep) SetTimeout(ms int) error {
	if ms < 0 {
		return ErrNegativeTimeout
	}
	s.mu.Lock()
	s.timeoutMillis = ms
	s.mu.Unlock()
	return nil
}

// PropertyNames returns the names accepted by Property and SetProperty.
func PropertyNames() []string {
	return []string{PropertyMessageType, PropertyMessage, PropertyTimeout}
}

// Property returns a property value as text.
func (s *PublishStep) Property(name string) (string, error) {
	switch name {
	case PropertyMessageType:
		return string(s.Kind()), nil
	case PropertyMessage:
		return s.Message(), nil
	case PropertyTimeout:
		return strconv.Itoa(s.Timeout()), nil
	default:
		return "", &UnknownPropertyError{Name: name}
	}
}

// SetProperty assigns a property from text. Values the property cannot
// hold (an unknown kind name, non-integer or negative timeout, text
// rejected by the numeric guard) are ignored.
func (s *PublishStep) SetProperty(name, value string) error {
	switch name {
	case PropertyMessageType:
		if kind, ok := message.ParseKind(value); ok {
			s.SetMessageKind(kind)
		}
	case PropertyMessage:
		s.SetMessage(value)
	case PropertyTimeout:
		if ms, err := strconv.Atoi(value); err == nil {
			_ = s.SetTimeout(ms)
		}
	default:
		return &UnknownPropertyError{Name: name}
	}
	return nil
}

// ReadSettings loads persisted state. An unknown or missing kind name falls
// back to the default kind. The message is restored verbatim, bypassing the
// numeric guard. A negative timeout is stored as 0.
func (s *PublishStep) ReadSettings(settings types.StepSettings) {
	kind, ok := message.ParseKind(settings.MessageKind)
	if !ok {
		kind = message.DefaultKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	s.message = settings.Message
	s.timeoutMillis = max(settings.TimeoutMillis, 0)
}

// WriteSettings returns the persisted state.
func (s *PublishStep) WriteSettings() types.StepSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.StepSettings{
		MessageKind:   string(s.kind),
		Message:       s.message,
		TimeoutMillis: s.timeoutMillis,
	}
}

// Env is what the surrounding run supplies to an execution.
type Env struct {
	// Connections resolves the connection to publish through.
	Connections runtime.ConnectionSource
	// Project resolves BinaryFile references.
	Project message.Project
	// Expander expands placeholders in the message. Nil leaves it unchanged.
	Expander *Expander
	// Token requests early abort.
	Token *runtime.CancellationToken
}

// Invocation snapshots the step into a runtime invocation.
func (s *PublishStep) Invocation(env Env) runtime.Invocation {
	settings := s.WriteSettings()
	inv := runtime.Invocation{
		Step:          s.name,
		Kind:          message.Kind(settings.MessageKind),
		Message:       settings.Message,
		TimeoutMillis: settings.TimeoutMillis,
		Project:       env.Project,
		Connections:   env.Connections,
		Token:         env.Token,
	}
	if env.Expander != nil {
		inv.Expand = env.Expander.Expand
	}
	return inv
}

// Execute publishes the step's message through controller.
func (s *PublishStep) Execute(ctx context.Context, controller *runtime.Controller, env Env) *runtime.ExecutionResult {
	return controller.Run(ctx, s.Invocation(env))
}
