package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/types"
)

// Diagnostics recorded by the controller.
const (
	DiagNoConnection    = "No connection is available for publishing."
	DiagNegativeTimeout = "The timeout must not be negative."
	DiagConnectTimeout  = "Unable to connect to the server due to timeout."
	DiagSendTimeout     = "Unable to send the message due to timeout."
	DiagCanceled        = "The publishing was canceled."
)

// Invocation is everything one publish needs.
type Invocation struct {
	// Step is the step name used in logs and reports.
	Step string
	// Kind is the declared message kind.
	Kind message.Kind
	// Message is the raw, unexpanded message text.
	Message string
	// TimeoutMillis bounds wait and send. 0 means no deadline.
	TimeoutMillis int
	// Expand applies property expansion to Message. Nil leaves it unchanged.
	Expand func(string) string
	// Project resolves BinaryFile references.
	Project message.Project
	// Connections resolves the connection to publish through.
	Connections ConnectionSource
	// Token requests early abort. Nil means the invocation cannot be canceled
	// other than through the context passed to Run.
	Token *CancellationToken
}

// Listener is notified once with each finalized result.
type Listener interface {
	StepFinished(result *ExecutionResult)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(result *ExecutionResult)

// StepFinished calls f.
func (f ListenerFunc) StepFinished(result *ExecutionResult) { f(result) }

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Logger receives phase and outcome logs. Nil discards them.
	Logger *log.Logger
	// Clock is the time source. Nil uses SystemClock.
	Clock Clock
	// PollInterval is the readiness poll interval. Zero uses DefaultPollInterval.
	PollInterval time.Duration
	// Listeners are notified after every invocation.
	Listeners []Listener
	// NewID generates invocation ids. Nil uses random UUIDs.
	NewID func() string
}

// Controller orchestrates validation, connection wait and send for one
// publish step, and always produces a finalized result.
type Controller struct {
	logger    *log.Logger
	clock     Clock
	waiter    *Waiter
	publisher *Publisher
	listeners []Listener
	newID     func() string
}

// NewController creates a controller.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		waiter:    &Waiter{PollInterval: cfg.PollInterval},
		publisher: &Publisher{},
		listeners: cfg.Listeners,
		newID:     cfg.NewID,
	}
	if c.logger == nil {
		c.logger = log.NewNop()
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// AddListener registers a listener for subsequent invocations.
func (c *Controller) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Run executes one publish and returns its finalized result. It never
// panics and never returns nil: unexpected failures are captured on the
// result. Canceling ctx has the same effect as setting the token.
func (c *Controller) Run(ctx context.Context, inv Invocation) (result *ExecutionResult) {
	result = newExecutionResult(c.clock, c.newID(), inv.Step, inv.Kind)
	logger := c.logger.WithInvocation(result.InvocationID())

	defer c.finish(logger, result)
	defer func() {
		if v := recover(); v != nil {
			if result.Status() == types.StepStatusCanceled {
				logger.Warn("panic after cancellation", map[string]any{"panic": fmt.Sprint(v)})
				return
			}
			result.failWith(&UnexpectedError{Value: v, Stack: debug.Stack()})
		}
	}()

	token := inv.Token
	if token == nil {
		token = NewCancellationToken()
	}
	stop := context.AfterFunc(ctx, token.Cancel)
	defer stop()

	c.execute(ctx, logger, inv, token, result)
	return result
}

func (c *Controller) execute(ctx context.Context, logger *log.Logger, inv Invocation, token *CancellationToken, result *ExecutionResult) {
	c.transition(logger, result, PhaseValidating)

	if inv.Connections == nil {
		result.addMessage(DiagNoConnection)
		result.fail()
		return
	}
	conn, err := inv.Connections.Connection(ctx)
	if err != nil {
		result.addMessage(fmt.Sprintf("Unable to obtain a connection: %s", Describe(err)))
		result.fail()
		return
	}
	if conn == nil {
		result.addMessage(DiagNoConnection)
		result.fail()
		return
	}

	raw := inv.Message
	if inv.Expand != nil {
		raw = inv.Expand(raw)
	}

	defects := message.Validate(inv.Kind, raw)
	if inv.TimeoutMillis < 0 {
		defects = append(defects, DiagNegativeTimeout)
	}
	if len(defects) > 0 {
		for _, d := range defects {
			result.addMessage(d)
		}
		result.fail()
		return
	}

	deadline := StartDeadline(c.clock, inv.TimeoutMillis)

	msg, err := message.Build(ctx, inv.Kind, raw, inv.Project)
	if err != nil {
		result.addMessage(Describe(err))
		result.fail()
		return
	}

	c.transition(logger, result, PhaseWaiting)
	waited, err := c.waiter.WaitUntilReady(conn, token, deadline)
	switch waited {
	case WaitCanceled:
		result.addMessage(DiagCanceled)
		result.cancel()
		return
	case WaitTimedOut:
		result.addMessage(DiagConnectTimeout)
		result.fail()
		return
	case WaitFaulted:
		result.addMessage(Describe(err))
		result.fail()
		return
	}

	c.transition(logger, result, PhaseSending)
	sent, err := c.publisher.Send(ctx, conn, msg, token, deadline)
	switch sent {
	case SendSent:
		result.succeed(msg.Len())
	case SendCanceled:
		result.addMessage(DiagCanceled)
		result.cancel()
	case SendTimedOut:
		result.addMessage(DiagSendTimeout)
		result.fail()
	default:
		result.failWith(err)
	}
}

func (c *Controller) transition(logger *log.Logger, result *ExecutionResult, p Phase) {
	from := result.Phase()
	result.enter(p)
	logger.Debug("phase transition", map[string]any{
		"from": string(from),
		"to":   string(p),
	})
}

// finish runs on every exit path: it stops the timer, computes the outcome,
// logs it and notifies listeners.
func (c *Controller) finish(logger *log.Logger, result *ExecutionResult) {
	if !result.finalize() {
		return
	}

	fields := map[string]any{
		"status":     string(result.Status()),
		"kind":       string(result.Kind()),
		"elapsed_ms": result.Elapsed().Milliseconds(),
		"phase":      string(result.Phase()),
	}
	if unexpected, ok := result.Err().(*UnexpectedError); ok {
		fields["stack"] = string(unexpected.Stack)
		logger.Error("unexpected failure during publishing", fields)
	}
	logger.Info(fmt.Sprintf("%s - [%s publish step]", result.Outcome(), result.Step()), fields)

	for _, l := range c.listeners {
		c.notify(logger, l, result)
	}
}

func (c *Controller) notify(logger *log.Logger, l Listener, result *ExecutionResult) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("result listener panicked", map[string]any{"panic": fmt.Sprint(v)})
		}
	}()
	l.StepFinished(result)
}
