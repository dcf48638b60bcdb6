// Package metrics counts publish step outcomes.
//
// The Collector accumulates counters across invocations in one process. It
// is a runtime.Listener, implements prometheus.Collector, and can export its
// state as a node_exporter textfile.
package metrics

import (
	"errors"
	"slices"
	"sync"

	"github.com/pithecene-io/courier/runtime"
	"github.com/pithecene-io/courier/types"
)

// DurationBuckets are the upper bounds, in seconds, of the publish duration
// histogram.
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Snapshot is an immutable point-in-time view of all metrics.
type Snapshot struct {
	// Invocations by terminal status
	Invocations int64
	Succeeded   int64
	Failed      int64
	Canceled    int64

	// Failure causes
	ConnectTimeouts  int64
	ConnectFaults    int64
	SendTimeouts     int64
	SendErrors       int64
	UnexpectedErrors int64

	// Payload
	BytesSent int64

	// ByKind counts invocations per message kind and status.
	ByKind map[KindStatus]int64

	// Duration histogram; BucketCounts is non-cumulative, aligned with
	// DurationBuckets, and the final element counts observations above the
	// last bound.
	DurationCount        int64
	DurationSumSeconds   float64
	DurationBucketCounts []int64

	// Step is the dimension set at construction.
	Step string
}

// KindStatus keys per-kind counters.
type KindStatus struct {
	Kind   string
	Status types.StepStatus
}

// Collector accumulates metrics. Thread-safe via sync.Mutex. All methods
// are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	invocations int64
	succeeded   int64
	failed      int64
	canceled    int64

	connectTimeouts  int64
	connectFaults    int64
	sendTimeouts     int64
	sendErrors       int64
	unexpectedErrors int64

	bytesSent int64
	byKind    map[KindStatus]int64

	durationCount   int64
	durationSum     float64
	durationBuckets []int64

	step string
}

var _ runtime.Listener = (*Collector)(nil)

// NewCollector creates a Collector for the named step. step may be empty.
func NewCollector(step string) *Collector {
	return &Collector{
		byKind:          make(map[KindStatus]int64),
		durationBuckets: make([]int64, len(DurationBuckets)+1),
		step:            step,
	}
}

// StepFinished records a finished invocation.
func (c *Collector) StepFinished(result *runtime.ExecutionResult) {
	if c == nil || result == nil {
		return
	}

	messages := result.Messages()
	err := result.Err()
	seconds := result.Elapsed().Seconds()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.invocations++
	switch result.Status() {
	case types.StepStatusOK:
		c.succeeded++
		c.bytesSent += int64(result.BytesSent())
	case types.StepStatusFailed:
		c.failed++
	case types.StepStatusCanceled:
		c.canceled++
	}
	c.byKind[KindStatus{Kind: string(result.Kind()), Status: result.Status()}]++

	switch {
	case slices.Contains(messages, runtime.DiagConnectTimeout):
		c.connectTimeouts++
	case slices.Contains(messages, runtime.DiagSendTimeout):
		c.sendTimeouts++
	case runtime.IsSendError(err):
		c.sendErrors++
	case isUnexpected(err):
		c.unexpectedErrors++
	case result.Status() == types.StepStatusFailed && failedWaiting(result.Phases()):
		c.connectFaults++
	}

	c.durationCount++
	c.durationSum += seconds
	idx, _ := slices.BinarySearch(DurationBuckets, seconds)
	c.durationBuckets[idx]++
}

func isUnexpected(err error) bool {
	var unexpected *runtime.UnexpectedError
	return errors.As(err, &unexpected)
}

// failedWaiting reports whether the phase trail ended in failure while
// waiting for the connection.
func failedWaiting(phases []runtime.Phase) bool {
	n := len(phases)
	return n >= 2 && phases[n-1] == runtime.PhaseFailed && phases[n-2] == runtime.PhaseWaiting
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[KindStatus]int64, len(c.byKind))
	for k, v := range c.byKind {
		byKind[k] = v
	}
	return Snapshot{
		Invocations:          c.invocations,
		Succeeded:            c.succeeded,
		Failed:               c.failed,
		Canceled:             c.canceled,
		ConnectTimeouts:      c.connectTimeouts,
		ConnectFaults:        c.connectFaults,
		SendTimeouts:         c.sendTimeouts,
		SendErrors:           c.sendErrors,
		UnexpectedErrors:     c.unexpectedErrors,
		BytesSent:            c.bytesSent,
		ByKind:               byKind,
		DurationCount:        c.durationCount,
		DurationSumSeconds:   c.durationSum,
		DurationBucketCounts: slices.Clone(c.durationBuckets),
		Step:                 c.step,
	}
}
