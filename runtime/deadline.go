package runtime

import (
	"context"
	"math"
	"time"
)

// Unbounded is the remaining time reported by a deadline that never expires.
const Unbounded = time.Duration(math.MaxInt64)

// Deadline is a single absolute point in time computed once at the start of
// an operation. A zero timeout means the deadline never expires; it never
// means "expire immediately".
type Deadline struct {
	clock   Clock
	start   time.Time
	max     time.Time
	bounded bool
}

// StartDeadline starts a deadline timeoutMillis from now.
// timeoutMillis <= 0 yields an unbounded deadline.
func StartDeadline(clock Clock, timeoutMillis int) Deadline {
	if clock == nil {
		clock = SystemClock{}
	}
	start := clock.Now()
	if timeoutMillis <= 0 {
		return Deadline{clock: clock, start: start}
	}
	return Deadline{
		clock:   clock,
		start:   start,
		max:     start.Add(time.Duration(timeoutMillis) * time.Millisecond),
		bounded: true,
	}
}

// Start returns the time the deadline was started.
func (d Deadline) Start() time.Time { return d.start }

// Max returns the absolute deadline and whether one exists.
func (d Deadline) Max() (time.Time, bool) { return d.max, d.bounded }

// Unbounded reports whether the deadline never expires.
func (d Deadline) Unbounded() bool { return !d.bounded }

// ExpiredAt reports whether the deadline has passed at now.
func (d Deadline) ExpiredAt(now time.Time) bool {
	return d.bounded && now.After(d.max)
}

// Expired reports whether the deadline has passed.
func (d Deadline) Expired() bool {
	return d.ExpiredAt(d.now())
}

// Remaining returns the time left before the deadline, never negative.
// Unbounded deadlines report Unbounded.
func (d Deadline) Remaining() time.Duration {
	if !d.bounded {
		return Unbounded
	}
	left := d.max.Sub(d.now())
	if left < 0 {
		return 0
	}
	return left
}

// Context derives a context that is done when the deadline passes.
func (d Deadline) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if !d.bounded {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d.Remaining())
}

func (d Deadline) now() time.Time {
	if d.clock == nil {
		return time.Now()
	}
	return d.clock.Now()
}
