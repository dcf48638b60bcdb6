package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDeadline_ZeroIsUnbounded(t *testing.T) {
	clock := newManualClock()
	d := StartDeadline(clock, 0)

	assert.True(t, d.Unbounded())
	_, ok := d.Max()
	assert.False(t, ok)

	clock.Advance(10 * 365 * 24 * time.Hour)
	assert.False(t, d.Expired())
	assert.False(t, d.ExpiredAt(d.Start().Add(100*365*24*time.Hour)))
	assert.Equal(t, Unbounded, d.Remaining())
}

func TestStartDeadline_Bounded(t *testing.T) {
	clock := newManualClock()
	d := StartDeadline(clock, 50)

	maxTime, ok := d.Max()
	require.True(t, ok)
	assert.Equal(t, d.Start().Add(50*time.Millisecond), maxTime)
	assert.Equal(t, 50*time.Millisecond, d.Remaining())

	clock.Advance(30 * time.Millisecond)
	assert.False(t, d.Expired())
	assert.Equal(t, 20*time.Millisecond, d.Remaining())

	clock.Advance(21 * time.Millisecond)
	assert.True(t, d.Expired())
	assert.Equal(t, time.Duration(0), d.Remaining(), "remaining must never be negative")
}

func TestStartDeadline_NotRecomputed(t *testing.T) {
	clock := newManualClock()
	d := StartDeadline(clock, 100)
	before, _ := d.Max()

	clock.Advance(time.Second)
	after, _ := d.Max()
	assert.Equal(t, before, after)
}

func TestDeadline_Context(t *testing.T) {
	d := StartDeadline(SystemClock{}, 20)
	ctx, cancel := d.Context(t.Context())
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("bounded context never expired")
	}

	unbounded := StartDeadline(SystemClock{}, 0)
	ctx2, cancel2 := unbounded.Context(t.Context())
	defer cancel2()
	_, hasDeadline = ctx2.Deadline()
	assert.False(t, hasDeadline)
}
