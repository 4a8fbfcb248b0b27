// Package timer implements the per-strategy stopwatch used to detect slow
// user callbacks.
package timer

import (
	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/errs"
)

// Clock returns the current time in milliseconds. The host supplies a
// monotonic decimal clock.
type Clock func() decimal.Decimal

type state int

const (
	stateStopped state = iota
	stateStarted
	statePaused
)

// Timer measures cooperative and wall elapsed milliseconds around one user
// callback invocation. Cooperative time excludes paused intervals (blocking
// send() waits); wall time includes them.
type Timer struct {
	clock       Clock
	state       state
	cooperative decimal.Decimal
	startedAt   decimal.Decimal
	wallStart   decimal.Decimal
}

// New builds a stopped timer over the given clock.
func New(clock Clock) *Timer {
	return &Timer{
		clock:       clock,
		state:       stateStopped,
		cooperative: decimal.Zero,
		startedAt:   decimal.Zero,
		wallStart:   decimal.Zero,
	}
}

// Start resets the cooperative accumulator and records the wall start.
// A no-op unless the timer is stopped.
func (t *Timer) Start() {
	if t.state != stateStopped {
		return
	}
	now := t.clock()
	t.cooperative = decimal.Zero
	t.startedAt = now
	t.wallStart = now
	t.state = stateStarted
}

// Pause accumulates the running interval. A no-op unless started.
func (t *Timer) Pause() {
	if t.state != stateStarted {
		return
	}
	t.cooperative = t.cooperative.Add(t.clock().Sub(t.startedAt))
	t.state = statePaused
}

// Resume begins a new running interval. A no-op unless paused.
func (t *Timer) Resume() {
	if t.state != statePaused {
		return
	}
	t.startedAt = t.clock()
	t.state = stateStarted
}

// Stop finishes the measurement and returns (cooperative, wall) elapsed
// milliseconds. Stopping a stopped timer is an error.
func (t *Timer) Stop() (decimal.Decimal, decimal.Decimal, error) {
	if t.state == stateStopped {
		return decimal.Zero, decimal.Zero, errs.New("timer/stop", errs.CodeState,
			errs.WithMessage("stop on a stopped timer"))
	}
	now := t.clock()
	if t.state == stateStarted {
		t.cooperative = t.cooperative.Add(now.Sub(t.startedAt))
	}
	wall := now.Sub(t.wallStart)
	cooperative := t.cooperative
	t.state = stateStopped
	t.cooperative = decimal.Zero
	return cooperative, wall, nil
}
