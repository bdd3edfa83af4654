// Package clock implements server-authoritative chess clocks. Time is kept in
// integer milliseconds and charged lazily: the side to move is debited the
// wall time elapsed since the previous debit whenever a move attempt (or a
// timeout sweep) is processed.
package clock

import "time"

// Side indexes a clock: 0 is the first mover, 1 the second mover.
type Side int

const (
	First  Side = 0
	Second Side = 1
)

// Clock holds remaining time for both sides.
type Clock struct {
	RemainingMs [2]int64
	IncrementMs int64
	LastDebit   time.Time // zero until the game starts
}

// New creates a clock with limitMs per side and incrementMs per completed move.
func New(limitMs, incrementMs int64) Clock {
	return Clock{
		RemainingMs: [2]int64{limitMs, limitMs},
		IncrementMs: incrementMs,
	}
}

// Started reports whether the clock has a debit baseline.
func (c *Clock) Started() bool {
	return !c.LastDebit.IsZero()
}

// Start sets the debit baseline.
func (c *Clock) Start(now time.Time) {
	c.LastDebit = now
}

// Debit charges side the time elapsed since the last debit and moves the
// baseline to now. It reports whether the side has flagged; a flagged clock
// is clamped to zero. Before Start it does nothing.
func (c *Clock) Debit(side Side, now time.Time) bool {
	if !c.Started() {
		return false
	}
	elapsed := now.Sub(c.LastDebit).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	c.RemainingMs[side] -= elapsed
	c.LastDebit = now

	if c.RemainingMs[side] <= 0 {
		c.RemainingMs[side] = 0
		return true
	}
	return false
}

// Credit adds the per-move increment to side.
func (c *Clock) Credit(side Side) {
	c.RemainingMs[side] += c.IncrementMs
}

// Remaining projects side's time at now without mutating the clock, assuming
// side is the one to move.
func (c *Clock) Remaining(side Side, now time.Time) int64 {
	rem := c.RemainingMs[side]
	if c.Started() {
		if elapsed := now.Sub(c.LastDebit).Milliseconds(); elapsed > 0 {
			rem -= elapsed
		}
	}
	if rem < 0 {
		return 0
	}
	return rem
}
