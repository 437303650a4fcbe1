// Package testutil holds small deterministic test doubles shared across the
// rename engine's package tests (a clock, nothing else yet).
package testutil

import "time"

// Clock provides deterministic, monotonically increasing timestamps for
// transaction-manager and WAL tests, so phase-transition fixtures don't
// depend on wall-clock time.
type Clock struct {
	current time.Time
	step    time.Duration
}

// NewClock returns a clock initialized to a fixed UTC start time, advancing
// by one second on every call to Now.
func NewClock() *Clock {
	return &Clock{
		current: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		step:    time.Second,
	}
}

// Now returns the next timestamp and advances the clock.
func (c *Clock) Now() time.Time {
	c.current = c.current.Add(c.step)

	return c.current
}
