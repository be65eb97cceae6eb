// Package clock provides ports.Clock implementations used to time
// persistence operations.
package clock

import (
	"sync"
	"time"
)

// Real reads the wall clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a controllable clock. When step is non-zero every call to Now
// moves the clock forward by step after reading it, so a start/finish pair
// around an operation measures exactly one step.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
	reads   int
}

// NewFake creates a fake clock frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// NewStepping creates a fake clock that advances by step on every read.
func NewStepping(t time.Time, step time.Duration) *Fake {
	return &Fake{current: t, step: step}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.step)
	f.reads++
	return now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the clock by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Reads returns how many times Now has been called.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
