// Package clock abstracts time so timed behavior can be driven by tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reports the current time and performs cancellable waits.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks on a timer; it returns ctx.Err() if the context ends first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a manual clock. Sleep advances the clock instantly.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	onStep func(d time.Duration)
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// OnSleep registers a hook invoked after every Sleep. Tests use it to inject
// events at suspension points.
func (f *Fake) OnSleep(fn func(d time.Duration)) {
	f.mu.Lock()
	f.onStep = fn
	f.mu.Unlock()
}

// Slept returns the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}

// Sleep advances the clock by d without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d)
		f.slept += d
	}
	hook := f.onStep
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}
