// Package clock provides an injectable time source so poll loops and backoff
// delays can be exercised in tests without real waiting.
package clock

import (
	"context"
	"time"
)

// Clock abstracts the ambient time functions used by poll loops.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall-clock implementation used outside tests.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// Sleep waits for d or context cancellation, whichever comes first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a deterministic clock for tests. Sleep advances the fake time
// instantly and records each requested delay.
type Fake struct {
	Current time.Time
	Slept   []time.Duration
}

// NewFake returns a Fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{Current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time { return f.Current }

// Sleep advances the fake clock by d without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Current = f.Current.Add(d)
	f.Slept = append(f.Slept, d)
	return nil
}
