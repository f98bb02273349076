// Package clock aligns execution with a wall-clock target instant.
package clock

import (
	"context"
	"time"
)

const (
	// CoarseStep bounds a single sleep while more than FineWindow remains.
	CoarseStep = 300 * time.Millisecond
	// FineStep is the polling step inside the final FineWindow.
	FineStep = 10 * time.Millisecond
	// FineWindow is the remaining time below which WaitUntil switches to FineStep.
	FineWindow = time.Second
)

// Clock is the time source used by every waiting component.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitUntil blocks until c.Now() >= target. Remaining time is recomputed after
// every sleep so oversleeping in one step does not accumulate.
func WaitUntil(ctx context.Context, c Clock, target time.Time) error {
	for {
		remaining := target.Sub(c.Now())
		if remaining <= 0 {
			return nil
		}
		if err := c.Sleep(ctx, nextStep(remaining)); err != nil {
			return err
		}
	}
}

func nextStep(remaining time.Duration) time.Duration {
	if remaining <= FineWindow {
		return FineStep
	}
	step := remaining - FineWindow
	if step > CoarseStep {
		step = CoarseStep
	}
	if step < FineStep {
		step = FineStep
	}
	return step
}
