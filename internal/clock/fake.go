package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a deterministic Clock: Sleep advances time instantly.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	drift   time.Duration
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d + f.drift)
	}
	f.sleeps = append(f.sleeps, d)
	hook, now := f.onSleep, f.now
	f.mu.Unlock()
	if hook != nil {
		hook(now)
	}
	return ctx.Err()
}

// Advance moves the clock forward without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// SetDrift makes every subsequent Sleep overshoot by d.
func (f *Fake) SetDrift(d time.Duration) {
	f.mu.Lock()
	f.drift = d
	f.mu.Unlock()
}

// OnSleep registers a hook called after each Sleep with the new time.
func (f *Fake) OnSleep(fn func(now time.Time)) {
	f.mu.Lock()
	f.onSleep = fn
	f.mu.Unlock()
}

// Sleeps returns the requested durations in call order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
