package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/clock"
	"github.com/polzovatel/seckill-agent/internal/surface"
)

const (
	defaultTextSample  = 2000
	defaultCallTimeout = 3 * time.Second
)

// Signal is an immutable view of the surface captured at one instant.
type Signal struct {
	Location    string
	Text        string
	Interactive int
	CapturedAt  time.Time
}

// Empty reports a signal with no usable content (failed or blank read).
func (s Signal) Empty() bool {
	return s.Location == "" && s.Text == "" && s.Interactive == 0
}

// Reader samples the surface. It never mutates it.
type Reader struct {
	surface     surface.Surface
	clock       clock.Clock
	maxText     int
	callTimeout time.Duration
	logger      zerolog.Logger
}

type Option func(*Reader)

func WithTextSample(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxText = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Reader) { r.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

func NewReader(s surface.Surface, opts ...Option) *Reader {
	r := &Reader{
		surface:     s,
		clock:       clock.Real{},
		maxText:     defaultTextSample,
		callTimeout: defaultCallTimeout,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read captures location, a bounded text sample and the interactive-element count.
// Any failing query yields an empty Signal rather than an error: a page in the
// middle of navigating is a normal state for the caller.
func (r *Reader) Read(ctx context.Context) Signal {
	captured := r.clock.Now()

	callCtx, cancel := WithDeadline(ctx, r.callTimeout)
	loc, err := r.surface.CurrentLocation(callCtx)
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Msg("read location")
		return Signal{CapturedAt: captured}
	}

	callCtx, cancel = WithDeadline(ctx, r.callTimeout)
	text, err := r.surface.TextSample(callCtx, r.maxText)
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Msg("read text sample")
		return Signal{CapturedAt: captured}
	}

	callCtx, cancel = WithDeadline(ctx, r.callTimeout)
	count, err := r.surface.InteractiveCount(callCtx)
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Msg("read interactive count")
		return Signal{CapturedAt: captured}
	}

	return Signal{
		Location:    strings.TrimSpace(loc),
		Text:        truncateRunes(strings.TrimSpace(text), r.maxText),
		Interactive: count,
		CapturedAt:  captured,
	}
}

// WithDeadline shortens context to avoid long remote waits.
func WithDeadline(ctx context.Context, dur time.Duration) (context.Context, context.CancelFunc) {
	if dur <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, dur)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
