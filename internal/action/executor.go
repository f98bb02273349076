// Package action dispatches an invocation on a resolved candidate.
package action

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/clock"
	"github.com/polzovatel/seckill-agent/internal/resolve"
	"github.com/polzovatel/seckill-agent/internal/snapshot"
	"github.com/polzovatel/seckill-agent/internal/surface"
)

// Method names the invocation strategy that was used.
type Method string

const (
	MethodNone     Method = ""
	MethodInvoke   Method = "invoke"
	MethodPointer  Method = "pointer_event"
	MethodAncestor Method = "ancestor_invoke"
)

// Result reports whether an invocation was dispatched. Dispatched does not mean
// the page reacted: only a later state transition confirms the effect.
type Result struct {
	Dispatched bool
	Method     Method
	// Err joins the errors of every strategy that failed before the result.
	Err error
	At  time.Time
}

type strategy struct {
	method Method
	call   func(ctx context.Context, s surface.Surface, h surface.Handle) error
}

var strategies = []strategy{
	{MethodInvoke, func(ctx context.Context, s surface.Surface, h surface.Handle) error { return s.Invoke(ctx, h) }},
	{MethodPointer, func(ctx context.Context, s surface.Surface, h surface.Handle) error { return s.DispatchPointerEvent(ctx, h) }},
	{MethodAncestor, func(ctx context.Context, s surface.Surface, h surface.Handle) error { return s.InvokeAncestor(ctx, h) }},
}

// Executor tries each strategy in fixed order until one completes without error.
type Executor struct {
	surface     surface.Surface
	clock       clock.Clock
	callTimeout time.Duration
	logger      zerolog.Logger
}

type Option func(*Executor)

func WithClock(c clock.Clock) Option { return func(e *Executor) { e.clock = c } }

func WithLogger(l zerolog.Logger) Option { return func(e *Executor) { e.logger = l } }

func WithCallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.callTimeout = d }
}

func NewExecutor(s surface.Surface, opts ...Option) *Executor {
	e := &Executor{
		surface:     s,
		clock:       clock.Real{},
		callTimeout: 3 * time.Second,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, c resolve.Candidate) Result {
	var errs []error
	for _, st := range strategies {
		callCtx, cancel := snapshot.WithDeadline(ctx, e.callTimeout)
		err := st.call(callCtx, e.surface, c.Handle)
		cancel()
		if err == nil {
			return Result{Dispatched: true, Method: st.method, Err: errors.Join(errs...), At: e.clock.Now()}
		}
		e.logger.Debug().Err(err).Str("method", string(st.method)).Str("label", c.Label).Msg("strategy failed")
		errs = append(errs, err)
		if errors.Is(err, surface.ErrStaleHandle) {
			// the node is gone; no other strategy can reach it
			break
		}
	}
	return Result{Method: MethodNone, Err: errors.Join(errs...), At: e.clock.Now()}
}
