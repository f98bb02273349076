package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/action"
	"github.com/polzovatel/seckill-agent/internal/clock"
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
	"github.com/polzovatel/seckill-agent/internal/snapshot"
	"github.com/polzovatel/seckill-agent/internal/surface"
)

// ErrSession marks failures that make the surface unusable: a navigation or
// reload that did not complete. They end the run immediately.
var ErrSession = errors.New("session unusable")

// ErrBudget is returned for a non-positive retry budget.
var ErrBudget = errors.New("retry budget must be positive")

type Config struct {
	EntryURL            string
	NavigateOnStart     bool
	StagnationThreshold int
	CycleInterval       time.Duration
	ActionSettle        time.Duration
	RecoverySettle      time.Duration
	// StartSettle follows the navigation made when the deadline fires.
	StartSettle         time.Duration
	NavigationTimeout   time.Duration
	NotifyTimeout       time.Duration
	KeepAliveInterval   time.Duration
	KeepAliveLead       time.Duration
}

func DefaultConfig() Config {
	return Config{
		EntryURL:            "https://cart.taobao.com/cart.htm",
		NavigateOnStart:     true,
		StagnationThreshold: 10,
		CycleInterval:       50 * time.Millisecond,
		ActionSettle:        300 * time.Millisecond,
		RecoverySettle:      2 * time.Second,
		NavigationTimeout:   15 * time.Second,
		NotifyTimeout:       10 * time.Second,
		KeepAliveInterval:   60 * time.Second,
		KeepAliveLead:       3 * time.Minute,
	}
}

type Orchestrator struct {
	cfg        Config
	surface    surface.Surface
	clock      clock.Clock
	reader     *snapshot.Reader
	classifier *page.Classifier
	resolver   *resolve.Resolver
	executor   *action.Executor
	observers  []Observer
	notifier   Notifier
	logger     zerolog.Logger
	newRunID   func() string
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithReader(r *snapshot.Reader) Option { return func(o *Orchestrator) { o.reader = r } }

func WithClassifier(c *page.Classifier) Option { return func(o *Orchestrator) { o.classifier = c } }

func WithResolver(r *resolve.Resolver) Option { return func(o *Orchestrator) { o.resolver = r } }

func WithExecutor(e *action.Executor) Option { return func(o *Orchestrator) { o.executor = e } }

func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

func NewOrchestrator(cfg Config, s surface.Surface, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		surface:  s,
		clock:    clock.Real{},
		logger:   logger,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reader == nil {
		o.reader = snapshot.NewReader(s, snapshot.WithClock(o.clock), snapshot.WithLogger(logger))
	}
	if o.classifier == nil {
		o.classifier = page.NewClassifier(page.DefaultMarkers())
	}
	if o.resolver == nil {
		o.resolver = resolve.New(resolve.WithLogger(logger))
	}
	if o.executor == nil {
		o.executor = action.NewExecutor(s, action.WithClock(o.clock), action.WithLogger(logger))
	}
	return o
}

// run carries the mutable bookkeeping of one Run call.
type run struct {
	id        string
	phase     Phase
	cycle     int
	start     time.Time
	location  string
	lastState page.State
	reloads   int
	navs      int
	attempts  []ActionAttempt
}

// Run waits for target, then drives the surface until the payment stage is
// reached, budget cycles are spent, ctx is cancelled, or the session breaks.
// The returned Outcome is populated in every case.
func (o *Orchestrator) Run(ctx context.Context, target time.Time, budget int) (Outcome, error) {
	r := &run{id: o.newRunID(), phase: AwaitingDeadline}
	log := o.logger.With().Str("run", r.id).Logger()
	if budget < 1 {
		return o.finish(ctx, r, fmt.Errorf("%w: %d", ErrBudget, budget))
	}

	log.Info().Time("target", target).Int("budget", budget).Msg("awaiting deadline")
	if err := o.await(ctx, r, target); err != nil {
		return o.finish(ctx, r, err)
	}

	r.phase = Running
	r.start = o.clock.Now()
	log.Info().Msg("deadline reached")
	if o.cfg.NavigateOnStart && o.cfg.EntryURL != "" {
		if err := o.recover(ctx, r, RecoverNavigate, o.cfg.StartSettle); err != nil {
			return o.finish(ctx, r, err)
		}
	}

	tracker := NewStagnationTracker(o.cfg.StagnationThreshold)
	for {
		if err := ctx.Err(); err != nil {
			return o.finish(ctx, r, err)
		}

		// resolve and execute run to completion once started
		inflight := context.WithoutCancel(ctx)

		sig := o.reader.Read(inflight)
		state := o.classifier.Classify(sig)
		r.lastState = state
		if sig.Location != "" {
			r.location = sig.Location
		}

		// The observation that ends the run is reported under the last cycle.
		if state.Terminal() {
			o.classified(r, sig, state)
			r.phase = Succeeded
			return o.finish(ctx, r, nil)
		}
		if r.cycle >= budget {
			o.classified(r, sig, state)
			r.phase = Failed
			log.Warn().Int("cycles", r.cycle).Msg("retry budget exhausted")
			return o.finish(ctx, r, nil)
		}
		r.cycle++
		o.emit(r, Event{Kind: EventCycleStarted, State: state})
		o.classified(r, sig, state)

		step := Plan(state)
		switch {
		case step.Intent != resolve.NoIntent:
			o.act(ctx, inflight, r, step.Intent)
		case step.Recover != RecoverNone:
			if err := o.recover(ctx, r, step.Recover, o.cfg.RecoverySettle); err != nil {
				return o.finish(ctx, r, err)
			}
		}

		stagnant := tracker.Observe(sig.Location)
		switch {
		case stagnant && step.Recover != RecoverNone:
			// this cycle already reloaded or navigated
			tracker.Reset()
		case stagnant:
			log.Warn().Int("count", tracker.Count()).Str("url", sig.Location).Msg("location stagnant, reloading")
			o.emit(r, Event{Kind: EventStagnation, Location: sig.Location})
			if err := o.recover(ctx, r, RecoverReload, o.cfg.RecoverySettle); err != nil {
				return o.finish(ctx, r, err)
			}
			tracker.Reset()
		}

		_ = o.clock.Sleep(ctx, o.cfg.CycleInterval)
	}
}

// act resolves candidates for intent and executes them in rank order until
// one dispatches.
func (o *Orchestrator) act(ctx, inflight context.Context, r *run, intent resolve.Intent) {
	cands := o.resolver.Resolve(inflight, intent, o.surface)
	ev := Event{Kind: EventCandidateResolved, Intent: intent, Candidates: len(cands)}
	if len(cands) > 0 {
		ev.Label, ev.Score, ev.Tier = cands[0].Label, cands[0].Score, cands[0].Tier
	}
	o.emit(r, ev)
	if len(cands) == 0 {
		o.logger.Debug().Str("intent", intent.String()).Msg("no candidates")
		return
	}

	for _, c := range cands {
		res := o.executor.Execute(inflight, c)
		attempt := ActionAttempt{
			Cycle:      r.cycle,
			Intent:     intent.String(),
			Label:      c.Label,
			Score:      c.Score,
			Tier:       c.Tier.String(),
			Method:     res.Method,
			Dispatched: res.Dispatched,
			At:         res.At,
		}
		if res.Err != nil {
			attempt.Error = res.Err.Error()
		}
		r.attempts = append(r.attempts, attempt)
		o.emit(r, Event{
			Kind:       EventActionAttempted,
			Intent:     intent,
			Label:      c.Label,
			Score:      c.Score,
			Tier:       c.Tier,
			Method:     res.Method,
			Dispatched: res.Dispatched,
			Err:        res.Err,
		})
		if res.Dispatched {
			o.logger.Info().
				Str("intent", intent.String()).
				Str("label", c.Label).
				Float64("score", c.Score).
				Str("method", string(res.Method)).
				Msg("action dispatched")
			_ = o.clock.Sleep(ctx, o.cfg.ActionSettle)
			return
		}
	}
	o.logger.Warn().Str("intent", intent.String()).Int("candidates", len(cands)).Msg("no candidate accepted an invocation")
}

func (o *Orchestrator) classified(r *run, sig snapshot.Signal, state page.State) {
	o.emit(r, Event{Kind: EventStateClassified, Location: sig.Location, State: state})
	o.logger.Info().
		Str("run", r.id).
		Int("cycle", r.cycle).
		Str("url", sig.Location).
		Str("state", state.String()).
		Int("interactive", sig.Interactive).
		Msg("snapshot")
}

// recover navigates or reloads, then sleeps settle. Failure is fatal to the run.
func (o *Orchestrator) recover(ctx context.Context, r *run, kind Recovery, settle time.Duration) error {
	if kind == RecoverNavigate && o.cfg.EntryURL == "" {
		kind = RecoverReload
	}
	callCtx, cancel := o.navigationContext(ctx)
	var err error
	switch kind {
	case RecoverNavigate:
		r.navs++
		err = o.surface.Navigate(callCtx, o.cfg.EntryURL)
	case RecoverReload:
		r.reloads++
		err = o.surface.Reload(callCtx)
	}
	cancel()
	o.emit(r, Event{Kind: EventRecovery, Recovery: kind, Err: err})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSession, kind, err)
	}
	o.logger.Info().Str("recovery", kind.String()).Msg("recovered")
	if settle > 0 {
		_ = o.clock.Sleep(ctx, settle)
	}
	return nil
}

// await sleeps until target. While more than KeepAliveLead remains it opens
// the entry page every KeepAliveInterval so the session does not expire.
func (o *Orchestrator) await(ctx context.Context, r *run, target time.Time) error {
	if o.cfg.KeepAliveInterval > 0 && o.cfg.EntryURL != "" {
		for {
			remaining := target.Sub(o.clock.Now()) - o.cfg.KeepAliveLead
			if remaining <= 0 {
				break
			}
			callCtx, cancel := o.navigationContext(ctx)
			err := o.surface.Navigate(callCtx, o.cfg.EntryURL)
			cancel()
			o.emit(r, Event{Kind: EventKeepAlive, Location: o.cfg.EntryURL, Err: err})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("%w: keepalive: %w", ErrSession, err)
			}
			if err := o.clock.Sleep(ctx, min(o.cfg.KeepAliveInterval, remaining)); err != nil {
				return err
			}
		}
	}
	return clock.WaitUntil(ctx, o.clock, target)
}

func (o *Orchestrator) navigationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return snapshot.WithDeadline(context.WithoutCancel(ctx), o.cfg.NavigationTimeout)
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) (Outcome, error) {
	if r.phase != Succeeded {
		r.phase = Failed
	}
	out := Outcome{
		RunID:         r.id,
		Success:       r.phase == Succeeded,
		Phase:         r.phase.String(),
		FinalLocation: r.location,
		Cycles:        r.cycle,
		Reloads:       r.reloads,
		Navigations:   r.navs,
		LastState:     r.lastState.String(),
		Attempts:      r.attempts,
	}
	if !r.start.IsZero() {
		out.Elapsed = o.clock.Now().Sub(r.start)
		out.ElapsedSeconds = out.Elapsed.Seconds()
	}
	if err != nil {
		out.Error = err.Error()
	}

	o.emit(r, Event{Kind: EventTerminal, Location: r.location, State: r.lastState, Err: err, Outcome: &out})
	ev := o.logger.Info()
	if !out.Success {
		ev = o.logger.Warn()
	}
	ev.Str("run", r.id).
		Bool("success", out.Success).
		Float64("elapsed_s", out.ElapsedSeconds).
		Int("cycles", out.Cycles).
		Int("reloads", out.Reloads).
		Str("url", out.FinalLocation).
		AnErr("error", err).
		Msg("run finished")

	if o.notifier != nil {
		nctx, cancel := snapshot.WithDeadline(context.WithoutCancel(ctx), o.cfg.NotifyTimeout)
		if nerr := o.notifier.Notify(nctx, out); nerr != nil {
			o.logger.Error().Err(nerr).Msg("notify outcome")
		}
		cancel()
	}
	return out, err
}

func (o *Orchestrator) emit(r *run, e Event) {
	e.RunID = r.id
	e.Phase = r.phase
	e.Cycle = r.cycle
	e.At = o.clock.Now()
	for _, obs := range o.observers {
		obs.Observe(e)
	}
}
