package agent

import (
	"context"
	"time"

	"github.com/polzovatel/seckill-agent/internal/action"
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
)

// Phase is the lifecycle position of a run.
type Phase int

const (
	AwaitingDeadline Phase = iota
	Running
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case AwaitingDeadline:
		return "awaiting_deadline"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// EventKind names an Event. Each cycle reports cycle_started, then
// state_classified for the observation that drove it, then its candidate,
// action, recovery and stagnation events. The observation that ends a run is
// reported under the last cycle number, just before terminal_outcome.
type EventKind string

const (
	EventKeepAlive         EventKind = "keepalive"
	EventCycleStarted      EventKind = "cycle_started"
	EventStateClassified   EventKind = "state_classified"
	EventCandidateResolved EventKind = "candidate_resolved"
	EventActionAttempted   EventKind = "action_attempted"
	EventStagnation        EventKind = "stagnation_triggered"
	EventRecovery          EventKind = "recovery"
	EventTerminal          EventKind = "terminal_outcome"
)

// Event is a diagnostic record emitted by the orchestrator. Fields not
// relevant to Kind are left zero.
type Event struct {
	RunID      string
	Kind       EventKind
	At         time.Time
	Phase      Phase
	Cycle      int
	Location   string
	State      page.State
	Intent     resolve.Intent
	Candidates int
	Label      string
	Score      float64
	Tier       resolve.Tier
	Method     action.Method
	Dispatched bool
	Recovery   Recovery
	Err        error
	Outcome    *Outcome
}

// Observer receives events synchronously on the orchestrator goroutine.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Notifier is told about the terminal outcome of a run.
type Notifier interface {
	Notify(ctx context.Context, out Outcome) error
}

// ActionAttempt records one execution of a ranked candidate.
type ActionAttempt struct {
	Cycle      int           `json:"cycle"`
	Intent     string        `json:"intent"`
	Label      string        `json:"label"`
	Score      float64       `json:"score"`
	Tier       string        `json:"tier"`
	Method     action.Method `json:"method"`
	Dispatched bool          `json:"dispatched"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
}

// Outcome is the result of a run.
type Outcome struct {
	RunID          string          `json:"run_id"`
	Success        bool            `json:"success"`
	Phase          string          `json:"phase"`
	Elapsed        time.Duration   `json:"-"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	FinalLocation  string          `json:"final_location"`
	Cycles         int             `json:"cycles"`
	Reloads        int             `json:"reloads"`
	Navigations    int             `json:"navigations"`
	LastState      string          `json:"last_state"`
	Attempts       []ActionAttempt `json:"attempts,omitempty"`
	Error          string          `json:"error,omitempty"`
}
