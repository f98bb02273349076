package agent

import (
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
)

// Recovery is a navigation performed instead of an intent.
type Recovery int

const (
	RecoverNone Recovery = iota
	RecoverReload
	RecoverNavigate
)

func (r Recovery) String() string {
	switch r {
	case RecoverReload:
		return "reload"
	case RecoverNavigate:
		return "navigate"
	}
	return "none"
}

// Step is what a cycle does for a classified state.
type Step struct {
	Intent  resolve.Intent
	Recover Recovery
}

var plan = map[page.State]Step{
	page.SelectionStage:   {Intent: resolve.SelectAll},
	page.TransactionStage: {Intent: resolve.AdvanceToReview},
	page.ReviewStage:      {Intent: resolve.SubmitOrder},
	page.ErrorStage:       {Recover: RecoverReload},
	page.Unknown:          {Recover: RecoverNavigate},
}

// Plan maps a state to its step. Terminal states map to the zero Step.
func Plan(s page.State) Step {
	return plan[s]
}

// IntentFor returns the intent a non-terminal, actionable state requires.
func IntentFor(s page.State) (resolve.Intent, bool) {
	step := Plan(s)
	return step.Intent, step.Intent != resolve.NoIntent
}
