// Package page infers where in the purchase flow the session currently is.
package page

import "strings"

// State is the abstract stage of the flow.
type State int

const (
	Unknown State = iota
	SelectionStage
	TransactionStage
	ReviewStage
	PaymentStage
	ErrorStage
)

var stateNames = [...]string{
	Unknown:          "unknown",
	SelectionStage:   "selection",
	TransactionStage: "transaction",
	ReviewStage:      "review",
	PaymentStage:     "payment",
	ErrorStage:       "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether reaching s ends the flow successfully.
func (s State) Terminal() bool { return s == PaymentStage }

// ParseState is the inverse of String.
func ParseState(name string) (State, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Unknown, false
}
