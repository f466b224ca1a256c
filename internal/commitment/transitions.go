package commitment

import "fmt"

// ErrInvalidTransition is returned when a requested state transition is not
// allowed from the commitment's current state.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("commitment: invalid transition %s -> %s", e.From, e.To)
}

// allowedTransitions mirrors the teacher's maturity transition table: each
// state names exactly the states it may move to next. Terminal states allow
// nothing.
var allowedTransitions = map[State][]State{
	StateCandidate: {StateActive},
	StateActive:    {StatePaused, StateSatisfied, StateAbandoned},
	StatePaused:    {StateActive, StateAbandoned},
	StateSatisfied: {},
	StateAbandoned: {},
}

// CanTransition reports whether from -> to is a legal state transition.
func CanTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
