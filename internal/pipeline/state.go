package pipeline

// State tracks a submission through the pipeline. Failure states are
// terminal; a submission never re-enters the machine, it is resubmitted.
type State string

const (
	StateReceived      State = "received"
	StateParsed        State = "parsed"
	StateParseFailed   State = "parse_failed"
	StateValidated     State = "validated"
	StateInvalid       State = "invalid"
	StateStored        State = "stored"
	StateStorageFailed State = "storage_failed"
	StateAggregated    State = "aggregated"
)

var transitions = map[State][]State{
	StateReceived:  {StateParsed, StateParseFailed},
	StateParsed:    {StateValidated, StateInvalid},
	StateValidated: {StateStored, StateStorageFailed},
	StateStored:    {StateAggregated},
}

// CanTransition reports whether from may advance to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a submission in this state is done, successfully
// or not.
func Terminal(s State) bool {
	switch s {
	case StateParseFailed, StateInvalid, StateStorageFailed, StateAggregated:
		return true
	}
	return false
}

// Failed reports whether s is one of the failure outcomes.
func Failed(s State) bool {
	switch s {
	case StateParseFailed, StateInvalid, StateStorageFailed:
		return true
	}
	return false
}
