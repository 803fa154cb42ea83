package agent

// SessionState is the loop's position in its lifecycle. States advance
// only along allowedTransitions; Done and Unavailable are terminal.
type SessionState string

const (
	StateStart       SessionState = "start"
	StatePlanning    SessionState = "planning"
	StateExecuting   SessionState = "executing"
	StateFinalizing  SessionState = "finalizing"
	StateDone        SessionState = "done"
	StateUnavailable SessionState = "unavailable"
)

var allowedTransitions = map[SessionState]map[SessionState]struct{}{
	StateStart: {
		StatePlanning:    {},
		StateUnavailable: {},
	},
	StatePlanning: {
		StateExecuting:   {},
		StateFinalizing:  {},
		StateUnavailable: {},
	},
	StateExecuting: {
		StatePlanning:   {},
		StateFinalizing: {},
	},
	StateFinalizing: {
		StateDone: {},
	},
}

// CanTransition reports whether a state transition is valid.
func CanTransition(from, to SessionState) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
