package workflows

import "fmt"

// StateMachine enforces transitions between a fixed set of states
type StateMachine[S comparable] struct {
	allowedTransitions map[S][]S
}

// TransitionError reports a transition the machine does not allow.
type TransitionError[S comparable] struct {
	From S
	To   S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("transition %v -> %v not allowed", e.From, e.To)
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine[S comparable](allowed map[S][]S) *StateMachine[S] {
	transitions := make(map[S][]S, len(allowed))
	for from, to := range allowed {
		transitions[from] = append([]S(nil), to...)
	}
	return &StateMachine[S]{allowedTransitions: transitions}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns a *TransitionError when from -> to is not allowed.
func (sm *StateMachine[S]) Transition(from, to S) error {
	if !sm.CanTransition(from, to) {
		return &TransitionError[S]{From: from, To: to}
	}
	return nil
}

// GetAllowedTransitions returns the allowed next states for a given state
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []S{}
	}
	return append([]S(nil), allowed...)
}
