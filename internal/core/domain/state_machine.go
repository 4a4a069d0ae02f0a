package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition is one row of a transition table.
type Transition[S ~string, E ~string] struct {
	Event E
	From  []S
	To    S
}

// StateMachine is an explicit (state, event) -> state table.
type StateMachine[S ~string, E ~string] struct {
	table map[E]map[S]S
}

// NewStateMachine indexes transitions. A later row for the same (from, event) pair wins.
func NewStateMachine[S ~string, E ~string](transitions ...Transition[S, E]) StateMachine[S, E] {
	table := make(map[E]map[S]S)
	for _, t := range transitions {
		if table[t.Event] == nil {
			table[t.Event] = make(map[S]S)
		}
		for _, from := range t.From {
			table[t.Event][from] = t.To
		}
	}
	return StateMachine[S, E]{table: table}
}

// Next returns the state reached by firing ev in from.
func (m StateMachine[S, E]) Next(from S, ev E) (S, error) {
	to, ok := m.table[ev][from]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// Can reports whether ev may fire in from.
func (m StateMachine[S, E]) Can(from S, ev E) bool {
	_, err := m.Next(from, ev)
	return err == nil
}
