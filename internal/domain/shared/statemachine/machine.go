// Package statemachine evaluates table-driven lifecycles. A machine is a list
// of rows (action, from-states, target, guard); the purchase order and the
// inbound shipment lifecycles are both declared as such tables so that the
// set of legal actions for a state is derived from one place.
package statemachine

import (
	"fmt"
	"slices"

	"github.com/cardshellz/echelon/internal/domain/shared"
)

// GuardResult is the outcome of a guard evaluation
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Allow is the passing guard result
func Allow() GuardResult {
	return GuardResult{Allowed: true}
}

// Deny builds a failing guard result
func Deny(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

// Guard inspects the entity (or any caller-supplied guard data) and decides
// whether the transition may proceed. Guards must not mutate their input.
type Guard[D any] func(data D) GuardResult

// Transition is one row of a lifecycle table
type Transition[S ~string, A ~string, D any] struct {
	Action A
	From   []S
	To     S
	// KeepState marks actions that are legal in From but leave the state unchanged
	// (they exist for their side effects), To is ignored.
	KeepState bool
	Guard     Guard[D]
}

// InvalidTransitionError reports an action that is illegal from the current
// state or whose guard failed.
type InvalidTransitionError struct {
	From      string
	Attempted string
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot %s from %s", e.Attempted, e.From)
	}
	return fmt.Sprintf("cannot %s from %s: %s", e.Attempted, e.From, e.Reason)
}

// Code returns the domain error code used by the HTTP layer
func (e *InvalidTransitionError) Code() string {
	return shared.CodeInvalidTransition
}

// Is lets errors.Is(err, shared.ErrInvalidTransition) match
func (e *InvalidTransitionError) Is(target error) bool {
	return target == shared.ErrInvalidTransition
}

// Machine is an immutable lifecycle table
type Machine[S ~string, A ~string, D any] struct {
	rows []Transition[S, A, D]
}

// New builds a machine. It panics if two rows for the same action share a
// from-state, since the target would be ambiguous.
func New[S ~string, A ~string, D any](rows ...Transition[S, A, D]) *Machine[S, A, D] {
	seen := make(map[A][]S)
	for _, r := range rows {
		for _, from := range r.From {
			if slices.Contains(seen[r.Action], from) {
				panic(fmt.Sprintf("statemachine: action %q declared twice from state %q", r.Action, from))
			}
			seen[r.Action] = append(seen[r.Action], from)
		}
	}
	return &Machine[S, A, D]{rows: rows}
}

func (m *Machine[S, A, D]) find(current S, action A) (Transition[S, A, D], bool) {
	for _, r := range m.rows {
		if r.Action == action && slices.Contains(r.From, current) {
			return r, true
		}
	}
	return Transition[S, A, D]{}, false
}

// Fire evaluates action from current. It returns the resulting state or an
// *InvalidTransitionError naming the state, the action and why it was refused.
func (m *Machine[S, A, D]) Fire(current S, action A, data D) (S, error) {
	row, ok := m.find(current, action)
	if !ok {
		reason := "action not available in this state"
		if !m.knows(action) {
			reason = "unknown action"
		}
		return current, &InvalidTransitionError{From: string(current), Attempted: string(action), Reason: reason}
	}
	if row.Guard != nil {
		if res := row.Guard(data); !res.Allowed {
			return current, &InvalidTransitionError{From: string(current), Attempted: string(action), Reason: res.Reason}
		}
	}
	if row.KeepState {
		return current, nil
	}
	return row.To, nil
}

// Can reports whether action would succeed from current, guards included
func (m *Machine[S, A, D]) Can(current S, action A, data D) bool {
	_, err := m.Fire(current, action, data)
	return err == nil
}

// AvailableActions lists the actions whose state and guard checks pass,
// in table order, without duplicates.
func (m *Machine[S, A, D]) AvailableActions(current S, data D) []A {
	var out []A
	for _, r := range m.rows {
		if slices.Contains(out, r.Action) || !slices.Contains(r.From, current) {
			continue
		}
		if r.Guard != nil && !r.Guard(data).Allowed {
			continue
		}
		out = append(out, r.Action)
	}
	return out
}

// Targets lists states reachable from current in one step, ignoring guards
func (m *Machine[S, A, D]) Targets(current S) []S {
	var out []S
	for _, r := range m.rows {
		if !slices.Contains(r.From, current) {
			continue
		}
		to := r.To
		if r.KeepState {
			to = current
		}
		if !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	return out
}

// Actions returns every action the machine declares, in table order
func (m *Machine[S, A, D]) Actions() []A {
	var out []A
	for _, r := range m.rows {
		if !slices.Contains(out, r.Action) {
			out = append(out, r.Action)
		}
	}
	return out
}

func (m *Machine[S, A, D]) knows(action A) bool {
	for _, r := range m.rows {
		if r.Action == action {
			return true
		}
	}
	return false
}
