package task

import (
	"fmt"
	"sort"
)

// Builder collects the permitted transitions of a lifecycle
type Builder struct {
	transitions map[State]map[Trigger]State
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger]State)}
}

// Permit allows trigger to move from one state to another
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have transitions", from))
	}
	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger]State)
	}
	b.transitions[from][trigger] = to
	return b
}

// Build creates a machine in the initial state. The machine gets its own
// copy of the transition table.
func (b *Builder) Build(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	table := make(map[State]map[Trigger]State, len(b.transitions))
	for from, triggers := range b.transitions {
		cp := make(map[Trigger]State, len(triggers))
		for trigger, to := range triggers {
			cp[trigger] = to
		}
		table[from] = cp
	}
	return &Machine{current: initial, transitions: table}
}

// Machine tracks the current state and validates transitions. It is not
// safe for concurrent use; Task guards it.
type Machine struct {
	current     State
	transitions map[State]map[Trigger]State
}

// NewLifecycle returns the machine every task runs on:
// IDLE -> RUNNING -> {COMPLETED, CANCELED, FAILED}. A task can also be
// canceled before it ever started.
func NewLifecycle() *Machine {
	return NewBuilder().
		Permit(StateIdle, TriggerStart, StateRunning).
		Permit(StateIdle, TriggerCancel, StateCanceled).
		Permit(StateRunning, TriggerComplete, StateCompleted).
		Permit(StateRunning, TriggerCancel, StateCanceled).
		Permit(StateRunning, TriggerFail, StateFailed).
		Build(StateIdle)
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.current][trigger]
	return ok
}

// Fire executes the trigger
func (m *Machine) Fire(trigger Trigger) error {
	to, ok := m.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

// PermittedTriggers returns the triggers allowed in the current state
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.transitions[m.current]))
	for trigger := range m.transitions[m.current] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
