package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateIdle, false},
		{StateRunning, false},
		{StateCompleted, true},
		{StateCanceled, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.IsTerminal())
		})
	}
}

func TestState_IsValid(t *testing.T) {
	assert.True(t, StateIdle.IsValid())
	assert.False(t, State("PAUSED").IsValid())
	assert.False(t, State("").IsValid())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "CANCEL", TriggerCancel.String())
}

func TestLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		triggers []Trigger
		want     State
	}{
		{"complete", []Trigger{TriggerStart, TriggerComplete}, StateCompleted},
		{"cancel while running", []Trigger{TriggerStart, TriggerCancel}, StateCanceled},
		{"fail", []Trigger{TriggerStart, TriggerFail}, StateFailed},
		{"cancel before start", []Trigger{TriggerCancel}, StateCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewLifecycle()
			for _, trigger := range tt.triggers {
				require.NoError(t, m.Fire(trigger))
			}
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestLifecycle_TerminalStatesAcceptNothing(t *testing.T) {
	for _, end := range []Trigger{TriggerComplete, TriggerCancel, TriggerFail} {
		m := NewLifecycle()
		require.NoError(t, m.Fire(TriggerStart))
		require.NoError(t, m.Fire(end))

		assert.Empty(t, m.PermittedTriggers())
		for _, trigger := range []Trigger{TriggerStart, TriggerComplete, TriggerCancel, TriggerFail} {
			assert.False(t, m.CanFire(trigger))
			assert.ErrorIs(t, m.Fire(trigger), ErrInvalidTransition)
		}
	}
}

func TestLifecycle_InvalidFromIdle(t *testing.T) {
	m := NewLifecycle()
	assert.ErrorIs(t, m.Fire(TriggerComplete), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fire(TriggerFail), ErrInvalidTransition)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []Trigger{TriggerCancel, TriggerStart}, m.PermittedTriggers())
}

func TestBuilder_Panics(t *testing.T) {
	assert.Panics(t, func() { NewBuilder().Permit(State("X"), TriggerStart, StateRunning) })
	assert.Panics(t, func() { NewBuilder().Permit(StateIdle, TriggerStart, State("X")) })
	assert.Panics(t, func() { NewBuilder().Permit(StateCompleted, TriggerStart, StateRunning) })
	assert.Panics(t, func() { NewBuilder().Build(State("X")) })
}

func TestBuilder_MachinesAreIndependent(t *testing.T) {
	b := NewBuilder().Permit(StateIdle, TriggerStart, StateRunning)
	m1 := b.Build(StateIdle)
	b.Permit(StateIdle, TriggerCancel, StateCanceled)
	m2 := b.Build(StateIdle)

	assert.False(t, m1.CanFire(TriggerCancel))
	assert.True(t, m2.CanFire(TriggerCancel))
}
