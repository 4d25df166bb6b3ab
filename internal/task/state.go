package task

// State is a step of the background task lifecycle
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateCanceled  State = "CANCELED"
	StateFailed    State = "FAILED"
)

var validStates = map[State]bool{
	StateIdle:      true,
	StateRunning:   true,
	StateCompleted: true,
	StateCanceled:  true,
	StateFailed:    true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCanceled:  true,
	StateFailed:    true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known task state
func (s State) IsValid() bool {
	return validStates[s]
}

// Trigger is an event that moves a task between states
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
	TriggerFail     Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
