package tts

// StateMachine manages transport state transitions. It is not safe for
// concurrent use; the playback coordinator is its only writer.
type StateMachine struct {
	current     TransportState
	transitions map[TransportState][]TransportState
	onEnter     map[TransportState]func()
	listeners   []func(from, to TransportState)
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[TransportState][]TransportState{
			StateIdle:    {StatePlaying},
			StatePlaying: {StatePaused, StateIdle},
			StatePaused:  {StatePlaying, StateIdle},
		},
		onEnter: make(map[TransportState]func()),
	}
}

// Transition attempts to transition to the specified state. It returns
// false, leaving the state untouched, when the move is not in the table.
func (sm *StateMachine) Transition(to TransportState) bool {
	if !sm.CanTransition(to) {
		return false
	}

	from := sm.current
	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}
	for _, fn := range sm.listeners {
		fn(from, to)
	}

	return true
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to TransportState) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Current returns the current state.
func (sm *StateMachine) Current() TransportState {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state TransportState, fn func()) {
	sm.onEnter[state] = fn
}

// OnTransition registers a callback invoked after every successful
// transition.
func (sm *StateMachine) OnTransition(fn func(from, to TransportState)) {
	sm.listeners = append(sm.listeners, fn)
}
