package tts

import "testing"

// TestTransportStateString tests the String() method for TransportState.
func TestTransportStateString(t *testing.T) {
	tests := []struct {
		state    TransportState
		expected string
	}{
		{StateIdle, "idle"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{TransportState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("TransportState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewStateMachineStartsIdle(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Errorf("expected initial state idle, got %s", sm.Current())
	}
}

// TestStateMachineTransitions tests the transition table.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []TransportState
		to    TransportState
		valid bool
	}{
		{"idle to playing", nil, StatePlaying, true},
		{"idle to paused", nil, StatePaused, false},
		{"idle to idle", nil, StateIdle, false},
		{"playing to paused", []TransportState{StatePlaying}, StatePaused, true},
		{"playing to idle", []TransportState{StatePlaying}, StateIdle, true},
		{"playing to playing", []TransportState{StatePlaying}, StatePlaying, false},
		{"paused to playing", []TransportState{StatePlaying, StatePaused}, StatePlaying, true},
		{"paused to idle", []TransportState{StatePlaying, StatePaused}, StateIdle, true},
		{"paused to paused", []TransportState{StatePlaying, StatePaused}, StatePaused, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for _, s := range tt.path {
				if !sm.Transition(s) {
					t.Fatalf("setup transition to %s failed", s)
				}
			}
			before := sm.Current()

			got := sm.Transition(tt.to)
			if got != tt.valid {
				t.Errorf("Transition(%s) = %v, want %v", tt.to, got, tt.valid)
			}
			if !tt.valid && sm.Current() != before {
				t.Errorf("invalid transition changed state from %s to %s", before, sm.Current())
			}
		})
	}
}

func TestStateMachineCallbacks(t *testing.T) {
	sm := NewStateMachine()

	entered := 0
	sm.OnEnter(StatePlaying, func() { entered++ })

	var seen [][2]TransportState
	sm.OnTransition(func(from, to TransportState) {
		seen = append(seen, [2]TransportState{from, to})
	})

	sm.Transition(StatePlaying)
	sm.Transition(StatePaused)
	sm.Transition(StatePaused) // invalid, no callback
	sm.Transition(StatePlaying)
	sm.Transition(StateIdle)

	if entered != 2 {
		t.Errorf("expected playing entered twice, got %d", entered)
	}

	want := [][2]TransportState{
		{StateIdle, StatePlaying},
		{StatePlaying, StatePaused},
		{StatePaused, StatePlaying},
		{StatePlaying, StateIdle},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"single", ModeSingle, false},
		{"queue", ModeQueue, false},
		{"", ModeQueue, false},
		{"stream", ModeStream, false},
		{"export", ModeExport, false},
		{"karaoke", ModeQueue, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
