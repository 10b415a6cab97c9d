package sessionbroker

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := &Session{ID: "c1"}
	for _, next := range []State{StateCreated, StateActivated, StateRunning, StateTerminated} {
		if err := s.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if s.State() != StateTerminated {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSessionReleasedOnFailureFrom(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{StateCreated}},
		{[]State{StateCreated, StateActivated}},
		{[]State{StateCreated, StateActivated, StateRunning}},
	}
	for _, tt := range tests {
		s := &Session{}
		for _, st := range tt.path {
			if err := s.advance(st); err != nil {
				t.Fatalf("advance to %s: %v", st, err)
			}
		}
		if err := s.advance(StateReleasedOnFailure); err != nil {
			t.Fatalf("release from %s: %v", s.State(), err)
		}
	}
}

func TestSessionIllegalTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StateRequested, StateActivated},
		{StateRequested, StateRunning},
		{StateRequested, StateReleasedOnFailure},
		{StateCreated, StateRunning},
		{StateCreated, StateTerminated},
		{StateActivated, StateCreated},
		{StateTerminated, StateReleasedOnFailure},
		{StateReleasedOnFailure, StateRunning},
	}
	for _, tt := range tests {
		s := &Session{state: tt.from}
		if err := s.advance(tt.to); err == nil {
			t.Fatalf("%s -> %s allowed", tt.from, tt.to)
		}
		if s.State() != tt.from {
			t.Fatalf("failed transition changed state to %s", s.State())
		}
	}
}

func TestSessionInfo(t *testing.T) {
	s := &Session{ID: "c1", Path: "/org/freedesktop/login1/session/c1", RuntimeDir: "/run/user/1000", UID: 1000, Seat: "seat0"}
	info := s.Info()
	if info.State != "requested" || info.Path != "/org/freedesktop/login1/session/c1" || info.UID != 1000 {
		t.Fatalf("info = %+v", info)
	}
}
