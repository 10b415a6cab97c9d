package sessionbroker

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// State is a Session's lifecycle position.
type State int

const (
	StateRequested State = iota
	StateCreated
	StateActivated
	StateRunning
	StateTerminated
	StateReleasedOnFailure
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateCreated:
		return "created"
	case StateActivated:
		return "activated"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateReleasedOnFailure:
		return "released_on_failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateRequested: {StateCreated},
	StateCreated:   {StateActivated, StateReleasedOnFailure},
	StateActivated: {StateRunning, StateReleasedOnFailure},
	StateRunning:   {StateTerminated, StateReleasedOnFailure},
}

// Session is a manager session owned by one Login call.
type Session struct {
	ID         string
	Path       dbus.ObjectPath
	RuntimeDir string
	UID        uint32
	Seat       string

	state State
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// advance moves the session to next, leaving it untouched when the move is
// not allowed.
func (s *Session) advance(next State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("sessionbroker: illegal session transition %s -> %s", s.state, next)
}

// Info is a loggable snapshot of a session.
type Info struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	RuntimeDir string `json:"runtimeDir"`
	UID        uint32 `json:"uid"`
	Seat       string `json:"seat"`
	State      string `json:"state"`
}

func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		Path:       string(s.Path),
		RuntimeDir: s.RuntimeDir,
		UID:        s.UID,
		Seat:       s.Seat,
		State:      s.state.String(),
	}
}
