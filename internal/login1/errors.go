package login1

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

var (
	ErrUnreachable    = errors.New("login1: session manager unreachable")
	ErrMalformedReply = errors.New("login1: malformed reply")
	ErrInvalidRequest = errors.New("login1: invalid request")

	// ErrExistingSession means logind handed back a session that was
	// already running for the caller instead of creating one. That
	// session belongs to someone else and must not be terminated.
	ErrExistingSession = errors.New("login1: manager returned an existing session")
)

// Operations reported in CallError.Op.
const (
	OpCreate   = "create"
	OpActivate = "activate"
	OpRelease  = "release"
	OpList     = "list"
)

// CallError is a failed method call. Name carries the D-Bus error name when
// the manager rejected the call; it is empty for transport failures, which
// also match ErrUnreachable.
type CallError struct {
	Op   string
	Path dbus.ObjectPath
	Name string
	Err  error
}

func (e *CallError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("login1: %s %s: %s: %v", e.Op, e.Path, e.Name, e.Err)
	}
	return fmt.Sprintf("login1: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsActivationError reports whether err came from ActivateSession.
func IsActivationError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Op == OpActivate
}

// classify wraps a raw godbus error. Error replies from the manager keep
// their name; anything else is treated as a transport failure.
func classify(op string, path dbus.ObjectPath, err error) error {
	if name, ok := remoteErrorName(err); ok {
		return &CallError{Op: op, Path: path, Name: name, Err: err}
	}
	return &CallError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
}

func remoteErrorName(err error) (string, bool) {
	var byValue dbus.Error
	if errors.As(err, &byValue) {
		return byValue.Name, true
	}
	var byRef *dbus.Error
	if errors.As(err, &byRef) && byRef != nil {
		return byRef.Name, true
	}
	return "", false
}
