package sessionbroker

import (
	"errors"
	"fmt"
)

// Kind classifies a failed login. Kinds are stable; callers map them to
// user-facing text with UserMessage.
type Kind int

const (
	KindNoSuchUser Kind = iota + 1
	KindAuthenticationFailed
	KindManagerUnreachable
	KindSessionCreationFailed
	KindSessionActivationFailed
	KindSpawnFailed
)

var (
	ErrNoSuchUser              = errors.New("sessionbroker: no such user")
	ErrAuthenticationFailed    = errors.New("sessionbroker: authentication failed")
	ErrManagerUnreachable      = errors.New("sessionbroker: session manager unreachable")
	ErrSessionCreationFailed   = errors.New("sessionbroker: session creation failed")
	ErrSessionActivationFailed = errors.New("sessionbroker: session activation failed")
	ErrSpawnFailed             = errors.New("sessionbroker: spawn failed")

	errEmptyCommand = errors.New("empty command")
)

// Exit codes returned by Login when no child exit status is available.
const (
	ExitAbnormal    = 1
	ExitSetupFailed = 125
	ExitSpawnFailed = 127
)

func (k Kind) String() string {
	switch k {
	case KindNoSuchUser:
		return "no_such_user"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindManagerUnreachable:
		return "manager_unreachable"
	case KindSessionCreationFailed:
		return "session_creation_failed"
	case KindSessionActivationFailed:
		return "session_activation_failed"
	case KindSpawnFailed:
		return "spawn_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNoSuchUser:
		return ErrNoSuchUser
	case KindAuthenticationFailed:
		return ErrAuthenticationFailed
	case KindManagerUnreachable:
		return ErrManagerUnreachable
	case KindSessionCreationFailed:
		return ErrSessionCreationFailed
	case KindSessionActivationFailed:
		return ErrSessionActivationFailed
	case KindSpawnFailed:
		return ErrSpawnFailed
	}
	return nil
}

// Error is a failed login. Err is the underlying cause; Rollback holds a
// failure to release the session afterwards and never changes Kind.
type Error struct {
	Kind     Kind
	Err      error
	Rollback error
}

func (e *Error) Error() string {
	msg := "sessionbroker: " + e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Rollback != nil {
		msg += " (release failed: " + e.Rollback.Error() + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of a login error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// UserMessage returns the text to show the person at the greeter. Manager
// and back-end details stay in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind, _ := KindOf(err)
	switch kind {
	case KindNoSuchUser:
		return "unknown user"
	case KindAuthenticationFailed:
		return "invalid credentials"
	case KindSpawnFailed:
		return "could not start program"
	default:
		return "could not start session"
	}
}

// ExitCode is the broker's exit status for a login that failed before a
// child exit status existed.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if kind, _ := KindOf(err); kind == KindSpawnFailed {
		return ExitSpawnFailed
	}
	return ExitSetupFailed
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
