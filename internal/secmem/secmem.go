package secmem

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
)

var log = logging.L("secmem")

// SecureString holds a login secret with best-effort memory hygiene: the
// backing bytes are locked against swap where the platform allows it and
// overwritten by Zero. Go's GC may still copy the array, and any string
// returned by Reveal is an ordinary heap copy.
//
// String() returns [REDACTED] so a secret cannot leak through fmt or slog.
// Use Reveal() to get the plaintext value explicitly.
type SecureString struct {
	mu         sync.Mutex
	data       []byte
	locked     bool
	zeroed     atomic.Bool
	warnedOnce atomic.Bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return newLocked(b)
}

// NewSecureBytes takes a copy of b and zeroes the caller's slice, so only
// the SecureString holds the secret afterwards.
func NewSecureBytes(b []byte) *SecureString {
	data := make([]byte, len(b))
	copy(data, b)
	for i := range b {
		b[i] = 0
	}
	return newLocked(data)
}

func newLocked(data []byte) *SecureString {
	s := &SecureString{data: data}
	if len(data) > 0 {
		if err := lockMemory(data); err != nil {
			log.Debug("mlock unavailable for secret", "error", err)
		} else {
			s.locked = true
		}
	}
	return s
}

// Reveal returns the plaintext value. Use only at the point of actual use
// (answering a password prompt).
// Returns "" if the receiver is nil or the data has been zeroed.
// Logs a warning once after Zero() to aid debugging without log spam.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	isZeroed := s.data == nil && s.zeroed.Load()
	val := string(s.data)
	s.mu.Unlock()

	if isZeroed {
		if s.warnedOnce.CompareAndSwap(false, true) {
			log.Warn("Reveal() called after Zero(), secret has been wiped")
		}
		return ""
	}
	return val
}

// Len returns the secret length in bytes, or 0 after Zero.
func (s *SecureString) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// IsZeroed returns true if Zero() has been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	return s.zeroed.Load()
}

// String returns [REDACTED] to prevent accidental plaintext leaking via
// fmt.Println(secret) or similar fmt.Stringer usage.
func (s *SecureString) String() string {
	return "[REDACTED]"
}

// GoString returns a redacted representation for %#v.
func (s *SecureString) GoString() string {
	return "[REDACTED]"
}

// Format implements fmt.Formatter to ensure all format verbs produce [REDACTED].
func (s *SecureString) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

// LogValue keeps slog from ever rendering the plaintext.
func (s *SecureString) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// MarshalJSON returns "[REDACTED]" to prevent JSON serialization of plaintext.
func (s *SecureString) MarshalJSON() ([]byte, error) {
	return json.Marshal("[REDACTED]")
}

// MarshalText returns [REDACTED] to prevent text serialization of plaintext.
func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Zero overwrites the backing byte slice with zeros and releases the lock.
// Safe to call more than once.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	if s.locked {
		unlockMemory(s.data)
		s.locked = false
	}
	s.data = nil
	s.zeroed.Store(true)
}

// UnmarshalJSON rejects deserialization to prevent accidentally populating a
// SecureString from untrusted JSON input.
func (s *SecureString) UnmarshalJSON(data []byte) error {
	return fmt.Errorf("secmem: cannot deserialize into SecureString")
}
