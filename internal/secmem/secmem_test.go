package secmem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRevealReturnsOriginalValue(t *testing.T) {
	s := NewSecureString("hunter2")
	defer s.Zero()
	if got := s.Reveal(); got != "hunter2" {
		t.Fatalf("Reveal() = %q, want %q", got, "hunter2")
	}
}

func TestRevealOnNilReturnsEmpty(t *testing.T) {
	var s *SecureString
	if got := s.Reveal(); got != "" {
		t.Fatalf("nil Reveal() = %q, want empty", got)
	}
}

func TestRevealAfterZeroReturnsEmpty(t *testing.T) {
	s := NewSecureString("secret")
	s.Zero()
	if got := s.Reveal(); got != "" {
		t.Fatalf("Reveal() after Zero() = %q, want empty", got)
	}
	if !s.IsZeroed() {
		t.Fatal("IsZeroed() = false after Zero()")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() after Zero() = %d, want 0", s.Len())
	}
}

func TestNewSecureBytesWipesSource(t *testing.T) {
	src := []byte("correct horse")
	s := NewSecureBytes(src)
	defer s.Zero()

	if !bytes.Equal(src, make([]byte, len(src))) {
		t.Fatalf("source not wiped: %q", src)
	}
	if got := s.Reveal(); got != "correct horse" {
		t.Fatalf("Reveal() = %q", got)
	}
	if s.Len() != len("correct horse") {
		t.Fatalf("Len() = %d", s.Len())
	}
}

func TestEmptySecret(t *testing.T) {
	s := NewSecureString("")
	if s.Reveal() != "" || s.Len() != 0 {
		t.Fatal("empty secret should reveal empty")
	}
	s.Zero()
	s.Zero()
}

func TestFormatAllVerbsRedacted(t *testing.T) {
	s := NewSecureString("secret")
	defer s.Zero()

	for _, format := range []string{"%s", "%v", "%+v", "%#v", "%q", "%x"} {
		if got := fmt.Sprintf(format, s); got != "[REDACTED]" {
			t.Errorf("fmt.Sprintf(%q, s) = %q, want [REDACTED]", format, got)
		}
	}
}

func TestSlogRedacts(t *testing.T) {
	s := NewSecureString("pa55word")
	defer s.Zero()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("credential", "secret", s)

	if strings.Contains(buf.String(), "pa55word") {
		t.Fatalf("secret leaked into log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Fatalf("expected redaction marker, got: %s", buf.String())
	}
}

func TestMarshalJSONInStruct(t *testing.T) {
	type loginForm struct {
		Secret   *SecureString `json:"secret"`
		Username string        `json:"username"`
	}
	form := loginForm{Secret: NewSecureString("secret"), Username: "alice"}
	defer form.Secret.Zero()

	data, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if parsed["secret"] != "[REDACTED]" {
		t.Fatalf("secret in JSON = %v, want [REDACTED]", parsed["secret"])
	}
	if parsed["username"] != "alice" {
		t.Fatalf("username in JSON = %v", parsed["username"])
	}
}

func TestUnmarshalJSONRejects(t *testing.T) {
	var s SecureString
	if err := json.Unmarshal([]byte(`"should-fail"`), &s); err == nil {
		t.Fatal("UnmarshalJSON should return an error")
	}
}

func TestZeroOnNilDoesNotPanic(t *testing.T) {
	var s *SecureString
	s.Zero()
}

func TestConcurrentRevealAndZero(t *testing.T) {
	s := NewSecureString("concurrent-test")
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Reveal()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Zero()
	}()

	wg.Wait()

	if got := s.Reveal(); got != "" {
		t.Fatalf("Reveal() after concurrent Zero = %q, want empty", got)
	}
}

func TestRevealAfterZeroWarnsOnce(t *testing.T) {
	s := NewSecureString("secret")
	s.Zero()

	_ = s.Reveal()
	if !s.warnedOnce.Load() {
		t.Fatal("warnedOnce should be true after first Reveal post-Zero")
	}
	_ = s.Reveal()
	if !s.warnedOnce.Load() {
		t.Fatal("warnedOnce should remain true")
	}
}
