package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/Dennisbonke/wayland-greeter/internal/secmem"
)

// fakeBackend plays a fixed script of prompts and accepts the answer to
// the first secret prompt when it equals password.
type fakeBackend struct {
	password  string
	script    []PromptKind
	acctErr   error
	finalUser string
	startErr  error

	service  string
	answers  []string
	convErr  error
	acctRuns int
	ended    bool
}

type fakeTx struct {
	b    *fakeBackend
	conv ConversationFunc
	user string
}

func (b *fakeBackend) Start(service, username string, conv ConversationFunc) (Transaction, error) {
	b.service = service
	if b.startErr != nil {
		return nil, b.startErr
	}
	return &fakeTx{b: b, conv: conv, user: username}, nil
}

func (t *fakeTx) Authenticate() error {
	ok := false
	for _, kind := range t.b.script {
		answer, err := t.conv(kind, "prompt")
		if err != nil {
			t.b.convErr = err
			return errors.New("conversation error")
		}
		t.b.answers = append(t.b.answers, answer)
		if kind == PromptSecret && answer == t.b.password {
			ok = true
		}
	}
	if !ok {
		return errors.New("authentication failure")
	}
	return nil
}

func (t *fakeTx) AcctMgmt() error {
	t.b.acctRuns++
	return t.b.acctErr
}

func (t *fakeTx) User() (string, error) {
	if t.b.finalUser != "" {
		return t.b.finalUser, nil
	}
	return t.user, nil
}

func (t *fakeTx) End() error {
	t.b.ended = true
	return nil
}

func TestAuthenticateAnswersPrompts(t *testing.T) {
	b := &fakeBackend{
		password: "hunter2",
		script:   []PromptKind{MessageInfo, PromptVisible, PromptSecret, MessageError},
	}
	v := NewVerifier(b, "login")

	user, err := v.Authenticate(context.Background(), "alice", secmem.NewSecureString("hunter2"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user != "alice" {
		t.Fatalf("user = %q, want alice", user)
	}
	if b.service != "login" {
		t.Fatalf("service = %q, want login", b.service)
	}
	want := []string{"", "", "hunter2", ""}
	if len(b.answers) != len(want) {
		t.Fatalf("answers = %q, want %q", b.answers, want)
	}
	for i := range want {
		if b.answers[i] != want[i] {
			t.Fatalf("answer %d = %q, want %q", i, b.answers[i], want[i])
		}
	}
	if b.acctRuns != 1 {
		t.Fatalf("account check ran %d times, want 1", b.acctRuns)
	}
	if !b.ended {
		t.Fatal("transaction not ended")
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	b := &fakeBackend{password: "hunter2", script: []PromptKind{PromptSecret}}
	v := NewVerifier(b, "login")

	_, err := v.Authenticate(context.Background(), "alice", secmem.NewSecureString("wrong"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
	if b.acctRuns != 0 {
		t.Fatal("account check ran after failed authentication")
	}
	if !b.ended {
		t.Fatal("transaction not ended after failure")
	}
}

func TestAuthenticateAccountCheckFailsAlone(t *testing.T) {
	b := &fakeBackend{
		password: "hunter2",
		script:   []PromptKind{PromptSecret},
		acctErr:  errors.New("account expired"),
	}
	v := NewVerifier(b, "login")

	_, err := v.Authenticate(context.Background(), "alice", secmem.NewSecureString("hunter2"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
}

func TestAuthenticateUnknownPromptAborts(t *testing.T) {
	b := &fakeBackend{
		password: "hunter2",
		script:   []PromptKind{PromptKind(42), PromptSecret},
	}
	v := NewVerifier(b, "login")

	_, err := v.Authenticate(context.Background(), "alice", secmem.NewSecureString("hunter2"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
	if !errors.Is(b.convErr, ErrConversation) {
		t.Fatalf("conversation error = %v, want ErrConversation", b.convErr)
	}
	if len(b.answers) != 0 {
		t.Fatalf("secret prompt answered after abort: %q", b.answers)
	}
}

func TestAuthenticateReturnsCanonicalUser(t *testing.T) {
	b := &fakeBackend{password: "pw", script: []PromptKind{PromptSecret}, finalUser: "alice"}
	v := NewVerifier(b, "login")

	user, err := v.Authenticate(context.Background(), "Alice", secmem.NewSecureString("pw"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user != "alice" {
		t.Fatalf("user = %q, want alice", user)
	}
}

func TestAuthenticateStartFailure(t *testing.T) {
	b := &fakeBackend{startErr: ErrUnavailable}
	v := NewVerifier(b, "login")

	_, err := v.Authenticate(context.Background(), "alice", secmem.NewSecureString("pw"))
	if !errors.Is(err, ErrAuthFailed) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrAuthFailed wrapping ErrUnavailable", err)
	}
}

func TestAuthenticateCancelledContext(t *testing.T) {
	b := &fakeBackend{password: "pw", script: []PromptKind{PromptSecret}}
	v := NewVerifier(b, "login")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Authenticate(ctx, "alice", secmem.NewSecureString("pw")); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if b.service != "" {
		t.Fatal("back end started with a cancelled context")
	}
}
