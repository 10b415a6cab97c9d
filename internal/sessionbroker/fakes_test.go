package sessionbroker

import (
	"context"
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/Dennisbonke/wayland-greeter/internal/identity"
	"github.com/Dennisbonke/wayland-greeter/internal/login1"
	"github.com/Dennisbonke/wayland-greeter/internal/secmem"
)

type fakeUsers struct {
	accounts map[string]*identity.Account
	lookups  int
}

func (f *fakeUsers) Lookup(username string) (*identity.Account, error) {
	f.lookups++
	a, ok := f.accounts[username]
	if !ok {
		return nil, identity.ErrUnknownUser
	}
	cp := *a
	return &cp, nil
}

type fakeVerifier struct {
	passwords map[string]string
	canonical map[string]string
	calls     int
}

var errBadPassword = errors.New("bad password")

func (f *fakeVerifier) Authenticate(ctx context.Context, username string, secret *secmem.SecureString) (string, error) {
	f.calls++
	if f.passwords[username] != secret.Reveal() {
		return "", errBadPassword
	}
	if c, ok := f.canonical[username]; ok {
		return c, nil
	}
	return username, nil
}

// fakeManager counts every call and fails the ones it is told to.
type fakeManager struct {
	mu sync.Mutex

	createErr   error
	activateErr error
	releaseErr  error
	onActivate  func()
	existing    bool

	creates, activates, releases, closes int
	lastRequest                          login1.SessionRequest
	activatedPath, releasedPath          dbus.ObjectPath
}

const testSessionPath = dbus.ObjectPath("/org/freedesktop/login1/session/c7")

func (f *fakeManager) CreateSession(ctx context.Context, req login1.SessionRequest) (*login1.CreatedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastRequest = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &login1.CreatedSession{ID: "c7", Path: testSessionPath, FIFO: -1, Existing: f.existing}, nil
}

func (f *fakeManager) ActivateSession(ctx context.Context, path dbus.ObjectPath) error {
	f.mu.Lock()
	f.activates++
	f.activatedPath = path
	hook := f.onActivate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.activateErr
}

func (f *fakeManager) ReleaseSession(ctx context.Context, path dbus.ObjectPath) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.releasedPath = path
	return f.releaseErr
}

func (f *fakeManager) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// calls is the number of manager operations, excluding Close.
func (f *fakeManager) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates + f.activates + f.releases
}

// countingRunner starts real processes and records every spec.
type countingRunner struct {
	inner  ProcessRunner
	starts int
	specs  []Spec
}

func (r *countingRunner) Start(spec Spec) (Process, error) {
	r.starts++
	r.specs = append(r.specs, spec)
	return r.inner.Start(spec)
}
