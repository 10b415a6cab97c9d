// Package sessionbroker logs a user in on a seat and runs one program in
// the resulting session.
package sessionbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Dennisbonke/wayland-greeter/internal/audit"
	"github.com/Dennisbonke/wayland-greeter/internal/config"
	"github.com/Dennisbonke/wayland-greeter/internal/identity"
	"github.com/Dennisbonke/wayland-greeter/internal/logging"
	"github.com/Dennisbonke/wayland-greeter/internal/login1"
	"github.com/Dennisbonke/wayland-greeter/internal/privilege"
	"github.com/Dennisbonke/wayland-greeter/internal/secmem"
)

var log = logging.L("sessionbroker")

// releaseTimeout bounds a rollback call made after the login context is
// already done.
const releaseTimeout = 5 * time.Second

// Authenticator checks a secret and returns the back end's final user
// name. *auth.Verifier satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, username string, secret *secmem.SecureString) (string, error)
}

// LoginRequest is one login attempt. Login zeroes Secret before it
// returns.
type LoginRequest struct {
	Username string
	Secret   *secmem.SecureString
	Seat     string
	Command  []string
}

// Options wires a Broker. Users, Verifier, Dial and Runner are required;
// the rest default to the running process.
type Options struct {
	Config   *config.Config
	Users    identity.Resolver
	Verifier Authenticator
	Dial     ManagerDialer
	Runner   ProcessRunner
	Audit    *audit.Logger

	Environ func() []string
	IsRoot  func() bool
	PID     func() int
}

// Broker runs login attempts one at a time.
type Broker struct {
	cfg      *config.Config
	users    identity.Resolver
	verifier Authenticator
	dial     ManagerDialer
	runner   ProcessRunner
	audit    *audit.Logger

	environ func() []string
	isRoot  func() bool
	pid     func() int
}

// New creates a broker from opts.
func New(opts Options) *Broker {
	b := &Broker{
		cfg:      opts.Config,
		users:    opts.Users,
		verifier: opts.Verifier,
		dial:     opts.Dial,
		runner:   opts.Runner,
		audit:    opts.Audit,
		environ:  opts.Environ,
		isRoot:   opts.IsRoot,
		pid:      opts.PID,
	}
	if b.cfg == nil {
		b.cfg = config.Default()
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.environ == nil {
		b.environ = os.Environ
	}
	if b.isRoot == nil {
		b.isRoot = privilege.IsRunningAsRoot
	}
	if b.pid == nil {
		b.pid = os.Getpid
	}
	return b
}

// Login authenticates req.Username, creates and activates a session on
// the seat, runs req.Command in it and waits for the program to exit.
//
// On success the program's exit code is returned with a nil error; a
// program killed by a signal or the configured timeout yields ExitAbnormal.
// Any failure before the program runs returns ExitCode(err) and an *Error.
func (b *Broker) Login(ctx context.Context, req LoginRequest) (int, error) {
	defer req.Secret.Zero()

	seat := req.Seat
	if seat == "" {
		seat = b.cfg.DefaultSeat
	}
	if seat == "" {
		seat = "seat0"
	}
	logger := logging.WithLogin(log, req.Username, seat)
	b.record(audit.EventLoginAttempt, "", map[string]any{"username": req.Username, "seat": seat})

	code, err := b.login(ctx, logger, req, seat)
	if err != nil {
		kind, _ := KindOf(err)
		logger.Warn("login failed", "kind", kind.String(), logging.KeyError, err.Error())
		b.record(audit.EventLoginRejected, "", map[string]any{
			"username": req.Username,
			"seat":     seat,
			"kind":     kind.String(),
		})
		return ExitCode(err), err
	}
	return code, nil
}

func (b *Broker) login(ctx context.Context, logger *slog.Logger, req LoginRequest, seat string) (int, error) {
	if len(req.Command) == 0 || req.Command[0] == "" {
		return 0, newError(KindSpawnFailed, errEmptyCommand)
	}

	acct, err := b.users.Lookup(req.Username)
	if err != nil {
		return 0, newError(KindNoSuchUser, err)
	}

	authUser, err := b.verifier.Authenticate(ctx, req.Username, req.Secret)
	req.Secret.Zero()
	if err != nil {
		return 0, newError(KindAuthenticationFailed, err)
	}
	if acct, err = b.revalidate(acct, authUser); err != nil {
		return 0, newError(KindAuthenticationFailed, err)
	}

	mgr, err := b.dial(ctx)
	if err != nil {
		return 0, newError(KindManagerUnreachable, err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Debug("closing manager connection", logging.KeyError, err.Error())
		}
	}()

	sreq, err := b.sessionRequest(acct.UID, seat)
	if err != nil {
		return 0, newError(KindSessionCreationFailed, err)
	}

	s := &Session{UID: acct.UID, Seat: seat, RuntimeDir: identity.RuntimeDir(acct.UID)}
	created, err := mgr.CreateSession(ctx, sreq)
	if err != nil {
		if errors.Is(err, login1.ErrUnreachable) {
			return 0, newError(KindManagerUnreachable, err)
		}
		return 0, newError(KindSessionCreationFailed, err)
	}
	if created.Existing {
		// Not ours to activate or terminate.
		return 0, newError(KindSessionCreationFailed, &login1.CallError{Op: login1.OpCreate, Path: created.Path, Err: login1.ErrExistingSession})
	}
	s.ID, s.Path = created.ID, created.Path
	if err := s.advance(StateCreated); err != nil {
		return 0, b.fail(mgr, s, KindSessionCreationFailed, err)
	}
	logger = logger.With(logging.KeySessionID, s.ID, logging.KeySessionObj, string(s.Path))
	logger.Info("session created", logging.KeyUID, acct.UID)
	b.record(audit.EventSessionCreated, s.ID, map[string]any{"username": acct.Username, "uid": acct.UID, "seat": seat})

	if err := mgr.ActivateSession(ctx, s.Path); err != nil {
		return 0, b.fail(mgr, s, KindSessionActivationFailed, err)
	}
	if err := s.advance(StateActivated); err != nil {
		return 0, b.fail(mgr, s, KindSessionActivationFailed, err)
	}
	b.record(audit.EventSessionActive, s.ID, nil)

	if err := ctx.Err(); err != nil {
		return 0, b.fail(mgr, s, KindSpawnFailed, err)
	}

	spec := b.spawnSpec(req.Command, acct, s)
	proc, err := b.runner.Start(spec)
	if err != nil {
		return 0, b.fail(mgr, s, KindSpawnFailed, fmt.Errorf("start %s: %w", req.Command[0], err))
	}
	if err := s.advance(StateRunning); err != nil {
		return 0, b.fail(mgr, s, KindSpawnFailed, err)
	}
	logger.Info("program started", "pid", proc.Pid(), "command", req.Command[0], "dropped", spec.Credential != nil)
	b.record(audit.EventProgramStarted, s.ID, map[string]any{"pid": proc.Pid(), "command": req.Command[0]})

	start := time.Now()
	res := proc.Wait(ctx)
	if err := s.advance(StateTerminated); err != nil {
		logger.Error("session state", logging.KeyError, err.Error())
	}

	code := res.Code
	if res.Signaled || res.TimedOut {
		code = ExitAbnormal
	}
	if res.Err != nil {
		logger.Warn("waiting for program", logging.KeyError, res.Err.Error())
	}
	logger.Info("program exited",
		"exitCode", code,
		"signaled", res.Signaled,
		"timedOut", res.TimedOut,
		logging.KeyDurationMs, time.Since(start).Milliseconds())
	b.record(audit.EventProgramExited, s.ID, map[string]any{
		"exitCode": code,
		"signaled": res.Signaled,
		"timedOut": res.TimedOut,
	})
	return code, nil
}

// revalidate re-resolves the user the back end authenticated and requires
// it to be the account the login was started for.
func (b *Broker) revalidate(acct *identity.Account, authUser string) (*identity.Account, error) {
	if authUser == "" {
		return acct, nil
	}
	again, err := b.users.Lookup(authUser)
	if err != nil {
		return nil, fmt.Errorf("resolve authenticated user %q: %w", authUser, err)
	}
	if again.UID != acct.UID {
		return nil, fmt.Errorf("authenticated user %q has uid %d, login was for uid %d", authUser, again.UID, acct.UID)
	}
	return again, nil
}

func (b *Broker) sessionRequest(uid uint32, seat string) (login1.SessionRequest, error) {
	req := login1.SessionRequest{
		UID:     uid,
		PID:     uint32(b.pid()),
		Service: b.cfg.SessionService,
		Type:    b.cfg.SessionType,
		Class:   b.cfg.SessionClass,
		Desktop: b.cfg.Desktop,
		Seat:    seat,
		VTNr:    uint32(max(b.cfg.DefaultVT, 0)),
	}
	for _, pc := range b.cfg.SessionProperties {
		p, err := login1.NewProperty(pc.Name, pc.Value)
		if err != nil {
			return login1.SessionRequest{}, err
		}
		req.Properties = append(req.Properties, p)
	}
	return req, nil
}

func (b *Broker) spawnSpec(argv []string, acct *identity.Account, s *Session) Spec {
	var base []string
	if b.cfg.InheritEnvironment {
		base = b.environ()
	}

	spec := Spec{
		Argv:    argv,
		Timeout: time.Duration(b.cfg.ProgramTimeoutSeconds) * time.Second,
	}
	var user *userEnv
	if b.cfg.DropPrivileges && b.isRoot() {
		spec.Credential = &Credential{UID: acct.UID, GID: acct.GID, Groups: acct.Groups}
		user = &userEnv{name: acct.Username, home: acct.HomeDir}
	}
	spec.Env = childEnv(base, s, b.cfg.SessionType, b.cfg.SessionClass, uint32(max(b.cfg.DefaultVT, 0)), user)
	return spec
}

// fail releases s once and returns the login error. A release failure is
// kept on the error without changing its kind.
func (b *Broker) fail(mgr SessionManager, s *Session, kind Kind, cause error) error {
	e := newError(kind, cause)

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := mgr.ReleaseSession(ctx, s.Path); err != nil {
		e.Rollback = err
		log.Warn("releasing session", logging.KeySessionID, s.ID, logging.KeyError, err.Error())
	}
	if err := s.advance(StateReleasedOnFailure); err != nil {
		log.Error("session state", logging.KeySessionID, s.ID, logging.KeyError, err.Error())
	}
	b.record(audit.EventSessionReleased, s.ID, map[string]any{
		"kind":          kind.String(),
		"releaseFailed": e.Rollback != nil,
	})
	return e
}

func (b *Broker) record(event, sessionID string, details map[string]any) {
	if b.audit == nil {
		return
	}
	b.audit.Log(event, sessionID, details)
}
