// Package login1 is a client for the systemd-logind D-Bus API, covering the
// calls a greeter needs to create, activate and abandon a session.
package login1

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
)

var log = logging.L("login1")

const (
	BusName          = "org.freedesktop.login1"
	ManagerPath      = dbus.ObjectPath("/org/freedesktop/login1")
	ManagerInterface = "org.freedesktop.login1.Manager"
	SessionInterface = "org.freedesktop.login1.Session"

	// DefaultCallTimeout matches the D-Bus reference implementation's
	// default method-call timeout.
	DefaultCallTimeout = 25 * time.Second
)

// caller performs one method call on the manager's bus name.
type caller interface {
	Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error)
}

type busCaller struct {
	conn *dbus.Conn
}

func (b busCaller) Call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := b.conn.Object(BusName, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

// Client talks to logind over one private system-bus connection.
type Client struct {
	caller  caller
	closer  func() error
	timeout time.Duration

	mu    sync.Mutex
	fifos map[dbus.ObjectPath]int
}

// Dial opens a private connection to the system bus. The connection is
// owned by the returned Client and released by Close.
func Dial(ctx context.Context, callTimeout time.Duration) (*Client, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return newClient(busCaller{conn: conn}, conn.Close, callTimeout), nil
}

func newClient(c caller, closer func() error, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		caller:  c,
		closer:  closer,
		timeout: timeout,
		fifos:   make(map[dbus.ObjectPath]int),
	}
}

func (c *Client) call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.caller.Call(ctx, path, method, args...)
}

// CreateSession registers a new session with logind.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*CreatedSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := c.call(ctx, ManagerPath, ManagerInterface+".CreateSession", req.Args()...)
	if err != nil {
		return nil, classify(OpCreate, ManagerPath, err)
	}

	s, err := ParseCreateReply(body)
	if err != nil {
		closeFIFOs(body)
		return nil, &CallError{Op: OpCreate, Path: ManagerPath, Err: err}
	}

	if s.Existing {
		if s.FIFO >= 0 {
			unix.Close(s.FIFO)
		}
		log.Warn("manager returned an existing session", "sessionId", s.ID, "sessionPath", s.Path)
		return nil, &CallError{Op: OpCreate, Path: s.Path, Err: ErrExistingSession}
	}
	if s.FIFO >= 0 {
		c.mu.Lock()
		c.fifos[s.Path] = s.FIFO
		c.mu.Unlock()
	}
	log.Debug("session created", "sessionId", s.ID, "sessionPath", s.Path, "runtimePath", s.RuntimePath)
	return s, nil
}

// ActivateSession brings the session to the foreground of its seat.
func (c *Client) ActivateSession(ctx context.Context, path dbus.ObjectPath) error {
	if !path.IsValid() {
		return &CallError{Op: OpActivate, Path: path, Err: fmt.Errorf("%w: invalid object path", ErrInvalidRequest)}
	}
	if _, err := c.call(ctx, path, SessionInterface+".Activate"); err != nil {
		return classify(OpActivate, path, err)
	}
	return nil
}

// ReleaseSession abandons a session: it asks logind to terminate it and
// drops the session FIFO. Callers on a failure path log the returned error
// and carry on.
func (c *Client) ReleaseSession(ctx context.Context, path dbus.ObjectPath) error {
	c.dropFIFO(path)

	if !path.IsValid() {
		return &CallError{Op: OpRelease, Path: path, Err: fmt.Errorf("%w: invalid object path", ErrInvalidRequest)}
	}
	if _, err := c.call(ctx, path, SessionInterface+".Terminate"); err != nil {
		return classify(OpRelease, path, err)
	}
	return nil
}

// ListSessions returns the manager's current sessions.
func (c *Client) ListSessions(ctx context.Context) ([]SessionEntry, error) {
	body, err := c.call(ctx, ManagerPath, ManagerInterface+".ListSessions")
	if err != nil {
		return nil, classify(OpList, ManagerPath, err)
	}
	entries, err := parseSessionList(body)
	if err != nil {
		return nil, &CallError{Op: OpList, Path: ManagerPath, Err: err}
	}
	return entries, nil
}

// Close drops any session FIFOs still held and closes the bus connection.
// logind ends a session once its FIFO is closed.
func (c *Client) Close() error {
	c.mu.Lock()
	fifos := c.fifos
	c.fifos = make(map[dbus.ObjectPath]int)
	c.mu.Unlock()

	for _, fd := range fifos {
		unix.Close(fd)
	}
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) dropFIFO(path dbus.ObjectPath) {
	c.mu.Lock()
	fd, ok := c.fifos[path]
	delete(c.fifos, path)
	c.mu.Unlock()
	if ok {
		unix.Close(fd)
	}
}

// closeFIFOs closes descriptors carried by a reply that is being discarded.
func closeFIFOs(body []any) {
	for _, v := range body {
		if fd, ok := v.(dbus.UnixFD); ok {
			unix.Close(int(fd))
		}
	}
}
