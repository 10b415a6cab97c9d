package sessionbroker

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/Dennisbonke/wayland-greeter/internal/login1"
)

// SessionManager is the part of the login manager a login needs.
// *login1.Client satisfies it.
type SessionManager interface {
	CreateSession(ctx context.Context, req login1.SessionRequest) (*login1.CreatedSession, error)
	ActivateSession(ctx context.Context, path dbus.ObjectPath) error
	ReleaseSession(ctx context.Context, path dbus.ObjectPath) error
	Close() error
}

// ManagerDialer opens one manager connection per login.
type ManagerDialer func(ctx context.Context) (SessionManager, error)

// Login1Dialer dials logind on the system bus.
func Login1Dialer(callTimeout time.Duration) ManagerDialer {
	return func(ctx context.Context) (SessionManager, error) {
		c, err := login1.Dial(ctx, callTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
