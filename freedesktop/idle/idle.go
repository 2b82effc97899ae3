// Package idle provides an interface to the Freedesktop session
// idleness management and locking DBus API.
//
// For historical reasons, the DBus interface for this API is called
// org.freedesktop.ScreenSaver, which is a bit of a misnomer: the API
// is primarily concerned with managing the locking of a session due
// to idleness, although it also provides a method to explicitly lock
// the session immediately as well.
//
// The API also provides a way for applications to temporarily inhibit
// idleness-based session locking, for example so that movie playback
// isn't disrupted.
package idle

import (
	"context"
	"time"

	"github.com/darlinghq/darling-dbuskit"
)

// Idle is a proxy for the session locking management service.
type Idle struct{ p *dbuskit.Proxy }

// New returns an interface to the session locking management service.
func New(conn *dbuskit.Conn) Idle {
	return Idle{dbuskit.NewProxy(conn, "org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver")}
}

// Locked reports whether the session is currently locked.
func (iface Idle) Locked(ctx context.Context) (bool, error) {
	ret, err := iface.p.Send(ctx, "GetActive")
	if err != nil {
		return false, err
	}
	b, _ := ret.(bool)
	return b, nil
}

// LockedTime reports the amount of time the session has been locked,
// or 0 if the session is not locked.
func (iface Idle) LockedTime(ctx context.Context) (time.Duration, error) {
	ret, err := iface.p.Send(ctx, "GetActiveTime")
	if err != nil {
		return 0, err
	}
	return secondsOf(ret), nil
}

// IdleTime reports the amount of time the session has been idle.
//
// A session may be idle with or without being locked. Idleness has no
// precise definition, but usually translates to a lack of
// keyboard/mouse inputs.
func (iface Idle) IdleTime(ctx context.Context) (time.Duration, error) {
	ret, err := iface.p.Send(ctx, "GetSessionIdleTime")
	if err != nil {
		return 0, err
	}
	return secondsOf(ret), nil
}

func secondsOf(v dbuskit.HostValue) time.Duration {
	n, _ := v.(uint32)
	return time.Duration(n) * time.Second
}

// Inhibit prevents the session from locking due to being idle.
//
// application and reason are human-readable strings that should
// explain what is preventing idle session from locking, and why.
//
// The returned cancellation function should be called when the idle
// lock inhibition should be lifted.
func (iface Idle) Inhibit(ctx context.Context, application, reason string) (cancel func(context.Context) error, err error) {
	ret, err := iface.p.Send(ctx, dbuskit.CanonicalSelector("Inhibit", []string{"application", "reason"}), application, reason)
	if err != nil {
		return nil, err
	}
	cookie, _ := ret.(uint32)
	cancel = func(ctx context.Context) error {
		_, err := iface.p.Send(ctx, dbuskit.CanonicalSelector("UnInhibit", []string{"cookie"}), cookie)
		return err
	}
	return cancel, nil
}

// Lock asks the session to lock immediately.
func (iface Idle) Lock(ctx context.Context) error {
	_, err := iface.p.Send(ctx, "Lock")
	return err
}

// Subscribe reports session lock/unlock transitions as they are
// signalled by the service.
//
// The returned Subscription delivers one Signal per ActiveChanged
// notification, whose sole argument is the new locked state.
func (iface Idle) Subscribe(conn *dbuskit.Conn) *dbuskit.Subscription {
	return conn.Subscribe("org.freedesktop.ScreenSaver", "ActiveChanged", iface.p.Object().Path())
}
