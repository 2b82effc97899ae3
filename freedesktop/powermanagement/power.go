package powermanagement

import (
	"context"

	"github.com/darlinghq/darling-dbuskit"
)

// PowerManagement is a proxy for the system power management service.
type PowerManagement struct {
	p *dbuskit.Proxy
}

// New returns an interface to the power management service.
func New(conn *dbuskit.Conn) PowerManagement {
	return PowerManagement{dbuskit.NewProxy(conn, "org.freedesktop.PowerManagement", "/org/freedesktop/PowerManagement")}
}

func (iface PowerManagement) callBool(ctx context.Context, selector string) (bool, error) {
	ret, err := iface.p.Send(ctx, selector)
	if err != nil {
		return false, err
	}
	b, _ := ret.(bool)
	return b, nil
}

// CanHibernate reports whether the system is capable of hibernating.
//
// Hibernation, also known as "suspend to disk", saves the system
// state to durable storage and powers the computer off entirely.
func (iface PowerManagement) CanHibernate(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "CanHibernate")
}

// CanHybridSuspend reports whether the system is capable of entering
// hybrid sleep.
//
// Hybrid sleep saves the system state to durable storage, but then
// does a regular suspend instead of powering off entirely. This
// allows the system to resume rapidly while it still has battery
// (like suspend), without losing the system state if the battery runs
// out (like hibernate).
func (iface PowerManagement) CanHybridSuspend(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "CanHybridSuspend")
}

// CanSuspend reports whether the system is capable of suspending.
//
// Suspending, also known as "suspend to RAM", puts the system to
// sleep with all its state preserved in RAM.
func (iface PowerManagement) CanSuspend(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "CanSuspend")
}

// CanSuspendThenHibernate reports whether the system is capable of
// "suspend then hibernate" sleep.
//
// Suspend-then-hibernate initially suspends to RAM, but transitions
// to hibernation (suspend to disk) if the battery reaches critical
// levels.
func (iface PowerManagement) CanSuspendThenHibernate(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "CanSuspendThenHibernate")
}

// ShouldSavePower reports whether the caller should try to lower its
// power consumption.
//
// The reported value reports the system's current power usage policy.
// It does not necessarily mean that the system is running on battery
// power.
func (iface PowerManagement) ShouldSavePower(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "GetPowerSaveStatus")
}

// Hibernate asks the system to hibernate.
//
// Hibernation, also known as suspend to disk, saves the running
// system's state to durable storage before powering off entirely. A
// hibernating laptop consumes almost no power, but resuming from
// hibernation takes many seconds.
func (iface PowerManagement) Hibernate(ctx context.Context) error {
	_, err := iface.p.Send(ctx, "Hibernate")
	return err
}

// Suspend asks the system to suspend.
//
// Suspending, also known as suspend to RAM, saves the running
// system's state to RAM and goes to sleep. Battery usage while
// suspended is low, but not zero as the system still needs to keep
// the RAM powered on maintain its contents. Resuming from the
// suspended state is very fast, typically under a second.
func (iface PowerManagement) Suspend(ctx context.Context) error {
	_, err := iface.p.Send(ctx, "Suspend")
	return err
}

// HasInhibit reports whether the system is currently being prevented
// from sleeping by an application.
//
// Inhibits block all forms of sleep (suspend, hibernate, hybrid
// suspend, suspend-then-hibernate).
func (iface PowerManagement) HasInhibit(ctx context.Context) (bool, error) {
	return iface.callBool(ctx, "HasInhibit")
}

// InhibitSleep prevents the system from going to sleep.
//
// application and reason are human-readable strings that should
// explain what is preventing the system from sleeping, and why. For
// example, a background system update might use the application name
// "System" and the reason "Installing updates".
//
// The returned cancellation function should be called when the sleep
// inhibition should be lifted.
func (iface PowerManagement) InhibitSleep(ctx context.Context, application, reason string) (cancel func(context.Context) error, err error) {
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

// Subscribe reports power-capability and inhibit-state transitions as
// they are signalled by the service. member is the bare D-Bus signal
// name, e.g. "CanHibernateChanged" or "HasInhibitChanged".
func (iface PowerManagement) Subscribe(conn *dbuskit.Conn, member string) *dbuskit.Subscription {
	return conn.Subscribe("org.freedesktop.PowerManagement", member, iface.p.Object().Path())
}
