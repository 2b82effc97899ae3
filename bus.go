package dbuskit

import (
	"context"
	"errors"
	"fmt"
)

const ifaceBus = "org.freedesktop.DBus"

// NameRequestFlags controls how Conn.RequestName behaves when the
// requested name already has an owner.
type NameRequestFlags byte

const (
	NameRequestAllowReplacement NameRequestFlags = 1 << iota
	NameRequestReplace
	NameRequestNoQueue
)

var (
	uint32Arg   = &Argument{DBusType: TypeUint32}
	boolOutArgs = []*Argument{{DBusType: TypeBoolean}}
	stringsArg  = &Argument{DBusType: TypeArray, Children: []*Argument{{DBusType: TypeString}}}
)

// RequestName asks the bus to assign name to this connection, per
// flags. isPrimaryOwner reports whether this connection became (or
// already was) the name's primary owner.
func (c *Conn) RequestName(ctx context.Context, name string, flags NameRequestFlags) (isPrimaryOwner bool, err error) {
	var wireFlags uint32
	if flags&NameRequestAllowReplacement != 0 {
		wireFlags |= 0x1
	}
	if flags&NameRequestReplace != 0 {
		wireFlags |= 0x2
	}
	if flags&NameRequestNoQueue != 0 {
		wireFlags |= 0x4
	}

	ret, err := c.bus.call(ctx, ifaceBus, "RequestName",
		[]*Argument{stringArg, uint32Arg}, []*Argument{uint32Arg},
		[]HostValue{name, wireFlags}, false)
	if err != nil {
		return false, err
	}
	code, _ := ret.(uint32)
	switch code {
	case 1, 4:
		return true, nil
	case 2:
		return false, nil
	case 3:
		return false, errors.New("requested name not available")
	default:
		return false, fmt.Errorf("unknown response code %d to RequestName", code)
	}
}

// ReleaseName relinquishes ownership of name.
func (c *Conn) ReleaseName(ctx context.Context, name string) error {
	_, err := c.bus.call(ctx, ifaceBus, "ReleaseName", []*Argument{stringArg}, []*Argument{uint32Arg}, []HostValue{name}, false)
	return err
}

// ListNames lists every name currently visible on the bus.
func (c *Conn) ListNames(ctx context.Context) ([]string, error) {
	ret, err := c.bus.call(ctx, ifaceBus, "ListNames", nil, []*Argument{stringsArg}, nil, false)
	if err != nil {
		return nil, err
	}
	return toStringSlice(ret), nil
}

// NameHasOwner reports whether name currently has an owner.
func (c *Conn) NameHasOwner(ctx context.Context, name string) (bool, error) {
	ret, err := c.bus.call(ctx, ifaceBus, "NameHasOwner", []*Argument{stringArg}, boolOutArgs, []HostValue{name}, false)
	if err != nil {
		return false, err
	}
	b, _ := ret.(bool)
	return b, nil
}

// GetNameOwner returns the unique bus name currently owning name.
func (c *Conn) GetNameOwner(ctx context.Context, name string) (string, error) {
	ret, err := c.bus.call(ctx, ifaceBus, "GetNameOwner", []*Argument{stringArg}, []*Argument{stringArg}, []HostValue{name}, false)
	if err != nil {
		return "", err
	}
	s, _ := ret.(string)
	return s, nil
}

// AddMatch installs a match rule on the bus connection, so that
// signals matching rule are delivered to this connection at all.
// Individual Watchers still filter the resulting stream themselves,
// since match rules are connection-wide, not per-Watcher.
func (c *Conn) AddMatch(ctx context.Context, rule string) error {
	_, err := c.bus.call(ctx, ifaceBus, "AddMatch", []*Argument{stringArg}, nil, []HostValue{rule}, false)
	return err
}

// RemoveMatch uninstalls a match rule previously installed with
// AddMatch.
func (c *Conn) RemoveMatch(ctx context.Context, rule string) error {
	_, err := c.bus.call(ctx, ifaceBus, "RemoveMatch", []*Argument{stringArg}, nil, []HostValue{rule}, false)
	return err
}

// GetBusID returns the bus's unique, persistent identifier.
func (c *Conn) GetBusID(ctx context.Context) (string, error) {
	ret, err := c.bus.call(ctx, ifaceBus, "GetId", nil, []*Argument{stringArg}, nil, false)
	if err != nil {
		return "", err
	}
	s, _ := ret.(string)
	return s, nil
}

func toStringSlice(v HostValue) []string {
	elems, _ := iterateSequence(v)
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Not implemented:
//   - StartServiceByName: deprecated in favor of auto-start.
//   - UpdateActivationEnvironment: locked down to the point of being
//     mostly useless outside of systemd's own use.
//   - GetAdtAuditSessionData, GetConnectionSELinuxSecurityContext:
//     platform-specific, and deprecated on top of that.
