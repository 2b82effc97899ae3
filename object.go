package dbuskit

import "context"

// Object is a local handle for an object path offered by a Peer. Like
// Peer, holding an Object implies nothing about whether the object
// actually exists.
type Object struct {
	p    Peer
	path ObjectPath
}

func (o Object) Conn() *Conn      { return o.p.Conn() }
func (o Object) Peer() Peer       { return o.p }
func (o Object) Path() ObjectPath { return o.path }

func (o Object) String() string {
	return o.p.Name() + string(o.path)
}

// call is the low-level admin calling primitive used internally by
// the bus-object wrapper and by Proxy's introspection bootstrap.
func (o Object) call(ctx context.Context, iface, method string, inArgs, outArgs []*Argument, body []HostValue, oneWay bool) (HostValue, error) {
	m := &Method{Name: method, InArgs: inArgs, OutArgs: outArgs, NoReply: oneWay}
	return o.Conn().dispatchAdminCall(ctx, o.p.name, o.path, iface, m, body)
}

var stringArg = &Argument{DBusType: TypeString}
var variantArg = &Argument{DBusType: TypeVariant}

// Introspect calls org.freedesktop.DBus.Introspectable.Introspect on
// o and returns the raw introspection XML document.
func (o Object) Introspect(ctx context.Context) (string, error) {
	ret, err := o.call(ctx, "org.freedesktop.DBus.Introspectable", "Introspect", nil, []*Argument{stringArg}, nil, false)
	if err != nil {
		return "", err
	}
	s, _ := ret.(string)
	return s, nil
}

// GetProperty reads one property's value as a variant.
func (o Object) GetProperty(ctx context.Context, iface, name string) (HostValue, error) {
	return o.call(ctx, "org.freedesktop.DBus.Properties", "Get",
		[]*Argument{stringArg, stringArg}, []*Argument{variantArg},
		[]HostValue{iface, name}, false)
}

// SetProperty writes one property's value, boxed as a variant.
func (o Object) SetProperty(ctx context.Context, iface, name string, value HostValue) error {
	_, err := o.call(ctx, "org.freedesktop.DBus.Properties", "Set",
		[]*Argument{stringArg, stringArg, variantArg}, nil,
		[]HostValue{iface, name, value}, false)
	return err
}

var getAllOutArg = &Argument{
	DBusType: TypeArray,
	IsDict:   true,
	Children: []*Argument{{DBusType: TypeDictOpen, Children: []*Argument{{DBusType: TypeString}, {DBusType: TypeVariant}}}},
}

// GetAllProperties reads every property of iface as a map of boxed
// variant values.
func (o Object) GetAllProperties(ctx context.Context, iface string) (map[HostValue]HostValue, error) {
	ret, err := o.call(ctx, "org.freedesktop.DBus.Properties", "GetAll",
		[]*Argument{stringArg}, []*Argument{getAllOutArg},
		[]HostValue{iface}, false)
	if err != nil {
		return nil, err
	}
	m, _ := ret.(map[HostValue]HostValue)
	return m, nil
}
