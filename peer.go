package dbuskit

import "context"

// Peer is a purely local handle naming a bus peer by its well-known or
// unique bus name. Holding a Peer does not imply that name currently
// exists on the bus.
type Peer struct {
	c    *Conn
	name string
}

func (p Peer) Conn() *Conn  { return p.c }
func (p Peer) Name() string { return p.name }

func (p Peer) String() string {
	if p.c == nil {
		return "<no peer>"
	}
	return p.name
}

// Ping calls org.freedesktop.DBus.Peer.Ping on the peer's root object.
func (p Peer) Ping(ctx context.Context) error {
	return p.Object("/").call(ctx, "org.freedesktop.DBus.Peer", "Ping", nil, nil, nil, false)
}

// Object returns a handle for the object at path, offered by p.
func (p Peer) Object(path ObjectPath) Object {
	return Object{p: p, path: path}
}
