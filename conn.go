package dbuskit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/darlinghq/darling-dbuskit/fragments"
	"github.com/darlinghq/darling-dbuskit/transport"
)

// SystemBus connects to the system bus.
func SystemBus(ctx context.Context) (*Conn, error) {
	return newConn(ctx, "/run/dbus/system_bus_socket")
}

// SessionBus connects to the current user's session bus.
func SessionBus(ctx context.Context) (*Conn, error) {
	path := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if path == "" {
		return nil, errors.New("session bus not available")
	}
	for _, uri := range strings.Split(path, ";") {
		addr, ok := strings.CutPrefix(uri, "unix:path=")
		if !ok {
			continue
		}
		return newConn(ctx, addr)
	}
	return nil, fmt.Errorf("could not find usable session bus address in DBUS_SESSION_BUS_ADDRESS value %q", path)
}

// Dial connects to the D-Bus-protocol Unix socket at path. It is
// exported for tests that stand up an isolated bus instance and need
// to connect to it directly rather than through SystemBus/SessionBus.
func Dial(ctx context.Context, path string) (*Conn, error) {
	return newConn(ctx, path)
}

// autoExportRoot is the object path prefix under which ExportAuto
// mints fresh paths for host values with no D-Bus identity of their
// own.
const autoExportRoot = ObjectPath("/org/gnustep/dbuskit/auto")

func newConn(ctx context.Context, path string) (*Conn, error) {
	t, err := transport.DialUnix(ctx, path)
	if err != nil {
		return nil, err
	}
	ret := &Conn{
		t:            t,
		calls:        map[uint32]*pendingCall{},
		exported:     map[ObjectPath]map[string]*Interface{},
		autoExported: map[ObjectPath]HostValue{},
		autoExportID: map[any]ObjectPath{},
		subs:         map[*signalSubscription]struct{}{},
	}

	go ret.readLoop()

	helloBus := ret.Peer(ifaceBus).Object("/org/freedesktop/DBus")
	reply, err := helloBus.call(ctx, ifaceBus, "Hello", nil, []*Argument{stringArg}, nil, false)
	if err != nil {
		ret.Close()
		return nil, fmt.Errorf("getting DBus client ID: %w", err)
	}
	ret.clientID, _ = reply.(string)

	ret.bus = helloBus
	ret.exportStandardPeerInterface()

	return ret, nil
}

// exportStandardPeerInterface answers org.freedesktop.DBus.Peer on
// every object path this connection exports, by giving every export
// path a shared Interface built from connPeerHandler's methods.
func (c *Conn) exportStandardPeerInterface() {
	iface, err := BuildInterfaceFromHostClass("Peer", connPeerHandler{c})
	if err != nil {
		panic(fmt.Errorf("dbuskit: building built-in Peer interface: %w", err))
	}
	iface.Name = "org.freedesktop.DBus.Peer"
	c.peerInterface = iface
}

// connPeerHandler answers org.freedesktop.DBus.Peer on every locally
// exported object path, mirroring the always-on Peer interface every
// D-Bus implementation provides.
type connPeerHandler struct{ c *Conn }

func (h connPeerHandler) Ping(ctx context.Context) error { return nil }

func (h connPeerHandler) GetMachineId(ctx context.Context) (string, error) {
	bs, err := os.ReadFile("/etc/machine-id")
	if errors.Is(err, fs.ErrNotExist) {
		bs, err = os.ReadFile("/var/lib/dbus/machine-id")
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bs)), nil
}

// Conn is a D-Bus connection carrying the bridge's host-object
// dispatch and export tables.
type Conn struct {
	t        transport.Transport
	clientID string

	bus Object

	writeMu sync.Mutex

	mu            sync.Mutex
	closed        bool
	calls         map[uint32]*pendingCall
	lastSerial    uint32
	exported      map[ObjectPath]map[string]*Interface
	autoExported  map[ObjectPath]HostValue
	autoExportID  map[any]ObjectPath
	autoSeq       uint64
	subs          map[*signalSubscription]struct{}
	peerInterface *Interface
}

type pendingCall struct {
	notify chan struct{}
	method *Method
	mc     *MarshalContext
	ret    HostValue
	err    error
}

// Close closes the D-Bus connection.
func (c *Conn) Close() error {
	var pend map[uint32]*pendingCall
	c.mu.Lock()
	c.closed = true
	pend, c.calls = c.calls, nil
	c.mu.Unlock()

	for _, p := range pend {
		p.err = &Error{Kind: KindDisconnected, Message: "connection closed", Wrapped: net.ErrClosed}
		close(p.notify)
	}
	return c.t.Close()
}

// LocalName returns the connection's unique bus name.
func (c *Conn) LocalName() string { return c.clientID }

// Peer returns a Peer for the given bus name.
//
// The returned value is a purely local handle. It does not indicate
// that the requested peer exists, or that it is currently reachable.
func (c *Conn) Peer(name string) Peer {
	return Peer{c: c, name: name}
}

// dispatchAdminCall marshals and sends a method call against
// destination/path/iface, described by m, and unmarshals its reply
// per m.OutArgs. A call whose Method has NoReply set skips waiting
// for a reply entirely.
func (c *Conn) dispatchAdminCall(ctx context.Context, destination string, path ObjectPath, iface string, m *Method, args []HostValue) (HostValue, error) {
	mc := &MarshalContext{Scope: Scope{Endpoint: c.LocalName(), Service: destination}, Export: c}

	serial, pending := c.registerCall(m, mc)
	if pending == nil {
		return nil, &Error{Kind: KindDisconnected, Message: "connection is closed"}
	}
	defer c.unregisterCall(serial, pending)

	hdr := &header{
		Type:        msgTypeCall,
		Version:     1,
		Serial:      serial,
		Destination: destination,
		Path:        path,
		Interface:   iface,
		Member:      m.Name,
	}
	if m.NoReply {
		hdr.Flags |= flagNoReplyExpected
	}

	if err := c.writeCall(hdr, m, &Invocation{Args: args}, mc); err != nil {
		return nil, err
	}
	if m.NoReply {
		return Null{}, nil
	}

	select {
	case <-pending.notify:
		return pending.ret, pending.err
	case <-ctx.Done():
		return nil, &Error{Kind: KindCancelled, Message: "call cancelled", Wrapped: ctx.Err()}
	}
}

func (c *Conn) registerCall(m *Method, mc *MarshalContext) (uint32, *pendingCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil
	}
	c.lastSerial++
	pend := &pendingCall{notify: make(chan struct{}), method: m, mc: mc}
	c.calls[c.lastSerial] = pend
	return c.lastSerial, pend
}

func (c *Conn) unregisterCall(serial uint32, pending *pendingCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls[serial] == pending {
		delete(c.calls, serial)
	}
}

func (c *Conn) writeCall(hdr *header, m *Method, inv *Invocation, mc *MarshalContext) error {
	var enc fragments.Encoder
	enc.Order = fragments.NativeEndian
	if err := m.MarshalArguments(&enc, inv, mc); err != nil {
		return err
	}
	hdr.Signature = m.InSignature()
	return c.writeMsg(hdr, enc.Out)
}

func (c *Conn) writeMsg(hdr *header, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	hdr.BodyLen = uint32(len(body))
	if err := hdr.Valid(); err != nil {
		return err
	}

	var henc fragments.Encoder
	henc.Order = fragments.NativeEndian
	if err := marshalHeader(&henc, hdr); err != nil {
		return err
	}
	henc.Pad(8)

	if _, err := c.t.Write(henc.Out); err != nil {
		return wrapWriteErr(err)
	}
	if len(body) > 0 {
		if _, err := c.t.Write(body); err != nil {
			return wrapWriteErr(err)
		}
	}
	return nil
}

// wrapWriteErr classifies a transport write failure into one of the
// two enqueue-failure kinds: the connection is gone (disconnected), or
// the transport could not accept the message for some other reason
// (out of memory, the closest analogue the error taxonomy has to a
// generic failure-to-enqueue).
func wrapWriteErr(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return wrapErr(KindDisconnected, err, "connection closed while writing to transport")
	}
	return wrapErr(KindOutOfMemory, err, "failed to enqueue message on transport")
}

func (c *Conn) readLoop() {
	for {
		if err := c.dispatchMsg(); errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			log.Printf("dbuskit: read error: %v", err)
		}
	}
}

type wireMsg struct {
	header
	order fragments.ByteOrder
	body  []byte
}

func (m *wireMsg) decoder() *fragments.Decoder {
	return &fragments.Decoder{Order: m.order, In: bytes.NewReader(m.body)}
}

func (c *Conn) readMsg() (*wireMsg, error) {
	dec := fragments.Decoder{Order: fragments.NativeEndian, In: c.t}
	var ret wireMsg
	if err := unmarshalHeader(&dec, &ret.header); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(c.t, int64(ret.header.BodyLen)))
	if err != nil {
		return nil, err
	}
	ret.body = body
	ret.order = dec.Order
	if ret.header.NumFDs > 0 {
		if _, err := c.t.GetFiles(int(ret.header.NumFDs)); err != nil {
			return nil, err
		}
	}
	return &ret, nil
}

func (c *Conn) dispatchMsg() error {
	msg, err := c.readMsg()
	if err != nil {
		return err
	}
	if err := msg.header.Valid(); err != nil {
		return fmt.Errorf("received invalid header: %w", err)
	}

	switch msg.header.Type {
	case msgTypeCall:
		go c.dispatchCall(msg)
	case msgTypeReturn:
		c.dispatchReturn(msg)
	case msgTypeError:
		c.dispatchErr(msg)
	case msgTypeSignal:
		c.dispatchSignal(msg)
	}
	return nil
}

func (c *Conn) dispatchCall(msg *wireMsg) {
	ctx := context.Background()

	method, mc := c.lookupExported(msg.header.Path, msg.header.Interface, msg.header.Member)

	serial := c.nextSerial()
	respHdr := &header{
		Type:        msgTypeReturn,
		Version:     1,
		Serial:      serial,
		Destination: msg.header.Sender,
		ReplySerial: msg.header.Serial,
	}

	if method == nil || method.Handler == nil {
		respHdr.Type = msgTypeError
		respHdr.ErrName = "org.freedesktop.DBus.Error.UnknownMethod"
		c.writeMsg(respHdr, mustEncodeString(fmt.Sprintf("no handler for %s.%s on %s", msg.header.Interface, msg.header.Member, msg.header.Path)))
		return
	}

	inv, err := method.UnmarshalArguments(msg.decoder(), mc)
	if err != nil {
		respHdr.Type = msgTypeError
		respHdr.ErrName = "org.freedesktop.DBus.Error.InvalidArgs"
		c.writeMsg(respHdr, mustEncodeString(err.Error()))
		return
	}

	ret, err := method.Handler(ctx, inv)
	if err != nil {
		respHdr.Type = msgTypeError
		if symbol, ok := errorSymbol(err); ok {
			respHdr.ErrName = RemoteExceptionName(symbol)
		} else {
			respHdr.ErrName = "org.freedesktop.DBus.Error.Failed"
		}
		c.writeMsg(respHdr, mustEncodeString(err.Error()))
		return
	}
	if msg.header.WantReply() {
		inv.Return = ret
		var enc fragments.Encoder
		enc.Order = fragments.NativeEndian
		if err := method.MarshalReturn(&enc, inv, mc); err != nil {
			respHdr.Type = msgTypeError
			respHdr.ErrName = "org.freedesktop.DBus.Error.Failed"
			c.writeMsg(respHdr, mustEncodeString(err.Error()))
			return
		}
		respHdr.Signature = method.OutSignature()
		c.writeMsg(respHdr, enc.Out)
	}
}

// errorSymbol reports the symbolic exception name carried on err, if
// it is (or wraps) a structured *Error with RemoteName already set by
// the host handler.
func errorSymbol(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.RemoteName == "" {
		return "", false
	}
	return e.RemoteName, true
}

func mustEncodeString(s string) []byte {
	var enc fragments.Encoder
	enc.Order = fragments.NativeEndian
	enc.String(s)
	return enc.Out
}

func (c *Conn) nextSerial() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSerial++
	return c.lastSerial
}

func (c *Conn) lookupExported(path ObjectPath, iface, member string) (*Method, *MarshalContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mc := &MarshalContext{Scope: Scope{Endpoint: c.LocalName(), Local: true}, Export: c}

	if iface == "org.freedesktop.DBus.Peer" && c.peerInterface != nil {
		if m, ok := c.peerInterface.Method(member); ok {
			return m, mc
		}
	}

	ifaces := c.exported[path]
	if ifaces == nil {
		return nil, nil
	}
	target := ifaces[iface]
	if target == nil {
		return nil, nil
	}
	m, ok := target.Method(member)
	if !ok {
		return nil, nil
	}
	return m, mc
}

func (c *Conn) dispatchReturn(msg *wireMsg) {
	pending := c.takeCall(msg.header.ReplySerial)
	if pending == nil {
		return
	}
	ret, err := pending.method.UnmarshalReturn(msg.decoder(), pending.mc)
	pending.ret, pending.err = ret, err
	close(pending.notify)
}

func (c *Conn) dispatchErr(msg *wireMsg) {
	pending := c.takeCall(msg.header.ReplySerial)
	if pending == nil {
		return
	}
	detail := ""
	if msg.header.Signature != "" {
		if s, err := (&Argument{DBusType: TypeString}).Unmarshal(msg.decoder(), nil); err == nil {
			detail, _ = s.(string)
		}
	}
	e := &Error{Kind: KindRemoteError, Message: detail, RemoteName: msg.header.ErrName}
	if symbol, ok := SymbolicExceptionName(msg.header.ErrName); ok {
		e.RemoteName = symbol
	}
	pending.err = e
	close(pending.notify)
}

func (c *Conn) takeCall(serial uint32) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := c.calls[serial]
	delete(c.calls, serial)
	return ret
}

func (c *Conn) dispatchSignal(msg *wireMsg) {
	args, err := NewArgumentList(msg.header.Signature)
	if err != nil {
		log.Printf("dbuskit: dropping signal %s.%s with malformed signature %q: %v", msg.header.Interface, msg.header.Member, msg.header.Signature, err)
		return
	}
	dec := msg.decoder()
	mc := &MarshalContext{Scope: Scope{Endpoint: c.LocalName(), Service: msg.header.Sender}}
	values := make([]HostValue, len(args))
	for i, a := range args {
		v, err := a.Unmarshal(dec, mc)
		if err != nil {
			log.Printf("dbuskit: dropping malformed signal %s.%s: %v", msg.header.Interface, msg.header.Member, err)
			return
		}
		values[i] = v
	}

	c.mu.Lock()
	subs := make([]*signalSubscription, 0, len(c.subs))
	for s := range c.subs {
		if s.matches(msg.header.Interface, msg.header.Member, msg.header.Path) {
			subs = append(subs, s)
		}
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.deliver(Signal{Interface: msg.header.Interface, Member: msg.header.Member, Path: msg.header.Path, Sender: msg.header.Sender, Args: values})
	}
}

// EmitSignal broadcasts a signal named member on iface, from obj.
func (c *Conn) EmitSignal(ctx context.Context, obj ObjectPath, iface, member string, args []*Argument, values []HostValue) error {
	mc := &MarshalContext{Scope: Scope{Endpoint: c.LocalName(), Local: true}, Export: c}
	var enc fragments.Encoder
	enc.Order = fragments.NativeEndian
	for i, a := range args {
		if err := a.Marshal(&enc, values[i], mc); err != nil {
			return err
		}
	}
	hdr := &header{
		Type:      msgTypeSignal,
		Version:   1,
		Serial:    c.nextSerial(),
		Path:      obj,
		Interface: iface,
		Member:    member,
		Signature: argumentSignatures(args),
	}
	return c.writeMsg(hdr, enc.Out)
}

// Export publishes the given interfaces under path. Re-exporting the
// same path adds to its previous interface set: an interface with the
// same name replaces the earlier one, and interfaces not named again
// stay exported.
func (c *Conn) Export(path ObjectPath, ifaces ...*Interface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.exported[path]
	if m == nil {
		m = map[string]*Interface{}
		c.exported[path] = m
	}
	for _, i := range ifaces {
		m[i.Name] = i
	}
}

// ExportHostClass builds an Interface from value's exported methods
// (see BuildInterfaceFromHostClass) and exports it at path.
func (c *Conn) ExportHostClass(path ObjectPath, className string, value any) error {
	iface, err := BuildInterfaceFromHostClass(className, value)
	if err != nil {
		return err
	}
	c.Export(path, iface)
	c.mu.Lock()
	c.autoExported[path] = value
	c.mu.Unlock()
	return nil
}

// Unexport removes every interface previously exported at path.
func (c *Conn) Unexport(path ObjectPath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exported, path)
	delete(c.autoExported, path)
}

// ExportAuto implements Exporter: it mints a fresh path under
// autoExportRoot for value, or returns a previously-minted path for
// the same value identity.
func (c *Conn) ExportAuto(value HostValue) (ObjectPath, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := exportIdentity(value); ok {
		if p, ok := c.autoExportID[key]; ok {
			return p, nil
		}
	}

	c.autoSeq++
	path := ObjectPath(fmt.Sprintf("%s/%d", autoExportRoot, c.autoSeq))
	c.autoExported[path] = value
	if key, ok := exportIdentity(value); ok {
		c.autoExportID[key] = path
	}
	return path, nil
}

// ResolvePath implements Exporter.
func (c *Conn) ResolvePath(path ObjectPath) (HostValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.autoExported[path]
	return v, ok
}

// exportIdentity returns a map key suitable for deduplicating repeat
// ExportAuto calls on the same host value: a pointer's address, or
// the value itself when its dynamic type is comparable.
func exportIdentity(value HostValue) (any, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil, false
	}
	if rv.Kind() == reflect.Pointer {
		return rv.Pointer(), true
	}
	if rv.Comparable() {
		return value, true
	}
	return nil, false
}

// Subscribe registers a watcher for signals matching the given
// interface/member/path (empty string or path matches any value), and
// returns a Subscription whose channel receives each matching Signal
// until Close is called.
func (c *Conn) Subscribe(iface, member string, path ObjectPath) *Subscription {
	sub := &signalSubscription{iface: iface, member: member, path: path, ch: make(chan Signal, 16)}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	return &Subscription{c: c, sub: sub}
}

func (c *Conn) removeSubscription(sub *signalSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub)
	close(sub.ch)
}
