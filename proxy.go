package dbuskit

import (
	"context"
	"fmt"
	"sync"
)

type proxyState int32

const (
	proxyCold proxyState = iota
	proxyWarming
	proxyReady
	proxyInvalid
)

// resolvedMethod is one entry of a Proxy's selector index: the
// Interface a Method was introspected from, paired with the Method
// itself.
type resolvedMethod struct {
	iface  *Interface
	method *Method
}

// Proxy is a local stand-in for a remote object: a Peer and
// ObjectPath pair, plus the Interfaces introspected from it on first
// use. A Proxy starts cold and introspects itself lazily, the first
// time a caller tries to resolve a selector against it.
type Proxy struct {
	conn *Conn
	obj  Object

	mu            sync.Mutex
	cond          *sync.Cond
	state         proxyState
	ifaces        map[string]*Interface
	selectorIndex map[string][]resolvedMethod
	recentIface   string
	err           error
}

// NewProxy returns a cold Proxy for the object at path, offered by
// peer, over conn.
func NewProxy(conn *Conn, peer string, path ObjectPath) *Proxy {
	p := &Proxy{
		conn:          conn,
		obj:           conn.Peer(peer).Object(path),
		ifaces:        map[string]*Interface{},
		selectorIndex: map[string][]resolvedMethod{},
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Object returns the underlying bus object this Proxy stands in for.
func (p *Proxy) Object() Object { return p.obj }

// ScopeOf implements Scoped: two Proxies forward object-path arguments
// to each other verbatim only when their Scope values are Equal.
func (p *Proxy) ScopeOf() Scope {
	return Scope{Endpoint: p.conn.LocalName(), Service: p.obj.Peer().Name()}
}

// String renders the proxy as "service/path".
func (p *Proxy) String() string { return p.obj.String() }

// warm introspects the proxy if it is cold, blocking concurrent
// callers on the same warm-up rather than introspecting redundantly.
// A Proxy that fails to introspect becomes permanently invalid: a
// transient network blip is indistinguishable from a genuinely
// missing object, so retrying requires building a fresh Proxy.
func (p *Proxy) warm(ctx context.Context) error {
	p.mu.Lock()
	for p.state == proxyWarming {
		p.mu.Unlock()
		if err := p.waitForStateChange(ctx); err != nil {
			return err
		}
		p.mu.Lock()
	}
	switch p.state {
	case proxyReady:
		p.mu.Unlock()
		return nil
	case proxyInvalid:
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.state = proxyWarming
	p.mu.Unlock()

	cacheKey := p.obj.String()
	ifaces := globalInterfaceCache.snapshot(cacheKey)
	if ifaces == nil {
		doc, err := p.obj.Introspect(ctx)
		if err != nil {
			return p.fail(wrapErr(KindRemoteUnreachable, err, "introspecting %s", p.obj))
		}
		ifaces, err = ParseIntrospection(doc)
		if err != nil {
			return p.fail(err)
		}
		globalInterfaceCache.store(cacheKey, ifaces)
	}

	p.mu.Lock()
	for _, iface := range ifaces {
		p.ifaces[iface.Name] = iface
		for _, m := range iface.Methods() {
			sel := m.Selector
			if sel == "" {
				sel = CanonicalSelector(m.Name, inArgNames(m))
			}
			p.selectorIndex[sel] = append(p.selectorIndex[sel], resolvedMethod{iface, m})
		}
	}
	p.state = proxyReady
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

func (p *Proxy) fail(err error) error {
	p.mu.Lock()
	p.state = proxyInvalid
	p.err = err
	p.cond.Broadcast()
	p.mu.Unlock()
	return err
}

// waitForStateChange blocks until warm-up finishes or ctx is done.
func (p *Proxy) waitForStateChange(ctx context.Context) error {
	changed := make(chan struct{})
	go func() {
		p.mu.Lock()
		for p.state == proxyWarming {
			p.cond.Wait()
		}
		p.mu.Unlock()
		close(changed)
	}()
	select {
	case <-changed:
		return nil
	case <-ctx.Done():
		return &Error{Kind: KindCancelled, Message: "waiting for proxy introspection", Wrapped: ctx.Err()}
	}
}

// resolve warms the proxy if needed and looks selector up in its
// index. If the selector matches methods on more than one introspected
// Interface, the interface most recently used to resolve a selector on
// this Proxy wins; if none of the candidates is that interface, the
// selector is genuinely ambiguous and resolve fails.
func (p *Proxy) resolve(ctx context.Context, selector string) (resolvedMethod, error) {
	if err := p.warm(ctx); err != nil {
		return resolvedMethod{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	candidates, ok := p.selectorIndex[selector]
	if !ok || len(candidates) == 0 {
		return resolvedMethod{}, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("no method for selector %q on %s", selector, p.obj)}
	}
	rm := candidates[0]
	if len(candidates) > 1 {
		var match *resolvedMethod
		for i, c := range candidates {
			if c.iface.Name == p.recentIface {
				match = &candidates[i]
				break
			}
		}
		if match == nil {
			return resolvedMethod{}, &Error{Kind: KindAmbiguousSelector, Message: fmt.Sprintf("selector %q matches methods on %d interfaces on %s, none of them most recently used", selector, len(candidates), p.obj)}
		}
		rm = *match
	}
	p.recentIface = rm.iface.Name
	return rm, nil
}

// Send resolves selector against the proxy's introspected Interfaces
// and performs the call synchronously, returning its boxed result.
func (p *Proxy) Send(ctx context.Context, selector string, args ...HostValue) (HostValue, error) {
	call, err := NewMethodCall(ctx, p, selector, args...)
	if err != nil {
		return nil, err
	}
	return call.Send(ctx)
}

// SendAsync is like Send, but returns immediately with a Future that
// is fulfilled once the reply (or error) arrives.
func (p *Proxy) SendAsync(ctx context.Context, selector string, args ...HostValue) *Future {
	call, err := NewMethodCall(ctx, p, selector, args...)
	if err != nil {
		f := NewFuture()
		f.Fulfil(nil, err)
		return f
	}
	return call.SendAsync(ctx)
}

func (p *Proxy) propertyInterface(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, iface := range p.ifaces {
		for _, prop := range iface.Properties() {
			if prop.Name == name {
				return iface.Name
			}
		}
	}
	return ""
}

// GetProperty reads the named property, resolving which interface
// declares it by introspecting the proxy if needed.
func (p *Proxy) GetProperty(ctx context.Context, name string) (HostValue, error) {
	if err := p.warm(ctx); err != nil {
		return nil, err
	}
	iface := p.propertyInterface(name)
	if iface == "" {
		return nil, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("no property named %q on %s", name, p.obj)}
	}
	return p.obj.GetProperty(ctx, iface, name)
}

// SetProperty writes the named property.
func (p *Proxy) SetProperty(ctx context.Context, name string, value HostValue) error {
	if err := p.warm(ctx); err != nil {
		return err
	}
	iface := p.propertyInterface(name)
	if iface == "" {
		return &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("no property named %q on %s", name, p.obj)}
	}
	return p.obj.SetProperty(ctx, iface, name, value)
}

// Interfaces returns the names of every interface this proxy has
// discovered so far (empty until the first Send, GetProperty, or
// explicit Warm call).
func (p *Proxy) Interfaces() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.ifaces))
	for name := range p.ifaces {
		out = append(out, name)
	}
	return out
}

// Warm forces introspection now, instead of deferring it to the first
// Send/GetProperty call.
func (p *Proxy) Warm(ctx context.Context) error { return p.warm(ctx) }
