package dbuskit

import "context"

// MethodCall is one in-flight send against a Proxy: the selector
// resolution, wire call, and reply/exception decoding that together
// answer a single host message send.
//
// Building a MethodCall resolves the selector against the Proxy's
// introspected Interfaces (warming the Proxy first if it is still
// cold) but does not yet perform the call; Send and SendAsync do
// that.
type MethodCall struct {
	Proxy    *Proxy
	Selector string
	Args     []HostValue

	iface  *Interface
	method *Method

	inv *Invocation
}

// NewMethodCall resolves selector against proxy and returns a
// MethodCall ready to Send. Resolution fails if the selector does not
// match any method the proxy introspected, or if introspection itself
// fails.
func NewMethodCall(ctx context.Context, proxy *Proxy, selector string, args ...HostValue) (*MethodCall, error) {
	rm, err := proxy.resolve(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(args) != len(rm.method.InArgs) {
		return nil, &Error{Kind: KindTypeMismatch, Message: "argument count does not match method in-arg count", Signature: rm.method.InSignature()}
	}
	return &MethodCall{
		Proxy:    proxy,
		Selector: selector,
		Args:     args,
		iface:    rm.iface,
		method:   rm.method,
		inv:      &Invocation{Selector: selector, Args: args},
	}, nil
}

// Send performs the call synchronously and returns its boxed result,
// or the decoded exception as an error.
func (mc *MethodCall) Send(ctx context.Context) (HostValue, error) {
	ret, err := mc.Proxy.obj.call(ctx, mc.iface.Name, mc.method.Name, mc.method.InArgs, mc.method.OutArgs, mc.Args, mc.method.NoReply)
	mc.inv.Return, mc.inv.Err = ret, err
	return ret, err
}

// SendAsync enqueues the call and returns a Future fulfilled once the
// reply or exception arrives. The underlying wire call still happens
// on its own goroutine; SendAsync does not block waiting for a free
// transport-worker slot, since Conn's single write path already
// serializes concurrent writes. Calls started by separate SendAsync
// goroutines reach the wire in whatever order those goroutines run.
func (mc *MethodCall) SendAsync(ctx context.Context) *Future {
	f := NewFuture()
	mc.inv.Future = f
	go func() {
		ret, err := mc.Send(ctx)
		f.Fulfil(ret, err)
	}()
	return f
}

// Invocation returns the MethodCall's underlying Invocation record,
// populated with Return/Err once Send or SendAsync's Future completes.
func (mc *MethodCall) Invocation() *Invocation { return mc.inv }
