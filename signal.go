package dbuskit

import "context"

// Signal is one delivered D-Bus signal, decoded into boxed host
// values per its wire signature.
type Signal struct {
	Interface string
	Member    string
	Path      ObjectPath
	Sender    string
	Args      []HostValue
}

// signalSubscription is one registered signal watcher. An empty
// field matches any value in that position.
type signalSubscription struct {
	iface, member string
	path          ObjectPath
	ch            chan Signal
}

func (s *signalSubscription) matches(iface, member string, path ObjectPath) bool {
	if s.iface != "" && s.iface != iface {
		return false
	}
	if s.member != "" && s.member != member {
		return false
	}
	if s.path != "" && s.path != path {
		return false
	}
	return true
}

// deliver sends sig to the subscription's channel, dropping it rather
// than blocking the connection's signal-dispatch path if the
// subscriber isn't keeping up.
func (s *signalSubscription) deliver(sig Signal) {
	select {
	case s.ch <- sig:
	default:
	}
}

// Subscription is a live signal registration returned by
// Conn.Subscribe. Signals matching the subscription arrive on C until
// Close is called.
type Subscription struct {
	c   *Conn
	sub *signalSubscription
}

// C returns the channel signals are delivered on.
func (s *Subscription) C() <-chan Signal { return s.sub.ch }

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.c.removeSubscription(s.sub)
}

// Next blocks until the next matching signal arrives, ctx is done, or
// the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (Signal, error) {
	select {
	case sig, ok := <-s.sub.ch:
		if !ok {
			return Signal{}, &Error{Kind: KindDisconnected, Message: "subscription closed"}
		}
		return sig, nil
	case <-ctx.Done():
		return Signal{}, &Error{Kind: KindCancelled, Message: "wait for signal cancelled", Wrapped: ctx.Err()}
	}
}
