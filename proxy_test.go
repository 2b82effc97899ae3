package dbuskit

import (
	"context"
	"testing"
)

func readyProxy(candidates map[string][]resolvedMethod, recentIface string) *Proxy {
	return &Proxy{
		state:         proxyReady,
		ifaces:        map[string]*Interface{},
		selectorIndex: candidates,
		recentIface:   recentIface,
	}
}

// TestResolveUniqueSelector covers the common case: a selector with
// exactly one candidate resolves without consulting recentIface.
func TestResolveUniqueSelector(t *testing.T) {
	ifaceA := NewInterface("org.example.A")
	method := &Method{Name: "Ping"}
	p := readyProxy(map[string][]resolvedMethod{
		"ping": {{ifaceA, method}},
	}, "")

	rm, err := p.resolve(context.Background(), "ping")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rm.iface != ifaceA || rm.method != method {
		t.Errorf("resolve() = %+v, want iface A / method Ping", rm)
	}
	if p.recentIface != ifaceA.Name {
		t.Errorf("recentIface = %q, want %q", p.recentIface, ifaceA.Name)
	}
}

// TestResolveRecencyTieBreak covers spec §4.5 step 2: a selector
// claimed by two interfaces resolves to whichever was most recently
// used by this Proxy, not by map iteration order.
func TestResolveRecencyTieBreak(t *testing.T) {
	ifaceA := NewInterface("org.example.A")
	ifaceB := NewInterface("org.example.B")
	methodA := &Method{Name: "Ping"}
	methodB := &Method{Name: "Ping"}
	p := readyProxy(map[string][]resolvedMethod{
		"ping": {{ifaceA, methodA}, {ifaceB, methodB}},
	}, ifaceB.Name)

	rm, err := p.resolve(context.Background(), "ping")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rm.iface != ifaceB {
		t.Errorf("resolve() picked %s, want %s (most recently used)", rm.iface.Name, ifaceB.Name)
	}
}

// TestResolveGenuineAmbiguity covers spec §4.5 step 2's failure case:
// a selector claimed by two interfaces, neither of which is the
// Proxy's most recently used interface, fails ambiguous.
func TestResolveGenuineAmbiguity(t *testing.T) {
	ifaceA := NewInterface("org.example.A")
	ifaceB := NewInterface("org.example.B")
	p := readyProxy(map[string][]resolvedMethod{
		"ping": {{ifaceA, &Method{Name: "Ping"}}, {ifaceB, &Method{Name: "Ping"}}},
	}, "org.example.C")

	_, err := p.resolve(context.Background(), "ping")
	if err == nil {
		t.Fatal("resolve() = nil error, want KindAmbiguousSelector")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindAmbiguousSelector {
		t.Errorf("resolve() error = %#v, want *Error{Kind: KindAmbiguousSelector}", err)
	}
}

func TestResolveUnknownSelector(t *testing.T) {
	p := readyProxy(map[string][]resolvedMethod{}, "")
	_, err := p.resolve(context.Background(), "missing")
	if err == nil {
		t.Fatal("resolve() = nil error, want error for unknown selector")
	}
}
