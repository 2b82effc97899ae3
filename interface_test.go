package dbuskit

import (
	"context"
	"testing"
)

type testWidget struct{}

func (testWidget) Ping(ctx context.Context) error { return nil }

func (testWidget) SetNameWithTag(ctx context.Context, name string, tag string) (string, error) {
	return name + tag, nil
}

// TestBuildInterfaceFromHostClassSelectors covers invariant 3:
// canonical selector derivation is stable across the install path —
// re-deriving a method's canonical selector from its own name and
// in-arg names always reproduces the selector it was installed under.
func TestBuildInterfaceFromHostClassSelectors(t *testing.T) {
	iface, err := BuildInterfaceFromHostClass("TestWidget", testWidget{})
	if err != nil {
		t.Fatalf("BuildInterfaceFromHostClass: %v", err)
	}

	for _, m := range iface.Methods() {
		want := CanonicalSelector(m.Name, inArgNames(m))
		if m.Selector != want {
			t.Errorf("method %s: Selector = %q, want %q", m.Name, m.Selector, want)
		}
		got, ok := iface.Dispatch(m.Selector)
		if !ok {
			t.Errorf("Dispatch(%q) not found for method %s", m.Selector, m.Name)
			continue
		}
		if got.Name != m.Name {
			t.Errorf("Dispatch(%q) = method %s, want %s", m.Selector, got.Name, m.Name)
		}
	}

	if _, ok := iface.Dispatch("ping"); !ok {
		t.Error(`Dispatch("ping") not found`)
	}
	if _, ok := iface.Dispatch("setNameWithTag:"); !ok {
		t.Error(`Dispatch("setNameWithTag:") not found`)
	}
}

func TestCanonicalInterfaceName(t *testing.T) {
	if got, want := canonicalInterfaceName("class", "TestWidget"), "org.gnustep.objc.class.TestWidget"; got != want {
		t.Errorf("canonicalInterfaceName = %q, want %q", got, want)
	}
	if got, want := canonicalInterfaceName("class", "pkg.TestWidget"), "org.gnustep.objc.class.TestWidget"; got != want {
		t.Errorf("canonicalInterfaceName (qualified) = %q, want %q", got, want)
	}
}
