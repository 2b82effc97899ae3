package dbuskit

import "testing"

func mustArg(t *testing.T, sig string) *Argument {
	t.Helper()
	a, err := NewArgument(sig)
	if err != nil {
		t.Fatalf("NewArgument(%q): %v", sig, err)
	}
	return a
}

// TestMethodSignature covers invariant 4: zero out-args renders
// "void", exactly one out-arg renders that arg's own hint, and more
// than one renders a generic boxed sequence.
func TestMethodSignature(t *testing.T) {
	tests := []struct {
		name    string
		outArgs []*Argument
		want    string
	}{
		{"void", nil, "() -> void"},
		{"single", []*Argument{mustArg(t, "s")}, "() -> string"},
		{"multi", []*Argument{mustArg(t, "s"), mustArg(t, "i")}, "() -> []any"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &Method{OutArgs: tc.outArgs}
			if got := m.Signature(false); got != tc.want {
				t.Errorf("Signature(false) = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMethodSignatureBoxed(t *testing.T) {
	m := &Method{InArgs: []*Argument{mustArg(t, "s")}, OutArgs: []*Argument{mustArg(t, "i")}}
	if got, want := m.Signature(true), "(any) -> any"; got != want {
		t.Errorf("Signature(true) = %q, want %q", got, want)
	}
}

func TestMethodInOutSignature(t *testing.T) {
	m := &Method{
		InArgs:  []*Argument{mustArg(t, "s"), mustArg(t, "i")},
		OutArgs: []*Argument{mustArg(t, "b")},
	}
	if got, want := m.InSignature(), "si"; got != want {
		t.Errorf("InSignature() = %q, want %q", got, want)
	}
	if got, want := m.OutSignature(), "b"; got != want {
		t.Errorf("OutSignature() = %q, want %q", got, want)
	}
}

func TestUnmarshalReturnArity(t *testing.T) {
	// Zero out-args yields the Null sentinel, not a nil interface.
	m := &Method{}
	v, err := m.UnmarshalReturn(nil, nil)
	if err != nil {
		t.Fatalf("UnmarshalReturn: %v", err)
	}
	if _, ok := v.(Null); !ok {
		t.Errorf("UnmarshalReturn() = %#v, want Null{}", v)
	}
}
