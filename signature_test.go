package dbuskit

import "testing"

// TestSignatureRoundTrip covers invariant 1: for every valid complete
// signature S, parsing consumes exactly S with nothing left over and
// nothing dropped (render is simply the consumed substring).
func TestSignatureRoundTrip(t *testing.T) {
	sigs := []string{
		"y", "b", "n", "q", "i", "u", "x", "t", "d", "s", "o", "g", "h",
		"as", "a{sv}", "a{s(ii)}", "(isv)", "aai", "a(sii)",
		"(s(i(a{sv})))",
	}
	for _, sig := range sigs {
		t.Run(sig, func(t *testing.T) {
			if err := ValidateSingleSignature(sig); err != nil {
				t.Fatalf("ValidateSingleSignature(%q) = %v, want nil", sig, err)
			}
			p, err := NewSignatureParser(sig)
			if err != nil {
				t.Fatalf("NewSignatureParser(%q): %v", sig, err)
			}
			got, ok, err := p.Next()
			if err != nil || !ok {
				t.Fatalf("Next() = %q, %v, %v", got, ok, err)
			}
			if got != sig {
				t.Errorf("round trip: got %q, want %q", got, sig)
			}
			if !p.Done() {
				t.Errorf("parser not exhausted after consuming %q, remaining %q", sig, p.Remaining())
			}
		})
	}
}

func TestSignatureMalformed(t *testing.T) {
	bad := []string{
		"(", ")", "a", "{sv}", "a{vs}", "a{is}a", "z", "(s",
	}
	for _, sig := range bad {
		t.Run(sig, func(t *testing.T) {
			if err := ValidateSignature(sig); err == nil {
				t.Errorf("ValidateSignature(%q) = nil, want error", sig)
			}
		})
	}
}

func TestSplitSignature(t *testing.T) {
	got, err := SplitSignature("sa{sv}i")
	if err != nil {
		t.Fatalf("SplitSignature: %v", err)
	}
	want := []string{"s", "a{sv}", "i"}
	if len(got) != len(want) {
		t.Fatalf("SplitSignature = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
