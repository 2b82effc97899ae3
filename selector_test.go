package dbuskit

import "testing"

func TestCanonicalSelector(t *testing.T) {
	tests := []struct {
		name       string
		member     string
		inArgNames []string
		want       string
	}{
		// S6: method SetFooWithBar with in-args foo, bar derives
		// "setFooWithBar:".
		{"S6", "SetFooWithBar", []string{"foo", "bar"}, "setFooWithBar:"},
		{"no args, no colon", "Ping", nil, "ping"},
		{"single letter member", "X", []string{"y"}, "x:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalSelector(tc.member, tc.inArgNames); got != tc.want {
				t.Errorf("CanonicalSelector(%q, %v) = %q, want %q", tc.member, tc.inArgNames, got, tc.want)
			}
		})
	}
}

// TestCanonicalSelectorNonLetterBoundary covers the Design Notes open
// question resolution: a non-letter leading rune passes through
// unchanged rather than being (no-op) "lower-cased".
func TestCanonicalSelectorNonLetterBoundary(t *testing.T) {
	tests := []struct {
		member string
		want   string
	}{
		{"_Foo", "_Foo"},
		{"1Bar", "1Bar"},
		{"Foo", "foo"},
	}
	for _, tc := range tests {
		if got := CanonicalSelector(tc.member, nil); got != tc.want {
			t.Errorf("CanonicalSelector(%q, nil) = %q, want %q", tc.member, got, tc.want)
		}
	}
}

func TestSetterSelector(t *testing.T) {
	if got, want := SetterSelector("fooBar"), "setFooBar"; got != want {
		t.Errorf("SetterSelector(%q) = %q, want %q", "fooBar", got, want)
	}
}
