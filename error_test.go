package dbuskit

import "testing"

// TestSymbolicExceptionRoundTrip covers S2: a host exception exported
// with a symbolic name round-trips through the D-Bus error-name
// convention unchanged.
func TestSymbolicExceptionRoundTrip(t *testing.T) {
	symbols := []string{"NSInvalidArgumentException", "OutOfRange", "X"}
	for _, sym := range symbols {
		name := RemoteExceptionName(sym)
		got, ok := SymbolicExceptionName(name)
		if !ok {
			t.Fatalf("SymbolicExceptionName(%q) ok = false, want true", name)
		}
		if got != sym {
			t.Errorf("round trip: got %q, want %q", got, sym)
		}
	}
}

func TestSymbolicExceptionNameRejectsUnrelatedErrors(t *testing.T) {
	names := []string{
		"org.freedesktop.DBus.Error.UnknownMethod",
		"",
		remoteExceptionPrefix[:len(remoteExceptionPrefix)-1],
	}
	for _, name := range names {
		if _, ok := SymbolicExceptionName(name); ok {
			t.Errorf("SymbolicExceptionName(%q) ok = true, want false", name)
		}
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	e := &Error{Kind: KindTimeout, Message: "deadline exceeded"}
	if !e.Is(&Error{Kind: KindTimeout}) {
		t.Error("Is() = false for matching kind, want true")
	}
	if e.Is(&Error{Kind: KindCancelled}) {
		t.Error("Is() = true for mismatched kind, want false")
	}
}

func TestIsKind(t *testing.T) {
	err := wrapErr(KindDisconnected, nil, "connection lost")
	if !IsKind(err, KindDisconnected) {
		t.Error("IsKind() = false, want true")
	}
	if IsKind(err, KindTimeout) {
		t.Error("IsKind() = true for wrong kind, want false")
	}
}
