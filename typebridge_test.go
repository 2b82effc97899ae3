package dbuskit

import "testing"

// TestFits covers invariant 5: widening numeric conversions preserve
// value; narrowing conversions that would lose information are
// rejected.
func TestFits(t *testing.T) {
	tests := []struct {
		source, target NativeKind
		want           bool
	}{
		{KindU8, KindU8, true},
		{KindU8, KindU16, true},
		{KindU8, KindI16, true}, // unsigned widens into a strictly wider signed kind
		{KindU16, KindI16, false},
		{KindI16, KindI32, true},
		{KindI32, KindI16, false}, // narrowing
		{KindU32, KindU16, false}, // narrowing
		{KindI16, KindU16, false}, // signed into same-width unsigned never fits
		{KindF64, KindF64, true},
		{KindI32, KindF64, false}, // no implicit int/float fit
		{KindBool, KindU8, true},
		{KindU64, KindI64, false},
	}
	for _, tc := range tests {
		if got := Fits(tc.source, tc.target); got != tc.want {
			t.Errorf("Fits(%s, %s) = %v, want %v", tc.source, tc.target, got, tc.want)
		}
	}
}

func TestNativeKindFor(t *testing.T) {
	tests := []struct {
		code TypeCode
		want NativeKind
	}{
		{TypeByte, KindU8},
		{TypeBoolean, KindBool},
		{TypeString, KindString},
		{TypeArray, KindBoxed},
		{TypeObjectPath, KindBoxed},
		{TypeVariant, KindBoxed},
	}
	for _, tc := range tests {
		if got := NativeKindFor(tc.code); got != tc.want {
			t.Errorf("NativeKindFor(%q) = %s, want %s", tc.code, got, tc.want)
		}
	}
}
