package dbuskit

import (
	"bytes"
	"testing"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

// TestBasicTypeRoundTrip covers invariant 2: for every basic type and
// every value of its host class, marshalling then unmarshalling
// reproduces the same value.
func TestBasicTypeRoundTrip(t *testing.T) {
	tests := []struct {
		sig string
		in  HostValue
	}{
		{"y", uint8(200)},
		{"b", true},
		{"b", false},
		{"n", int16(-1234)},
		{"q", uint16(5678)},
		{"i", int32(-100000)},
		{"u", uint32(100000)},
		{"x", int64(-1 << 40)},
		{"t", uint64(1 << 40)},
		{"d", float64(2.71828)},
		{"s", "round trip"},
		{"o", ObjectPath("/org/example/obj")},
		{"h", Handle(3)},
	}
	for _, tc := range tests {
		t.Run(tc.sig, func(t *testing.T) {
			arg := mustArg(t, tc.sig)
			mc := &MarshalContext{}

			enc := &fragments.Encoder{Order: fragments.LittleEndian}
			if err := arg.Marshal(enc, tc.in, mc); err != nil {
				t.Fatalf("Marshal(%v): %v", tc.in, err)
			}

			dec := &fragments.Decoder{Order: fragments.LittleEndian, In: bytes.NewReader(enc.Out)}
			got, err := arg.Unmarshal(dec, mc)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tc.in {
				t.Errorf("round trip: got %#v, want %#v", got, tc.in)
			}
		})
	}
}
