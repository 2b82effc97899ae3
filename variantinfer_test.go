package dbuskit

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

func roundTripVariant(t *testing.T, value HostValue) HostValue {
	t.Helper()
	mc := &MarshalContext{}
	variant := &Argument{DBusType: TypeVariant}

	enc := &fragments.Encoder{Order: fragments.LittleEndian}
	if err := variant.Marshal(enc, value, mc); err != nil {
		t.Fatalf("Marshal(%v): %v", value, err)
	}

	dec := &fragments.Decoder{Order: fragments.LittleEndian, In: bytes.NewReader(enc.Out)}
	got, err := variant.Unmarshal(dec, mc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return got
}

// TestVariantRoundTrip covers invariant 6: unmarshalling a variant
// marshalled from value reproduces the same value.
func TestVariantRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   HostValue
	}{
		{"string", "hello"},
		{"empty string", ""},
		{"bool true", true},
		{"bool false", false},
		{"int64", int64(-42)},
		{"uint32", uint32(7)},
		{"float64", float64(3.5)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := roundTripVariant(t, tc.in)
			if got != tc.in {
				t.Errorf("round trip: got %#v, want %#v", got, tc.in)
			}
		})
	}
}

// TestHeterogeneousMapInfersVariantDict covers S3: a map whose values
// don't share one D-Bus signature is inferred as a{sv}, not a{s<T>}
// for some single T.
func TestHeterogeneousMapInfersVariantDict(t *testing.T) {
	mc := &MarshalContext{}
	m := map[HostValue]HostValue{
		"name":  "widget",
		"count": int64(3),
	}
	arg, err := InferVariantArgument(m, mc)
	if err != nil {
		t.Fatalf("InferVariantArgument: %v", err)
	}
	if want := "a{sv}"; arg.Signature() != want {
		t.Errorf("Signature() = %q, want %q", arg.Signature(), want)
	}
}

// TestByteBlobRoundTrip covers S4: a 300-byte blob marshals as "ay"
// and unmarshals with bytewise identity.
func TestByteBlobRoundTrip(t *testing.T) {
	blob := make(Blob, 300)
	for i := range blob {
		blob[i] = byte(i)
	}

	mc := &MarshalContext{}
	arg, err := NewArgument("ay")
	if err != nil {
		t.Fatalf("NewArgument: %v", err)
	}

	enc := &fragments.Encoder{Order: fragments.LittleEndian}
	if err := arg.Marshal(enc, blob, mc); err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	dec := &fragments.Decoder{Order: fragments.LittleEndian, In: bytes.NewReader(enc.Out)}
	got, err := arg.Unmarshal(dec, mc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, blob) {
		t.Errorf("round trip: got %v bytes, want %v bytes", len(got.(Blob)), len(blob))
	}
}
