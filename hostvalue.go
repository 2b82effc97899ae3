package dbuskit

// HostValue is any value flowing across the bridge from the host side.
// Builtin Go values (bool, the sized integer kinds, float64, string,
// []byte, []any, map[string]any, ObjectPath) are understood directly;
// host wrapper types participate by implementing one or more of the
// accessor interfaces below, the Go-native analogue of the dynamic
// accessor methods (numericValue, UTF8String, and so on) a dynamically
// typed host object would expose.
type HostValue = any

// IntValuer is implemented by host wrappers around a signed integer.
type IntValuer interface {
	IntValue() int64
}

// UintValuer is implemented by host wrappers around an unsigned
// integer or a file/handle descriptor.
type UintValuer interface {
	UintValue() uint64
}

// FloatValuer is implemented by host wrappers around a floating-point
// number.
type FloatValuer interface {
	FloatValue() float64
}

// BoolValuer is implemented by host wrappers around a boolean.
type BoolValuer interface {
	BoolValue() bool
}

// StringValuer is implemented by host wrappers around UTF-8 text.
type StringValuer interface {
	StringValue() string
}

// PathValuer is implemented by Proxy and by exported objects: anything
// that can stand in for a D-Bus object path.
type PathValuer interface {
	Path() ObjectPath
}

// HandleValuer is implemented by host wrappers around a transferable
// file descriptor.
type HandleValuer interface {
	Handle() uintptr
}

// BytesValuer is implemented by a host byte-blob wrapper, the class
// used to represent an array-of-byte argument annotated as a blob
// rather than as an array of small integers.
type BytesValuer interface {
	Bytes() []byte
}

// SequenceValuer is implemented by host ordered collections: Go slices
// satisfy it via reflection fallback, but a host wrapper can implement
// it directly to avoid that cost.
type SequenceValuer interface {
	Len() int
	At(i int) HostValue
}

// StructValuer marks a SequenceValuer as representing a fixed-arity
// host struct rather than a homogeneous sequence, so variant inference
// emits "(...)" instead of "a<type>".
type StructValuer interface {
	SequenceValuer
	IsHostStruct() bool
}

// MapValuer is implemented by host key/value collections.
type MapValuer interface {
	Keys() []HostValue
	Get(key HostValue) (HostValue, bool)
}

// VariantValuer is implemented by a boxed-variant sentinel: a host
// wrapper that explicitly marks its payload as "already a variant",
// short-circuiting variant type inference rule 1.
type VariantValuer interface {
	IsHostVariant() bool
}

// Handle is the default host wrapper for a D-Bus file-descriptor
// argument: an index into the message's attached file descriptors,
// not a raw descriptor number.
type Handle uint32

func (h Handle) Handle() uintptr { return uintptr(h) }

// Blob is the default host byte-blob class the box contract
// constructs for every byte array ("ay") it unmarshals, whatever its
// annotations, rather than boxing it as a slice of individual byte
// wrappers.
type Blob []byte

func (b Blob) Bytes() []byte { return []byte(b) }

// Null is the host's explicit null sentinel, returned where a call
// yields no value at all: by Method.UnmarshalReturn for a method with
// no out-args, and by a NoReply call that does not wait for a reply.
type Null struct{}

// IsHostVariant implements VariantValuer: Null carries no type
// information of its own, so it is never promoted through inference.
func (Null) IsHostVariant() bool { return false }
