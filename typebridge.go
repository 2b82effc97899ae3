package dbuskit

// NativeKind identifies the native representation a D-Bus basic type
// is unboxed into on the host side. Container and object-path types
// are always "boxed": the host never sees a flat register-sized slot
// for them, only a host object.
type NativeKind byte

const (
	KindInvalid NativeKind = iota
	KindU8
	KindBool
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF64
	KindString
	KindHandle
	KindBoxed
)

func (k NativeKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindBool:
		return "bool"
	case KindI16:
		return "i16"
	case KindU16:
		return "u16"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindHandle:
		return "opaque-handle"
	case KindBoxed:
		return "boxed"
	default:
		return "invalid"
	}
}

// nativeKindTable maps every type code in the D-Bus closed set to its
// NativeKind. Container and path-like codes are boxed: their runtime
// representation is a host object (slice, map, Proxy, Signature), not
// a fixed-width slot.
var nativeKindTable = map[TypeCode]NativeKind{
	TypeByte:       KindU8,
	TypeBoolean:    KindBool,
	TypeInt16:      KindI16,
	TypeUint16:     KindU16,
	TypeInt32:      KindI32,
	TypeUint32:     KindU32,
	TypeInt64:      KindI64,
	TypeUint64:     KindU64,
	TypeDouble:     KindF64,
	TypeString:     KindString,
	TypeObjectPath: KindBoxed,
	TypeSignature:  KindBoxed,
	TypeHandle:     KindHandle,
	TypeArray:      KindBoxed,
	TypeStructOpen: KindBoxed,
	TypeDictOpen:   KindBoxed,
	TypeVariant:    KindBoxed,
}

// nativeSizeTable gives the unboxed wire width, in bytes, of each
// basic type. Boxed kinds report the machine pointer size, matching
// the size of the handle the host actually stores.
var nativeSizeTable = map[NativeKind]int{
	KindU8:     1,
	KindBool:   4, // DBus booleans are wire-encoded as a full uint32.
	KindI16:    2,
	KindU16:    2,
	KindI32:    4,
	KindU32:    4,
	KindI64:    8,
	KindU64:    8,
	KindF64:    8,
	KindString: pointerSize,
	KindHandle: 4,
	KindBoxed:  pointerSize,
}

const pointerSize = 8

// NativeKindFor returns the native representation kind for a D-Bus
// type code. Container codes, object paths and signatures all report
// KindBoxed.
func NativeKindFor(code TypeCode) NativeKind {
	if k, ok := nativeKindTable[code]; ok {
		return k
	}
	return KindInvalid
}

// NativeSizeFor returns the byte size of the unboxed representation
// of code, or the machine pointer size for boxed kinds.
func NativeSizeFor(code TypeCode) int {
	return nativeSizeTable[NativeKindFor(code)]
}

// dbusCodeForKind is the default type code TypeBridge offers when it
// must synthesize a signature from a bare native kind, e.g. when
// inferring a variant's element type from an unannotated host value.
var dbusCodeForKind = map[NativeKind]TypeCode{
	KindU8:     TypeByte,
	KindBool:   TypeBoolean,
	KindI16:    TypeInt16,
	KindU16:    TypeUint16,
	KindI32:    TypeInt32,
	KindU32:    TypeUint32,
	KindI64:    TypeInt64,
	KindU64:    TypeUint64,
	KindF64:    TypeDouble,
	KindString: TypeString,
	KindHandle: TypeHandle,
}

// DBusCodeForKind returns the default D-Bus type code used when
// generating a signature for the given native kind. KindBoxed has no
// single default code: callers must supply one via a host-class
// annotation or structural inspection of the value.
func DBusCodeForKind(k NativeKind) (TypeCode, bool) {
	c, ok := dbusCodeForKind[k]
	return c, ok
}

// signClass distinguishes signed integers, unsigned integers, and
// non-integer kinds, for use by Fits.
type signClass int

const (
	signNone signClass = iota
	signSigned
	signUnsigned
)

func classify(k NativeKind) (class signClass, width int, isFloat bool) {
	switch k {
	case KindU8:
		return signUnsigned, 1, false
	case KindU16:
		return signUnsigned, 2, false
	case KindU32:
		return signUnsigned, 4, false
	case KindU64:
		return signUnsigned, 8, false
	case KindI16:
		return signSigned, 2, false
	case KindI32:
		return signSigned, 4, false
	case KindI64:
		return signSigned, 8, false
	case KindBool:
		return signUnsigned, 1, false
	case KindF64:
		return signNone, 8, true
	default:
		return signNone, 0, false
	}
}

// Fits reports whether a value of native kind source can be widened
// into target without loss of information.
//
// Rules, per the specification:
//   - identical kinds always fit.
//   - for integers, widening preserves value only when target is at
//     least as wide as source in bytes, AND either the sign class
//     matches, or source is unsigned and target is signed and
//     strictly wider (there is room for the sign bit). At equal
//     width, only identical signedness fits.
//   - a float fits another float only if the target is at least as
//     wide as the source.
//   - there is no implicit fit between the integer and float classes.
func Fits(source, target NativeKind) bool {
	if source == target {
		return true
	}

	sc, sw, sf := classify(source)
	tc, tw, tf := classify(target)
	if sc == signNone && !sf {
		return false
	}
	if tc == signNone && !tf {
		return false
	}
	if sf != tf {
		// No implicit fit between integers and floats.
		return false
	}
	if sf && tf {
		return tw >= sw
	}

	if tw < sw {
		return false
	}
	if sc == tc {
		return true
	}
	return sc == signUnsigned && tc == signSigned && tw > sw
}
