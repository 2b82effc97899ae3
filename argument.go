package dbuskit

import (
	"fmt"
	"log"
	"math"
	"reflect"
	"strings"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

// Argument is a node in the tree that mirrors a D-Bus type signature.
// A leaf Argument describes one basic type; a container Argument
// (array, struct, dict-entry, or variant) carries the Arguments that
// describe its elements.
//
// Argument trees are built once, from a signature or a host type
// descriptor, and then reused across every message that carries that
// type: marshalling and unmarshalling never allocate a new tree per
// message, only per distinct shape.
type Argument struct {
	DBusType TypeCode
	Name     string

	// Parent is a non-owning back-reference to the container this
	// Argument was built under, or nil at the root. It lets deeply
	// nested Arguments answer questions about their enclosing method
	// or interface without threading that context through every call.
	Parent *Argument

	// Annotations carries introspection annotation values keyed by
	// annotation name (e.g. "org.gnustep.objc.class").
	Annotations map[string]string

	// HostClassHint names the default host representation for this
	// Argument's D-Bus type, or an annotation-supplied override.
	HostClassHint string

	// Children holds this Argument's element Arguments: one for an
	// array, two (key, value) for a dict-entry, N for a struct. Empty
	// for basic types and for a variant (whose element type is only
	// known at marshal time).
	Children []*Argument

	// IsDict is set on an array Argument whose sole child is a
	// dict-entry: it changes the default host container class at
	// unmarshal time from a sequence to a map.
	IsDict bool
}

// NewArgument parses sig, which must encode exactly one complete
// D-Bus type, into an Argument tree.
func NewArgument(sig string) (*Argument, error) {
	if err := ValidateSingleSignature(sig); err != nil {
		return nil, err
	}
	arg, _, err := parseArgument(sig, false, 0)
	return arg, err
}

// NewArgumentList parses sig, a concatenation of zero or more complete
// D-Bus types (e.g. a method's "in" signature), into one Argument per
// top-level type.
func NewArgumentList(sig string) ([]*Argument, error) {
	parts, err := SplitSignature(sig)
	if err != nil {
		return nil, err
	}
	args := make([]*Argument, len(parts))
	for i, part := range parts {
		arg, _, err := parseArgument(part, false, 0)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

// parseArgument consumes exactly one complete type from the front of
// sig and builds the Argument tree for it, returning the unconsumed
// remainder. inArray mirrors SignatureParser.consumeOne's tracking of
// whether a dict-entry is permitted at this position.
func parseArgument(sig string, inArray bool, depth int) (arg *Argument, rest string, err error) {
	if sig == "" {
		return nil, "", &Error{Kind: KindMalformedSignature, Message: "unexpected end of signature"}
	}
	code := TypeCode(sig[0])

	if IsBasic(code) {
		return &Argument{DBusType: code, HostClassHint: defaultHostClassHint(code)}, sig[1:], nil
	}
	if code == TypeVariant {
		return &Argument{DBusType: code}, sig[1:], nil
	}

	switch code {
	case TypeArray:
		depth++
		if depth > maxSignatureDepth {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		child, tail, err := parseArgument(sig[1:], true, depth)
		if err != nil {
			return nil, "", err
		}
		a := &Argument{DBusType: TypeArray, Children: []*Argument{child}}
		if child.DBusType == TypeDictOpen {
			a.IsDict = true
		}
		return a, tail, nil

	case TypeStructOpen:
		depth++
		if depth > maxSignatureDepth {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		tail := sig[1:]
		if tail == "" || tail[0] == byte(TypeStructClose) {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "struct must have at least one field"}
		}
		var children []*Argument
		for tail != "" && tail[0] != byte(TypeStructClose) {
			var child *Argument
			child, tail, err = parseArgument(tail, false, depth)
			if err != nil {
				return nil, "", err
			}
			children = append(children, child)
		}
		if tail == "" {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "missing closing ) in struct signature"}
		}
		return &Argument{DBusType: TypeStructOpen, Children: children}, tail[1:], nil

	case TypeDictOpen:
		if !inArray {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "dict-entry type found outside array"}
		}
		depth++
		if depth > maxSignatureDepth {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		tail := sig[1:]
		if tail == "" || !IsBasic(TypeCode(tail[0])) {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "dict-entry key must be a basic type"}
		}
		var key, val *Argument
		key, tail, err = parseArgument(tail, false, depth)
		if err != nil {
			return nil, "", err
		}
		val, tail, err = parseArgument(tail, false, depth)
		if err != nil {
			return nil, "", err
		}
		if tail == "" || tail[0] != byte(TypeDictClose) {
			return nil, "", &Error{Kind: KindMalformedSignature, Message: "missing closing } in dict-entry signature"}
		}
		return &Argument{DBusType: TypeDictOpen, Children: []*Argument{key, val}}, tail[1:], nil

	default:
		return nil, "", &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("unknown type code %q", sig[0])}
	}
}

func defaultHostClassHint(code TypeCode) string {
	switch code {
	case TypeByte:
		return "uint8"
	case TypeBoolean:
		return "bool"
	case TypeInt16:
		return "int16"
	case TypeUint16:
		return "uint16"
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeDouble:
		return "float64"
	case TypeString:
		return "string"
	case TypeObjectPath:
		return "ObjectPath"
	case TypeSignature:
		return "signature"
	case TypeHandle:
		return "Handle"
	default:
		return ""
	}
}

// HostKind describes the native shape of a host type descriptor, the
// richer vocabulary used when constructing an Argument from a host
// class's declared instance-variable or method-return type rather
// than from an existing D-Bus signature.
type HostKind int

const (
	HostInvalid HostKind = iota
	HostChar
	HostUChar
	HostShort
	HostUShort
	HostInt
	HostUInt
	HostLongLong
	HostULongLong
	HostFloat
	HostDouble
	HostBool
	HostCString
	HostObject
	HostClassHandle
	HostSelectorHandle
	HostPointer
	HostUnion
	HostVector
	HostFunctionPointer
	HostComplex
)

var hostKindCode = map[HostKind]TypeCode{
	HostChar:      TypeByte,
	HostUChar:     TypeByte,
	HostShort:     TypeInt16,
	HostUShort:    TypeUint16,
	HostInt:       TypeInt32,
	HostUInt:      TypeUint32,
	HostLongLong:  TypeInt64,
	HostULongLong: TypeUint64,
	HostFloat:     TypeDouble,
	HostDouble:    TypeDouble,
	HostBool:      TypeBoolean,
	HostCString:   TypeString,
	HostObject:    TypeObjectPath,
}

// NewArgumentFromHostKind maps a host type descriptor to its default
// Argument via TypeBridge. HostClassHandle, HostSelectorHandle,
// HostPointer, HostUnion, HostVector, HostFunctionPointer, and
// HostComplex have no representable D-Bus type and are rejected.
func NewArgumentFromHostKind(hk HostKind) (*Argument, error) {
	code, ok := hostKindCode[hk]
	if !ok {
		return nil, &Error{Kind: KindUnsupportedValue, Message: fmt.Sprintf("host type descriptor %d has no representable D-Bus type", hk)}
	}
	return &Argument{DBusType: code, HostClassHint: defaultHostClassHint(code)}, nil
}

// Signature renders the Argument tree back into its D-Bus signature
// string. For any valid signature S, NewArgument(S).Signature() == S:
// this is the round-trip invariant the signature grammar guarantees.
func (a *Argument) Signature() string {
	switch a.DBusType {
	case TypeArray:
		return string(TypeArray) + a.Children[0].Signature()
	case TypeStructOpen:
		var sb strings.Builder
		sb.WriteByte(byte(TypeStructOpen))
		for _, c := range a.Children {
			sb.WriteString(c.Signature())
		}
		sb.WriteByte(byte(TypeStructClose))
		return sb.String()
	case TypeDictOpen:
		return string(TypeDictOpen) + a.Children[0].Signature() + a.Children[1].Signature() + string(TypeDictClose)
	default:
		return string(a.DBusType)
	}
}

// Marshal writes value to enc according to a's shape.
func (a *Argument) Marshal(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	switch a.DBusType {
	case TypeVariant:
		return a.marshalVariant(enc, value, mc)
	case TypeArray:
		return a.marshalArray(enc, value, mc)
	case TypeStructOpen:
		return a.marshalStruct(enc, value, mc)
	case TypeDictOpen:
		return a.marshalDictEntry(enc, value, mc)
	default:
		return a.marshalBasic(enc, value, mc)
	}
}

// Unmarshal reads one value of a's shape from dec.
func (a *Argument) Unmarshal(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	switch a.DBusType {
	case TypeVariant:
		return a.unmarshalVariant(dec, mc)
	case TypeArray:
		return a.unmarshalArray(dec, mc)
	case TypeStructOpen:
		return a.unmarshalStruct(dec, mc)
	case TypeDictOpen:
		return a.unmarshalDictEntry(dec, mc)
	default:
		return a.unmarshalBasic(dec, mc)
	}
}

func (a *Argument) marshalBasic(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	switch a.DBusType {
	case TypeByte:
		n, err := unboxUnsigned(value)
		if err != nil {
			return err
		}
		enc.Uint8(uint8(n))
	case TypeBoolean:
		b, err := unboxBool(value)
		if err != nil {
			return err
		}
		if b {
			enc.Uint32(1)
		} else {
			enc.Uint32(0)
		}
	case TypeInt16:
		n, err := unboxSigned(value)
		if err != nil {
			return err
		}
		enc.Uint16(uint16(n))
	case TypeUint16:
		n, err := unboxUnsigned(value)
		if err != nil {
			return err
		}
		enc.Uint16(uint16(n))
	case TypeInt32:
		n, err := unboxSigned(value)
		if err != nil {
			return err
		}
		enc.Uint32(uint32(n))
	case TypeUint32:
		n, err := unboxUnsigned(value)
		if err != nil {
			return err
		}
		enc.Uint32(uint32(n))
	case TypeInt64:
		n, err := unboxSigned(value)
		if err != nil {
			return err
		}
		enc.Uint64(uint64(n))
	case TypeUint64:
		n, err := unboxUnsigned(value)
		if err != nil {
			return err
		}
		enc.Uint64(n)
	case TypeDouble:
		f, err := unboxFloat(value)
		if err != nil {
			return err
		}
		enc.Uint64(math.Float64bits(f))
	case TypeString:
		s, err := unboxString(value)
		if err != nil {
			return err
		}
		enc.String(s)
	case TypeObjectPath:
		p, err := unboxPath(value, mc)
		if err != nil {
			return err
		}
		if !p.Valid() {
			return &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("invalid object path %q", string(p))}
		}
		enc.String(string(p))
	case TypeSignature:
		s, err := unboxString(value)
		if err != nil {
			return err
		}
		if err := ValidateSignature(s); err != nil {
			return err
		}
		writeSignatureValue(enc, s)
	case TypeHandle:
		h, err := unboxHandle(value)
		if err != nil {
			return err
		}
		enc.Uint32(h)
	default:
		return &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("%q is not a basic type", a.DBusType)}
	}
	return nil
}

func (a *Argument) unmarshalBasic(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	switch a.DBusType {
	case TypeByte:
		return dec.Uint8()
	case TypeBoolean:
		v, err := dec.Uint32()
		if err != nil {
			return nil, err
		}
		return v != 0, nil
	case TypeInt16:
		v, err := dec.Uint16()
		return int16(v), err
	case TypeUint16:
		return dec.Uint16()
	case TypeInt32:
		v, err := dec.Uint32()
		return int32(v), err
	case TypeUint32:
		return dec.Uint32()
	case TypeInt64:
		v, err := dec.Uint64()
		return int64(v), err
	case TypeUint64:
		return dec.Uint64()
	case TypeDouble:
		v, err := dec.Uint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil
	case TypeString:
		return dec.String()
	case TypeObjectPath:
		s, err := dec.String()
		if err != nil {
			return nil, err
		}
		p := ObjectPath(s)
		if !p.Valid() {
			return nil, &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("invalid object path %q", s)}
		}
		if pf := mc.proxyFactory(); pf != nil {
			return pf(p), nil
		}
		return p, nil
	case TypeSignature:
		return readSignatureValue(dec)
	case TypeHandle:
		v, err := dec.Uint32()
		if err != nil {
			return nil, err
		}
		return Handle(v), nil
	default:
		return nil, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("%q is not a basic type", a.DBusType)}
	}
}

func (a *Argument) marshalArray(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	child := a.Children[0]
	if child.DBusType == TypeByte {
		if bs, ok := extractBytes(value); ok {
			enc.Bytes(bs)
			return nil
		}
	}
	containsStructs := child.DBusType == TypeStructOpen || child.DBusType == TypeDictOpen

	if a.IsDict {
		pairs, err := iteratePairs(value)
		if err != nil {
			return err
		}
		return enc.Array(containsStructs, func() error {
			for _, kv := range pairs {
				if err := child.Marshal(enc, kv, mc); err != nil {
					return err
				}
			}
			return nil
		})
	}

	elems, err := iterateSequence(value)
	if err != nil {
		return err
	}
	return enc.Array(containsStructs, func() error {
		for _, el := range elems {
			if err := child.Marshal(enc, el, mc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Argument) unmarshalArray(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	child := a.Children[0]
	if child.DBusType == TypeByte {
		bs, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		return Blob(bs), nil
	}
	containsStructs := child.DBusType == TypeStructOpen || child.DBusType == TypeDictOpen

	if a.IsDict {
		result := make(map[HostValue]HostValue)
		seen := make(map[string]bool)
		_, err := dec.Array(containsStructs, func(int) error {
			pair, err := child.Unmarshal(dec, mc)
			if err != nil {
				return err
			}
			kv := pair.([2]HostValue)
			key := fmt.Sprintf("%v", kv[0])
			if seen[key] {
				// Duplicate key observed during unmarshalling: first
				// wins.
				log.Printf("dbuskit: dropping duplicate dict key %v during unmarshal", kv[0])
				return nil
			}
			seen[key] = true
			result[kv[0]] = kv[1]
			return nil
		})
		return result, err
	}

	var out []HostValue
	_, err := dec.Array(containsStructs, func(int) error {
		v, err := child.Unmarshal(dec, mc)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func (a *Argument) marshalStruct(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	elems, err := iterateSequence(value)
	if err != nil {
		return err
	}
	if len(elems) != len(a.Children) {
		return &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("struct expects %d fields, got %d", len(a.Children), len(elems))}
	}
	return enc.Struct(func() error {
		for i, child := range a.Children {
			if err := child.Marshal(enc, elems[i], mc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Argument) unmarshalStruct(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	out := make([]HostValue, len(a.Children))
	err := dec.Struct(func() error {
		for i, child := range a.Children {
			v, err := child.Unmarshal(dec, mc)
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	return out, err
}

// marshalDictEntry marshals a single (key, value) pair, supplied as a
// [2]HostValue. It is called both directly (a standalone dict-entry)
// and from marshalArray's dictionary branch.
func (a *Argument) marshalDictEntry(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	kv, ok := value.([2]HostValue)
	if !ok {
		return &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("dict-entry requires a (key, value) pair, got %T", value)}
	}
	keyArg, valArg := a.Children[0], a.Children[1]
	if !IsBasic(keyArg.DBusType) {
		return &Error{Kind: KindTypeMismatch, Message: "dict-entry key must box as a basic type"}
	}
	return enc.Struct(func() error {
		if err := keyArg.Marshal(enc, kv[0], mc); err != nil {
			return err
		}
		return valArg.Marshal(enc, kv[1], mc)
	})
}

func (a *Argument) unmarshalDictEntry(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	var kv [2]HostValue
	err := dec.Struct(func() error {
		key, err := a.Children[0].Unmarshal(dec, mc)
		if err != nil {
			return err
		}
		val, err := a.Children[1].Unmarshal(dec, mc)
		if err != nil {
			return err
		}
		kv[0], kv[1] = key, val
		return nil
	})
	return kv, err
}

func (a *Argument) marshalVariant(enc *fragments.Encoder, value HostValue, mc *MarshalContext) error {
	inner, err := InferVariantArgument(value, mc)
	if err != nil {
		return err
	}
	writeSignatureValue(enc, inner.Signature())
	return inner.Marshal(enc, value, mc)
}

func (a *Argument) unmarshalVariant(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	sig, err := readSignatureValue(dec)
	if err != nil {
		return nil, err
	}
	inner, err := NewArgument(sig)
	if err != nil {
		return nil, err
	}
	return inner.Unmarshal(dec, mc)
}

// --- unboxing: host value -> wire-ready primitive ---
//
// Every integer path here widens through int64/uint64 before the
// caller truncates it to the wire width: sign-extension on read and
// masking to width on write falls out of Go's own integer-conversion
// truncation semantics applied at the call site in marshalBasic.

func unboxSigned(value HostValue) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case IntValuer:
		return v.IntValue(), nil
	case UintValuer:
		return int64(v.UintValue()), nil
	case FloatValuer:
		return int64(v.FloatValue()), nil
	case BoolValuer:
		if v.BoolValue() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as a signed integer", value)}
	}
}

func unboxUnsigned(value HostValue) (uint64, error) {
	n, err := unboxSigned(value)
	return uint64(n), err
}

func unboxFloat(value HostValue) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case FloatValuer:
		return v.FloatValue(), nil
	case IntValuer:
		return float64(v.IntValue()), nil
	case UintValuer:
		return float64(v.UintValue()), nil
	default:
		return 0, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as a float", value)}
	}
}

// unboxBool normalizes any host value accepted as a boolean to
// exactly true or false, since booleans are normalized to 0 or 1 on
// the wire.
func unboxBool(value HostValue) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case BoolValuer:
		return v.BoolValue(), nil
	case IntValuer:
		return v.IntValue() != 0, nil
	case UintValuer:
		return v.UintValue() != 0, nil
	default:
		return false, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as a boolean", value)}
	}
}

func unboxString(value HostValue) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case StringValuer:
		return v.StringValue(), nil
	case BytesValuer:
		return string(v.Bytes()), nil
	default:
		return "", &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as a string", value)}
	}
}

// unboxPath resolves value to an object path, honouring the Proxy
// scope rule: a path is forwarded verbatim only within the receiving
// Proxy's scope, or minted fresh via the Exporter for a locally
// reachable object. A cross-scope reference is a marshalling error.
func unboxPath(value HostValue, mc *MarshalContext) (ObjectPath, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case ObjectPath:
		return v, nil
	case PathValuer:
		path := v.Path()
		if sc, ok := v.(Scoped); ok && !sc.ScopeOf().Equal(mc.scope()) {
			if exp := mc.exporter(); exp != nil {
				return exp.ExportAuto(value)
			}
			return "", &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("object path %q is out of scope for this call", string(path))}
		}
		return path, nil
	default:
		if exp := mc.exporter(); exp != nil {
			return exp.ExportAuto(value)
		}
		return "", &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as an object path", value)}
	}
}

func unboxHandle(value HostValue) (uint32, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case uint32:
		return v, nil
	case Handle:
		return uint32(v), nil
	case HandleValuer:
		return uint32(v.Handle()), nil
	default:
		return 0, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot unbox %T as a handle", value)}
	}
}

func extractBytes(value HostValue) ([]byte, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case []byte:
		return v, true
	case Blob:
		return []byte(v), true
	case string:
		return []byte(v), true
	case BytesValuer:
		return v.Bytes(), true
	default:
		return nil, false
	}
}

// iterateSequence produces the ordered elements of a host sequence
// value, consulting SequenceValuer first and falling back to
// reflection over a Go slice or array.
func iterateSequence(value HostValue) ([]HostValue, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case SequenceValuer:
		out := make([]HostValue, v.Len())
		for i := range out {
			out[i] = v.At(i)
		}
		return out, nil
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return nil, nil
		}
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			out := make([]HostValue, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		default:
			return nil, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot iterate %T as a sequence", value)}
		}
	}
}

// iteratePairs produces the (key, value) pairs of a host map-like
// value, consulting MapValuer first and falling back to reflection
// over a Go map.
func iteratePairs(value HostValue) ([][2]HostValue, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case MapValuer:
		keys := v.Keys()
		out := make([][2]HostValue, 0, len(keys))
		for _, k := range keys {
			val, ok := v.Get(k)
			if !ok {
				continue
			}
			out = append(out, [2]HostValue{k, val})
		}
		return out, nil
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return nil, nil
		}
		if rv.Kind() != reflect.Map {
			return nil, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("cannot iterate %T as a map", value)}
		}
		out := make([][2]HostValue, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out = append(out, [2]HostValue{iter.Key().Interface(), iter.Value().Interface()})
		}
		return out, nil
	}
}
