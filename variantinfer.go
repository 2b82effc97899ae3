package dbuskit

import (
	"fmt"
	"reflect"
)

// InferVariantArgument picks the most specific D-Bus type representable
// for value, applying the variant type inference rules in order:
//
//  1. An explicit boxed-variant sentinel forces "v".
//  2. A key/value collection derives homogeneous key and value
//     sub-signatures into "a{KV}"; complex keys fall back to "a(KV)".
//  3. A non-map sequence derives a sub-signature: "(...)" if the host
//     marks it as a struct, else "a<sub>" if homogeneous, else "av".
//  4. A byte blob becomes "ay".
//  5. A Proxy whose scope matches the parent Proxy's becomes "o".
//  6. A numeric wrapper becomes its TypeBridge code (booleans are
//     detected explicitly first, to avoid being promoted to byte).
//  7. Any other unknown object may be auto-exported as "o", but only
//     when the parent scope is local.
func InferVariantArgument(value HostValue, mc *MarshalContext) (*Argument, error) {
	if value == nil {
		return nil, &Error{Kind: KindUnsupportedValue, Message: "cannot infer a variant type for a null value"}
	}

	// Rule 1.
	if vv, ok := value.(VariantValuer); ok && vv.IsHostVariant() {
		return &Argument{DBusType: TypeVariant}, nil
	}

	// Rule 2.
	if isMapLike(value) {
		return inferMapArgument(value, mc)
	}

	// Rule 3.
	if isSequenceLike(value) {
		return inferSequenceArgument(value, mc)
	}

	// Rule 4. A plain string is handled by rule 6 instead: extractBytes
	// also accepts strings for the benefit of callers filling an
	// already-typed "ay" slot, but an untyped string being inferred
	// from scratch is text, not a blob.
	if _, isStr := value.(string); !isStr {
		if _, ok := extractBytes(value); ok {
			if _, isSeq := value.(SequenceValuer); !isSeq {
				return &Argument{DBusType: TypeArray, Children: []*Argument{{DBusType: TypeByte}}}, nil
			}
		}
	}

	// Rule 5 / 7 (proxy-shaped values).
	if _, ok := value.(PathValuer); ok {
		if sc, ok2 := value.(Scoped); !ok2 || sc.ScopeOf().Equal(mc.scope()) {
			return &Argument{DBusType: TypeObjectPath}, nil
		}
		if mc.scope().Local && mc.exporter() != nil {
			return &Argument{DBusType: TypeObjectPath}, nil
		}
		return nil, &Error{Kind: KindUnsupportedValue, Message: "cannot infer a variant type for an out-of-scope object reference"}
	}

	// Rule 6: booleans first, so they are never promoted to byte.
	if _, ok := value.(bool); ok {
		return &Argument{DBusType: TypeBoolean}, nil
	}
	if _, ok := value.(BoolValuer); ok {
		return &Argument{DBusType: TypeBoolean}, nil
	}
	if kind, ok := nativeKindOfGoValue(value); ok {
		if code, ok2 := DBusCodeForKind(kind); ok2 {
			return &Argument{DBusType: code}, nil
		}
	}
	if _, ok := value.(string); ok {
		return &Argument{DBusType: TypeString}, nil
	}
	if _, ok := value.(StringValuer); ok {
		return &Argument{DBusType: TypeString}, nil
	}

	// Rule 7: fallback auto-export.
	if mc.scope().Local && mc.exporter() != nil {
		return &Argument{DBusType: TypeObjectPath}, nil
	}

	return nil, &Error{Kind: KindUnsupportedValue, Message: fmt.Sprintf("cannot infer a D-Bus type for host value of type %T", value), Value: value}
}

func nativeKindOfGoValue(value HostValue) (NativeKind, bool) {
	switch value.(type) {
	case uint8:
		return KindU8, true
	case int16:
		return KindI16, true
	case uint16:
		return KindU16, true
	case int32:
		return KindI32, true
	case uint32:
		return KindU32, true
	case int, int64:
		return KindI64, true
	case uint, uint64:
		return KindU64, true
	case float32, float64:
		return KindF64, true
	}
	switch value.(type) {
	case IntValuer:
		return KindI64, true
	case UintValuer:
		return KindU64, true
	case FloatValuer:
		return KindF64, true
	}
	return KindInvalid, false
}

func isMapLike(value HostValue) bool {
	if _, ok := value.(MapValuer); ok {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.IsValid() && rv.Kind() == reflect.Map
}

func isSequenceLike(value HostValue) bool {
	if _, ok := value.(SequenceValuer); ok {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
}

func inferAny(value HostValue, mc *MarshalContext) (*Argument, error) {
	return InferVariantArgument(value, mc)
}

// inferHomogeneous infers a common element Argument for values. If
// values is empty, or the elements don't share one signature, it
// falls back to a variant element type.
func inferHomogeneous(values []HostValue, mc *MarshalContext) (*Argument, error) {
	if len(values) == 0 {
		return &Argument{DBusType: TypeVariant}, nil
	}
	first, err := inferAny(values[0], mc)
	if err != nil {
		return nil, err
	}
	sig := first.Signature()
	for _, v := range values[1:] {
		a, err := inferAny(v, mc)
		if err != nil {
			return nil, err
		}
		if a.Signature() != sig {
			return &Argument{DBusType: TypeVariant}, nil
		}
	}
	return first, nil
}

func inferMapArgument(value HostValue, mc *MarshalContext) (*Argument, error) {
	pairs, err := iteratePairs(value)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		dictEntry := &Argument{DBusType: TypeDictOpen, Children: []*Argument{{DBusType: TypeString}, {DBusType: TypeVariant}}}
		return &Argument{DBusType: TypeArray, Children: []*Argument{dictEntry}, IsDict: true}, nil
	}

	keys := make([]HostValue, len(pairs))
	vals := make([]HostValue, len(pairs))
	for i, kv := range pairs {
		keys[i], vals[i] = kv[0], kv[1]
	}

	keyArg, err := inferHomogeneous(keys, mc)
	if err != nil {
		return nil, err
	}
	valArg, err := inferHomogeneous(vals, mc)
	if err != nil {
		return nil, err
	}

	if !IsBasic(keyArg.DBusType) {
		// Complex keys: fall back to an array of (key, value) structs.
		structArg := &Argument{DBusType: TypeStructOpen, Children: []*Argument{keyArg, valArg}}
		return &Argument{DBusType: TypeArray, Children: []*Argument{structArg}}, nil
	}

	dictEntry := &Argument{DBusType: TypeDictOpen, Children: []*Argument{keyArg, valArg}}
	return &Argument{DBusType: TypeArray, Children: []*Argument{dictEntry}, IsDict: true}, nil
}

func inferSequenceArgument(value HostValue, mc *MarshalContext) (*Argument, error) {
	elems, err := iterateSequence(value)
	if err != nil {
		return nil, err
	}
	if sv, ok := value.(StructValuer); ok && sv.IsHostStruct() {
		children := make([]*Argument, len(elems))
		for i, el := range elems {
			a, err := inferAny(el, mc)
			if err != nil {
				return nil, err
			}
			children[i] = a
		}
		return &Argument{DBusType: TypeStructOpen, Children: children}, nil
	}
	elemArg, err := inferHomogeneous(elems, mc)
	if err != nil {
		return nil, err
	}
	return &Argument{DBusType: TypeArray, Children: []*Argument{elemArg}}, nil
}
