package dbuskit

import (
	"context"
	"strings"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

// Method describes one D-Bus method: its wire-level in/out argument
// shapes, and the host selector it dispatches to.
type Method struct {
	Name     string
	InArgs   []*Argument
	OutArgs  []*Argument
	Selector string

	NoReply    bool
	Deprecated bool

	// Handler services an incoming call to this method, when it was
	// built by BuildInterfaceFromHostClass/BuildInterfaceFromHostProtocol
	// or installed explicitly via Interface.AddMethod followed by a
	// direct assignment. A Method with no Handler cannot answer an
	// incoming call, only describe one (the case for a remote Proxy's
	// introspected methods).
	Handler func(ctx context.Context, inv *Invocation) (HostValue, error)
}

// InSignature renders the D-Bus signature of the method's in-args.
func (m *Method) InSignature() string {
	return argumentSignatures(m.InArgs)
}

// OutSignature renders the D-Bus signature of the method's out-args.
func (m *Method) OutSignature() string {
	return argumentSignatures(m.OutArgs)
}

func argumentSignatures(args []*Argument) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.Signature())
	}
	return sb.String()
}

// Signature builds a host method signature string: a parenthesized
// list of the in-args' host class hints, followed by the return
// position. Zero out-args render "void"; exactly one out-arg renders
// that arg's own hint (boxed or unboxed, per boxed); more than one
// renders a generic boxed sequence.
func (m *Method) Signature(boxed bool) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, a := range m.InArgs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(hintFor(a, boxed))
	}
	sb.WriteString(") -> ")
	switch len(m.OutArgs) {
	case 0:
		sb.WriteString("void")
	case 1:
		sb.WriteString(hintFor(m.OutArgs[0], boxed))
	default:
		sb.WriteString("[]any")
	}
	return sb.String()
}

func hintFor(a *Argument, boxed bool) string {
	if boxed {
		return "any"
	}
	if a.HostClassHint != "" {
		return a.HostClassHint
	}
	return "any"
}

// MarshalArguments marshals inv.Args positionally into enc, per
// m.InArgs. The invocation's argument count must match the method's
// in-arg count.
func (m *Method) MarshalArguments(enc *fragments.Encoder, inv *Invocation, mc *MarshalContext) error {
	if len(inv.Args) != len(m.InArgs) {
		return &Error{Kind: KindTypeMismatch, Message: "invocation argument count does not match method in-arg count"}
	}
	for i, arg := range m.InArgs {
		if err := arg.Marshal(enc, inv.Args[i], mc); err != nil {
			return err
		}
	}
	return nil
}

// MarshalReturn marshals inv.Return into enc, per m.OutArgs. If there
// is more than one out-arg, inv.Return must be an ordered sequence
// (a []HostValue, or anything iterateSequence understands) whose
// length equals len(m.OutArgs).
func (m *Method) MarshalReturn(enc *fragments.Encoder, inv *Invocation, mc *MarshalContext) error {
	switch len(m.OutArgs) {
	case 0:
		return nil
	case 1:
		return m.OutArgs[0].Marshal(enc, inv.Return, mc)
	default:
		elems, err := iterateSequence(inv.Return)
		if err != nil {
			return err
		}
		if len(elems) != len(m.OutArgs) {
			return &Error{Kind: KindTypeMismatch, Message: "return value does not have one element per out-arg"}
		}
		for i, arg := range m.OutArgs {
			if err := arg.Marshal(enc, elems[i], mc); err != nil {
				return err
			}
		}
		return nil
	}
}

// UnmarshalArguments reads m.InArgs positionally from dec into a
// fresh Invocation. A wire payload that runs out before every in-arg
// has been read raises KindTypeMismatch, the message-truncated case.
func (m *Method) UnmarshalArguments(dec *fragments.Decoder, mc *MarshalContext) (*Invocation, error) {
	inv := &Invocation{Selector: m.Selector, Args: make([]HostValue, len(m.InArgs))}
	for i, arg := range m.InArgs {
		v, err := arg.Unmarshal(dec, mc)
		if err != nil {
			return nil, wrapErr(KindTypeMismatch, err, "truncated message while reading in-arg %d of %s", i, m.Name)
		}
		inv.Args[i] = v
	}
	return inv, nil
}

// UnmarshalReturn reads m.OutArgs from dec. Zero out-args yields
// Null{}; one yields that arg's boxed value; more than one yields a
// []HostValue of boxed values in order.
func (m *Method) UnmarshalReturn(dec *fragments.Decoder, mc *MarshalContext) (HostValue, error) {
	switch len(m.OutArgs) {
	case 0:
		return Null{}, nil
	case 1:
		v, err := m.OutArgs[0].Unmarshal(dec, mc)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return Null{}, nil
		}
		return v, nil
	default:
		out := make([]HostValue, len(m.OutArgs))
		for i, arg := range m.OutArgs {
			v, err := arg.Unmarshal(dec, mc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}

// HostDeclaration renders a human-readable protocol declaration for
// this method, in the form the protocol-generator tool emits.
func (m *Method) HostDeclaration() string {
	var sb strings.Builder
	if m.Deprecated {
		sb.WriteString("// Deprecated.\n")
	}
	sb.WriteString(m.Selector)
	sb.WriteString(" ")
	sb.WriteString(m.Signature(false))
	if m.NoReply {
		sb.WriteString(" // oneway")
	}
	return sb.String()
}
