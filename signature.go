package dbuskit

import (
	"fmt"
)

// TypeCode is a single D-Bus signature character.
type TypeCode byte

const (
	TypeByte        TypeCode = 'y'
	TypeBoolean     TypeCode = 'b'
	TypeInt16       TypeCode = 'n'
	TypeUint16      TypeCode = 'q'
	TypeInt32       TypeCode = 'i'
	TypeUint32      TypeCode = 'u'
	TypeInt64       TypeCode = 'x'
	TypeUint64      TypeCode = 't'
	TypeDouble      TypeCode = 'd'
	TypeString      TypeCode = 's'
	TypeObjectPath  TypeCode = 'o'
	TypeSignature   TypeCode = 'g'
	TypeHandle      TypeCode = 'h'
	TypeArray       TypeCode = 'a'
	TypeStructOpen  TypeCode = '('
	TypeStructClose TypeCode = ')'
	TypeDictOpen    TypeCode = '{'
	TypeDictClose   TypeCode = '}'
	TypeVariant     TypeCode = 'v'
)

// basicTypes is the closed set of basic (non-container) type codes.
var basicTypes = map[TypeCode]bool{
	TypeByte:       true,
	TypeBoolean:    true,
	TypeInt16:      true,
	TypeUint16:     true,
	TypeInt32:      true,
	TypeUint32:     true,
	TypeInt64:      true,
	TypeUint64:     true,
	TypeDouble:     true,
	TypeString:     true,
	TypeObjectPath: true,
	TypeSignature:  true,
	TypeHandle:     true,
}

// IsBasic reports whether code is one of the thirteen D-Bus basic
// types listed in basicTypes.
func IsBasic(code TypeCode) bool {
	return basicTypes[code]
}

// IsContainer reports whether code opens a D-Bus container type:
// array, struct, dict-entry, or variant.
func IsContainer(code TypeCode) bool {
	switch code {
	case TypeArray, TypeStructOpen, TypeDictOpen, TypeVariant:
		return true
	default:
		return false
	}
}

// maxSignatureDepth bounds the nesting depth the parser will accept,
// matching the D-Bus specification's own limit on container nesting.
const maxSignatureDepth = 64

// maxSignatureLength bounds the length of a single signature string,
// matching the D-Bus specification's 255-byte limit.
const maxSignatureLength = 255

// SignatureParser validates and iterates D-Bus type signatures,
// driving Argument construction one complete type at a time.
//
// A SignatureParser is single-use: construct one with
// NewSignatureParser per signature string, and call Next until it
// reports ok=false.
type SignatureParser struct {
	rest  string
	depth int
}

// NewSignatureParser returns a parser positioned at the start of sig.
func NewSignatureParser(sig string) (*SignatureParser, error) {
	if len(sig) > maxSignatureLength {
		return nil, &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("signature %q exceeds maximum length %d", sig, maxSignatureLength)}
	}
	return &SignatureParser{rest: sig}, nil
}

// Done reports whether the parser has consumed the entire signature
// string.
func (p *SignatureParser) Done() bool {
	return p.rest == ""
}

// Remaining returns the unconsumed portion of the signature string.
func (p *SignatureParser) Remaining() string {
	return p.rest
}

// Next consumes and returns the next complete type signature from the
// front of the parser's input (e.g. "a{sv}"). It returns ok=false
// once the input is exhausted.
func (p *SignatureParser) Next() (sig string, ok bool, err error) {
	if p.rest == "" {
		return "", false, nil
	}
	before := p.rest
	rest, err := p.consumeOne(p.rest, false)
	if err != nil {
		return "", false, err
	}
	consumed := before[:len(before)-len(rest)]
	p.rest = rest
	return consumed, true, nil
}

// consumeOne consumes exactly one complete type from the front of sig
// and returns the unconsumed remainder.
func (p *SignatureParser) consumeOne(sig string, inArray bool) (rest string, err error) {
	if sig == "" {
		return "", &Error{Kind: KindMalformedSignature, Message: "unexpected end of signature"}
	}
	code := TypeCode(sig[0])

	if IsBasic(code) || code == TypeVariant {
		return sig[1:], nil
	}

	switch code {
	case TypeArray:
		p.depth++
		if p.depth > maxSignatureDepth {
			return "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		defer func() { p.depth-- }()
		return p.consumeOne(sig[1:], true)
	case TypeStructOpen:
		p.depth++
		if p.depth > maxSignatureDepth {
			return "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		defer func() { p.depth-- }()
		rest = sig[1:]
		if rest == "" || rest[0] == byte(TypeStructClose) {
			return "", &Error{Kind: KindMalformedSignature, Message: "struct must have at least one field"}
		}
		for rest != "" && rest[0] != byte(TypeStructClose) {
			rest, err = p.consumeOne(rest, false)
			if err != nil {
				return "", err
			}
		}
		if rest == "" {
			return "", &Error{Kind: KindMalformedSignature, Message: "missing closing ) in struct signature"}
		}
		return rest[1:], nil
	case TypeDictOpen:
		if !inArray {
			return "", &Error{Kind: KindMalformedSignature, Message: "dict-entry type found outside array"}
		}
		p.depth++
		if p.depth > maxSignatureDepth {
			return "", &Error{Kind: KindMalformedSignature, Message: "signature nesting too deep"}
		}
		defer func() { p.depth-- }()
		rest = sig[1:]
		if rest == "" || !IsBasic(TypeCode(rest[0])) {
			return "", &Error{Kind: KindMalformedSignature, Message: "dict-entry key must be a basic type"}
		}
		rest, err = p.consumeOne(rest, false)
		if err != nil {
			return "", err
		}
		rest, err = p.consumeOne(rest, false)
		if err != nil {
			return "", err
		}
		if rest == "" || rest[0] != byte(TypeDictClose) {
			return "", &Error{Kind: KindMalformedSignature, Message: "missing closing } in dict-entry signature"}
		}
		return rest[1:], nil
	default:
		return "", &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("unknown type code %q", sig[0])}
	}
}

// ValidateSignature reports whether sig is well-formed: every type in
// it is valid and brackets balance, with no trailing garbage.
//
// This satisfies invariant 1 of the specification: for every valid
// complete signature S, parsing and re-rendering S is a fixed point
// (rendering is simply the substring the parser consumed).
func ValidateSignature(sig string) error {
	p, err := NewSignatureParser(sig)
	if err != nil {
		return err
	}
	for !p.Done() {
		if _, ok, err := p.Next(); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	return nil
}

// ValidateSingleSignature reports an error unless sig encodes exactly
// one complete D-Bus type, with no leading or trailing garbage.
func ValidateSingleSignature(sig string) error {
	if sig == "" {
		return &Error{Kind: KindMalformedSignature, Message: "empty signature where exactly one type was required"}
	}
	p, err := NewSignatureParser(sig)
	if err != nil {
		return err
	}
	first, ok, err := p.Next()
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Kind: KindMalformedSignature, Message: "empty signature where exactly one type was required"}
	}
	if !p.Done() {
		return &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("trailing data %q after single type %q", p.Remaining(), first)}
	}
	return nil
}

// SplitSignature splits a complete multi-type signature string into
// its top-level component type strings, e.g. "sa{sv}i" becomes ["s",
// "a{sv}", "i"].
func SplitSignature(sig string) ([]string, error) {
	p, err := NewSignatureParser(sig)
	if err != nil {
		return nil, err
	}
	var parts []string
	for !p.Done() {
		part, ok, err := p.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		parts = append(parts, part)
	}
	return parts, nil
}
