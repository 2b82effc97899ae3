package dbuskit

import (
	"fmt"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

// msgType is the type of a D-Bus message.
type msgType byte

const (
	msgTypeCall msgType = iota + 1
	msgTypeReturn
	msgTypeError
	msgTypeSignal
)

// Message flag bits, per the D-Bus specification.
const (
	flagNoReplyExpected byte = 1 << 0
	flagNoAutoStart     byte = 1 << 1
	flagAllowInteract   byte = 1 << 2
)

// header is a parsed D-Bus message header. Unlike the rest of this
// package, header is encoded and decoded by hand rather than through
// the Argument tree: its shape is small, fixed, and known at compile
// time, so running it through the dynamic engine would only add
// overhead for no benefit.
type header struct {
	BigEndian bool
	Type      msgType
	Flags     byte
	Version   uint8
	BodyLen   uint32
	Serial    uint32

	Path        ObjectPath
	Interface   string
	Member      string
	ErrName     string
	ReplySerial uint32
	Destination string
	Sender      string
	Signature   string
	NumFDs      uint32
}

// headerFieldCode identifies a D-Bus header field slot.
type headerFieldCode uint8

const (
	fieldPath        headerFieldCode = 1
	fieldInterface   headerFieldCode = 2
	fieldMember      headerFieldCode = 3
	fieldErrName     headerFieldCode = 4
	fieldReplySerial headerFieldCode = 5
	fieldDestination headerFieldCode = 6
	fieldSender      headerFieldCode = 7
	fieldSignature   headerFieldCode = 8
	fieldNumFDs      headerFieldCode = 9
)

// Valid checks that the message header carries the fields required
// for its message type.
func (h *header) Valid() error {
	if h.Serial == 0 {
		return fmt.Errorf("invalid message with zero Serial")
	}
	switch h.Type {
	case 0:
		return fmt.Errorf("invalid message with Type 0")
	case msgTypeCall:
		if h.Path == "" {
			return fmt.Errorf("missing required header field Path")
		}
		if h.Member == "" {
			return fmt.Errorf("missing required header field Member")
		}
		if h.Destination == "" {
			return fmt.Errorf("missing required header field Destination")
		}
	case msgTypeReturn:
		if h.ReplySerial == 0 {
			return fmt.Errorf("missing required header field ReplySerial")
		}
	case msgTypeError:
		if h.ReplySerial == 0 {
			return fmt.Errorf("missing required header field ReplySerial")
		}
		if h.ErrName == "" {
			return fmt.Errorf("missing required header field ErrName")
		}
	case msgTypeSignal:
		if h.Path == "" {
			return fmt.Errorf("missing required header field Path")
		}
		if h.Interface == "" {
			return fmt.Errorf("missing required header field Interface")
		}
		if h.Member == "" {
			return fmt.Errorf("missing required header field Member")
		}
	default:
		// Unknown message types are suspect, but the spec requires us
		// to gracefully allow them.
	}
	return nil
}

// WantReply reports whether this message requires a response.
func (h *header) WantReply() bool {
	return h.Type == msgTypeCall && h.Flags&flagNoReplyExpected == 0
}

// CanInteract reports whether the message's sender is prepared to
// wait for an interactive authorization prompt.
func (h *header) CanInteract() bool {
	return h.Type == msgTypeCall && h.Flags&flagAllowInteract != 0
}

// marshalHeader encodes h's fixed prelude and variable fields array.
// bodyLen and serial must already be set on h.
func marshalHeader(enc *fragments.Encoder, h *header) error {
	enc.ByteOrderFlag()
	enc.Uint8(byte(h.Type))
	enc.Uint8(h.Flags)
	enc.Uint8(h.Version)
	enc.Uint32(h.BodyLen)
	enc.Uint32(h.Serial)

	return enc.Array(true, func() error {
		if h.Path != "" {
			marshalHeaderField(enc, fieldPath, TypeObjectPath, func() { enc.String(string(h.Path)) })
		}
		if h.Interface != "" {
			marshalHeaderField(enc, fieldInterface, TypeString, func() { enc.String(h.Interface) })
		}
		if h.Member != "" {
			marshalHeaderField(enc, fieldMember, TypeString, func() { enc.String(h.Member) })
		}
		if h.ErrName != "" {
			marshalHeaderField(enc, fieldErrName, TypeString, func() { enc.String(h.ErrName) })
		}
		if h.ReplySerial != 0 {
			marshalHeaderField(enc, fieldReplySerial, TypeUint32, func() { enc.Uint32(h.ReplySerial) })
		}
		if h.Destination != "" {
			marshalHeaderField(enc, fieldDestination, TypeString, func() { enc.String(h.Destination) })
		}
		if h.Sender != "" {
			marshalHeaderField(enc, fieldSender, TypeString, func() { enc.String(h.Sender) })
		}
		if h.Signature != "" {
			marshalHeaderField(enc, fieldSignature, TypeSignature, func() { writeSignatureValue(enc, h.Signature) })
		}
		if h.NumFDs != 0 {
			marshalHeaderField(enc, fieldNumFDs, TypeUint32, func() { enc.Uint32(h.NumFDs) })
		}
		return nil
	})
}

// marshalHeaderField writes one (byte code, variant) struct entry of
// the header fields array. sig must be a single basic type code;
// header fields never carry container values.
func marshalHeaderField(enc *fragments.Encoder, code headerFieldCode, sig TypeCode, value func()) {
	enc.Pad(8)
	enc.Uint8(uint8(code))
	sigBytes := []byte{byte(sig)}
	enc.Uint8(uint8(len(sigBytes)))
	enc.Write(sigBytes)
	enc.Uint8(0)
	value()
}

// unmarshalHeader decodes h's fixed prelude and variable fields array
// from dec.
func unmarshalHeader(dec *fragments.Decoder, h *header) error {
	if err := dec.ByteOrderFlag(); err != nil {
		return err
	}
	h.BigEndian = dec.Order == fragments.BigEndian
	t, err := dec.Uint8()
	if err != nil {
		return err
	}
	h.Type = msgType(t)
	if h.Flags, err = dec.Uint8(); err != nil {
		return err
	}
	if h.Version, err = dec.Uint8(); err != nil {
		return err
	}
	if h.BodyLen, err = dec.Uint32(); err != nil {
		return err
	}
	if h.Serial, err = dec.Uint32(); err != nil {
		return err
	}

	_, err = dec.Array(true, func(int) error {
		if err := dec.Pad(8); err != nil {
			return err
		}
		code, err := dec.Uint8()
		if err != nil {
			return err
		}
		sigLen, err := dec.Uint8()
		if err != nil {
			return err
		}
		sigBytes, err := dec.Read(int(sigLen) + 1) // + NUL terminator
		if err != nil {
			return err
		}
		sig := TypeCode(sigBytes[0])

		switch headerFieldCode(code) {
		case fieldPath:
			s, err := dec.String()
			if err != nil {
				return err
			}
			h.Path = ObjectPath(s)
		case fieldInterface:
			if h.Interface, err = dec.String(); err != nil {
				return err
			}
		case fieldMember:
			if h.Member, err = dec.String(); err != nil {
				return err
			}
		case fieldErrName:
			if h.ErrName, err = dec.String(); err != nil {
				return err
			}
		case fieldReplySerial:
			if h.ReplySerial, err = dec.Uint32(); err != nil {
				return err
			}
		case fieldDestination:
			if h.Destination, err = dec.String(); err != nil {
				return err
			}
		case fieldSender:
			if h.Sender, err = dec.String(); err != nil {
				return err
			}
		case fieldSignature:
			s, err := readSignatureValue(dec)
			if err != nil {
				return err
			}
			h.Signature = s
		case fieldNumFDs:
			if h.NumFDs, err = dec.Uint32(); err != nil {
				return err
			}
		default:
			// Unknown header field: skip its value by re-dispatching on
			// the basic type code we already decoded the signature for.
			if err := skipBasicValue(dec, sig); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return dec.Pad(8)
}

// skipBasicValue discards the wire value of a basic-typed, unknown
// header field, so that forward-compatible extensions to the header
// fields array don't break decoding.
func skipBasicValue(dec *fragments.Decoder, code TypeCode) error {
	switch code {
	case TypeByte:
		_, err := dec.Uint8()
		return err
	case TypeBoolean, TypeInt32, TypeUint32, TypeHandle:
		_, err := dec.Uint32()
		return err
	case TypeInt16, TypeUint16:
		_, err := dec.Uint16()
		return err
	case TypeInt64, TypeUint64, TypeDouble:
		_, err := dec.Uint64()
		return err
	case TypeString, TypeObjectPath:
		_, err := dec.String()
		return err
	case TypeSignature:
		_, err := readSignatureValue(dec)
		return err
	default:
		return &Error{Kind: KindMalformedSignature, Message: fmt.Sprintf("cannot skip unknown header field of type %q", code)}
	}
}

// writeSignatureValue writes sig as a D-Bus signature-typed value: a
// single length byte followed by the signature text and a NUL
// terminator, with no 4-byte length padding (unlike a byte array).
func writeSignatureValue(enc *fragments.Encoder, sig string) {
	enc.Uint8(uint8(len(sig)))
	enc.Write([]byte(sig))
	enc.Uint8(0)
}

// readSignatureValue reads a D-Bus signature-typed value.
func readSignatureValue(dec *fragments.Decoder) (string, error) {
	n, err := dec.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := dec.Read(int(n) + 1)
	if err != nil {
		return "", err
	}
	return string(bs[:len(bs)-1]), nil
}
