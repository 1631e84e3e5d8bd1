package stun

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// RFC 5389 Section 6: message class, carried in the type field alongside the
// method.
type Class uint16

const (
	Request         Class = 0x00
	Indication      Class = 0x01
	SuccessResponse Class = 0x02
	ErrorResponse   Class = 0x03
)

func (c Class) String() string {
	switch c {
	case Request:
		return "request"
	case Indication:
		return "indication"
	case SuccessResponse:
		return "success response"
	case ErrorResponse:
		return "error response"
	default:
		return fmt.Sprintf("class(%#x)", uint16(c))
	}
}

// Method identifies the STUN/TURN/ICE operation a message performs.
type Method uint16

const (
	MethodBinding          Method = 0x001
	MethodAllocate         Method = 0x003
	MethodRefresh          Method = 0x004
	MethodSend             Method = 0x006
	MethodData             Method = 0x007
	MethodCreatePermission Method = 0x008
	MethodChannelBind      Method = 0x009
)

func (m Method) String() string {
	switch m {
	case MethodBinding:
		return "Binding"
	case MethodAllocate:
		return "Allocate"
	case MethodRefresh:
		return "Refresh"
	case MethodSend:
		return "Send"
	case MethodData:
		return "Data"
	case MethodCreatePermission:
		return "CreatePermission"
	case MethodChannelBind:
		return "ChannelBind"
	default:
		return fmt.Sprintf("method(%#x)", uint16(m))
	}
}

const (
	headerLength = 20
	magicCookie  = 0x2112A442

	// TransactionIDLength is the size, in bytes, of a STUN transaction id.
	TransactionIDLength = 12
)

var magicCookieBytes = [4]byte{0x21, 0x12, 0xA4, 0x42}

// TransactionID is the 96-bit transaction identifier that correlates a
// response with its request.
type TransactionID [TransactionIDLength]byte

func (t TransactionID) String() string {
	return hex.EncodeToString(t[:])
}

// NewTransactionID generates a random transaction id.
func NewTransactionID() (t TransactionID) {
	if _, err := rand.Read(t[:]); err != nil {
		panic("stun: failed to read random transaction id: " + err.Error())
	}
	return t
}

// Message is a parsed (or to-be-built) STUN message. It is a pure value
// type: building one does not allocate a transaction-table slot, and
// parsing one does not validate MESSAGE-INTEGRITY (see Validate).
type Message struct {
	Class         Class
	Method        Method
	TransactionID TransactionID
	Attributes    []RawAttribute
}

// New creates an empty message of the given class/method. Pass a zero
// TransactionID to have one generated.
func New(class Class, method Method, tid TransactionID) *Message {
	if tid == (TransactionID{}) {
		tid = NewTransactionID()
	}
	return &Message{Class: class, Method: method, TransactionID: tid}
}

func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "STUN %s %s tid=%s", m.Class, m.Method, m.TransactionID)
	for _, a := range m.Attributes {
		fmt.Fprintf(&b, " %s", a.Type)
	}
	return b.String()
}

// Get returns the first attribute of the given type, or ok=false.
func (m *Message) Get(t AttrType) (RawAttribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == t {
			return a, true
		}
	}
	return RawAttribute{}, false
}

// Has reports whether an attribute of the given type is present.
func (m *Message) Has(t AttrType) bool {
	_, ok := m.Get(t)
	return ok
}

// Add appends a raw attribute, padded per the message's alignment.
func (m *Message) Add(t AttrType, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.Attributes = append(m.Attributes, RawAttribute{Type: t, Value: cp})
}

// messageType packs Class and Method into the 14-bit STUN type field.
// Figure 3, RFC 5389 ?6.
const (
	classMask1  = 0x0100
	classMask2  = 0x0010
	methodMask1 = 0x3e00
	methodMask2 = 0x00e0
	methodMask3 = 0x000f
)

func composeType(class Class, method Method) uint16 {
	c, m := uint16(class), uint16(method)
	t := (c<<7)&classMask1 | (c<<4)&classMask2
	t |= (m<<2)&methodMask1 | (m<<1)&methodMask2 | (m & methodMask3)
	return t
}

func decomposeType(t uint16) (Class, Method) {
	class := (t&classMask1)>>7 | (t&classMask2)>>4
	method := (t&methodMask1)>>2 | (t&methodMask2)>>1 | (t & methodMask3)
	return Class(class), Method(method)
}

// dialect controls attribute-padding behavior, since RFC 5245 ?13 allows
// trailing zero padding to be omitted by non-conformant peers in the wild.
type dialect int

const (
	dialectAligned   dialect = iota // pad every attribute to a 4-byte boundary (RFC 5389 default)
	dialectUnaligned                // no padding; length is exact
)

// Marshal serializes the message to wire format using RFC 5389-aligned
// attribute padding. The unaligned dialect is not exposed for marshalling.
func (m *Message) Marshal() []byte {
	return m.marshal(dialectAligned)
}

func (m *Message) marshal(d dialect) []byte {
	var body bytes.Buffer
	for _, a := range m.Attributes {
		writeAttribute(&body, a, d)
	}

	buf := make([]byte, headerLength+body.Len())
	binary.BigEndian.PutUint16(buf[0:2], composeType(m.Class, m.Method))
	binary.BigEndian.PutUint16(buf[2:4], uint16(body.Len()))
	copy(buf[4:8], magicCookieBytes[:])
	copy(buf[8:20], m.TransactionID[:])
	copy(buf[20:], body.Bytes())
	return buf
}

// ParseResult distinguishes why parsing a candidate STUN buffer failed,
// matching the two-stage fast-precheck / full-validate split of ?4.1.
type ParseResult int

const (
	ParseNotSTUN ParseResult = iota
	ParseIncomplete
	ParseOK
)

// PreCheck inspects only the first 4-8 bytes and the declared length. It
// never walks attributes. wantLen is the number of bytes the full message
// occupies (header plus declared length) for ParseOK, and for
// ParseIncomplete once 4 bytes are present; with fewer than 4 bytes it is
// 4, and for ParseNotSTUN it is 0.
func PreCheck(data []byte) (result ParseResult, wantLen int) {
	if len(data) < 4 {
		return ParseIncomplete, 4
	}
	messageType := binary.BigEndian.Uint16(data[0:2])
	if messageType>>14 != 0 {
		return ParseNotSTUN, 0
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if length%4 != 0 {
		return ParseNotSTUN, 0
	}
	want := headerLength + int(length)
	if len(data) < 8 {
		return ParseIncomplete, want
	}
	if binary.BigEndian.Uint32(data[4:8]) != magicCookie {
		return ParseNotSTUN, 0
	}
	if len(data) < want {
		return ParseIncomplete, want
	}
	return ParseOK, want
}

// Parse decodes a STUN message. Callers that need strict ordering/integrity
// guarantees should follow up with Validate. Parse returns (nil, nil) if
// data does not look like a STUN message at all.
func Parse(data []byte) (*Message, error) {
	return parse(data, dialectAligned)
}

// ParseUnaligned parses attributes without requiring 4-byte padding, for
// interop with dialects that omit it.
func ParseUnaligned(data []byte) (*Message, error) {
	return parse(data, dialectUnaligned)
}

func parse(data []byte, d dialect) (*Message, error) {
	result, _ := PreCheck(data)
	if result != ParseOK {
		if result == ParseNotSTUN {
			return nil, nil
		}
		return nil, ErrIncomplete
	}

	messageType := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])
	class, method := decomposeType(messageType)

	m := &Message{Class: class, Method: method}
	copy(m.TransactionID[:], data[8:20])

	body := data[headerLength : headerLength+int(length)]
	b := bytes.NewBuffer(body)
	for b.Len() > 0 {
		attr, err := readAttribute(b, d)
		if err != nil {
			return m, err
		}
		m.Attributes = append(m.Attributes, attr)
	}
	return m, nil
}
