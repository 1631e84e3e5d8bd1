package stun

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// AttrType is a STUN/TURN/ICE attribute type, RFC 5389 ?18.2 and friends.
type AttrType uint16

const (
	AttrMappedAddress     AttrType = 0x0001
	AttrUsername          AttrType = 0x0006
	AttrMessageIntegrity  AttrType = 0x0008
	AttrErrorCode         AttrType = 0x0009
	AttrUnknownAttributes AttrType = 0x000A
	AttrRealm             AttrType = 0x0014
	AttrNonce             AttrType = 0x0015
	AttrXorMappedAddress  AttrType = 0x0020

	// RFC 5245 ICE attributes.
	AttrPriority       AttrType = 0x0024
	AttrUseCandidate   AttrType = 0x0025
	AttrIceControlled  AttrType = 0x8029
	AttrIceControlling AttrType = 0x802A

	AttrSoftware        AttrType = 0x8022
	AttrAlternateServer AttrType = 0x8023
	AttrFingerprint     AttrType = 0x8028

	// RFC 5766 TURN attributes.
	AttrChannelNumber      AttrType = 0x000C
	AttrLifetime           AttrType = 0x000D
	AttrXorPeerAddress     AttrType = 0x0012
	AttrData               AttrType = 0x0013
	AttrXorRelayedAddress  AttrType = 0x0016
	AttrRequestedTransport AttrType = 0x0019
	AttrDontFragment       AttrType = 0x001A
	AttrReservationToken   AttrType = 0x0022
	// Bandwidth is a legacy (non-RFC5766) TURN attribute some deployed
	// servers still honor; kept for interop with classic-TURN usages (?4.3).
	AttrBandwidth AttrType = 0x0010
)

func (t AttrType) String() string {
	switch t {
	case AttrMappedAddress:
		return "MAPPED-ADDRESS"
	case AttrUsername:
		return "USERNAME"
	case AttrMessageIntegrity:
		return "MESSAGE-INTEGRITY"
	case AttrErrorCode:
		return "ERROR-CODE"
	case AttrUnknownAttributes:
		return "UNKNOWN-ATTRIBUTES"
	case AttrRealm:
		return "REALM"
	case AttrNonce:
		return "NONCE"
	case AttrXorMappedAddress:
		return "XOR-MAPPED-ADDRESS"
	case AttrPriority:
		return "PRIORITY"
	case AttrUseCandidate:
		return "USE-CANDIDATE"
	case AttrIceControlled:
		return "ICE-CONTROLLED"
	case AttrIceControlling:
		return "ICE-CONTROLLING"
	case AttrSoftware:
		return "SOFTWARE"
	case AttrAlternateServer:
		return "ALTERNATE-SERVER"
	case AttrFingerprint:
		return "FINGERPRINT"
	case AttrChannelNumber:
		return "CHANNEL-NUMBER"
	case AttrLifetime:
		return "LIFETIME"
	case AttrXorPeerAddress:
		return "XOR-PEER-ADDRESS"
	case AttrData:
		return "DATA"
	case AttrXorRelayedAddress:
		return "XOR-RELAYED-ADDRESS"
	case AttrRequestedTransport:
		return "REQUESTED-TRANSPORT"
	case AttrDontFragment:
		return "DONT-FRAGMENT"
	case AttrReservationToken:
		return "RESERVATION-TOKEN"
	case AttrBandwidth:
		return "BANDWIDTH"
	default:
		return fmt.Sprintf("attr(%#04x)", uint16(t))
	}
}

// isComprehensionRequired reports whether an unrecognized attribute of this
// type must cause request rejection (RFC 5389 ?15: attribute types in the
// range 0x0000-0x7FFF are comprehension-required, 0x8000-0xFFFF are
// comprehension-optional).
func (t AttrType) isComprehensionRequired() bool {
	return t < 0x8000
}

// ErrorCode decodes an ERROR-CODE attribute value (RFC 5389 ?15.6): the
// class and number nibbles give a 3-digit HTTP-like code, followed by a
// UTF-8 reason phrase.
type ErrorCode struct {
	Code   int
	Reason string
}

// GetErrorCode decodes the message's ERROR-CODE attribute, if present.
func (m *Message) GetErrorCode() (ErrorCode, bool) {
	raw, ok := m.Get(AttrErrorCode)
	if !ok || len(raw.Value) < 4 {
		return ErrorCode{}, false
	}
	class := int(raw.Value[2] & 0x07)
	number := int(raw.Value[3])
	return ErrorCode{Code: class*100 + number, Reason: string(raw.Value[4:])}, true
}

// AddErrorCode appends an ERROR-CODE attribute for the given 3-digit code.
func (m *Message) AddErrorCode(code int, reason string) {
	value := make([]byte, 4+len(reason))
	value[2] = byte(code / 100)
	value[3] = byte(code % 100)
	copy(value[4:], reason)
	m.Add(AttrErrorCode, value)
}

// RawAttribute is an undecoded TLV. Typed accessors (GetXorAddress,
// etc.) build on top of this.
type RawAttribute struct {
	Type  AttrType
	Value []byte
}

// paddedLen rounds n up to the next multiple of 4.
func paddedLen(n int) int {
	return (n + 3) &^ 3
}

// numBytes is the total wire size of the attribute, header + padded value.
func (a RawAttribute) numBytes(d dialect) int {
	n := 4 + len(a.Value)
	if d == dialectAligned {
		n = 4 + paddedLen(len(a.Value))
	}
	return n
}

var zeroPad [4]byte

func writeAttribute(b *bytes.Buffer, a RawAttribute, d dialect) {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(a.Type))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(a.Value)))
	b.Write(hdr[:])
	b.Write(a.Value)
	if d == dialectAligned {
		if pad := paddedLen(len(a.Value)) - len(a.Value); pad > 0 {
			b.Write(zeroPad[:pad])
		}
	}
}

func readAttribute(b *bytes.Buffer, d dialect) (RawAttribute, error) {
	if b.Len() < 4 {
		return RawAttribute{}, ErrTruncatedAttribute
	}
	typ := AttrType(binary.BigEndian.Uint16(b.Next(2)))
	length := int(binary.BigEndian.Uint16(b.Next(2)))
	if length > b.Len() {
		return RawAttribute{}, ErrTruncatedAttribute
	}
	value := make([]byte, length)
	copy(value, b.Next(length))

	if d == dialectAligned {
		if skip := paddedLen(length) - length; skip > 0 {
			if skip > b.Len() {
				skip = b.Len()
			}
			b.Next(skip)
		}
	}
	return RawAttribute{Type: typ, Value: value}, nil
}

// checkAttributeOrdering enforces RFC 5389 ?15: MESSAGE-INTEGRITY may only
// be followed by FINGERPRINT, and nothing may follow FINGERPRINT.
func checkAttributeOrdering(attrs []RawAttribute) error {
	sawIntegrity := false
	sawFingerprint := false
	for _, a := range attrs {
		if sawFingerprint {
			return ErrAttributeAfterFingerprint
		}
		switch a.Type {
		case AttrFingerprint:
			sawFingerprint = true
		case AttrMessageIntegrity:
			sawIntegrity = true
		default:
			if sawIntegrity {
				return ErrAttributeAfterIntegrity
			}
		}
	}
	return nil
}
