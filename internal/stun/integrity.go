package stun

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"hash/crc32"
)

// fingerprintXor is applied to the FINGERPRINT CRC32 per RFC 5389 ?15.5, so
// that a STUN FINGERPRINT cannot be confused with a TURN channel number.
const fingerprintXor = 0x5354554e

// LongTermKey derives the MD5 key used for long-term credentials (TURN and
// any STUN usage with a REALM), RFC 5389 ?15.4:
//
//	key = MD5(username ":" realm ":" password)
func LongTermKey(username, realm, password string) []byte {
	h := md5.New()
	h.Write([]byte(username))
	h.Write([]byte(":"))
	h.Write([]byte(realm))
	h.Write([]byte(":"))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// ShortTermKey is the key used for short-term credentials (ICE connectivity
// checks): simply the raw password, RFC 5389 ?15.4.
func ShortTermKey(password string) []byte {
	return []byte(password)
}

// AddMessageIntegrity appends a MESSAGE-INTEGRITY attribute computed with
// the given key. Must be called after all other attributes (other than
// FINGERPRINT) have been added, since the HMAC covers everything before it.
func (m *Message) AddMessageIntegrity(key []byte) {
	placeholder := make([]byte, sha1.Size)
	m.Add(AttrMessageIntegrity, placeholder)

	prefix, _ := m.prefixBefore(AttrMessageIntegrity)
	mac := hmac.New(sha1.New, key)
	mac.Write(prefix)

	m.Attributes[len(m.Attributes)-1].Value = mac.Sum(nil)
}

// VerifyMessageIntegrity recomputes the HMAC over the message as it
// appeared up to (and declaring a length including) MESSAGE-INTEGRITY, and
// compares it against the attached attribute.
func (m *Message) VerifyMessageIntegrity(key []byte) bool {
	attr, ok := m.Get(AttrMessageIntegrity)
	if !ok || len(attr.Value) != sha1.Size {
		return false
	}
	prefix, ok := m.prefixBefore(AttrMessageIntegrity)
	if !ok {
		return false
	}
	mac := hmac.New(sha1.New, key)
	mac.Write(prefix)
	return hmac.Equal(mac.Sum(nil), attr.Value)
}

// AddFingerprint appends a FINGERPRINT attribute. Must be the last
// attribute added (RFC 5389 ?15.5): nothing may follow it.
func (m *Message) AddFingerprint() {
	placeholder := make([]byte, 4)
	m.Add(AttrFingerprint, placeholder)

	prefix, _ := m.prefixBefore(AttrFingerprint)
	crc := crc32.ChecksumIEEE(prefix) ^ fingerprintXor
	binary.BigEndian.PutUint32(m.Attributes[len(m.Attributes)-1].Value, crc)
}

// VerifyFingerprint checks a trailing FINGERPRINT attribute, if present.
// Returns true if absent (FINGERPRINT is optional).
func (m *Message) VerifyFingerprint() bool {
	attr, ok := m.Get(AttrFingerprint)
	if !ok {
		return true
	}
	if len(attr.Value) != 4 {
		return false
	}
	prefix, ok := m.prefixBefore(AttrFingerprint)
	if !ok {
		return false
	}
	crc := crc32.ChecksumIEEE(prefix) ^ fingerprintXor
	return crc == binary.BigEndian.Uint32(attr.Value)
}

// attributeOffsets locates the wire offsets (from the start of the message,
// header included) spanned by the first attribute of type t, using aligned
// padding -- the same layout Marshal produces.
func (m *Message) attributeOffsets(t AttrType) (before, after int, ok bool) {
	offset := headerLength
	for _, a := range m.Attributes {
		size := a.numBytes(dialectAligned)
		if a.Type == t {
			return offset, offset + size, true
		}
		offset += size
	}
	return 0, 0, false
}

// prefixBefore marshals the message and returns the bytes up to (not
// including) attribute type t, with the header's declared length patched to
// cover everything up to and including t. This is what MESSAGE-INTEGRITY and
// FINGERPRINT are hashed over, per RFC 5389 ?15.4 and ?15.5: both attributes
// sign everything that precedes them, plus their own presence in the length.
func (m *Message) prefixBefore(t AttrType) ([]byte, bool) {
	before, after, ok := m.attributeOffsets(t)
	if !ok {
		return nil, false
	}
	full := m.marshal(dialectAligned)
	prefix := append([]byte(nil), full[:before]...)
	binary.BigEndian.PutUint16(prefix[2:4], uint16(after-headerLength))
	return prefix, true
}
