package stun

import (
	"encoding/hex"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustHex decodes a hex literal, panicking on malformed input -- only used
// for fixture constants below, never on attacker-controlled data.
func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// TestMessageIntegrityRoundTrip builds the RFC 5769 ?2.1 sample request
// verbatim -- transaction id b7e7a701bc34d686fa87dfae, SOFTWARE
// "STUN test client", USERNAME "evtj:h6vY", signed with password
// "VOkJxbRl1RmTxUk/WvJxBt" -- and asserts the computed MESSAGE-INTEGRITY
// attribute equals the published 20-byte HMAC-SHA1 value, not merely that
// the codec can verify its own output.
func TestMessageIntegrityRoundTrip(t *testing.T) {
	var tid TransactionID
	copy(tid[:], mustHex("b7e7a701bc34d686fa87dfae"))

	password := "VOkJxbRl1RmTxUk/WvJxBt"
	key := ShortTermKey(password)

	m := New(Request, MethodBinding, tid)
	m.Add(AttrSoftware, []byte("STUN test client"))
	m.Add(AttrUsername, []byte("evtj:h6vY"))
	m.AddMessageIntegrity(key)

	mi, ok := m.Get(AttrMessageIntegrity)
	require.True(t, ok)
	assert.Equal(t, mustHex("5e56b8ac2cfc3be68e614da9447f27cb7e1c0b6e"), mi.Value)

	assert.True(t, m.VerifyMessageIntegrity(key))
	assert.False(t, m.VerifyMessageIntegrity(ShortTermKey("wrong password")))

	wire := m.Marshal()
	parsed, err := Parse(wire)
	assert.NoError(t, err)
	assert.True(t, parsed.VerifyMessageIntegrity(key))

	// Tamper with an attribute covered by the integrity check.
	parsed.Attributes[1].Value = []byte("forged:user")
	assert.False(t, parsed.VerifyMessageIntegrity(key))
}

// TestMessageIntegrityLongTermCredential builds the RFC 5769 ?2.4 sample
// request verbatim -- transaction id 78ad3433c6ad72c029da412e, USERNAME
// U+30DE U+30C8 U+30EA U+30C3 U+30AF U+30B9, NONCE
// "f//499k954d6OL34oL9FSTvy64sA", REALM "example.org", in that order --
// combined via the ?15.4 MD5 long-term key derivation with password
// "TheMatrIX", and asserts the computed MESSAGE-INTEGRITY attribute equals
// the published 20-byte HMAC-SHA1 value.
func TestMessageIntegrityLongTermCredential(t *testing.T) {
	var tid TransactionID
	copy(tid[:], mustHex("78ad3433c6ad72c029da412e"))

	username := "マトリックス"
	key := LongTermKey(username, "example.org", "TheMatrIX")

	m := New(Request, MethodBinding, tid)
	m.Add(AttrUsername, []byte(username))
	m.Add(AttrNonce, []byte("f//499k954d6OL34oL9FSTvy64sA"))
	m.Add(AttrRealm, []byte("example.org"))
	m.AddMessageIntegrity(key)

	mi, ok := m.Get(AttrMessageIntegrity)
	require.True(t, ok)
	assert.Equal(t, mustHex("f67024656dd64a3e02b8e0712e85c9a28ca89666"), mi.Value)

	assert.True(t, m.VerifyMessageIntegrity(key))
	assert.False(t, m.VerifyMessageIntegrity(LongTermKey(username, "example.org", "wrong")))
}

func TestFingerprintRoundTrip(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	m.AddXorAddress(AttrXorMappedAddress, &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 49170})
	m.AddFingerprint()

	assert.True(t, m.VerifyFingerprint())

	wire := m.Marshal()
	parsed, err := Parse(wire)
	assert.NoError(t, err)
	assert.True(t, parsed.VerifyFingerprint())

	parsed.Attributes[0].Value[0] ^= 0xff
	assert.False(t, parsed.VerifyFingerprint())
}

func TestFingerprintAbsentIsOK(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	assert.True(t, m.VerifyFingerprint())
}

func TestMessageIntegrityThenFingerprint(t *testing.T) {
	key := ShortTermKey("secret")
	m := New(Request, MethodBinding, TransactionID{})
	m.Add(AttrUsername, []byte("test:peer"))
	m.AddMessageIntegrity(key)
	m.AddFingerprint()

	assert.True(t, m.VerifyMessageIntegrity(key))
	assert.True(t, m.VerifyFingerprint())
	assert.NoError(t, checkAttributeOrdering(m.Attributes))
}

func TestAttributeAfterFingerprintRejected(t *testing.T) {
	attrs := []RawAttribute{
		{Type: AttrFingerprint, Value: make([]byte, 4)},
		{Type: AttrUsername, Value: []byte("x")},
	}
	assert.Equal(t, ErrAttributeAfterFingerprint, checkAttributeOrdering(attrs))
}

func TestAttributeAfterIntegrityRejected(t *testing.T) {
	attrs := []RawAttribute{
		{Type: AttrMessageIntegrity, Value: make([]byte, 20)},
		{Type: AttrUsername, Value: []byte("x")},
	}
	assert.Equal(t, ErrAttributeAfterIntegrity, checkAttributeOrdering(attrs))
}
