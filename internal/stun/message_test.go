package stun

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeDecomposeType(t *testing.T) {
	for _, tc := range []struct {
		class  Class
		method Method
	}{
		{Request, MethodBinding},
		{SuccessResponse, MethodBinding},
		{ErrorResponse, MethodAllocate},
		{Indication, MethodData},
	} {
		wire := composeType(tc.class, tc.method)
		class, method := decomposeType(wire)
		assert.Equal(t, tc.class, class)
		assert.Equal(t, tc.method, method)
	}
}

func TestPreCheckIncomplete(t *testing.T) {
	result, want := PreCheck([]byte{0x00, 0x01})
	assert.Equal(t, ParseIncomplete, result)
	assert.Equal(t, 4, want)
}

func TestPreCheckNotSTUN(t *testing.T) {
	result, _ := PreCheck([]byte{0xff, 0xff, 0, 0, 0, 0, 0, 0})
	assert.Equal(t, ParseNotSTUN, result)
}

func TestMarshalParseRoundTrip(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	m.Add(AttrUsername, []byte("test:peer"))
	m.AddXorAddress(AttrXorMappedAddress, &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 49170})
	m.Add(AttrPriority, []byte{0x6E, 0x7F, 0x1E, 0xFE})

	wire := m.Marshal()
	result, wantLen := PreCheck(wire)
	assert.Equal(t, ParseOK, result)
	assert.Equal(t, len(wire), wantLen)

	parsed, err := Parse(wire)
	assert.NoError(t, err)
	assert.Equal(t, m.Class, parsed.Class)
	assert.Equal(t, m.Method, parsed.Method)
	assert.Equal(t, m.TransactionID, parsed.TransactionID)

	user, ok := parsed.Get(AttrUsername)
	assert.True(t, ok)
	assert.Equal(t, "test:peer", string(user.Value))

	addr, ok := parsed.GetXorAddress(AttrXorMappedAddress)
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.5", addr.IP.String())
	assert.Equal(t, 49170, addr.Port)

	prio, ok := parsed.Get(AttrPriority)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x6E, 0x7F, 0x1E, 0xFE}, prio.Value)
}

func TestParseTruncatedAttribute(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	m.Add(AttrUsername, []byte("abc"))
	wire := m.Marshal()

	// Truncate mid-attribute but declare the full length in the header, so
	// PreCheck reports incomplete rather than not-STUN.
	_, err := Parse(wire[:len(wire)-2])
	assert.Error(t, err)
}

func TestAttrTypeComprehensionRequired(t *testing.T) {
	assert.True(t, AttrUsername.isComprehensionRequired())
	assert.False(t, AttrFingerprint.isComprehensionRequired())
	assert.False(t, AttrIceControlling.isComprehensionRequired())
}
