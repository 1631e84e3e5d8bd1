package turn

import (
	"net"
	"testing"

	"github.com/lanikai/goice/internal/stun"
	"github.com/stretchr/testify/assert"
)

func TestCreateAllocateFirstAttempt(t *testing.T) {
	m := CreateAllocate("user", nil, 600, 0, nil)
	assert.Equal(t, stun.MethodAllocate, m.Method)
	assert.False(t, m.Has(stun.AttrMessageIntegrity))

	raw, ok := m.Get(stun.AttrRequestedTransport)
	assert.True(t, ok)
	assert.Equal(t, byte(protocolUDP), raw.Value[0])
}

func TestCreateAllocateWithChallenge(t *testing.T) {
	key := stun.LongTermKey("user", "example.org", "pass")
	challenge := &Challenge{Realm: "example.org", Nonce: "abc123"}
	m := CreateAllocate("user", key, 600, 0, challenge)

	assert.True(t, m.Has(stun.AttrRealm))
	assert.True(t, m.Has(stun.AttrNonce))
	assert.True(t, m.VerifyMessageIntegrity(key))
}

func TestProcessAllocateResponseSuccess(t *testing.T) {
	m := stun.New(stun.SuccessResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddXorAddress(stun.AttrXorRelayedAddress, &net.UDPAddr{IP: net.IPv4(192, 0, 2, 15), Port: 7000})
	m.AddXorAddress(stun.AttrXorMappedAddress, &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 49170})

	resp := ProcessAllocateResponse(m, "")
	assert.Equal(t, RelaySuccess, resp.Outcome)
	assert.Equal(t, "192.0.2.15", resp.RelayedAddr.IP.String())
	assert.Equal(t, 7000, resp.RelayedAddr.Port)
}

func TestProcessAllocateResponseInitialChallenge(t *testing.T) {
	m := stun.New(stun.ErrorResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddErrorCode(401, "Unauthorized")
	m.Add(stun.AttrRealm, []byte("example.org"))
	m.Add(stun.AttrNonce, []byte("abc123"))

	resp := ProcessAllocateResponse(m, "")
	assert.Equal(t, ChallengeNeeded, resp.Outcome)
	assert.Equal(t, "example.org", resp.Challenge.Realm)
	assert.Equal(t, "abc123", resp.Challenge.Nonce)
}

func TestProcessAllocateResponseSameRealmIsTerminalError(t *testing.T) {
	m := stun.New(stun.ErrorResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddErrorCode(401, "Unauthorized")
	m.Add(stun.AttrRealm, []byte("example.org"))

	resp := ProcessAllocateResponse(m, "example.org")
	assert.Equal(t, Error, resp.Outcome)
}

func TestProcessAllocateResponseStaleNonce(t *testing.T) {
	m := stun.New(stun.ErrorResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddErrorCode(438, "Stale Nonce")
	m.Add(stun.AttrRealm, []byte("example.org"))
	m.Add(stun.AttrNonce, []byte("new-nonce"))

	resp := ProcessAllocateResponse(m, "example.org")
	assert.Equal(t, ChallengeNeeded, resp.Outcome)
	assert.Equal(t, "new-nonce", resp.Challenge.Nonce)
}

func TestProcessAllocateResponseAlternateServer(t *testing.T) {
	m := stun.New(stun.ErrorResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddErrorCode(300, "Try Alternate")
	m.AddAddress(stun.AttrAlternateServer, &net.UDPAddr{IP: net.IPv4(192, 0, 2, 99), Port: 3478})

	resp := ProcessAllocateResponse(m, "")
	assert.Equal(t, AlternateServer, resp.Outcome)
	assert.Equal(t, "192.0.2.99", resp.AlternateAddr.IP.String())
}

func TestProcessAllocateResponseOtherErrorIsTerminal(t *testing.T) {
	m := stun.New(stun.ErrorResponse, stun.MethodAllocate, stun.TransactionID{})
	m.AddErrorCode(500, "Server Error")

	resp := ProcessAllocateResponse(m, "")
	assert.Equal(t, Error, resp.Outcome)
}
