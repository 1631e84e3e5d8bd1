package turn

import (
	"encoding/binary"
	"net"

	"github.com/lanikai/goice/internal/stun"
)

// protocolUDP is the IANA protocol number for UDP, as carried in
// REQUESTED-TRANSPORT (RFC 5766 ?14.7).
const protocolUDP = 17

// Challenge holds the long-term-credential material a 401/438 error
// response hands back, to be replayed on the next request (RFC 5766 ?10,
// RFC 5389 ?10.2).
type Challenge struct {
	Realm            string
	Nonce            string
	ReservationToken []byte
}

// CreateAllocate builds an Allocate request (RFC 5766 ?6.1). Pass a nil
// challenge for the first attempt; once a 401/438 error comes back, build a
// new request with the Challenge extracted from that response and the
// caller's long-term key.
func CreateAllocate(username string, key []byte, lifetime uint32, bandwidth uint32, challenge *Challenge) *stun.Message {
	m := stun.New(stun.Request, stun.MethodAllocate, stun.TransactionID{})

	transport := make([]byte, 4)
	transport[0] = protocolUDP
	m.Add(stun.AttrRequestedTransport, transport)

	if bandwidth > 0 {
		bw := make([]byte, 4)
		binary.BigEndian.PutUint32(bw, bandwidth)
		m.Add(stun.AttrBandwidth, bw)
	}
	if lifetime > 0 {
		lt := make([]byte, 4)
		binary.BigEndian.PutUint32(lt, lifetime)
		m.Add(stun.AttrLifetime, lt)
	}
	m.Add(stun.AttrUsername, []byte(username))

	applyChallenge(m, challenge)
	if challenge != nil {
		m.AddMessageIntegrity(key)
	}
	return m
}

// CreateRefresh builds a Refresh request (RFC 5766 ?7.1), mirroring
// CreateAllocate's credential-replay behavior.
func CreateRefresh(username string, key []byte, lifetime uint32, challenge *Challenge) *stun.Message {
	m := stun.New(stun.Request, stun.MethodRefresh, stun.TransactionID{})

	lt := make([]byte, 4)
	binary.BigEndian.PutUint32(lt, lifetime)
	m.Add(stun.AttrLifetime, lt)
	m.Add(stun.AttrUsername, []byte(username))

	applyChallenge(m, challenge)
	if challenge != nil {
		m.AddMessageIntegrity(key)
	}
	return m
}

func applyChallenge(m *stun.Message, c *Challenge) {
	if c == nil {
		return
	}
	m.Add(stun.AttrRealm, []byte(c.Realm))
	m.Add(stun.AttrNonce, []byte(c.Nonce))
	if len(c.ReservationToken) > 0 {
		m.Add(stun.AttrReservationToken, c.ReservationToken)
	}
}

// AllocateOutcome distinguishes how a TURN response to an Allocate/Refresh
// request should be handled.
type AllocateOutcome int

const (
	// RelaySuccess means a relayed allocation was created or refreshed.
	RelaySuccess AllocateOutcome = iota
	// MappedSuccess means the server responded with only a mapped address
	// (no relayed address), e.g. a plain Refresh success.
	MappedSuccess
	// AlternateServer means the server redirected to a different address
	// (300 Try Alternate); the caller should retry against it.
	AlternateServer
	// ChallengeNeeded means a 401 (no prior REALM, or a changed REALM) or a
	// 438 Stale Nonce came back: stash the Challenge and resend.
	ChallengeNeeded
	// Error means any other error response; the discovery item should be
	// abandoned.
	Error
)

// AllocateResponse is the decoded result of ProcessAllocateResponse.
type AllocateResponse struct {
	Outcome       AllocateOutcome
	RelayedAddr   *net.UDPAddr
	MappedAddr    *net.UDPAddr
	Lifetime      uint32
	Bandwidth     uint32
	Challenge     Challenge
	AlternateAddr *net.UDPAddr
	ErrorCode     stun.ErrorCode
}

// ProcessAllocateResponse interprets a response to an Allocate or Refresh
// request. priorRealm is the realm already in use (empty on first attempt);
// it distinguishes a fresh challenge from a realm the caller already
// satisfied.
func ProcessAllocateResponse(m *stun.Message, priorRealm string) AllocateResponse {
	if m.Class == stun.SuccessResponse {
		resp := AllocateResponse{Outcome: MappedSuccess}
		if addr, ok := m.GetXorAddress(stun.AttrXorRelayedAddress); ok {
			resp.RelayedAddr = addr
			resp.Outcome = RelaySuccess
		}
		if addr, ok := m.GetXorAddress(stun.AttrXorMappedAddress); ok {
			resp.MappedAddr = addr
		}
		if raw, ok := m.Get(stun.AttrLifetime); ok && len(raw.Value) == 4 {
			resp.Lifetime = binary.BigEndian.Uint32(raw.Value)
		}
		if raw, ok := m.Get(stun.AttrBandwidth); ok && len(raw.Value) == 4 {
			resp.Bandwidth = binary.BigEndian.Uint32(raw.Value)
		}
		return resp
	}

	code, _ := m.GetErrorCode()

	switch code.Code {
	case 300:
		resp := AllocateResponse{Outcome: AlternateServer, ErrorCode: code}
		if addr, ok := m.GetAddress(stun.AttrAlternateServer); ok {
			resp.AlternateAddr = addr
		}
		return resp
	case 438:
		return challengeResponse(m, code)
	case 401:
		realm := attrString(m, stun.AttrRealm)
		if realm == "" || realm != priorRealm {
			return challengeResponse(m, code)
		}
		return AllocateResponse{Outcome: Error, ErrorCode: code}
	default:
		return AllocateResponse{Outcome: Error, ErrorCode: code}
	}
}

func challengeResponse(m *stun.Message, code stun.ErrorCode) AllocateResponse {
	resp := AllocateResponse{Outcome: ChallengeNeeded, ErrorCode: code}
	resp.Challenge.Realm = attrString(m, stun.AttrRealm)
	resp.Challenge.Nonce = attrString(m, stun.AttrNonce)
	if raw, ok := m.Get(stun.AttrReservationToken); ok {
		resp.Challenge.ReservationToken = raw.Value
	}
	return resp
}

func attrString(m *stun.Message, t stun.AttrType) string {
	raw, ok := m.Get(t)
	if !ok {
		return ""
	}
	return string(raw.Value)
}
