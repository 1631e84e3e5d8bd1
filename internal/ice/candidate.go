package ice

import (
	"encoding/base32"
	"fmt"
	"hash/fnv"
	"net"
)

// CandidateType is RFC 5245 ?7.1.2.1's four candidate kinds.
type CandidateType int

const (
	HOST CandidateType = iota
	SERVER_REFLEXIVE
	PEER_REFLEXIVE
	RELAYED
)

func (t CandidateType) String() string {
	switch t {
	case HOST:
		return "host"
	case SERVER_REFLEXIVE:
		return "srflx"
	case PEER_REFLEXIVE:
		return "prflx"
	case RELAYED:
		return "relay"
	default:
		return "unknown"
	}
}

// Candidate is a transport address usable as an ICE endpoint, ?3's
// candidate record.
type Candidate struct {
	Type      CandidateType
	Transport Transport
	Addr      TransportAddress
	Base      TransportAddress
	Priority  uint32

	StreamID    int
	ComponentID int
	Foundation  string

	// Username/Password override the stream's credentials when set --
	// part of the candidate record ?3 describes, for per-candidate
	// credentials some TURN deployments require.
	Username string
	Password string

	TurnServer *net.UDPAddr
}

// computePriority implements ?4.4.1: priority = 2^24*type_pref +
// 256*local_pref + (256 - component_id). Per RFC 6544 ?4.2, TCP candidates
// use half the UDP type preference, and substitute a direction-based local
// preference for the single-homed local_pref=1 UDP uses.
func computePriority(typ CandidateType, trans Transport, componentID int) uint32 {
	var typePref int
	switch typ {
	case HOST:
		typePref = 120
	case PEER_REFLEXIVE:
		typePref = 110
	case SERVER_REFLEXIVE:
		typePref = 100
	case RELAYED:
		typePref = 10
	}
	if trans != UDP {
		typePref /= 2
	}

	localPref := 1
	if trans != UDP {
		localPref = 0x2000*directionPref(trans, typ) + 1
	}

	return uint32(typePref<<24) + uint32(localPref<<8) + uint32(256-componentID)
}

// directionPref assigns {2, 4, 6} by (transport, candidate-type):
// simultaneous-open gets 6, passive gets 4 (6 when relayed), active gets 2
// (4 when relayed), and any other transport gets 4.
func directionPref(trans Transport, typ CandidateType) int {
	switch trans {
	case TCPPassive:
		if typ == RELAYED {
			return 6
		}
		return 4
	case TCPActive:
		if typ == RELAYED {
			return 4
		}
		return 2
	case TCPSO:
		return 6
	default:
		return 4
	}
}

// computeFoundation implements ?3/?4.4.1's foundation rule: unique per
// (type, base address, transport, STUN/TURN server).
func computeFoundation(typ CandidateType, base TransportAddress, server string) string {
	fingerprint := fmt.Sprintf("%s/%s", typ, base)
	if server != "" {
		fingerprint += "/" + server
	}
	h := fnv.New64a()
	h.Write([]byte(fingerprint))
	return base32.StdEncoding.EncodeToString(h.Sum(nil))[:8]
}

func newHostCandidate(streamID, componentID int, addr TransportAddress) *Candidate {
	return &Candidate{
		Type:        HOST,
		Transport:   addr.Trans,
		Addr:        addr,
		Base:        addr,
		Priority:    computePriority(HOST, addr.Trans, componentID),
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  computeFoundation(HOST, addr, ""),
	}
}

func newServerReflexiveCandidate(streamID, componentID int, mapped, base TransportAddress, server string) *Candidate {
	return &Candidate{
		Type:        SERVER_REFLEXIVE,
		Transport:   base.Trans,
		Addr:        mapped,
		Base:        base,
		Priority:    computePriority(SERVER_REFLEXIVE, base.Trans, componentID),
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  computeFoundation(SERVER_REFLEXIVE, base, server),
	}
}

func newRelayedCandidate(streamID, componentID int, relayed, base TransportAddress, server string) *Candidate {
	return &Candidate{
		Type:        RELAYED,
		Transport:   UDP,
		Addr:        relayed,
		Base:        base,
		Priority:    computePriority(RELAYED, UDP, componentID),
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  computeFoundation(RELAYED, base, server),
	}
}

// newPeerReflexiveCandidate synthesizes a candidate from an inbound check's
// source address and the PRIORITY attribute it carried (?4.4.6).
func newPeerReflexiveCandidate(streamID, componentID int, addr TransportAddress, priority uint32) *Candidate {
	return &Candidate{
		Type:        PEER_REFLEXIVE,
		Transport:   addr.Trans,
		Addr:        addr,
		Base:        addr,
		Priority:    priority,
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  computeFoundation(PEER_REFLEXIVE, addr, ""),
	}
}

func (c *Candidate) peerReflexivePriority() uint32 {
	return computePriority(PEER_REFLEXIVE, c.Transport, c.ComponentID)
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%s %s %s prio=%d found=%s", c.Type, c.Transport, c.Addr, c.Priority, c.Foundation)
}
