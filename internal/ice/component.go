package ice

import (
	"net"

	"github.com/lanikai/goice/internal/stun"
)

// ComponentState is ?3's component state machine:
// DISCONNECTED -> GATHERING -> CONNECTING -> CONNECTED -> READY, or -> FAILED
// from any non-terminal state. READY is terminal modulo ICE restart.
type ComponentState int

const (
	Disconnected ComponentState = iota
	Gathering
	Connecting
	Connected
	Ready
	ComponentFailed
)

func (s ComponentState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Gathering:
		return "GATHERING"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Ready:
		return "READY"
	case ComponentFailed:
		return "FAILED"
	default:
		return "unknown"
	}
}

// Component is a single datagram flow inside a stream (?3). One Component
// normally corresponds to one socket; RTP/RTCP multiplexing collapses two
// components onto one in callers that want that, but this package keeps
// them distinct and lets the embedder decide.
type Component struct {
	ID       int
	StreamID int
	State    ComponentState

	localCandidates  []*Candidate
	remoteCandidates []*Candidate
	sockets          map[string]net.PacketConn // keyed by local TransportAddress.String()

	selected *CandidatePair

	// dataConn is the lazily-created net.Conn view of this component's
	// selected pair (see Agent.Conn), fed by DeliverDatagram.
	dataConn *Conn

	// relay holds the TURN server configuration set_relay_info attaches,
	// consulted by gathering; cleared by ForgetRelays without disturbing
	// turnCandidate (?13.1).
	relay *relayInfo

	// restartCandidate preserves the selected remote candidate across an
	// ICE restart (?4.4.10), so in-flight references into it survive the
	// restart's candidate purge.
	restartCandidate *Candidate

	// turnCandidate preserves a relayed candidate after ForgetRelays clears
	// the stream's TURN server list, per the data model's description of a
	// "turn candidate kept alive after TURN servers were cleared".
	turnCandidate *Candidate

	keepaliveTimer         stun.Timer
	keepalivePending       bool
	keepaliveTransactionID stun.TransactionID
	keepaliveBuffered      []byte
	lastMediaAt            int64 // embedder-supplied monotonic tick count
}

func newComponent(streamID, id int) *Component {
	return &Component{
		ID:       id,
		StreamID: streamID,
		State:    Disconnected,
		sockets:  make(map[string]net.PacketConn),
	}
}

func (c *Component) setState(s ComponentState) (changed bool) {
	if c.State == s {
		return false
	}
	c.State = s
	return true
}

func (c *Component) addLocalCandidate(cand *Candidate) {
	c.localCandidates = append(c.localCandidates, cand)
}

func (c *Component) addRemoteCandidate(cand *Candidate) {
	c.remoteCandidates = append(c.remoteCandidates, cand)
}

func (c *Component) findRemoteCandidate(addr TransportAddress) *Candidate {
	for _, cand := range c.remoteCandidates {
		if cand.Addr.Equal(addr) {
			return cand
		}
	}
	return nil
}

func (c *Component) findLocalCandidate(addr TransportAddress) *Candidate {
	for _, cand := range c.localCandidates {
		if cand.Addr.Equal(addr) {
			return cand
		}
	}
	return nil
}

// allPairsFailed reports whether every known pair for this component (across
// the owning stream's checklist) has reached FAILED, the condition ?4.4.11
// uses to fail the component once its remote-candidate list is non-empty.
func (c *Component) allPairsFailed(pairs []*CandidatePair) bool {
	if len(c.remoteCandidates) == 0 {
		return false
	}
	any := false
	for _, p := range pairs {
		if p.Component != c.ID {
			continue
		}
		any = true
		if p.State != Failed {
			return false
		}
	}
	return any
}
