package ice

import (
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/lanikai/goice/internal/stun"
)

// gatherTa/checkTa are the pacing intervals named ?4.4.2/?4.4.4 call
// timer_Ta; keepaliveTr is ?4.4.8's Tr.
const (
	gatherTa    = 20 * time.Millisecond
	checkTa     = 20 * time.Millisecond
	keepaliveTr = 25 * time.Second
)

// SendFunc is the embedder's send_datagram callback (?6): the one way the
// agent puts bytes on the wire. A non-nil error is treated as packet loss.
type SendFunc func(local, dest TransportAddress, data []byte) error

// relayInfo is the TURN configuration set_relay_info attaches to a
// component (?6).
type relayInfo struct {
	server   *net.UDPAddr
	username string
	password string
	typ      Transport
}

// Agent is the ICE agent (C5): a single-threaded, embedder-driven state
// machine. There is no internal goroutine or timer; the embedder calls
// Tick, DeliverDatagram and the verb methods, all under its own lock
// (?5's "single process-wide agent lock" is the caller's responsibility).
type Agent struct {
	controlling bool
	reliable    bool
	useUDP      bool
	useTCP      bool

	tieBreaker uint64
	rng        io.Reader

	streams      []*Stream
	nextStreamID int

	transactions *stun.TransactionTable
	events       []Event

	send       SendFunc
	localAddrs []net.IP
	stunServer *net.UDPAddr

	discovery     []*discoveryItem
	turnRefreshes []*turnRefresh

	lastGatherTick time.Time
	lastCheckTick  time.Time
	lastKeepalive  time.Time
}

// NewAgent implements the new_agent verb (?6).
func NewAgent(controlling, reliable, useUDP, useTCP bool) *Agent {
	a := &Agent{
		controlling:  controlling,
		reliable:     reliable,
		useUDP:       useUDP,
		useTCP:       useTCP,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		transactions: stun.NewTransactionTable(256),
	}
	a.tieBreaker = a.randomUint64()
	return a
}

// SetSendFunc registers the embedder's send_datagram callback. Not itself a
// named verb in ?6, but every verb that puts bytes on the wire needs it
// wired before GatherCandidates/Tick can do anything useful.
func (a *Agent) SetSendFunc(f SendFunc) {
	a.send = f
}

// SetStunServer configures the STUN server gathering queries against
// (?4.4.2's "configured STUN server"). Like SetSendFunc, this has no
// dedicated verb in ?6 -- set_relay_info covers TURN but not STUN -- so
// it is exposed as agent-level configuration, analogous to the teacher's
// flagStunServer.
func (a *Agent) SetStunServer(addr *net.UDPAddr) {
	a.stunServer = addr
}

// Controlling reports whether this agent is currently the controlling party
// (?4.2): NewAgent sets the initial role, and role-conflict resolution may
// switch it later.
func (a *Agent) Controlling() bool {
	return a.controlling
}

func (a *Agent) randomUint64() uint64 {
	buf := make([]byte, 8)
	if _, err := a.rng.Read(buf); err != nil {
		panic("ice: failed to read random tie-breaker bytes: " + err.Error())
	}
	return binaryUint64(buf)
}

// AddLocalAddress implements add_local_address (?6).
func (a *Agent) AddLocalAddress(ip net.IP) error {
	a.localAddrs = append(a.localAddrs, ip)
	return nil
}

// AddStream implements add_stream (?6): returns a non-zero stream id.
func (a *Agent) AddStream(numComponents int) int {
	a.nextStreamID++
	s := newStream(a.nextStreamID, "", numComponents, a.rng)
	a.streams = append(a.streams, s)
	return s.ID
}

// RemoveStream implements remove_stream (?6): frees the stream, its
// components, sockets, pairs and candidates (?5's cascading free).
func (a *Agent) RemoveStream(streamID int) {
	for i, s := range a.streams {
		if s.ID == streamID {
			for _, c := range s.Components {
				for _, sock := range c.sockets {
					sock.Close()
				}
			}
			a.streams = append(a.streams[:i], a.streams[i+1:]...)
			return
		}
	}
}

// LocalSockets exposes the real sockets the agent bound for this
// component's UDP host candidates during GatherCandidates, so an embedder
// that wants the agent to own sockets directly (rather than supplying its
// own transport) can run its own read loop and feed arrivals to
// DeliverDatagram -- spec.md ?14's "no concrete host event loop" leaves
// that loop to the embedder, not the core.
func (a *Agent) LocalSockets(streamID, componentID int) []net.PacketConn {
	s := a.stream(streamID)
	if s == nil {
		return nil
	}
	c := s.component(componentID)
	if c == nil {
		return nil
	}
	socks := make([]net.PacketConn, 0, len(c.sockets))
	for _, sock := range c.sockets {
		socks = append(socks, sock)
	}
	return socks
}

// LocalCandidates returns the candidates gathered so far for a component,
// for an embedder trickling them out over its own signaling channel.
func (a *Agent) LocalCandidates(streamID, componentID int) []*Candidate {
	s := a.stream(streamID)
	if s == nil {
		return nil
	}
	c := s.component(componentID)
	if c == nil {
		return nil
	}
	return append([]*Candidate(nil), c.localCandidates...)
}

func (a *Agent) stream(id int) *Stream {
	for _, s := range a.streams {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SetRelayInfo implements set_relay_info (?6).
func (a *Agent) SetRelayInfo(streamID, componentID int, serverIP net.IP, serverPort int, username, password string, typ Transport) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return ErrUnknownComponent
	}
	c.relay = &relayInfo{
		server:   &net.UDPAddr{IP: serverIP, Port: serverPort},
		username: username,
		password: password,
		typ:      typ,
	}
	return nil
}

// ForgetRelays implements forget_relays (?6, libnice's nice_agent_forget_relays):
// the component's relay configuration is cleared, but any already-gathered
// relayed candidate is kept alive in turnCandidate per ?13.1.
func (a *Agent) ForgetRelays(streamID, componentID int) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return ErrUnknownComponent
	}
	c.relay = nil
	return nil
}

// SetLocalCredentials implements set_local_credentials (?6).
func (a *Agent) SetLocalCredentials(streamID int, ufrag, pwd string) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	s.LocalUfrag = ufrag
	s.LocalPassword = pwd
	return nil
}

// SetRemoteCredentials implements set_remote_credentials (?6).
func (a *Agent) SetRemoteCredentials(streamID int, ufrag, pwd string) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	s.setRemoteCredentials(ufrag, pwd)
	return nil
}

// GetLocalCredentials implements get_local_credentials (?6).
func (a *Agent) GetLocalCredentials(streamID int) (ufrag, pwd string, err error) {
	s := a.stream(streamID)
	if s == nil {
		return "", "", ErrUnknownStream
	}
	return s.LocalUfrag, s.LocalPassword, nil
}

// maxRemoteCandidatesPerComponent is ?6's 25-candidate-per-component cap.
const maxRemoteCandidatesPerComponent = 25

// SetRemoteCandidates implements set_remote_candidates (?6): pairs the new
// remote candidates against every known local candidate and returns the
// count actually added.
func (a *Agent) SetRemoteCandidates(streamID, componentID int, candidates []*Candidate) (int, error) {
	s := a.stream(streamID)
	if s == nil {
		return 0, ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return 0, ErrUnknownComponent
	}
	if len(c.remoteCandidates)+len(candidates) > maxRemoteCandidatesPerComponent {
		return 0, ErrTooManyRemoteCandidates
	}
	for _, cand := range candidates {
		c.addRemoteCandidate(cand)
	}
	s.checklist.addPairs(c.localCandidates, candidates, a.controlling)
	return len(candidates), nil
}

// Send implements send (?6): writes to the component's selected pair.
func (a *Agent) Send(streamID, componentID int, data []byte) (int, error) {
	s := a.stream(streamID)
	if s == nil {
		return 0, ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return 0, ErrUnknownComponent
	}
	if c.selected == nil {
		return 0, ErrNoSelectedPair
	}
	if err := a.sendDatagram(c, c.selected.Remote.Addr, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// sendDatagram writes through the component's bound socket when one exists
// (host candidates gathered by this agent own a real net.PacketConn);
// otherwise it falls back to the embedder's SendFunc, e.g. for candidates
// the embedder itself supplies sockets for.
func (a *Agent) sendDatagram(c *Component, dest TransportAddress, data []byte) error {
	local := TransportAddress{}
	if c.selected != nil {
		local = c.selected.Local.Addr
	} else if len(c.localCandidates) > 0 {
		local = c.localCandidates[0].Addr
	}
	if sock, ok := c.sockets[local.String()]; ok {
		_, err := sock.WriteTo(data, dest.netUDPAddr())
		return err
	}
	if a.send == nil {
		return nil
	}
	return a.send(local, dest, data)
}

// SetSelectedPair implements set_selected_pair (?6): the embedder forces a
// pair selection out of band (used by some signaling-assisted fast paths).
func (a *Agent) SetSelectedPair(streamID, componentID int, local, remote TransportAddress) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return ErrUnknownComponent
	}
	p := s.checklist.findPairByAddrs(local, remote)
	if p == nil {
		return ErrNoSelectedPair
	}
	p.Nominated = true
	c.selected = p
	a.emit(Event{Kind: EventSelectedPairChanged, StreamID: streamID, ComponentID: componentID})
	a.setComponentState(c, Ready)
	return nil
}

// GetSelectedPair implements get_selected_pair (?6).
func (a *Agent) GetSelectedPair(streamID, componentID int) (local, remote TransportAddress, ok bool) {
	s := a.stream(streamID)
	if s == nil {
		return TransportAddress{}, TransportAddress{}, false
	}
	c := s.component(componentID)
	if c == nil || c.selected == nil {
		return TransportAddress{}, TransportAddress{}, false
	}
	return c.selected.Local.Addr, c.selected.Remote.Addr, true
}

// SetSelectedRemoteCandidate implements set_selected_remote_candidate (?6).
func (a *Agent) SetSelectedRemoteCandidate(streamID, componentID int, remote *Candidate) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return ErrUnknownComponent
	}
	local := pickBaseCandidate(c, remote.Addr)
	if local == nil {
		return ErrNoSelectedPair
	}
	p := s.checklist.findPairByAddrs(local.Addr, remote.Addr)
	if p == nil {
		p = newCandidatePair(s.checklist.nextPairID, local, remote)
		s.checklist.nextPairID++
		p.State = Discovered
		s.checklist.pairs = append(s.checklist.pairs, p)
	}
	p.Nominated = true
	c.selected = p
	a.emit(Event{Kind: EventSelectedPairChanged, StreamID: streamID, ComponentID: componentID})
	a.setComponentState(c, Ready)
	return nil
}

// GetComponentState implements get_component_state (?6).
func (a *Agent) GetComponentState(streamID, componentID int) (ComponentState, error) {
	s := a.stream(streamID)
	if s == nil {
		return Disconnected, ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return Disconnected, ErrUnknownComponent
	}
	return c.State, nil
}

// Restart implements restart (?6, ?4.4.10): full restart regenerates the
// tie-breaker and restarts every stream.
func (a *Agent) Restart() {
	a.tieBreaker = a.randomUint64()
	for _, s := range a.streams {
		a.restartStreamLocked(s)
	}
}

// RestartStream implements restart_stream (?6, ?4.4.10): per-stream restart
// does not touch the tie-breaker.
func (a *Agent) RestartStream(streamID int) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}
	a.restartStreamLocked(s)
	return nil
}

func (a *Agent) restartStreamLocked(s *Stream) {
	s.regenerateCredentials(a.rng)
	for _, c := range s.Components {
		if c.selected != nil {
			c.restartCandidate = c.selected.Remote
		}
		c.remoteCandidates = nil
		if c.restartCandidate != nil {
			c.remoteCandidates = append(c.remoteCandidates, c.restartCandidate)
		}
		c.selected = nil
		a.setComponentState(c, Connecting)
	}
	s.checklist = newChecklist(s)
	if len(s.Components) > 0 {
		var remotes []*Candidate
		for _, c := range s.Components {
			remotes = append(remotes, c.remoteCandidates...)
		}
		for _, c := range s.Components {
			s.checklist.addPairs(c.localCandidates, remotes, a.controlling)
		}
	}
}

// Tick drives every repeating timer named in ?5: gathering, connectivity
// checks, keepalives and TURN refreshes. The embedder calls this on its own
// schedule; each internal sub-tick is self-pacing against the wall clock.
func (a *Agent) Tick(now time.Time) {
	if now.Sub(a.lastGatherTick) >= gatherTa {
		a.lastGatherTick = now
		a.tickGathering(now)
	}
	if now.Sub(a.lastCheckTick) >= checkTa {
		a.lastCheckTick = now
		for _, s := range a.streams {
			a.tickChecklist(s.checklist)
		}
	}
	if now.Sub(a.lastKeepalive) >= keepaliveTr {
		a.lastKeepalive = now
		a.tickKeepalives(now)
	}
	a.tickTurnRefresh(now)
}

// DeliverDatagram implements recv_datagram_callback (?6): routes an inbound
// datagram to STUN handling, or hands it to the selected pair's data path
// if it isn't a STUN message.
func (a *Agent) DeliverDatagram(streamID, componentID int, from TransportAddress, data []byte) ([]byte, bool) {
	s := a.stream(streamID)
	if s == nil {
		return nil, false
	}
	c := s.component(componentID)
	if c == nil {
		return nil, false
	}

	if result, _ := stun.PreCheck(data); result != stun.ParseOK {
		if c.selected != nil && c.selected.Remote.Addr.Equal(from) {
			c.lastMediaAt++
			if c.dataConn != nil {
				select {
				case c.dataConn.in <- data:
				default:
				}
			}
			return data, true
		}
		return nil, false
	}

	m, err := stun.Parse(data)
	if err != nil {
		return nil, false
	}

	switch m.Class {
	case stun.Request:
		a.handleInboundCheck(c, from, m)
	case stun.SuccessResponse, stun.ErrorResponse:
		a.routeResponse(s, c, m)
	case stun.Indication:
		c.lastMediaAt++
	}
	return nil, false
}

func (a *Agent) routeResponse(s *Stream, c *Component, m *stun.Message) {
	_, _, _, ok := a.transactions.Lookup(m.TransactionID)
	if !ok {
		return
	}
	for _, p := range s.checklist.pairs {
		if p.transactionID == m.TransactionID {
			a.handleCheckResponse(s.checklist, p, m)
			return
		}
	}
	for _, item := range a.discovery {
		if item.component == c && item.transactionID == m.TransactionID {
			a.handleDiscoveryResponse(item, m)
			return
		}
	}
	if c.keepalivePending && m.TransactionID == c.keepaliveTransactionID {
		a.transactions.Forget(m.TransactionID)
		c.keepalivePending = false
		if m.Class == stun.ErrorResponse {
			a.checkComponentFailed(c)
		} else {
			c.lastMediaAt++
		}
		return
	}
	a.handleTurnRefreshResponse(c, m)
}
