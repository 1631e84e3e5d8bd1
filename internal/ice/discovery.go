package ice

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/lanikai/goice/internal/stun"
	"github.com/lanikai/goice/internal/turn"
)

// discoveryKind distinguishes a server-reflexive query from a TURN
// allocation, ?4.4.2's two discovery item kinds.
type discoveryKind int

const (
	discoverStun discoveryKind = iota
	discoverTurn
)

// discoveryState mirrors the WAITING/IN_PROGRESS/done shape of ?4.4.4's
// pair state machine, scoped to gathering items.
type discoveryState int

const (
	discoveryWaiting discoveryState = iota
	discoveryInProgress
	discoveryDone
)

const (
	discoverInitialDelay   = 200 * time.Millisecond
	discoverMaxRetransmits = 3
)

// discoveryItem is one scheduled gathering query (?4.4.2).
type discoveryItem struct {
	kind      discoveryKind
	component *Component
	server    *net.UDPAddr

	state         discoveryState
	transactionID stun.TransactionID
	timer         stun.Timer
	buffered      []byte

	// TURN-only fields.
	username  string
	password  string
	priorRealm string
	challenge *turn.Challenge
}

// GatherCandidates implements gather_candidates (?6, ?4.4.2): binds a host
// candidate socket per local address/transport, then schedules STUN/TURN
// discovery items for every configured server.
func (a *Agent) GatherCandidates(streamID int) error {
	s := a.stream(streamID)
	if s == nil {
		return ErrUnknownStream
	}

	for _, c := range s.Components {
		a.setComponentState(c, Gathering)

		for _, ip := range a.localAddrs {
			if a.useUDP {
				if err := a.addHostCandidate(c, ip, UDP); err != nil {
					return err
				}
			}
			// TCP host candidates are enumerated but not actively bound
			// here; the embedder supplies sockets for them via SendFunc,
			// matching ?14's "no concrete host event loop" non-goal.
			if a.useTCP {
				a.addHostCandidateNoSocket(c, ip, TCPActive)
			}
		}

		if a.stunServer != nil {
			for _, cand := range c.localCandidates {
				if cand.Type == HOST && cand.Transport == UDP {
					a.discovery = append(a.discovery, &discoveryItem{
						kind:      discoverStun,
						component: c,
						server:    a.stunServer,
					})
				}
			}
		}
		if c.relay != nil {
			a.discovery = append(a.discovery, &discoveryItem{
				kind:      discoverTurn,
				component: c,
				server:    c.relay.server,
				username:  c.relay.username,
				password:  c.relay.password,
			})
		}

		if a.stunServer == nil && c.relay == nil {
			a.setComponentState(c, Connecting)
		}
	}
	return nil
}

func (a *Agent) addHostCandidate(c *Component, ip net.IP, trans Transport) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: 0})
	if err != nil {
		log.Warn("failed to bind host candidate socket on %s: %s", ip, err)
		return ErrCantCreateSocket
	}
	addr := makeTransportAddress("udp", conn.LocalAddr())
	for _, existing := range c.localCandidates {
		if existing.Type == HOST && existing.Addr.EqualAddr(addr) && existing.Transport == trans {
			conn.Close()
			return ErrRedundantCandidate
		}
	}
	disableMulticastLoopback(conn, ip)

	cand := newHostCandidate(c.StreamID, c.ID, addr)
	c.addLocalCandidate(cand)
	c.sockets[addr.String()] = conn
	return nil
}

// disableMulticastLoopback turns off multicast loopback on a freshly bound
// host candidate socket, so a peer address that happens to be multicast
// (mDNS-derived candidates) never loops a connectivity check back to
// ourselves. Best effort: some platforms/kernels reject the option on a
// connected UDP socket, which isn't fatal to gathering.
func disableMulticastLoopback(conn *net.UDPConn, ip net.IP) {
	if ip.To4() != nil {
		if err := ipv4.NewPacketConn(conn).SetMulticastLoopback(false); err != nil {
			log.Debug("disable IPv4 multicast loopback on %s: %s", ip, err)
		}
		return
	}
	if err := ipv6.NewPacketConn(conn).SetMulticastLoopback(false); err != nil {
		log.Debug("disable IPv6 multicast loopback on %s: %s", ip, err)
	}
}

// addHostCandidateNoSocket registers a TCP host candidate the embedder will
// supply a socket for out of band.
func (a *Agent) addHostCandidateNoSocket(c *Component, ip net.IP, trans Transport) {
	addr := TransportAddress{IP: ip, Port: 0, Trans: trans}
	c.addLocalCandidate(newHostCandidate(c.StreamID, c.ID, addr))
}

// tickGathering advances in-flight discovery items and starts the next
// WAITING one, one per tick per ?4.4.2.
func (a *Agent) tickGathering(now time.Time) {
	anyPending := false
	for _, item := range a.discovery {
		if item.state == discoveryDone {
			continue
		}
		anyPending = true
		if item.state != discoveryInProgress {
			continue
		}
		switch item.timer.Refresh() {
		case stun.TimerRetransmit:
			a.sendDatagram(item.component, udpTransportAddr(item.server), item.buffered)
		case stun.TimerTimeout:
			item.state = discoveryDone
			a.transactions.Forget(item.transactionID)
		}
	}

	for _, item := range a.discovery {
		if item.state == discoveryWaiting {
			a.sendDiscoveryItem(item)
			anyPending = true
			break
		}
	}

	if !anyPending {
		return
	}
	allDone := true
	for _, item := range a.discovery {
		if item.state != discoveryDone {
			allDone = false
			break
		}
	}
	if allDone {
		a.finishGathering()
	}
}

func (a *Agent) sendDiscoveryItem(item *discoveryItem) {
	switch item.kind {
	case discoverStun:
		m := stun.New(stun.Request, stun.MethodBinding, stun.NewTransactionID())
		m.AddFingerprint()
		item.transactionID = m.TransactionID
		item.buffered = m.Marshal()
	case discoverTurn:
		realm := ""
		if item.challenge != nil {
			realm = item.challenge.Realm
		}
		key := stun.LongTermKey(item.username, realm, item.password)
		m := turn.CreateAllocate(item.username, key, 600, 0, item.challenge)
		item.transactionID = m.TransactionID
		item.buffered = m.Marshal()
	}
	item.state = discoveryInProgress
	item.timer.Start(discoverInitialDelay, discoverMaxRetransmits)
	a.transactions.Insert(item.transactionID, stun.MethodBinding, nil, false)
	a.sendDatagram(item.component, udpTransportAddr(item.server), item.buffered)
}

func udpTransportAddr(addr *net.UDPAddr) TransportAddress {
	return TransportAddress{IP: addr.IP, Port: addr.Port, Trans: UDP}
}

func (a *Agent) handleDiscoveryResponse(item *discoveryItem, m *stun.Message) {
	a.transactions.Forget(m.TransactionID)
	switch item.kind {
	case discoverStun:
		a.handleStunDiscoveryResponse(item, m)
	case discoverTurn:
		a.handleTurnDiscoveryResponse(item, m)
	}
}

func (a *Agent) handleStunDiscoveryResponse(item *discoveryItem, m *stun.Message) {
	item.state = discoveryDone
	if m.Class != stun.SuccessResponse {
		return
	}
	addr, ok := m.GetXorAddress(stun.AttrXorMappedAddress)
	if !ok {
		return
	}
	mapped := udpTransportAddr(addr)
	var base TransportAddress
	for _, cand := range item.component.localCandidates {
		if cand.Type == HOST && cand.Transport == UDP {
			base = cand.Addr
			break
		}
	}
	if mapped.EqualAddr(base) {
		return
	}
	cand := newServerReflexiveCandidate(item.component.StreamID, item.component.ID, mapped, base, item.server.String())
	item.component.addLocalCandidate(cand)
	log.Info("new server-reflexive candidate %s via %s", mapped, item.server)
}

func (a *Agent) handleTurnDiscoveryResponse(item *discoveryItem, m *stun.Message) {
	resp := turn.ProcessAllocateResponse(m, item.priorRealm)
	switch resp.Outcome {
	case turn.RelaySuccess:
		item.state = discoveryDone
		base := udpTransportAddr(item.server)
		relayed := udpTransportAddr(resp.RelayedAddr)
		cand := newRelayedCandidate(item.component.StreamID, item.component.ID, relayed, base, item.server.String())
		item.component.addLocalCandidate(cand)
		item.component.turnCandidate = cand
		a.scheduleTurnRefresh(item, cand, resp.Lifetime)
		log.Info("new relayed candidate %s via %s", relayed, item.server)
	case turn.ChallengeNeeded:
		item.priorRealm = resp.Challenge.Realm
		item.challenge = &resp.Challenge
		item.state = discoveryWaiting
	case turn.AlternateServer:
		if resp.AlternateAddr != nil {
			item.server = resp.AlternateAddr
		}
		item.state = discoveryWaiting
	default:
		item.state = discoveryDone
	}
}

func (a *Agent) finishGathering() {
	for _, s := range a.streams {
		allDone := true
		for _, item := range a.discovery {
			if item.component.StreamID == s.ID && item.state != discoveryDone {
				allDone = false
			}
		}
		if !allDone {
			continue
		}
		for _, c := range s.Components {
			if c.State == Gathering {
				a.setComponentState(c, Connecting)
			}
		}
	}
	log.Debug("candidate gathering done")
	a.emit(Event{Kind: EventGatheringDone})
}
