package ice

import (
	"sort"
	"time"

	"github.com/lanikai/goice/internal/stun"
)

// maxPairsPerComponent caps the check list; pairs beyond it are marked
// CANCELLED rather than discarded, so they remain visible for diagnostics.
const maxPairsPerComponent = 100

// initialCheckDelay and maxCheckRetransmits drive the connectivity check
// retransmission timer, reusing the same exponential-backoff schedule as
// STUN Binding requests (?4.4.5 doesn't mandate different numbers).
const (
	initialCheckDelay   = 200 * time.Millisecond
	maxCheckRetransmits = 7
)

// checklist is the per-stream check list (?4.4.3/?4.4.4): candidate pairs,
// the triggered-check queue, and the valid list nominations are drawn from.
type checklist struct {
	stream *Stream

	pairs          []*CandidatePair
	triggeredQueue []*CandidatePair
	valid          []*CandidatePair
	nominee        *CandidatePair

	nextPairID  int
	nextToCheck int
}

func newChecklist(s *Stream) *checklist {
	return &checklist{stream: s}
}

// canBePaired pairs same-component candidates of identical address family
// and compatible transport (UDP-UDP; active-passive; passive-active;
// simultaneous-open-simultaneous-open), per ?4.4.3.
func canBePaired(local, remote *Candidate) bool {
	if local.ComponentID != remote.ComponentID {
		return false
	}
	if local.Addr.isIPv4() != remote.Addr.isIPv4() {
		return false
	}
	switch local.Transport {
	case UDP:
		return remote.Transport == UDP
	case TCPActive:
		return remote.Transport == TCPPassive
	case TCPPassive:
		return remote.Transport == TCPActive
	case TCPSO:
		return remote.Transport == TCPSO
	default:
		return false
	}
}

// addPairs forms pairs for every compatible (local, remote) combination,
// server-reflexive locals pruned in favor of their host-candidate base
// (?4.4.3), then re-sorts/re-prunes/re-caps the list. New pairs start
// FROZEN; the scheduler unfreezes them per ?4.4.4.
func (cl *checklist) addPairs(locals, remotes []*Candidate, controlling bool) {
	for _, local := range locals {
		pairLocal := local
		if local.Type == SERVER_REFLEXIVE {
			if base := cl.stream.component(local.ComponentID).findLocalCandidate(local.Base); base != nil {
				pairLocal = base
			}
		}
		for _, remote := range remotes {
			if !canBePaired(pairLocal, remote) {
				continue
			}
			if cl.findPair(pairLocal, remote) != nil {
				continue
			}
			p := newCandidatePair(cl.nextPairID, pairLocal, remote)
			cl.nextPairID++
			cl.pairs = append(cl.pairs, p)
		}
	}
	cl.sortPruneAndCap(controlling)
}

func (cl *checklist) sortPruneAndCap(controlling bool) {
	sort.SliceStable(cl.pairs, func(i, j int) bool {
		return cl.pairs[i].Priority(controlling) > cl.pairs[j].Priority(controlling)
	})

	pruned := cl.pairs[:0]
	for _, p := range cl.pairs {
		if p.State == InProgress || p.State == Succeeded || p.State == Failed || p.State == Discovered {
			pruned = append(pruned, p)
			continue
		}
		redundant := false
		for _, kept := range pruned {
			if isRedundant(p, kept) {
				redundant = true
				break
			}
		}
		if !redundant {
			pruned = append(pruned, p)
		}
	}
	cl.pairs = pruned

	for i, p := range cl.pairs {
		if i >= maxPairsPerComponent && !p.State.terminal() {
			p.State = Cancelled
		}
	}
}

// isRedundant implements ?4.4.3: same remote candidate and same local base.
func isRedundant(p1, p2 *CandidatePair) bool {
	return p1.Remote.Addr.Equal(p2.Remote.Addr) && p1.Local.Base.Equal(p2.Local.Base)
}

func (cl *checklist) findPair(local, remote *Candidate) *CandidatePair {
	return cl.findPairByAddrs(local.Addr, remote.Addr)
}

func (cl *checklist) findPairByAddrs(localAddr, remoteAddr TransportAddress) *CandidatePair {
	for _, p := range cl.pairs {
		if p.Local.Addr.Equal(localAddr) && p.Remote.Addr.Equal(remoteAddr) {
			return p
		}
	}
	return nil
}

// tickChecklist drives one scheduler iteration (?4.4.4): advance in-flight
// transactions, service the triggered-check queue, then pick the next
// ordinary check or unfreeze a pair.
func (a *Agent) tickChecklist(cl *checklist) {
	for _, p := range cl.pairs {
		if p.State != InProgress {
			continue
		}
		switch p.timer.Refresh() {
		case stun.TimerRetransmit:
			a.sendDatagram(cl.stream.component(p.Component), p.Remote.Addr, p.buffered)
		case stun.TimerTimeout:
			p.State = Failed
			a.checkComponentFailed(cl.stream.component(p.Component))
		}
	}

	if len(cl.triggeredQueue) > 0 {
		p := cl.triggeredQueue[0]
		cl.triggeredQueue = cl.triggeredQueue[1:]
		if !p.State.terminal() {
			a.sendCheck(cl, p)
		}
		return
	}

	n := len(cl.pairs)
	for i := 0; i < n; i++ {
		k := (cl.nextToCheck + i) % n
		p := cl.pairs[k]
		if p.State == Waiting {
			cl.nextToCheck = (k + 1) % n
			a.sendCheck(cl, p)
			return
		}
	}

	// Nothing WAITING: unfreeze this check list's highest-priority FROZEN pair
	// (the list is kept priority-sorted by sortPruneAndCap).
	for _, p := range cl.pairs {
		if p.State == Frozen {
			p.State = Waiting
			return
		}
	}
}

// sendCheck builds and sends a connectivity check per ?4.4.5.
func (a *Agent) sendCheck(cl *checklist, p *CandidatePair) {
	req := stun.New(stun.Request, stun.MethodBinding, stun.NewTransactionID())
	req.Add(stun.AttrUsername, []byte(cl.stream.RemoteUfrag+":"+cl.stream.LocalUfrag))

	priority := make([]byte, 4)
	putUint32(priority, p.Local.peerReflexivePriority())
	req.Add(stun.AttrPriority, priority)

	tiebreak := make([]byte, 8)
	putUint64(tiebreak, a.tieBreaker)
	if a.controlling {
		req.Add(stun.AttrIceControlling, tiebreak)
		if p.Nominated || p == cl.nominee {
			req.Add(stun.AttrUseCandidate, nil)
		}
	} else {
		req.Add(stun.AttrIceControlled, tiebreak)
	}

	req.AddMessageIntegrity(stun.ShortTermKey(cl.stream.RemotePassword))
	req.AddFingerprint()

	p.transactionID = req.TransactionID
	p.buffered = req.Marshal()
	p.State = InProgress
	p.timer.Start(initialCheckDelay, maxCheckRetransmits)

	a.transactions.Insert(req.TransactionID, stun.MethodBinding, []byte(cl.stream.RemotePassword), false)
	a.sendDatagram(cl.stream.component(p.Component), p.Remote.Addr, p.buffered)
}

// handleCheckResponse processes an inbound Binding response matched to an
// in-flight pair (?4.4.5, ?4.4.7, role conflict via the 487 branch).
func (a *Agent) handleCheckResponse(cl *checklist, p *CandidatePair, m *stun.Message) {
	a.transactions.Forget(m.TransactionID)
	if p.State != InProgress {
		return
	}

	if m.Class == stun.ErrorResponse {
		if code, ok := m.GetErrorCode(); ok && code.Code == 487 {
			a.switchRole(!a.controlling)
			p.State = Waiting
			return
		}
		p.State = Failed
		log.Debug("connectivity check failed %s -> %s", p.Local.Addr, p.Remote.Addr)
		a.checkComponentFailed(cl.stream.component(p.Component))
		return
	}

	p.State = Succeeded
	cl.valid = append(cl.valid, p)
	a.unfreezeFoundation(cl, p.Foundation)

	if p == cl.nominee || p.Nominated {
		a.nominate(cl, p)
	}
	a.updateComponentReadiness(cl, cl.stream.component(p.Component))
}

// unfreezeFoundation implements ?4.4.4's two-step unfreezing rule: first
// within this stream, then across all other streams once every component
// in this stream has at least one CONNECTED-or-better pair.
func (a *Agent) unfreezeFoundation(cl *checklist, foundation string) {
	for _, p := range cl.pairs {
		if p.State == Frozen && p.Foundation == foundation {
			p.State = Waiting
		}
	}

	allConnected := true
	for _, c := range cl.stream.Components {
		if c.State != Connected && c.State != Ready {
			allConnected = false
			break
		}
	}
	if !allConnected {
		return
	}
	for _, other := range a.streams {
		if other == cl.stream {
			continue
		}
		for _, p := range other.checklist.pairs {
			if p.State == Frozen && p.Foundation == foundation {
				p.State = Waiting
				break
			}
		}
	}
}

// handleInboundCheck validates and replies to an inbound Binding request
// (?4.4.5, ?4.4.6): role conflict detection, peer-reflexive synthesis, and
// the reply/triggered-check pair.
func (a *Agent) handleInboundCheck(c *Component, from TransportAddress, m *stun.Message) {
	stream := a.stream(c.StreamID)
	if stream == nil {
		return
	}
	cl := stream.checklist

	key := stun.ShortTermKey(stream.LocalPassword)
	if !m.VerifyMessageIntegrity(key) {
		return
	}

	if raw, ok := m.Get(stun.AttrIceControlling); ok && a.controlling {
		if a.loses(raw) {
			a.switchRole(false)
		} else {
			a.replyRoleConflict(c, from, m)
			return
		}
	}
	if raw, ok := m.Get(stun.AttrIceControlled); ok && !a.controlling {
		if a.loses(raw) {
			a.switchRole(true)
		} else {
			a.replyRoleConflict(c, from, m)
			return
		}
	}

	remote := c.findRemoteCandidate(from)
	var p *CandidatePair
	if remote == nil {
		priority := uint32(0)
		if raw, ok := m.Get(stun.AttrPriority); ok && len(raw.Value) == 4 {
			priority = binaryUint32(raw.Value)
		}
		remote = newPeerReflexiveCandidate(c.StreamID, c.ID, from, priority)
		c.addRemoteCandidate(remote)
		local := pickBaseCandidate(c, from)
		p = newCandidatePair(cl.nextPairID, local, remote)
		cl.nextPairID++
		p.State = Waiting
		cl.pairs = append(cl.pairs, p)
		cl.sortPruneAndCap(a.controlling)
	} else {
		local := pickBaseCandidate(c, from)
		p = cl.findPairByAddrs(local.Addr, remote.Addr)
		if p == nil {
			p = newCandidatePair(cl.nextPairID, local, remote)
			cl.nextPairID++
			p.State = Discovered
			cl.pairs = append(cl.pairs, p)
		}
	}

	useCandidate := m.Has(stun.AttrUseCandidate)
	if useCandidate && !p.Nominated {
		a.nominate(cl, p)
	}

	resp := stun.New(stun.SuccessResponse, stun.MethodBinding, m.TransactionID)
	resp.AddXorAddress(stun.AttrXorMappedAddress, from.netUDPAddr())
	resp.AddMessageIntegrity(key)
	resp.AddFingerprint()
	a.sendDatagram(c, from, resp.Marshal())

	a.triggerCheck(cl, p, useCandidate)
}

func (a *Agent) replyRoleConflict(c *Component, from TransportAddress, m *stun.Message) {
	resp := stun.New(stun.ErrorResponse, stun.MethodBinding, m.TransactionID)
	resp.AddErrorCode(487, "Role Conflict")
	a.sendDatagram(c, from, resp.Marshal())
}

// loses reports whether the peer's tie-breaker (raw, 8 bytes big-endian)
// beats ours, per ?4.4.5: the side with the smaller tie-breaker switches.
func (a *Agent) loses(raw stun.RawAttribute) bool {
	if len(raw.Value) != 8 {
		return false
	}
	return a.tieBreaker < binaryUint64(raw.Value)
}

func (a *Agent) switchRole(controlling bool) {
	a.controlling = controlling
}

func pickBaseCandidate(c *Component, from TransportAddress) *Candidate {
	for _, l := range c.localCandidates {
		if l.Type == HOST && l.Addr.isIPv4() == from.isIPv4() {
			return l
		}
	}
	if len(c.localCandidates) > 0 {
		return c.localCandidates[0]
	}
	return nil
}

// triggerCheck implements ?4.4.6's triggered-check dispatch table.
func (a *Agent) triggerCheck(cl *checklist, p *CandidatePair, carryUseCandidate bool) {
	switch p.State {
	case Frozen, Waiting:
		cl.triggeredQueue = append(cl.triggeredQueue, p)
	case InProgress:
		p.timer.Start(initialCheckDelay, maxCheckRetransmits)
	case Failed:
		p.State = Waiting
		cl.triggeredQueue = append(cl.triggeredQueue, p)
	case Succeeded, Discovered:
		if a.controlling && carryUseCandidate {
			cl.nominee = p
			p.State = Waiting
			cl.triggeredQueue = append(cl.triggeredQueue, p)
		}
	}
}

// nominate implements ?4.4.7: the higher-priority nominated pair wins the
// selection for its component.
func (a *Agent) nominate(cl *checklist, p *CandidatePair) {
	p.Nominated = true
	c := cl.stream.component(p.Component)
	if c.selected == nil || p.Priority(a.controlling) > c.selected.Priority(a.controlling) {
		c.selected = p
		log.Info("stream %d component %d selected pair %s -> %s", c.StreamID, c.ID, p.Local.Addr, p.Remote.Addr)
		a.emit(Event{Kind: EventSelectedPairChanged, StreamID: c.StreamID, ComponentID: c.ID})
	}
	a.updateComponentReadiness(cl, c)
}

// updateComponentReadiness implements ?4.4.7's READY transition and the
// cancellation of pairs no longer worth pursuing once a pair is selected.
func (a *Agent) updateComponentReadiness(cl *checklist, c *Component) {
	if c.selected == nil || !c.selected.Nominated {
		return
	}
	for _, p := range cl.pairs {
		if p.Component != c.ID || p.State.terminal() {
			continue
		}
		if p.State == Frozen || p.State == Waiting {
			p.State = Cancelled
			continue
		}
		if p.State == InProgress && p.Priority(a.controlling) < c.selected.Priority(a.controlling) {
			p.State = Cancelled
		}
	}
	a.setComponentState(c, Ready)
}

func (a *Agent) checkComponentFailed(c *Component) {
	if c == nil {
		return
	}
	stream := a.stream(c.StreamID)
	if stream == nil {
		return
	}
	if c.allPairsFailed(stream.checklist.pairs) {
		a.setComponentState(c, ComponentFailed)
	}
}

func binaryUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func binaryUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
