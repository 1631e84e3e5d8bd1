package ice

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/goice/internal/stun"
	"github.com/lanikai/goice/internal/turn"
)

const defaultAllocationLifetime = 600

// turnRefresh tracks a relayed candidate's renewal schedule, ?4.4.9: each
// relayed candidate owns a refresh scheduled at (lifetime-60)*1000ms.
type turnRefresh struct {
	component *Component
	candidate *Candidate
	server    *net.UDPAddr
	username  string
	password  string

	lifetime    uint32
	nextRefresh time.Time
	inFlight    bool

	transactionID stun.TransactionID
	buffered      []byte
	timer         stun.Timer

	priorRealm string
	challenge  *turn.Challenge
}

func (a *Agent) scheduleTurnRefresh(item *discoveryItem, cand *Candidate, lifetime uint32) {
	if lifetime == 0 {
		lifetime = defaultAllocationLifetime
	}
	r := &turnRefresh{
		component:   item.component,
		candidate:   cand,
		server:      item.server,
		username:    item.username,
		password:    item.password,
		lifetime:    lifetime,
		nextRefresh: time.Now().Add(time.Duration(lifetime-60) * time.Second),
		priorRealm:  item.priorRealm,
		challenge:   item.challenge,
	}
	a.turnRefreshes = append(a.turnRefreshes, r)
}

// tickTurnRefresh drives every scheduled relay renewal (?4.4.9).
func (a *Agent) tickTurnRefresh(now time.Time) {
	kept := a.turnRefreshes[:0]
	for _, r := range a.turnRefreshes {
		if r.inFlight {
			switch r.timer.Refresh() {
			case stun.TimerRetransmit:
				a.sendDatagram(r.component, udpTransportAddr(r.server), r.buffered)
			case stun.TimerTimeout:
				a.dropRelayedCandidate(r)
				continue
			}
			kept = append(kept, r)
			continue
		}
		if now.Before(r.nextRefresh) {
			kept = append(kept, r)
			continue
		}
		a.sendTurnRefresh(r)
		kept = append(kept, r)
	}
	a.turnRefreshes = kept
}

func (a *Agent) sendTurnRefresh(r *turnRefresh) {
	key := stun.LongTermKey(r.username, r.priorRealm, r.password)
	m := turn.CreateRefresh(r.username, key, r.lifetime, r.challenge)
	r.transactionID = m.TransactionID
	r.buffered = m.Marshal()
	r.inFlight = true
	r.timer.Start(discoverInitialDelay, discoverMaxRetransmits)
	a.transactions.Insert(r.transactionID, stun.MethodRefresh, nil, false)
	a.sendDatagram(r.component, udpTransportAddr(r.server), r.buffered)
}

func (a *Agent) handleTurnRefreshResponse(c *Component, m *stun.Message) {
	for i, r := range a.turnRefreshes {
		if r.transactionID != m.TransactionID {
			continue
		}
		a.transactions.Forget(m.TransactionID)
		r.inFlight = false
		resp := turn.ProcessAllocateResponse(m, r.priorRealm)
		switch resp.Outcome {
		case turn.RelaySuccess, turn.MappedSuccess:
			if resp.Lifetime > 0 {
				r.lifetime = resp.Lifetime
			}
			r.nextRefresh = time.Now().Add(time.Duration(r.lifetime-60) * time.Second)
		case turn.ChallengeNeeded:
			r.priorRealm = resp.Challenge.Realm
			r.challenge = &resp.Challenge
			a.sendTurnRefresh(r)
		default:
			err := errors.Wrapf(turn.ErrAllocationMismatch, "refresh for relayed candidate %s failed with code %d", r.candidate.Addr, resp.ErrorCode)
			log.Warn("%s", err)
			a.dropRelayedCandidate(r)
			a.turnRefreshes = append(a.turnRefreshes[:i], a.turnRefreshes[i+1:]...)
		}
		return
	}
}

func (a *Agent) dropRelayedCandidate(r *turnRefresh) {
	c := r.component
	for i, cand := range c.localCandidates {
		if cand == r.candidate {
			c.localCandidates = append(c.localCandidates[:i], c.localCandidates[i+1:]...)
			break
		}
	}
	if c.turnCandidate == r.candidate {
		c.turnCandidate = nil
	}
}
