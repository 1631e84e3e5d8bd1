package ice

import (
	"time"

	"github.com/lanikai/goice/internal/stun"
)

// keepaliveConncheck, when true, makes the ?4.4.8 keepalive a full
// authenticated Binding Request with its own retransmission timer instead
// of a bare Binding Indication. Off by default: most deployments rely on
// the cheaper indication and only escalate when a NAT is known to need it.
const keepaliveConncheck = false

// tickKeepalives implements ?4.4.8: every Tr seconds, every READY component
// is kept alive over its selected pair, and every still-gathering component
// pings its STUN server on each host candidate to keep NAT mappings open.
func (a *Agent) tickKeepalives(now time.Time) {
	for _, s := range a.streams {
		for _, c := range s.Components {
			switch c.State {
			case Ready:
				a.keepaliveReady(s, c)
			case Gathering:
				a.keepaliveGathering(c)
			}
		}
	}
}

func (a *Agent) keepaliveReady(s *Stream, c *Component) {
	if c.selected == nil {
		return
	}
	if !keepaliveConncheck {
		m := stun.New(stun.Indication, stun.MethodBinding, stun.NewTransactionID())
		m.AddFingerprint()
		a.sendDatagram(c, c.selected.Remote.Addr, m.Marshal())
		return
	}

	if c.keepalivePending {
		switch c.keepaliveTimer.Refresh() {
		case stun.TimerRetransmit:
			a.sendDatagram(c, c.selected.Remote.Addr, c.keepaliveBuffered)
		case stun.TimerTimeout:
			c.keepalivePending = false
			a.checkComponentFailed(c)
		}
		return
	}

	m := stun.New(stun.Request, stun.MethodBinding, stun.NewTransactionID())
	m.Add(stun.AttrUsername, []byte(s.RemoteUfrag+":"+s.LocalUfrag))
	m.AddMessageIntegrity(stun.ShortTermKey(s.RemotePassword))
	m.AddFingerprint()
	c.keepalivePending = true
	c.keepaliveTransactionID = m.TransactionID
	c.keepaliveBuffered = m.Marshal()
	c.keepaliveTimer.Start(initialCheckDelay, maxCheckRetransmits)
	a.transactions.Insert(m.TransactionID, stun.MethodBinding, []byte(s.RemotePassword), false)
	a.sendDatagram(c, c.selected.Remote.Addr, c.keepaliveBuffered)
}

func (a *Agent) keepaliveGathering(c *Component) {
	if a.stunServer == nil {
		return
	}
	for _, cand := range c.localCandidates {
		if cand.Type != HOST || cand.Transport != UDP {
			continue
		}
		m := stun.New(stun.Request, stun.MethodBinding, stun.NewTransactionID())
		m.AddFingerprint()
		data := m.Marshal()
		if sock, ok := c.sockets[cand.Addr.String()]; ok {
			sock.WriteTo(data, a.stunServer)
			continue
		}
		a.sendDatagram(c, udpTransportAddr(a.stunServer), data)
	}
}
