package ptcp

import "time"

const (
	minRTO = 250 * time.Millisecond
	maxRTO = 60 * time.Second
	initialRTO = 1 * time.Second
)

// updateRTT folds a fresh RTT sample into the Karn-safe Jacobson/Karels
// estimators (?4.5).
func (s *Socket) updateRTT(rtt time.Duration) {
	if s.srtt == 0 {
		s.srtt = rtt
		s.rttvar = rtt / 2
	} else {
		delta := rtt - s.srtt
		if delta < 0 {
			delta = -delta
		}
		s.rttvar = s.rttvar*3/4 + delta/4
		s.srtt = s.srtt*7/8 + rtt/8
	}
	rto := s.srtt + 4*s.rttvar
	if rto < minRTO {
		rto = minRTO
	}
	if rto > maxRTO {
		rto = maxRTO
	}
	s.rto = rto
}

// backoffRTO doubles the retransmission timeout, capped at maxRTO, per a
// retransmission timeout firing with no Karn-safe sample available.
func (s *Socket) backoffRTO() {
	s.rto *= 2
	if s.rto > maxRTO {
		s.rto = maxRTO
	}
}

// inFlight returns the number of unacknowledged bytes currently outstanding.
func (s *Socket) inFlight() uint32 {
	return s.sndNxt - s.sndUna
}

// onRTOExpired implements the ?4.5 retransmission-timeout reaction: shrink
// the window hard and resend the head of the send queue.
func (s *Socket) onRTOExpired() {
	s.backoffRTO()
	inFlight := s.inFlight()
	s.ssthresh = inFlight / 2
	if s.ssthresh < 2*s.mss {
		s.ssthresh = 2 * s.mss
	}
	s.cwnd = s.mss
	s.inRecovery = false
	s.dupAcks = 0
	s.retransmitHead()
}

// onDupAck implements fast retransmit: three duplicate acks enter recovery.
func (s *Socket) onDupAck() {
	s.dupAcks++
	if s.dupAcks == 3 {
		s.ssthresh = s.inFlight() / 2
		if s.ssthresh < 2*s.mss {
			s.ssthresh = 2 * s.mss
		}
		s.cwnd = s.ssthresh + 3*s.mss
		s.recover = s.sndNxt
		s.inRecovery = true
		s.retransmitHead()
	} else if s.dupAcks > 3 && s.inRecovery {
		s.cwnd += s.mss
	}
}

// onNewAck folds a fresh (non-duplicate) ack into the congestion window,
// exiting fast-recovery once the ack covers `recover`.
func (s *Socket) onNewAck() {
	if s.inRecovery {
		if seqGE(s.sndUna, s.recover) {
			s.inRecovery = false
			inFlight := s.inFlight()
			cwnd := s.ssthresh
			if inFlight+s.mss < cwnd {
				cwnd = inFlight + s.mss
			}
			s.cwnd = cwnd
		}
		s.dupAcks = 0
		return
	}
	s.dupAcks = 0
	if s.cwnd < s.ssthresh {
		// Slow start: one MSS of growth per acked segment.
		s.cwnd += s.mss
	} else {
		// Congestion avoidance: roughly one MSS per RTT.
		growth := s.mss * s.mss / s.cwnd
		if growth == 0 {
			growth = 1
		}
		s.cwnd += growth
	}
}
