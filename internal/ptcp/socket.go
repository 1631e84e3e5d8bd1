package ptcp

import "time"

// State is the pseudo-TCP connection state machine (?4.5, RFC 793 subset).
type State int

const (
	StateListen State = iota
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
	StateCloseWait
	StateLastAck
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	case StateClosed:
		return "CLOSED"
	default:
		return "unknown"
	}
}

const defaultMSS = 1400

// SendFunc hands one wire-ready pseudo-TCP segment to the enclosing
// transport (an ICE component's selected pair, in this module).
type SendFunc func(data []byte) error

// Callbacks are the embedder notifications the socket raises when the
// lock-free boundary (?5) is crossed: data arrived, buffer space opened up,
// the handshake completed, or the connection tore down.
type Callbacks struct {
	Readable func()
	Writable func()
	Opened   func()
	Closed   func(err error)
}

// Socket is one pseudo-TCP flow (?4.5): a single-flow reliable byte stream
// layered over an unreliable datagram channel.
type Socket struct {
	conv  uint32
	state State
	send  SendFunc
	cb    Callbacks

	mss           uint32
	wndScale      uint8
	scaleEnabled  bool
	finAckWanted  bool
	finAckEnabled bool

	sndUna uint32
	sndNxt uint32
	sndWnd uint32
	cwnd   uint32
	ssthresh uint32
	recover  uint32
	dupAcks  int
	inRecovery bool

	rcvNxt uint32
	rcvWnd uint32

	sendFIFO []byte        // bytes enqueued by Send, not yet segmented
	retransQueue []*segment // in-flight, ordered by seq
	reassembly   []*segment // out-of-order arrivals, sorted by seq
	recvFIFO []byte         // delivered, in-order bytes awaiting Recv

	srtt, rttvar, rto time.Duration
	rtoDeadline       time.Time

	ackDelay    time.Duration
	pendingAck  bool
	ackDeadline time.Time
	lastAckSent uint32

	lastActivity time.Time
	closedAt     time.Time
	clockNow     time.Time

	localFinSent  bool
	remoteFinSeen bool
}

// NewSocket creates a pseudo-TCP socket in LISTEN, per ?4.5.
func NewSocket(conv uint32, send SendFunc, cb Callbacks) *Socket {
	return &Socket{
		conv:     conv,
		state:    StateListen,
		send:     send,
		cb:       cb,
		mss:      defaultMSS,
		cwnd:     defaultMSS,
		ssthresh: 0xffffffff,
		rcvWnd:   0xffff,
		sndWnd:   0xffff,
		rto:      initialRTO,
		ackDelay: 100 * time.Millisecond,
	}
}

func (s *Socket) State() State { return s.state }

func (s *Socket) enterState(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if next == StateEstablished && s.cb.Opened != nil {
		s.cb.Opened()
	}
	if next == StateClosed && s.cb.Closed != nil {
		s.cb.Closed(nil)
	}
	if next == StateTimeWait {
		s.closedAt = s.clockNow
	}
}

// Connect actively opens the connection, sending the CONNECT control
// segment (?4.5's handshake).
func (s *Socket) Connect(now time.Time) error {
	s.clockNow = now
	if s.state != StateListen {
		return ErrAlreadyOpen
	}
	s.enterState(StateSynSent)
	s.lastActivity = now
	return s.sendConnect(now)
}

func (s *Socket) sendConnect(now time.Time) error {
	opts := handshakeOptions{mss: uint16(s.mss), wndScale: 0, haveScale: true, finAck: true}
	s.finAckWanted = true
	payload := encodeOptions(opts)
	h := header{conv: s.conv, seq: s.sndNxt, ack: s.rcvNxt, flags: FlagCtl, wnd: uint16(s.rcvWnd)}
	seg := &segment{hdr: h, data: payload}
	s.retransQueue = append(s.retransQueue, seg)
	s.sndNxt++
	s.scheduleRTO(now)
	return s.transmitSegment(seg, now)
}

func (s *Socket) transmitSegment(seg *segment, now time.Time) error {
	seg.xmit++
	seg.hdr.ack = s.rcvNxt
	seg.hdr.tsval = uint32(now.UnixNano() / int64(time.Millisecond))
	s.pendingAck = false
	wire := append(seg.hdr.marshal(), seg.data...)
	return s.send(wire)
}

// DeliverSegment feeds one inbound datagram through the state machine
// (notify_packet in ?4.5's terms).
func (s *Socket) DeliverSegment(data []byte, now time.Time) error {
	s.clockNow = now
	h, ok := unmarshalHeader(data)
	if !ok {
		return ErrInvalidSegment
	}
	if h.conv != s.conv {
		return ErrInvalidSegment
	}
	payload := data[headerLen:]
	s.lastActivity = now

	if h.flags&FlagRst != 0 {
		s.enterState(StateClosed)
		return nil
	}

	switch s.state {
	case StateListen:
		if h.flags&FlagCtl != 0 {
			s.handlePassiveConnect(h, payload, now)
		}
		return nil
	case StateSynSent:
		if h.flags&FlagCtl != 0 {
			s.handleConnectReply(h, payload, now)
		}
		return nil
	}

	s.processAck(h, now)
	if h.flags&FlagFin != 0 || len(payload) > 0 {
		s.processData(h, payload, now)
	}
	return nil
}

func (s *Socket) handlePassiveConnect(h header, payload []byte, now time.Time) {
	opts, ok := decodeOptions(payload)
	if !ok {
		return
	}
	if opts.mss > 0 && uint32(opts.mss) < s.mss {
		s.mss = uint32(opts.mss)
	}
	s.scaleEnabled = opts.haveScale
	s.finAckEnabled = opts.finAck
	s.rcvNxt = h.seq + 1
	s.sndWnd = uint32(h.wnd)
	s.enterState(StateSynReceived)

	reply := handshakeOptions{mss: uint16(s.mss), haveScale: s.scaleEnabled, finAck: s.finAckEnabled}
	seg := &segment{hdr: header{conv: s.conv, seq: s.sndNxt, ack: s.rcvNxt, flags: FlagCtl, wnd: uint16(s.rcvWnd)}, data: encodeOptions(reply)}
	s.retransQueue = append(s.retransQueue, seg)
	s.sndNxt++
	s.scheduleRTO(now)
	s.transmitSegment(seg, now)
	s.enterState(StateEstablished)
}

func (s *Socket) handleConnectReply(h header, payload []byte, now time.Time) {
	opts, ok := decodeOptions(payload)
	if !ok {
		return
	}
	s.ackRetransQueue(h.ack)
	if opts.mss > 0 && uint32(opts.mss) < s.mss {
		s.mss = uint32(opts.mss)
	}
	s.scaleEnabled = opts.haveScale && s.finAckWanted
	s.finAckEnabled = opts.finAck && s.finAckWanted
	s.rcvNxt = h.seq + 1
	s.sndWnd = uint32(h.wnd)
	s.enterState(StateEstablished)
	s.transmitPending(now)
}

// processAck folds an incoming ack into the send-side state: releasing
// acknowledged segments from the retransmission queue and updating the
// congestion window (?4.5's retransmission/fast-retransmit sections).
func (s *Socket) processAck(h header, now time.Time) {
	if h.ack == s.sndUna {
		if len(s.retransQueue) > 0 {
			s.onDupAck()
		}
		return
	}
	if seqGT(h.ack, s.sndUna) {
		acked := s.ackRetransQueue(h.ack)
		if acked {
			s.onNewAck()
			if len(s.retransQueue) > 0 {
				s.scheduleRTO(now)
			} else {
				s.rtoDeadline = time.Time{}
			}
			if s.cb.Writable != nil {
				s.cb.Writable()
			}
		}
		s.transmitPending(now)
		s.checkFinAcked()
	}
}

// checkFinAcked advances the shutdown half of the state machine once the
// locally-sent FIN has been fully acknowledged (RFC 793 ?3.5).
func (s *Socket) checkFinAcked() {
	if !s.localFinSent || len(s.retransQueue) > 0 {
		return
	}
	switch s.state {
	case StateFinWait1:
		s.enterState(StateFinWait2)
	case StateClosing:
		s.enterState(StateTimeWait)
	case StateLastAck:
		s.enterState(StateClosed)
	}
}

// ackRetransQueue removes fully-acknowledged segments from the head of the
// retransmission queue and samples RTT from the oldest one removed, if it
// was never retransmitted (Karn's algorithm).
func (s *Socket) ackRetransQueue(ack uint32) bool {
	removed := false
	for len(s.retransQueue) > 0 {
		seg := s.retransQueue[0]
		if seqGT(seg.end(), ack) {
			break
		}
		if seg.xmit == 1 {
			sampleMS := uint32(s.clockNow.UnixNano()/int64(time.Millisecond)) - seg.hdr.tsval
			s.updateRTT(time.Duration(sampleMS) * time.Millisecond)
		}
		s.retransQueue = s.retransQueue[1:]
		s.sndUna = seg.end()
		removed = true
	}
	return removed
}

func (s *Socket) retransmitHead() {
	if len(s.retransQueue) == 0 {
		return
	}
	s.transmitSegment(s.retransQueue[0], s.clockNow)
}

// processData implements the ?4.5 receive path: in-order data delivers
// immediately, out-of-order data is reassembled, duplicates are dropped.
func (s *Socket) processData(h header, payload []byte, now time.Time) {
	seg := &segment{hdr: h, data: payload}
	end := seg.end()

	if seqGE(s.rcvNxt, end) {
		// Entirely a duplicate.
		s.scheduleAck(now, true)
		return
	}

	if h.seq == s.rcvNxt {
		s.deliverInOrder(seg)
		s.drainReassembly()
		s.scheduleAck(now, h.flags&FlagFin != 0)
	} else {
		s.insertReassembly(seg)
		s.scheduleAck(now, true)
	}
}

func (s *Socket) deliverInOrder(seg *segment) {
	s.recvFIFO = append(s.recvFIFO, seg.data...)
	s.rcvNxt += uint32(len(seg.data))
	if seg.hdr.flags&FlagFin != 0 {
		s.rcvNxt++
		s.remoteFinSeen = true
		s.onRemoteFin()
	}
	if len(seg.data) > 0 && s.cb.Readable != nil {
		s.cb.Readable()
	}
}

func (s *Socket) insertReassembly(seg *segment) {
	for _, existing := range s.reassembly {
		if existing.hdr.seq == seg.hdr.seq {
			return
		}
	}
	s.reassembly = append(s.reassembly, seg)
	for i := len(s.reassembly) - 1; i > 0 && s.reassembly[i].hdr.seq < s.reassembly[i-1].hdr.seq; i-- {
		s.reassembly[i], s.reassembly[i-1] = s.reassembly[i-1], s.reassembly[i]
	}
}

func (s *Socket) drainReassembly() {
	for len(s.reassembly) > 0 && s.reassembly[0].hdr.seq == s.rcvNxt {
		seg := s.reassembly[0]
		s.reassembly = s.reassembly[1:]
		s.deliverInOrder(seg)
	}
}

func (s *Socket) onRemoteFin() {
	switch s.state {
	case StateEstablished:
		s.enterState(StateCloseWait)
	case StateFinWait1:
		s.enterState(StateClosing)
	case StateFinWait2:
		s.enterState(StateTimeWait)
	}
}

// scheduleAck implements the ?4.5 delayed-ack policy: immediate for an
// out-of-order arrival, otherwise delayed by ackDelay (or immediate if
// ackDelay is zero).
func (s *Socket) scheduleAck(now time.Time, immediate bool) {
	if immediate || s.ackDelay == 0 {
		s.sendAck(now)
		return
	}
	if !s.pendingAck {
		s.pendingAck = true
		s.ackDeadline = now.Add(s.ackDelay)
	}
}

func (s *Socket) sendAck(now time.Time) {
	s.pendingAck = false
	s.lastAckSent = s.rcvNxt
	h := header{conv: s.conv, seq: s.sndNxt, ack: s.rcvNxt, wnd: uint16(s.rcvWnd)}
	s.send(h.marshal())
}

func (s *Socket) sendKeepalive(now time.Time) {
	s.lastActivity = now
	h := header{conv: s.conv, seq: s.sndNxt - 1, ack: s.rcvNxt, wnd: uint16(s.rcvWnd)}
	s.send(h.marshal())
}

// Send implements the ?4.5 send path: enqueue into the send FIFO, then
// segment and transmit within the window, subject to the Nagle rule.
func (s *Socket) Send(data []byte) (int, error) {
	if s.state != StateEstablished && s.state != StateCloseWait {
		return 0, ErrNotConnected
	}
	s.sendFIFO = append(s.sendFIFO, data...)
	s.transmitPending(s.clockNow)
	return len(data), nil
}

func (s *Socket) transmitPending(now time.Time) {
	window := s.cwnd
	if s.sndWnd < window {
		window = s.sndWnd
	}
	for len(s.sendFIFO) > 0 {
		inFlight := s.inFlight()
		if inFlight >= window {
			break
		}
		room := window - inFlight
		if room < s.mss && inFlight > 0 {
			// Nagle: hold back a sub-MSS segment while data is in flight.
			break
		}
		n := s.mss
		if n > room {
			n = room
		}
		if uint32(len(s.sendFIFO)) < n {
			n = uint32(len(s.sendFIFO))
		}
		chunk := s.sendFIFO[:n]
		s.sendFIFO = s.sendFIFO[n:]
		seg := &segment{hdr: header{conv: s.conv, seq: s.sndNxt, wnd: uint16(s.rcvWnd)}, data: chunk}
		s.sndNxt = seg.end()
		s.retransQueue = append(s.retransQueue, seg)
		s.transmitSegment(seg, now)
	}
	if len(s.retransQueue) > 0 && s.rtoDeadline.IsZero() {
		s.scheduleRTO(now)
	}
}

// Recv implements the ?4.5 receive path's consumer side: drains delivered,
// in-order bytes into buf.
func (s *Socket) Recv(buf []byte) (int, error) {
	if len(s.recvFIFO) == 0 {
		if s.state == StateCloseWait || s.state == StateClosing || s.state == StateTimeWait || s.state == StateClosed {
			return 0, ErrClosed
		}
		return 0, ErrWouldBlock
	}
	n := copy(buf, s.recvFIFO)
	s.recvFIFO = s.recvFIFO[n:]
	return n, nil
}

// Close implements ?4.5's shutdown: graceful FIN/ACK teardown when both
// sides negotiated FIN-ACK support, otherwise an immediate flush-and-close;
// force always sends RST and jumps straight to CLOSED.
func (s *Socket) Close(force bool, now time.Time) error {
	s.clockNow = now
	if s.state == StateClosed {
		return nil
	}
	if force {
		h := header{conv: s.conv, flags: FlagRst}
		s.send(h.marshal())
		s.enterState(StateClosed)
		return nil
	}
	if !s.finAckEnabled {
		s.transmitPending(now)
		s.enterState(StateClosed)
		return nil
	}
	if s.localFinSent {
		return nil
	}
	s.localFinSent = true
	seg := &segment{hdr: header{conv: s.conv, seq: s.sndNxt, flags: FlagFin, wnd: uint16(s.rcvWnd)}}
	s.sndNxt = seg.end()
	s.retransQueue = append(s.retransQueue, seg)
	s.scheduleRTO(now)

	// Transition before transmitting: a synchronous transport can deliver
	// the peer's ack of this FIN before transmitSegment returns, and
	// checkFinAcked needs to see the post-FIN state to close out cleanly.
	switch s.state {
	case StateEstablished:
		s.enterState(StateFinWait1)
	case StateCloseWait:
		s.enterState(StateLastAck)
	}
	s.transmitSegment(seg, now)
	return nil
}

func seqGT(a, b uint32) bool { return int32(a-b) > 0 }
func seqGE(a, b uint32) bool { return int32(a-b) >= 0 }
