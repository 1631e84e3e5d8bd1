package ptcp

import "encoding/binary"

// Flags on a segment header (?4.5).
type Flag uint8

const (
	FlagNone Flag = 0
	FlagFin  Flag = 1 << 0
	FlagCtl  Flag = 1 << 1
	FlagRst  Flag = 1 << 2
)

// Control-segment opcodes, carried as the first byte of a CTL segment's
// payload during the handshake.
type ctlOpcode byte

const (
	ctlConnect ctlOpcode = 0
)

// Handshake option kinds, TLV-encoded after the CONNECT opcode.
const (
	optMSS         byte = 1
	optWindowScale byte = 2
	optFinAck      byte = 3
)

const headerLen = 24

// header is the 24-byte pseudo-TCP segment header (?4.5).
type header struct {
	conv  uint32
	seq   uint32
	ack   uint32
	flags Flag
	wnd   uint16
	tsval uint32
	tsecr uint32
}

func (h header) marshal() []byte {
	b := make([]byte, headerLen)
	binary.BigEndian.PutUint32(b[0:4], h.conv)
	binary.BigEndian.PutUint32(b[4:8], h.seq)
	binary.BigEndian.PutUint32(b[8:12], h.ack)
	b[12] = byte(h.flags)
	binary.BigEndian.PutUint16(b[13:15], h.wnd)
	binary.BigEndian.PutUint32(b[16:20], h.tsval)
	binary.BigEndian.PutUint32(b[20:24], h.tsecr)
	return b
}

func unmarshalHeader(b []byte) (header, bool) {
	if len(b) < headerLen {
		return header{}, false
	}
	return header{
		conv:  binary.BigEndian.Uint32(b[0:4]),
		seq:   binary.BigEndian.Uint32(b[4:8]),
		ack:   binary.BigEndian.Uint32(b[8:12]),
		flags: Flag(b[12]),
		wnd:   binary.BigEndian.Uint16(b[13:15]),
		tsval: binary.BigEndian.Uint32(b[16:20]),
		tsecr: binary.BigEndian.Uint32(b[20:24]),
	}, true
}

// segment is one entry in the send queue or reassembly list: a header plus
// its payload, with retransmission bookkeeping (?4.5's "ordered segments
// with seq, len, flags, xmit counter").
type segment struct {
	hdr  header
	data []byte
	xmit int
}

func (s *segment) end() uint32 {
	if s.hdr.flags&FlagCtl != 0 {
		return s.hdr.seq + 1
	}
	n := uint32(len(s.data))
	if s.hdr.flags&FlagFin != 0 {
		n++
	}
	return s.hdr.seq + n
}
