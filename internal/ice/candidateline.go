package ice

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// EncodeCandidateLine renders a candidate as the opaque
// "candidate:..." tuple spec.md's external interfaces hand to the
// embedder for trickling, independent of any SDP/SIP framing (explicitly
// out of scope).
func EncodeCandidateLine(c *Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.ComponentID, c.Transport, c.Priority, c.Addr.IP, c.Addr.Port, c.Type.lineType())
	if c.Type != HOST {
		fmt.Fprintf(&b, " raddr %s rport %d", c.Base.IP, c.Base.Port)
	}
	return b.String()
}

func (t CandidateType) lineType() string {
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
		return "host"
	}
}

func parseTransport(s string) (Transport, bool) {
	switch s {
	case "UDP":
		return UDP, true
	case "tcp-act":
		return TCPActive, true
	case "tcp-pass":
		return TCPPassive, true
	case "tcp-so":
		return TCPSO, true
	default:
		return 0, false
	}
}

func parseLineType(s string) (CandidateType, bool) {
	switch s {
	case "host":
		return HOST, true
	case "srflx":
		return SERVER_REFLEXIVE, true
	case "prflx":
		return PEER_REFLEXIVE, true
	case "relay":
		return RELAYED, true
	default:
		return 0, false
	}
}

// ParseCandidateLine parses the tuple EncodeCandidateLine produces, for
// set_remote_candidates (spec.md ?6). streamID comes from whatever channel
// carried the line; componentID is read from the line's second field.
func ParseCandidateLine(line string, streamID int) (*Candidate, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "candidate:")
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, ErrInvalidCandidateLine
	}

	componentID, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, ErrInvalidCandidateLine
	}
	trans, ok := parseTransport(fields[2])
	if !ok {
		return nil, ErrInvalidCandidateLine
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, ErrInvalidCandidateLine
	}
	ip := net.ParseIP(fields[4])
	if ip == nil {
		return nil, ErrInvalidCandidateLine
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, ErrInvalidCandidateLine
	}
	if fields[6] != "typ" {
		return nil, ErrInvalidCandidateLine
	}
	typ, ok := parseLineType(fields[7])
	if !ok {
		return nil, ErrInvalidCandidateLine
	}

	addr := TransportAddress{IP: ip, Port: port, Trans: trans}
	base := addr
	if len(fields) >= 10 && fields[8] == "raddr" {
		if rip := net.ParseIP(fields[9]); rip != nil {
			base = TransportAddress{IP: rip, Port: addr.Port, Trans: trans}
			if len(fields) >= 12 && fields[10] == "rport" {
				if rport, err := strconv.Atoi(fields[11]); err == nil {
					base.Port = rport
				}
			}
		}
	}

	return &Candidate{
		Type:        typ,
		Transport:   trans,
		Addr:        addr,
		Base:        base,
		Priority:    uint32(priority),
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  fields[0],
	}, nil
}
