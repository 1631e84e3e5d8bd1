package ice

import (
	"fmt"
	"net"
)

// Transport identifies the candidate transport protocol (RFC 5245 ?4.1.1
// generalizes UDP-only ICE to also cover TCP candidates per RFC 6544).
type Transport int

const (
	UDP Transport = iota
	TCPActive
	TCPPassive
	TCPSO // simultaneous-open
)

func (t Transport) String() string {
	switch t {
	case UDP:
		return "UDP"
	case TCPActive:
		return "tcp-act"
	case TCPPassive:
		return "tcp-pass"
	case TCPSO:
		return "tcp-so"
	default:
		return "unknown"
	}
}

func (t Transport) network() string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// TransportAddress is a tagged union of (IPv4, port) / (IPv6, port,
// scope-id), per the data model's address type. A zero value is not a
// valid address.
type TransportAddress struct {
	IP     net.IP
	Port   int
	Zone   string // IPv6 scope id, e.g. "eth0"; empty for IPv4 or unscoped.
	Trans  Transport
}

func makeTransportAddress(network string, addr net.Addr) TransportAddress {
	trans := UDP
	if network == "tcp" {
		trans = TCPActive
	}
	switch a := addr.(type) {
	case *net.UDPAddr:
		return TransportAddress{IP: a.IP, Port: a.Port, Zone: a.Zone, Trans: UDP}
	case *net.TCPAddr:
		return TransportAddress{IP: a.IP, Port: a.Port, Zone: a.Zone, Trans: trans}
	default:
		panic("ice: unsupported net.Addr type " + addr.String())
	}
}

func (ta TransportAddress) netUDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: ta.IP, Port: ta.Port, Zone: ta.Zone}
}

// String renders "proto/ip:port" for logs and foundation hashing.
func (ta TransportAddress) String() string {
	return fmt.Sprintf("%s/%s", ta.Trans.network(), net.JoinHostPort(ta.IP.String(), fmt.Sprint(ta.Port)))
}

// Equal is the full-equality variant: address, port, and scope all match.
func (ta TransportAddress) Equal(other TransportAddress) bool {
	return ta.IP.Equal(other.IP) && ta.Port == other.Port && ta.Zone == other.Zone
}

// EqualAddr is the no-port variant, used to detect redundant candidates
// sharing a base.
func (ta TransportAddress) EqualAddr(other TransportAddress) bool {
	return ta.IP.Equal(other.IP) && ta.Zone == other.Zone
}

func (ta TransportAddress) isIPv4() bool {
	return ta.IP.To4() != nil
}

// addressClass is the address-scope classification classify reports:
// loopback, link-local, private (RFC 1918 or IPv6 unique-local) or public.
type addressClass int

const (
	classPublic addressClass = iota
	classPrivate
	classLoopback
	classLinkLocal
)

func classify(ip net.IP) addressClass {
	if ip.IsLoopback() {
		return classLoopback
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return classLinkLocal
	}
	if isPrivateRFC1918(ip) {
		return classPrivate
	}
	return classPublic
}

func isPrivateRFC1918(ip net.IP) bool {
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}
	return false
}
