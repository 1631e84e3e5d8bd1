package stun

import (
	"encoding/binary"
	"net"
)

const (
	familyIPv4 = 0x01
	familyIPv6 = 0x02
)

// AddAddress appends a (non-XOR) address attribute of the given type, used
// for MAPPED-ADDRESS.
func (m *Message) AddAddress(t AttrType, addr *net.UDPAddr) {
	m.Add(t, encodeAddress(addr, nil, TransactionID{}))
}

// AddXorAddress appends an XOR-obscured address attribute (RFC 5389 ?15.2),
// used for XOR-MAPPED-ADDRESS, XOR-PEER-ADDRESS, XOR-RELAYED-ADDRESS.
func (m *Message) AddXorAddress(t AttrType, addr *net.UDPAddr) {
	m.Add(t, encodeAddress(addr, magicCookieBytes[:], m.TransactionID))
}

// GetAddress decodes a (non-XOR) address attribute.
func (m *Message) GetAddress(t AttrType) (*net.UDPAddr, bool) {
	raw, ok := m.Get(t)
	if !ok {
		return nil, false
	}
	addr, err := decodeAddress(raw.Value, nil, TransactionID{})
	return addr, err == nil
}

// GetXorAddress decodes an XOR-obscured address attribute.
func (m *Message) GetXorAddress(t AttrType) (*net.UDPAddr, bool) {
	raw, ok := m.Get(t)
	if !ok {
		return nil, false
	}
	addr, err := decodeAddress(raw.Value, magicCookieBytes[:], m.TransactionID)
	return addr, err == nil
}

func encodeAddress(addr *net.UDPAddr, xorKey []byte, tid TransactionID) []byte {
	ip4 := addr.IP.To4()
	var value []byte
	if ip4 != nil {
		value = make([]byte, 8)
		value[1] = familyIPv4
		copy(value[4:8], ip4)
	} else {
		ip16 := addr.IP.To16()
		value = make([]byte, 20)
		value[1] = familyIPv6
		copy(value[4:20], ip16)
	}
	binary.BigEndian.PutUint16(value[2:4], uint16(addr.Port))

	if xorKey != nil {
		xorBytes(value[2:4], xorKey[0:2])
		xorBytes(value[4:], append(append([]byte{}, xorKey...), tid[:]...))
	}
	return value
}

func decodeAddress(value []byte, xorKey []byte, tid TransactionID) (*net.UDPAddr, error) {
	if len(value) < 4 {
		return nil, ErrMalformedAddress
	}
	family := value[1]

	port := binary.BigEndian.Uint16(value[2:4])
	var ip net.IP
	switch family {
	case familyIPv4:
		if len(value) < 8 {
			return nil, ErrMalformedAddress
		}
		ip = make(net.IP, 4)
		copy(ip, value[4:8])
	case familyIPv6:
		if len(value) < 20 {
			return nil, ErrMalformedAddress
		}
		ip = make(net.IP, 16)
		copy(ip, value[4:20])
	default:
		return nil, ErrMalformedAddress
	}

	if xorKey != nil {
		portXor := make([]byte, 2)
		copy(portXor, xorKey[0:2])
		xorBytes2(&port, portXor)
		full := append(append([]byte{}, xorKey...), tid[:]...)
		xorBytes(ip, full[:len(ip)])
	}

	return &net.UDPAddr{IP: ip, Port: int(port)}, nil
}

func xorBytes(dst []byte, key []byte) {
	for i := range dst {
		dst[i] ^= key[i]
	}
}

func xorBytes2(port *uint16, key []byte) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], *port)
	b[0] ^= key[0]
	b[1] ^= key[1]
	*port = binary.BigEndian.Uint16(b[:])
}
