package ptcp

import "encoding/binary"

// handshakeOptions is the parsed form of a CONNECT segment's TLV option
// list (?4.5's "optional options (MSS, window-scale, FIN-ACK support)").
type handshakeOptions struct {
	mss        uint16
	wndScale   uint8
	haveScale  bool
	finAck     bool
}

func encodeOptions(o handshakeOptions) []byte {
	b := []byte{byte(ctlConnect)}

	b = append(b, optMSS, 2)
	var mss [2]byte
	binary.BigEndian.PutUint16(mss[:], o.mss)
	b = append(b, mss[:]...)

	if o.haveScale {
		b = append(b, optWindowScale, 1, o.wndScale)
	}
	if o.finAck {
		b = append(b, optFinAck, 0)
	}
	return b
}

func decodeOptions(data []byte) (handshakeOptions, bool) {
	var o handshakeOptions
	if len(data) < 1 || ctlOpcode(data[0]) != ctlConnect {
		return o, false
	}
	i := 1
	for i < len(data) {
		if i+2 > len(data) {
			break
		}
		kind := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			break
		}
		val := data[i : i+length]
		i += length
		switch kind {
		case optMSS:
			if length == 2 {
				o.mss = binary.BigEndian.Uint16(val)
			}
		case optWindowScale:
			if length == 1 {
				o.wndScale = val[0]
				o.haveScale = true
			}
		case optFinAck:
			o.finAck = true
		}
	}
	return o, true
}
