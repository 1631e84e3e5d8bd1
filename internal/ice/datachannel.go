package ice

import (
	"errors"
	"io"
	"net"
	"time"
)

// Conn adapts one component's selected pair to net.Conn, so a pseudo-TCP
// engine or any other stream consumer can sit on top of ICE without
// knowing about streams/components. Reads are fed by DeliverDatagram;
// writes go through Agent.Send.
type Conn struct {
	agent       *Agent
	streamID    int
	componentID int

	in     chan []byte
	rtimer *time.Timer
}

// Conn returns (creating if necessary) the net.Conn view of a component's
// data path.
func (a *Agent) Conn(streamID, componentID int) (*Conn, error) {
	s := a.stream(streamID)
	if s == nil {
		return nil, ErrUnknownStream
	}
	c := s.component(componentID)
	if c == nil {
		return nil, ErrUnknownComponent
	}
	if c.dataConn == nil {
		c.dataConn = &Conn{
			agent:       a,
			streamID:    streamID,
			componentID: componentID,
			in:          make(chan []byte, 64),
			rtimer:      time.NewTimer(24 * time.Hour),
		}
	}
	return c.dataConn, nil
}

func (conn *Conn) Read(b []byte) (int, error) {
	select {
	case data, ok := <-conn.in:
		if !ok {
			return 0, io.EOF
		}
		n := copy(b, data)
		return n, nil
	case <-conn.rtimer.C:
		return 0, errors.New("ice: read timeout")
	}
}

func (conn *Conn) Write(b []byte) (int, error) {
	return conn.agent.Send(conn.streamID, conn.componentID, b)
}

func (conn *Conn) Close() error {
	return nil
}

func (conn *Conn) LocalAddr() net.Addr {
	local, _, _ := conn.agent.GetSelectedPair(conn.streamID, conn.componentID)
	return local.netUDPAddr()
}

func (conn *Conn) RemoteAddr() net.Addr {
	_, remote, _ := conn.agent.GetSelectedPair(conn.streamID, conn.componentID)
	return remote.netUDPAddr()
}

func (conn *Conn) SetDeadline(t time.Time) error {
	return conn.SetReadDeadline(t)
}

func (conn *Conn) SetReadDeadline(t time.Time) error {
	if !conn.rtimer.Stop() {
		select {
		case <-conn.rtimer.C:
		default:
		}
	}
	if !t.IsZero() {
		conn.rtimer.Reset(time.Until(t))
	}
	return nil
}

func (conn *Conn) SetWriteDeadline(t time.Time) error {
	return nil
}
