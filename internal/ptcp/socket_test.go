package ptcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair wires two sockets directly together, delivering each side's outbound
// segments straight into the other's DeliverSegment, so the handshake and
// transfer logic can be exercised without a real datagram transport.
type pair struct {
	client, server *Socket
	now            time.Time
}

func newPair(t *testing.T) *pair {
	p := &pair{now: time.Unix(0, 0)}
	p.client = NewSocket(42, func(b []byte) error {
		return p.server.DeliverSegment(append([]byte(nil), b...), p.now)
	}, Callbacks{})
	p.server = NewSocket(42, func(b []byte) error {
		return p.client.DeliverSegment(append([]byte(nil), b...), p.now)
	}, Callbacks{})
	return p
}

func TestHandshakeReachesEstablished(t *testing.T) {
	p := newPair(t)
	require.NoError(t, p.client.Connect(p.now))

	assert.Equal(t, StateEstablished, p.client.State())
	assert.Equal(t, StateEstablished, p.server.State())
	assert.True(t, p.client.finAckEnabled)
	assert.True(t, p.server.finAckEnabled)
}

func TestSendDeliversInOrder(t *testing.T) {
	p := newPair(t)
	require.NoError(t, p.client.Connect(p.now))

	msg := []byte("hello pseudo-tcp")
	_, err := p.client.Send(msg)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := p.server.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf[:n])
}

func TestOutOfOrderSegmentIsReassembled(t *testing.T) {
	p := newPair(t)
	require.NoError(t, p.client.Connect(p.now))

	first := []byte("AAAA")
	second := []byte("BBBB")

	// Hold the first segment back; deliver the second one first.
	seg2 := &segment{hdr: header{conv: p.server.conv, seq: p.client.sndNxt + uint32(len(first))}, data: second}
	require.NoError(t, p.server.DeliverSegment(append(seg2.hdr.marshal(), second...), p.now))

	buf := make([]byte, 64)
	_, err := p.server.Recv(buf)
	assert.Equal(t, ErrWouldBlock, err)

	seg1 := &segment{hdr: header{conv: p.server.conv, seq: p.client.sndNxt}, data: first}
	require.NoError(t, p.server.DeliverSegment(append(seg1.hdr.marshal(), first...), p.now))

	n, err := p.server.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, "AAAABBBB", string(buf[:n]))
}

func TestGracefulCloseReachesClosed(t *testing.T) {
	p := newPair(t)
	require.NoError(t, p.client.Connect(p.now))

	require.NoError(t, p.client.Close(false, p.now))
	assert.Equal(t, StateFinWait2, p.client.State())
	assert.Equal(t, StateCloseWait, p.server.State())

	require.NoError(t, p.server.Close(false, p.now))
	assert.Equal(t, StateClosed, p.server.State())
	assert.Equal(t, StateTimeWait, p.client.State())

	p.client.NotifyClock(p.now.Add(2 * time.Millisecond))
	assert.Equal(t, StateClosed, p.client.State())
}

func TestForceCloseIsImmediate(t *testing.T) {
	p := newPair(t)
	require.NoError(t, p.client.Connect(p.now))
	require.NoError(t, p.client.Close(true, p.now))
	assert.Equal(t, StateClosed, p.client.State())
	assert.Equal(t, StateClosed, p.server.State())
}

func TestGetNextClockReflectsPendingRetransmit(t *testing.T) {
	p := newPair(t)
	// Connect without letting the server reply, so the CTL segment stays
	// outstanding and the RTO deadline is live.
	p.client.send = func(b []byte) error { return nil }
	require.NoError(t, p.client.Connect(p.now))

	d, ok := p.client.GetNextClock(p.now)
	require.True(t, ok)
	assert.Equal(t, p.client.rto, d)
}
