package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestComputePriorityCanonical checks the worked example from RFC 5245
// ?4.1.2.1: type_pref=110 (peer-reflexive), local_pref=1, component_id=1
// yields priority 1845494271.
func TestComputePriorityCanonical(t *testing.T) {
	priority := computePriority(PEER_REFLEXIVE, UDP, 1)
	assert.Equal(t, uint32(1845494271), priority)
}

// TestComputePriorityTypeOrdering checks ?4.1.2.1's required type
// preference ordering is preserved end to end through computePriority:
// host > peer-reflexive > server-reflexive > relayed, for a fixed
// transport and component.
func TestComputePriorityTypeOrdering(t *testing.T) {
	host := computePriority(HOST, UDP, 1)
	srflx := computePriority(SERVER_REFLEXIVE, UDP, 1)
	prflx := computePriority(PEER_REFLEXIVE, UDP, 1)
	relay := computePriority(RELAYED, UDP, 1)

	assert.True(t, host > prflx, "host (%d) should outrank prflx (%d)", host, prflx)
	assert.True(t, prflx > srflx, "prflx (%d) should outrank srflx (%d)", prflx, srflx)
	assert.True(t, srflx > relay, "srflx (%d) should outrank relay (%d)", srflx, relay)
}

// TestComputePriorityComponentOrdering checks that, all else equal, a
// lower component id yields a higher priority (the "256 - component_id"
// term), since component 1 is conventionally RTP and should be preferred.
func TestComputePriorityComponentOrdering(t *testing.T) {
	c1 := computePriority(HOST, UDP, 1)
	c2 := computePriority(HOST, UDP, 2)
	assert.True(t, c1 > c2, "component 1 (%d) should outrank component 2 (%d)", c1, c2)
}

// TestComputePriorityTCPHalvesTypePreference checks RFC 6544 ?4.2: TCP
// candidates use half the UDP type preference.
func TestComputePriorityTCPHalvesTypePreference(t *testing.T) {
	udp := computePriority(HOST, UDP, 1)
	tcp := computePriority(HOST, TCPActive, 1)
	assert.True(t, tcp < udp, "TCP priority (%d) should be less than UDP priority (%d)", tcp, udp)
}

func TestComputeFoundationStable(t *testing.T) {
	base := TransportAddress{IP: []byte{192, 168, 1, 1}, Port: 1000, Trans: UDP}
	f1 := computeFoundation(HOST, base, "")
	f2 := computeFoundation(HOST, base, "")
	assert.Equal(t, f1, f2)

	other := TransportAddress{IP: []byte{192, 168, 1, 2}, Port: 1000, Trans: UDP}
	f3 := computeFoundation(HOST, other, "")
	assert.NotEqual(t, f1, f3)
}
