package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pairCand(componentID int, priority uint32, foundation string) *Candidate {
	return &Candidate{
		ComponentID: componentID,
		Priority:    priority,
		Foundation:  foundation,
		Addr:        TransportAddress{IP: []byte{127, 0, 0, 1}, Port: 1, Trans: UDP},
		Base:        TransportAddress{IP: []byte{127, 0, 0, 1}, Port: 1, Trans: UDP},
	}
}

// TestCandidatePairFoundationSeparator checks ?3's invariant that a pair's
// foundation is its candidates' foundations joined by ":".
func TestCandidatePairFoundationSeparator(t *testing.T) {
	local := pairCand(1, 100, "Aaa")
	remote := pairCand(1, 200, "Bbb")
	p := newCandidatePair(0, local, remote)
	assert.Equal(t, "Aaa:Bbb", p.Foundation)
}

// TestCandidatePairPriorityFormula checks the exact RFC 5245 ?5.7.2 formula:
// 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0).
func TestCandidatePairPriorityFormula(t *testing.T) {
	local := pairCand(1, 100, "a")
	remote := pairCand(1, 200, "b")
	p := newCandidatePair(0, local, remote)

	// Controlling agent: G = local priority, D = remote priority.
	g, d := uint64(100), uint64(200)
	want := minU64(g, d)<<32 + maxU64(g, d)<<1
	assert.Equal(t, want, p.Priority(true))

	// Controlled agent: G and D swap.
	g, d = uint64(200), uint64(100)
	want = minU64(g, d)<<32 + maxU64(g, d)<<1 + 1
	assert.Equal(t, want, p.Priority(false))
}

// TestCandidatePairPriorityMonotonic checks that increasing either
// candidate's priority, with the other held fixed, never decreases the
// pair's priority -- a pair built from uniformly higher candidate
// priorities must itself rank no lower.
func TestCandidatePairPriorityMonotonic(t *testing.T) {
	base := newCandidatePair(0, pairCand(1, 100, "a"), pairCand(1, 100, "b"))
	higherLocal := newCandidatePair(1, pairCand(1, 150, "a"), pairCand(1, 100, "b"))
	higherRemote := newCandidatePair(2, pairCand(1, 100, "a"), pairCand(1, 150, "b"))
	higherBoth := newCandidatePair(3, pairCand(1, 150, "a"), pairCand(1, 150, "b"))

	for _, controlling := range []bool{true, false} {
		assert.True(t, higherLocal.Priority(controlling) >= base.Priority(controlling))
		assert.True(t, higherRemote.Priority(controlling) >= base.Priority(controlling))
		assert.True(t, higherBoth.Priority(controlling) >= higherLocal.Priority(controlling))
		assert.True(t, higherBoth.Priority(controlling) >= higherRemote.Priority(controlling))
	}
}

// TestCandidatePairPriorityTiebreakBreaksTies checks that, for equal
// min/max candidate priorities, the tiebreak bit is the only thing that
// can differ a controlling pair's priority from its mirrored controlled
// pair's priority.
func TestCandidatePairPriorityTiebreakBreaksTies(t *testing.T) {
	p := newCandidatePair(0, pairCand(1, 100, "a"), pairCand(1, 200, "b"))
	assert.NotEqual(t, p.Priority(true), p.Priority(false))
	assert.Equal(t, uint64(1), p.Priority(false)-p.Priority(true))
}
