package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clCand returns a Candidate with a specified priority and address. Not
// all Candidate fields are populated.
func clCand(componentID int, priority uint32, ip string, port int) *Candidate {
	return &Candidate{
		ComponentID: componentID,
		Priority:    priority,
		Transport:   UDP,
		Addr:        TransportAddress{IP: net.ParseIP(ip), Port: port, Trans: UDP},
	}
}

func TestSortPruneAndCapOrdersByPriority(t *testing.T) {
	// Three pairs, each with a distinct address, initially *not* in
	// priority order (100, 99, 101).
	cl := &checklist{}
	cl.pairs = []*CandidatePair{
		newCandidatePair(1, clCand(1, 100, "1.1.1.1", 1000), clCand(1, 100, "1.1.1.1", 1001)),
		newCandidatePair(2, clCand(1, 99, "2.2.2.2", 2000), clCand(1, 99, "2.2.2.2", 2001)),
		newCandidatePair(3, clCand(1, 101, "3.3.3.3", 3000), clCand(1, 101, "3.3.3.3", 3001)),
	}

	cl.sortPruneAndCap(true)
	require.Len(t, cl.pairs, 3)
	assert.Equal(t, uint32(101), cl.pairs[0].Local.Priority)
	assert.Equal(t, uint32(100), cl.pairs[1].Local.Priority)
	assert.Equal(t, uint32(99), cl.pairs[2].Local.Priority)
}

func TestSortPruneAndCapPrunesRedundant(t *testing.T) {
	// Host candidate and server-reflexive candidate sharing a base.
	hostCand := clCand(1, 100, "1.1.1.1", 1000)
	hostCand.Base = hostCand.Addr
	srflxCand := clCand(1, 99, "1.2.3.4", 1234)
	srflxCand.Base = hostCand.Base

	cl := &checklist{}
	cl.pairs = []*CandidatePair{
		newCandidatePair(1, hostCand, clCand(1, 100, "5.5.5.5", 5555)),
		newCandidatePair(2, srflxCand, clCand(1, 99, "5.5.5.5", 5555)),
	}

	cl.sortPruneAndCap(true)
	require.Len(t, cl.pairs, 1)
	assert.Equal(t, uint32(100), cl.pairs[0].Local.Priority)
}

func TestSortPruneAndCapSkipsInProgress(t *testing.T) {
	hostCand := clCand(1, 100, "1.1.1.1", 1000)
	hostCand.Base = hostCand.Addr
	srflxCand := clCand(1, 99, "1.2.3.4", 1234)
	srflxCand.Base = hostCand.Base

	cl := &checklist{}
	cl.pairs = []*CandidatePair{
		newCandidatePair(1, hostCand, clCand(1, 100, "5.5.5.5", 5555)),
		newCandidatePair(2, srflxCand, clCand(1, 99, "5.5.5.5", 5555)),
	}
	cl.pairs[1].State = InProgress

	cl.sortPruneAndCap(true)
	assert.Len(t, cl.pairs, 2)
}

// TestReadyComponentHasNoFrozenOrWaitingPairs checks ?4.4.7: once a
// component reaches READY, updateComponentReadiness must have cancelled
// every non-terminal FROZEN/WAITING pair for that component.
func TestReadyComponentHasNoFrozenOrWaitingPairs(t *testing.T) {
	a := NewAgent(true, false, true, false)
	streamID := a.AddStream(1)
	s := a.stream(streamID)
	cl := s.checklist
	c := s.component(1)

	frozen := newCandidatePair(0, clCand(1, 10, "1.1.1.1", 1), clCand(1, 10, "2.2.2.2", 1))
	waiting := newCandidatePair(1, clCand(1, 20, "1.1.1.1", 2), clCand(1, 20, "2.2.2.2", 2))
	waiting.State = Waiting
	winner := newCandidatePair(2, clCand(1, 200, "1.1.1.1", 3), clCand(1, 200, "2.2.2.2", 3))
	winner.State = Succeeded

	cl.pairs = []*CandidatePair{frozen, waiting, winner}

	a.nominate(cl, winner)

	assert.Equal(t, Ready, c.State)
	for _, p := range cl.pairs {
		if p.Component != c.ID {
			continue
		}
		assert.NotEqual(t, Frozen, p.State)
		assert.NotEqual(t, Waiting, p.State)
	}
}

// TestReadyComponentHasExactlyOneSelectedPair checks ?4.4.7: when a
// higher-priority pair is nominated after a lower-priority one, the
// component's selected pair is the higher-priority winner, and it is the
// only pair referenced as selected.
func TestReadyComponentHasExactlyOneSelectedPair(t *testing.T) {
	a := NewAgent(true, false, true, false)
	streamID := a.AddStream(1)
	s := a.stream(streamID)
	cl := s.checklist
	c := s.component(1)

	low := newCandidatePair(0, clCand(1, 10, "1.1.1.1", 1), clCand(1, 10, "2.2.2.2", 1))
	low.State = Succeeded
	high := newCandidatePair(1, clCand(1, 200, "1.1.1.1", 2), clCand(1, 200, "2.2.2.2", 2))
	high.State = Succeeded
	cl.pairs = []*CandidatePair{low, high}

	a.nominate(cl, low)
	a.nominate(cl, high)

	require.NotNil(t, c.selected)
	assert.True(t, c.selected == high, "expected higher-priority pair to win selection")

	selectedCount := 0
	for _, p := range cl.pairs {
		if p == c.selected {
			selectedCount++
		}
	}
	assert.Equal(t, 1, selectedCount)
}
