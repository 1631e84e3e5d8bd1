package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFailedComponentRequiresRemoteCandidate checks ?4.4.11: a component
// with no remote candidates can never be declared FAILED, even if every
// pair on its checklist (there can be none) has failed -- allPairsFailed
// is the guard checkComponentFailed relies on.
func TestFailedComponentRequiresRemoteCandidate(t *testing.T) {
	c := newComponent(1, 1)

	local := clCand(1, 100, "1.1.1.1", 1000)
	remote := clCand(1, 100, "2.2.2.2", 2000)
	failedPair := newCandidatePair(0, local, remote)
	failedPair.State = Failed

	// No remote candidates recorded yet: even an all-FAILED checklist must
	// not report the component as failed.
	assert.False(t, c.allPairsFailed([]*CandidatePair{failedPair}))

	// Once the component has learned of a remote candidate and every pair
	// for it has failed, the component is allowed to fail.
	c.addRemoteCandidate(remote)
	assert.True(t, c.allPairsFailed([]*CandidatePair{failedPair}))
}

// TestComponentNotFailedWhileAnyPairOutstanding checks that a component
// with a remote candidate is not reported failed while at least one pair
// has not reached FAILED.
func TestComponentNotFailedWhileAnyPairOutstanding(t *testing.T) {
	c := newComponent(1, 1)
	remote := clCand(1, 100, "2.2.2.2", 2000)
	c.addRemoteCandidate(remote)

	failedPair := newCandidatePair(0, clCand(1, 100, "1.1.1.1", 1000), remote)
	failedPair.State = Failed
	waitingPair := newCandidatePair(1, clCand(1, 90, "1.1.1.2", 1001), remote)
	waitingPair.State = Waiting

	assert.False(t, c.allPairsFailed([]*CandidatePair{failedPair, waitingPair}))
}

// TestCheckComponentFailedSetsState exercises the Agent-level wiring: once
// every pair for a component with a remote candidate has failed,
// checkComponentFailed must transition the component to FAILED.
func TestCheckComponentFailedSetsState(t *testing.T) {
	a := NewAgent(true, false, true, false)
	streamID := a.AddStream(1)
	s := a.stream(streamID)
	c := s.component(1)

	remote := clCand(1, 100, "2.2.2.2", 2000)
	c.addRemoteCandidate(remote)

	p := newCandidatePair(0, clCand(1, 100, "1.1.1.1", 1000), remote)
	p.State = Failed
	s.checklist.pairs = []*CandidatePair{p}

	a.checkComponentFailed(c)

	assert.Equal(t, ComponentFailed, c.State)
}
