package ice

import (
	"fmt"

	"github.com/lanikai/goice/internal/stun"
)

// CandidatePairState is ?4.4.4's state machine: FROZEN -> WAITING ->
// IN_PROGRESS -> {SUCCEEDED, DISCOVERED, FAILED}, with CANCELLED reachable
// from any non-terminal state.
type CandidatePairState int

const (
	Frozen CandidatePairState = iota
	Waiting
	InProgress
	Succeeded
	Discovered
	Failed
	Cancelled
)

func (s CandidatePairState) String() string {
	switch s {
	case Frozen:
		return "FROZEN"
	case Waiting:
		return "WAITING"
	case InProgress:
		return "IN_PROGRESS"
	case Succeeded:
		return "SUCCEEDED"
	case Discovered:
		return "DISCOVERED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "unknown"
	}
}

func (s CandidatePairState) terminal() bool {
	return s == Failed || s == Cancelled
}

// CandidatePair is a (local, remote) candidate tuple plus the connectivity
// check state machine driving it, ?3's candidate-pair record.
type CandidatePair struct {
	ID         string
	Local      *Candidate
	Remote     *Candidate
	Foundation string
	Component  int

	State      CandidatePairState
	Nominated  bool
	Controlled bool // true if this pair's check carried ICE-CONTROLLED

	// Transaction state for the in-flight (or most recent) check.
	transactionID   stun.TransactionID
	buffered        []byte
	timer           stun.Timer
	timerRestarted  bool
}

func newCandidatePair(seq int, local, remote *Candidate) *CandidatePair {
	id := fmt.Sprintf("pair#%d", seq)
	foundation := local.Foundation + ":" + remote.Foundation
	return &CandidatePair{
		ID:         id,
		Local:      local,
		Remote:     remote,
		Foundation: foundation,
		Component:  local.ComponentID,
	}
}

func (p *CandidatePair) String() string {
	return fmt.Sprintf("%s: %s -> %s [%s]", p.ID, p.Local.Addr, p.Remote.Addr, p.State)
}

// Priority implements ?4.4.1's pair-priority formula, where G is the
// controlling agent's candidate priority and D the controlled agent's:
// 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0).
func (p *CandidatePair) Priority(localIsControlling bool) uint64 {
	var g, d uint64
	if localIsControlling {
		g, d = uint64(p.Local.Priority), uint64(p.Remote.Priority)
	} else {
		g, d = uint64(p.Remote.Priority), uint64(p.Local.Priority)
	}
	var tiebreak uint64
	if g > d {
		tiebreak = 1
	}
	return minU64(g, d)<<32 + maxU64(g, d)<<1 + tiebreak
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
