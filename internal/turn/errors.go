package turn

import "errors"

var (
	// ErrChallengeRequired is a sentinel the caller can use to recognize
	// "resend with credentials" without inspecting ProcessAllocateResponse's
	// ErrorCode directly.
	ErrChallengeRequired = errors.New("turn: server requires a credential challenge")

	// ErrAllocationMismatch is the cause the ICE agent wraps when a relayed
	// candidate's Refresh gets a terminal error response; no function in
	// this package returns it.
	ErrAllocationMismatch = errors.New("turn: response does not match an outstanding allocation")
)
