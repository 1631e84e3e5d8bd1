package ice

import "errors"

var (
	// ErrCantCreateSocket is returned by GatherCandidates when binding the
	// host candidate's socket fails (?4.4.2's CANT_CREATE_SOCKET).
	ErrCantCreateSocket = errors.New("ice: cannot create socket")

	// ErrRedundantCandidate means the candidate would duplicate an existing
	// host candidate (same base, address, transport) and was dropped.
	ErrRedundantCandidate = errors.New("ice: redundant candidate")

	// ErrUnknownStream/ErrUnknownComponent are returned when the embedder
	// names a stream or component id that doesn't exist.
	ErrUnknownStream    = errors.New("ice: unknown stream")
	ErrUnknownComponent = errors.New("ice: unknown component")

	// ErrTooManyRemoteCandidates enforces the 25-candidate-per-component
	// cap SetRemoteCandidates applies.
	ErrTooManyRemoteCandidates = errors.New("ice: too many remote candidates")

	// ErrNoSelectedPair is returned by Send when the component has not yet
	// reached READY.
	ErrNoSelectedPair = errors.New("ice: component has no selected pair")

	// ErrInvalidCandidateLine is returned by ParseCandidateLine when a
	// tuple doesn't match EncodeCandidateLine's format.
	ErrInvalidCandidateLine = errors.New("ice: invalid candidate line")
)
