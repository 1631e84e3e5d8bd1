package ptcp

import "errors"

// Programmer errors (?7): invalid use of the socket API by the embedder.
var (
	ErrNotConnected  = errors.New("ptcp: not connected")
	ErrAlreadyOpen   = errors.New("ptcp: connect called twice")
	ErrClosed        = errors.New("ptcp: socket closed")
	ErrWouldBlock    = errors.New("ptcp: would block")
	ErrInvalidSegment = errors.New("ptcp: invalid segment")
)
