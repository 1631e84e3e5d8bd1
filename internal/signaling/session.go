package signaling

import "context"

// Credentials is one side's ICE username fragment and password (spec.md
// ?6 set/get_local_credentials), exchanged once at session start.
type Credentials struct {
	Ufrag    string
	Password string
}

// A Session is one peer's signaling channel: local and remote ICE
// credentials and candidate lines, trickled opaquely per spec.md's
// non-goal on SDP/SIP parsing (no offer/answer, just candidate tuples).
type Session struct {
	Context context.Context

	// RemoteCredentials yields exactly one value, the peer's ufrag/password,
	// before any candidate lines arrive.
	RemoteCredentials <-chan Credentials

	// RemoteCandidates yields "candidate:..." lines as the peer trickles
	// them, closed once the peer signals end-of-candidates.
	RemoteCandidates <-chan string

	SendCredentials    func(Credentials) error
	SendLocalCandidate func(line string) error
}

// Done reports session cancellation the same way ctx.Done() does; present
// for callers that don't want to import context themselves.
func (s *Session) Done() <-chan struct{} { return s.Context.Done() }

func (s *Session) Err() error { return s.Context.Err() }
