// Package turn implements the stateless request/response helpers for the
// TURN (RFC 5766) usage ICE discovery items rely on: building Allocate and
// Refresh requests (including the challenged-retry dance over REALM/NONCE),
// and interpreting their responses. It holds no socket and no retry loop --
// callers drive it with the stun package's Timer and TransactionTable.
package turn
