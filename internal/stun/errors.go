package stun

import "errors"

// Parsing and framing errors. These are sentinel values, not wrapped, since
// callers branch on them directly (e.g. ErrIncomplete means "read more and
// retry", everything else means "discard").
var (
	// ErrIncomplete is returned by Parse when data looks like the start of a
	// STUN message but is shorter than its declared length.
	ErrIncomplete = errors.New("stun: incomplete message")

	// ErrTruncatedAttribute is returned when an attribute header or value
	// runs past the end of the message body.
	ErrTruncatedAttribute = errors.New("stun: truncated attribute")

	// ErrAttributeAfterFingerprint is returned when an attribute follows a
	// FINGERPRINT, which RFC 5389 ?15.5 requires to be last.
	ErrAttributeAfterFingerprint = errors.New("stun: attribute after FINGERPRINT")

	// ErrAttributeAfterIntegrity is returned when an attribute other than
	// FINGERPRINT follows MESSAGE-INTEGRITY, which RFC 5389 ?15.4 forbids.
	ErrAttributeAfterIntegrity = errors.New("stun: attribute after MESSAGE-INTEGRITY")

	// ErrMalformedAddress is returned when an address attribute's family or
	// length does not match a known encoding.
	ErrMalformedAddress = errors.New("stun: malformed address attribute")

	// ErrUnauthenticated names a request that required MESSAGE-INTEGRITY
	// and had none, or whose HMAC didn't match. Validate reports that case
	// through its ValidateResult; no function in this package returns it.
	ErrUnauthenticated = errors.New("stun: message failed integrity check")

	// ErrUnknownMandatoryAttribute names a message carrying a
	// comprehension-required attribute the caller doesn't recognize
	// (RFC 5389 ?7.3.1). Validate reports that case through its
	// ValidateResult; no function in this package returns it.
	ErrUnknownMandatoryAttribute = errors.New("stun: unknown comprehension-required attribute")

	// ErrUnmatchedTransaction names a response whose transaction id has no
	// corresponding entry in the transaction table; no function in this
	// package returns it.
	ErrUnmatchedTransaction = errors.New("stun: unmatched transaction id")

	// ErrTransactionTableFull is returned by the transaction table when no
	// free slot remains for a new outstanding request.
	ErrTransactionTableFull = errors.New("stun: transaction table full")
)
