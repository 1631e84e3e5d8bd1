// Package stun implements message framing, attribute encoding, and
// transaction bookkeeping for STUN (RFC 5389) and the ICE/TURN usages built
// on top of it (RFC 5245, RFC 5766). It is a pure codec: inbound bytes in,
// parsed Messages out; outbound Messages in, bytes out. It does not perform
// I/O.
package stun
