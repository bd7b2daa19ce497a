// Package signing produces and checks cryptographic signatures over
// goal events so that independently-running workers cannot be spoofed
// into executing, or trusting, a tampered goal.
//
// The signed payload is NOT the wire bytes of a goal event. Events are
// re-encoded by transports, so both signing and verification serialize
// the event through Normalize: a canonical JSON rendition of exactly
// the security-relevant fields, with absent optional fields collapsed
// to a single sentinel value. Anything outside the enumerated field set
// (URLs, extension data, error text, the signature itself) is excluded
// from the payload by construction and therefore cannot be protected -
// nor exploited - through it.
//
// Verification accepts an ordered list of trusted keys, each bound to a
// signature algorithm. A signature is valid if any configured key
// validates it under its bound algorithm; key rotation is handled by
// keeping old keys in the list. The signing key's public half is always
// a valid verification key so single-key deployments round-trip.
package signing
