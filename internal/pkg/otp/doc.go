// Package otp implements time-based one-time passwords (RFC 6238).
//
// The Engine is pure and stateless: codes are a deterministic function of
// the shared secret, the time-step counter and the configured digit
// count, so it is safe for unlimited concurrent use. Verification checks
// a window of adjacent time steps to tolerate clock skew and network
// delay.
package otp
