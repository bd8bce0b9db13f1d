// Package secret generates shared TOTP secrets and converts them between
// their raw byte form and the Base32 text form used for storage and
// transport.
//
// Secrets are 20 bytes of CSPRNG output (RFC 4226/6238 recommendation),
// which encodes to exactly 32 unpadded Base32 characters.
package secret
