package secret

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
)

// Size is the length in bytes of a generated shared secret.
const Size = 20

// ErrMalformed indicates text that is not valid unpadded Base32.
var ErrMalformed = errors.New("secret: malformed base32 secret")

// RFC 4648 alphabet, no padding. A 20-byte secret is a multiple of 5
// bytes, so padding never appears in well-formed values.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate returns Size bytes from the system CSPRNG.
//
// An entropy failure is returned as-is; callers must treat it as fatal
// and never retry with a weaker source.
func Generate() ([]byte, error) {
	key := make([]byte, Size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secret: entropy unavailable: %w", err)
	}
	return key, nil
}

// Encode returns the Base32 text form of a raw secret.
func Encode(key []byte) string {
	return encoding.EncodeToString(key)
}

// Decode is the inverse of Encode. It returns ErrMalformed when the text
// contains characters outside the Base32 alphabet or has invalid length.
func Decode(text string) ([]byte, error) {
	key, err := encoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return key, nil
}
