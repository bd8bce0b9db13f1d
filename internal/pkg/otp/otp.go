package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	libotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultPeriod is the RFC 6238 default time step.
	DefaultPeriod = 30 * time.Second
	// DefaultDigits is the RFC 6238 default code length.
	DefaultDigits = 6
	// DefaultSkew is the narrow verification window (±1 step) used when
	// confirming a device enrollment.
	DefaultSkew uint = 1
	// NetworkDelaySkew is the wider window (±2 steps) the RFC suggests
	// for login-time verification, where network delay adds to skew.
	NetworkDelaySkew uint = 2
)

var (
	// ErrInvalidPeriod indicates a non-positive time step.
	ErrInvalidPeriod = errors.New("otp: period must be positive")
	// ErrInvalidDigits indicates a code length outside 1..8.
	ErrInvalidDigits = errors.New("otp: digits must be between 1 and 8")
)

// OTP defines the contract for TOTP operations.
type OTP interface {
	// Code computes the code for a secret at the given time.
	Code(key []byte, at time.Time) string
	// Verify reports whether a candidate code is valid at the given time
	// within ±skew time steps, and on success the matched step offset.
	Verify(code string, key []byte, at time.Time, skew uint) (ok bool, offset int)
	// KeyURI builds an otpauth:// provisioning URI for an account.
	KeyURI(accountName string, key []byte) (string, error)
}

// Engine implements OTP with HMAC-SHA1 per RFC 6238.
type Engine struct {
	issuer string
	period time.Duration
	digits int
}

// Largest representable modulus is 10^8: the truncated value is 31 bits,
// so 9+ digits could not be filled for every counter.
var pow10 = [...]uint32{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000}

// NewEngine constructs an Engine, applying RFC defaults for zero values.
//
// period must be positive and digits must be 1..8; anything else is a
// configuration error rejected here rather than at verification time.
func NewEngine(issuer string, period time.Duration, digits int) (*Engine, error) {
	if period == 0 {
		period = DefaultPeriod
	}
	if digits == 0 {
		digits = DefaultDigits
	}

	if period < 0 {
		return nil, ErrInvalidPeriod
	}
	if digits < 1 || digits > 8 {
		return nil, ErrInvalidDigits
	}

	return &Engine{
		issuer: issuer,
		period: period,
		digits: digits,
	}, nil
}

// Code computes the code for a secret at the given time.
func (e *Engine) Code(key []byte, at time.Time) string {
	return e.hotp(key, e.counter(at))
}

// Verify reports whether code is valid for key at the given time,
// checking every step offset in -skew..+skew. The candidate must be
// exactly the configured number of ASCII digits, otherwise it is
// rejected without touching the secret. All offsets are evaluated and
// compared in constant time to keep the timing profile independent of
// where (or whether) a match occurs.
func (e *Engine) Verify(code string, key []byte, at time.Time, skew uint) (bool, int) {
	if !e.wellFormed(code) {
		return false, 0
	}

	base := e.counter(at)
	matched := false
	matchedOffset := 0

	for off := -int(skew); off <= int(skew); off++ {
		counter := int64(base) + int64(off)
		if counter < 0 {
			continue
		}

		candidate := e.hotp(key, uint64(counter))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 && !matched {
			matched = true
			matchedOffset = off
		}
	}

	return matched, matchedOffset
}

// KeyURI builds an otpauth:// provisioning URI carrying the existing
// secret, so authenticator apps can enroll the device by QR code.
func (e *Engine) KeyURI(accountName string, key []byte) (string, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      uint(e.period / time.Second),
		Secret:      key,
		Digits:      libotp.Digits(e.digits),
		Algorithm:   libotp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}

	return k.URL(), nil
}

// counter buckets wall-clock time into discrete time steps. Times before
// the epoch clamp to step zero.
func (e *Engine) counter(at time.Time) uint64 {
	unix := at.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(e.period/time.Second)
}

// hotp is the RFC 4226 core: HMAC over the big-endian counter, dynamic
// truncation to a 31-bit value, reduced modulo 10^digits.
func (e *Engine) hotp(key []byte, counter uint64) string {
	mac := hmac.New(sha1.New, key)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", e.digits, value%pow10[e.digits])
}

func (e *Engine) wellFormed(code string) bool {
	if len(code) != e.digits {
		return false
	}

	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}

	return true
}
