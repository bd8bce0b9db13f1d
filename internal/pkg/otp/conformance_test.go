package otp

import (
	"encoding/base32"
	"testing"
	"time"

	libotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Cross-checks the hand-rolled RFC 6238 implementation against
// pquerna/otp, which authenticator apps and the wider ecosystem agree
// with in practice.
func TestCodeMatchesReferenceLibrary(t *testing.T) {
	e := mustEngine(t, 0, 0)
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(rfcSecret)

	times := []int64{59, 1111111109, 1234567890, 1_700_000_000, 2000000000}
	for _, unix := range times {
		at := time.Unix(unix, 0)

		want, err := totp.GenerateCodeCustom(encoded, at, totp.ValidateOpts{
			Period:    30,
			Digits:    libotp.DigitsSix,
			Algorithm: libotp.AlgorithmSHA1,
		})
		if err != nil {
			t.Fatalf("reference code at %d: %v", unix, err)
		}

		if got := e.Code(rfcSecret, at); got != want {
			t.Errorf("code at %d: got %s, reference %s", unix, got, want)
		}
	}
}

func TestReferenceLibraryAcceptsOurCodes(t *testing.T) {
	e := mustEngine(t, 0, 0)
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(rfcSecret)
	at := time.Unix(1_700_000_000, 0)

	ok, err := totp.ValidateCustom(e.Code(rfcSecret, at), encoded, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    libotp.DigitsSix,
		Algorithm: libotp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("reference validate: %v", err)
	}
	if !ok {
		t.Fatalf("reference library rejected our code")
	}
}
