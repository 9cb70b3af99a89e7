package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// TOTP parameters per RFC 6238: 30-second step, 6 digits, HMAC-SHA1.
const (
	totpStep   = 30 * time.Second
	totpDigits = 6
)

// totpSkewSteps is the number of steps accepted on either side of "now" to
// absorb clock drift between server and authenticator.
const totpSkewSteps = 1

// GenerateTOTPSecret returns a new base32-encoded 160-bit TOTP secret. The
// secret is shown to the user once at MFA setup and stored server-side.
func GenerateTOTPSecret() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

// VerifyTOTP checks code against the base32 secret at time at, accepting
// totpSkewSteps steps of drift in either direction. Comparison is constant-time
// per candidate step.
func VerifyTOTP(secret, code string, at time.Time) (bool, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return false, fmt.Errorf("totp: bad secret: %w", err)
	}
	if len(code) != totpDigits {
		return false, nil
	}
	counter := uint64(at.Unix()) / uint64(totpStep/time.Second)
	for delta := -totpSkewSteps; delta <= totpSkewSteps; delta++ {
		c := counter
		if delta < 0 {
			if uint64(-delta) > c {
				continue
			}
			c -= uint64(-delta)
		} else {
			c += uint64(delta)
		}
		want := hotp(key, c)
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// hotp computes the RFC 4226 truncated code for the given counter.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, bin%mod)
}
