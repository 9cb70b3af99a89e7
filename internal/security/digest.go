package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSecret returns a hex-encoded SHA-256 digest of an opaque secret (refresh
// token, OTP code). Only digests are persisted; the raw secret is returned to the
// client once and never stored.
func HashSecret(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// SecretEqual compares the provided secret against a stored digest in constant
// time. Returns true only on an exact match.
func SecretEqual(provided, storedHash string) bool {
	providedHash := HashSecret(provided)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
