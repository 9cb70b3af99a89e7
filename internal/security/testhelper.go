package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"time"
)

// NewTestTokenProvider returns a TokenProvider signing ES256 with a fresh
// P-256 key generated per call. For unit tests only; nothing signed with it
// survives the process.
func NewTestTokenProvider() (*TokenProvider, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate test key: %w", err)
	}
	return NewTokenProvider(key, &key.PublicKey, "test-issuer", "test-audience", 15*time.Minute, 24*time.Hour), nil
}
