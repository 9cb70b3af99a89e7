// Package otp issues and verifies the short-lived login codes sent to
// technicians and transporters over SMS. Only a hash of the code is
// stored; codes are single use.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Store persists hashed one-time codes keyed by the identifier (phone
// number) they were issued to. Consume removes the code as it reads it,
// so a code can match at most once.
type Store interface {
	Put(ctx context.Context, identifier, codeHash string, ttl time.Duration) error
	Consume(ctx context.Context, identifier string) (codeHash string, ok bool, err error)
}

// GenerateCode returns a random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive")
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
