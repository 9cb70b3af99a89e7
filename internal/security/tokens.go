// Package security provides password hashing, opaque secret digests, JWT
// token issuance/validation, TOTP verification, and PEM key loading.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"appliance-fieldops/authcore/internal/role"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds JWT claims for the access token. The session id binds the
// token to one session row; the device id binds it to the fingerprint the
// session was created with.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	DeviceID  string `json:"device_id"`
}

// RefreshClaims holds JWT claims for the refresh token (includes jti for rotation).
type RefreshClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or
// ES256. Tokens are always signature-verified on validation; a decode without
// verification is never offered.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key
// (RS256 or ES256). issuer and audience are set on claims and checked on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given session, user, role,
// and device. Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(sessionID, userID string, r role.Role, deviceID string) (token string, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      r.String(),
		SessionID: sessionID,
		DeviceID:  deviceID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token, its jti
// (for rotation binding), and expiration time. Caller should store jti on the session.
func (p *TokenProvider) IssueRefresh(sessionID, userID string, r role.Role) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      r.String(),
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return p.publicKey, nil
	default:
		return nil, ErrInvalidToken
	}
}

func (p *TokenProvider) checkRegistered(rc jwt.RegisteredClaims) error {
	if rc.Issuer != p.issuer {
		return ErrInvalidToken
	}
	for _, a := range rc.Audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrInvalidToken
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud)
// and parses the role claim strictly. Returns sessionID, userID, role, deviceID.
func (p *TokenProvider) ValidateAccess(tokenString string) (sessionID, userID string, r role.Role, deviceID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", "", "", ErrInvalidToken
	}
	if err := p.checkRegistered(claims.RegisteredClaims); err != nil {
		return "", "", "", "", err
	}
	r, err = role.Parse(claims.Role)
	if err != nil {
		return "", "", "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.Subject, r, claims.DeviceID, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
// Returns sessionID, jti, userID, role.
func (p *TokenProvider) ValidateRefresh(tokenString string) (sessionID, jti, userID string, r role.Role, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return "", "", "", "", ErrInvalidToken
	}
	if err := p.checkRegistered(claims.RegisteredClaims); err != nil {
		return "", "", "", "", err
	}
	r, err = role.Parse(claims.Role)
	if err != nil {
		return "", "", "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.ID, claims.Subject, r, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
