package domain

import (
	"time"

	"appliance-fieldops/authcore/internal/role"
)

// Revoke reasons stored alongside a revoked session. The reason is
// surfaced to the client on the next validation attempt so a forced
// takeover reads as "logged in elsewhere" rather than a generic failure.
const (
	RevokeReasonLogout         = "logout"
	RevokeReasonDeviceConflict = "device_conflict"
	RevokeReasonRefreshReuse   = "refresh_reuse"
	RevokeReasonAdmin          = "admin"
)

type Session struct {
	ID               string
	UserID           string
	Role             role.Role
	DeviceID         string
	RefreshJti       string
	RefreshTokenHash string
	IPAddress        string
	UserAgent        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	RevokeReason     string
	CreatedAt        time.Time
}

func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Active reports whether the session can still authenticate requests.
// Revocation dominates expiry: a session that is both revoked and
// expired reports its revoke reason, never "expired".
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked() && now.Before(s.ExpiresAt)
}
