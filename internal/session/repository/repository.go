package repository

import (
	"context"
	"time"

	"appliance-fieldops/authcore/internal/session/domain"
)

type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)

	// Revoke marks a session revoked with the given reason. Revoking an
	// already-revoked session is a no-op; the original reason is kept.
	// Returns true when this call performed the transition.
	Revoke(ctx context.Context, id, reason string) (bool, error)
	RevokeAllByUser(ctx context.Context, userID, reason string) (int64, error)
	RevokeAllByUserAndDevice(ctx context.Context, userID, deviceID, reason string) (int64, error)

	UpdateRefreshToken(ctx context.Context, id, jti, tokenHash string) error

	// History queries backing the anomaly detector. Both consider every
	// session ever recorded for the user, revoked or not.
	HasSessionFromIP(ctx context.Context, userID, ip string, since time.Time) (bool, error)
	HasSessionFromDevice(ctx context.Context, userID, deviceID string) (bool, error)
}
