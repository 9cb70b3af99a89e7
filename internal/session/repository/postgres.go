package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/session/domain"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, role, device_id, refresh_jti, refresh_token_hash,
			ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, string(s.Role), s.DeviceID, s.RefreshJti, s.RefreshTokenHash,
		s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, role, device_id, refresh_jti, refresh_token_hash,
			ip_address, user_agent, expires_at, revoked_at, revoke_reason, created_at
		FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, role, device_id, refresh_jti, refresh_token_hash,
			ip_address, user_agent, expires_at, revoked_at, revoke_reason, created_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now(), revoke_reason = $2
		WHERE id = $1 AND revoked_at IS NULL`, id, reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID, reason string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now(), revoke_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL`, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) RevokeAllByUserAndDevice(ctx context.Context, userID, deviceID, reason string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now(), revoke_reason = $3
		WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL`, userID, deviceID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for device: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, jti, tokenHash string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3
		WHERE id = $1 AND revoked_at IS NULL`, id, jti, tokenHash)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) HasSessionFromIP(ctx context.Context, userID, ip string, since time.Time) (bool, error) {
	var seen bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE user_id = $1 AND ip_address = $2 AND created_at >= $3
		)`, userID, ip, since).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check ip history: %w", err)
	}
	return seen, nil
}

func (r *PostgresRepository) HasSessionFromDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	var seen bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE user_id = $1 AND device_id = $2
		)`, userID, deviceID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check device history: %w", err)
	}
	return seen, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s       domain.Session
		roleStr string
		reason  *string
	)
	err := row.Scan(&s.ID, &s.UserID, &roleStr, &s.DeviceID, &s.RefreshJti, &s.RefreshTokenHash,
		&s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.RevokedAt, &reason, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Role = role.Role(roleStr)
	if reason != nil {
		s.RevokeReason = *reason
	}
	return &s, nil
}
