package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"appliance-fieldops/authcore/internal/db"
)

// PostgresStore is a fallback Store for deployments without Redis.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

func (s *PostgresStore) Put(ctx context.Context, identifier, codeHash string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO otp_codes (id, identifier, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), identifier, codeHash, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("store otp code: %w", err)
	}
	return nil
}

// Consume marks the newest live code for the identifier consumed and
// returns its hash. The UPDATE keeps consumption atomic under
// concurrent verification attempts.
func (s *PostgresStore) Consume(ctx context.Context, identifier string) (string, bool, error) {
	var codeHash string
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE otp_codes SET consumed_at = now()
		WHERE id = (
			SELECT id FROM otp_codes
			WHERE identifier = $1 AND consumed_at IS NULL AND expires_at > now()
			ORDER BY created_at DESC LIMIT 1
		)
		RETURNING code_hash`, identifier).Scan(&codeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consume otp code: %w", err)
	}
	return codeHash, true, nil
}
