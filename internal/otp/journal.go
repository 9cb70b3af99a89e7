package otp

import (
	"context"
	"fmt"
	"time"

	"appliance-fieldops/authcore/internal/db"
)

// Request is one row in the OTP request journal. The journal feeds the
// alert engine's OTP-abuse rules.
type Request struct {
	ID          string
	Identifier  string
	IPAddress   string
	RequestedAt time.Time
}

type Journal interface {
	Record(ctx context.Context, req *Request) error
	ListSince(ctx context.Context, since time.Time) ([]*Request, error)
}

type PostgresJournal struct {
	db *db.DB
}

func NewPostgresJournal(database *db.DB) *PostgresJournal {
	return &PostgresJournal{db: database}
}

func (j *PostgresJournal) Record(ctx context.Context, req *Request) error {
	_, err := j.db.Pool.Exec(ctx, `
		INSERT INTO otp_requests (id, identifier, ip_address, requested_at)
		VALUES ($1, $2, $3, $4)`,
		req.ID, req.Identifier, req.IPAddress, req.RequestedAt)
	if err != nil {
		return fmt.Errorf("record otp request: %w", err)
	}
	return nil
}

func (j *PostgresJournal) ListSince(ctx context.Context, since time.Time) ([]*Request, error) {
	rows, err := j.db.Pool.Query(ctx, `
		SELECT id, identifier, ip_address, requested_at
		FROM otp_requests WHERE requested_at >= $1 ORDER BY requested_at`, since)
	if err != nil {
		return nil, fmt.Errorf("list otp requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		var (
			r  Request
			ip *string
		)
		if err := rows.Scan(&r.ID, &r.Identifier, &ip, &r.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan otp request: %w", err)
		}
		if ip != nil {
			r.IPAddress = *ip
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
