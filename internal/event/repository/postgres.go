package repository

import (
	"context"
	"time"

	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/event/domain"
)

// PostgresRepository persists security events with pgx.
type PostgresRepository struct {
	db *db.DB
}

// NewPostgresRepository returns a security-event repository backed by the given pool.
func NewPostgresRepository(d *db.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create appends one event row.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	const q = `
INSERT INTO security_events (id, actor_user_id, event_type, severity, ip_address, user_agent, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.ActorUserID, e.EventType, string(e.Severity), e.IPAddress, e.UserAgent, meta, e.CreatedAt)
	return err
}

// ListSince returns events created at or after since, oldest first. eventType
// filters when non-empty.
func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time, eventType string) ([]*domain.Event, error) {
	const q = `
SELECT id, actor_user_id, event_type, severity, ip_address, user_agent, metadata, created_at
FROM security_events
WHERE created_at >= $1 AND ($2 = '' OR event_type = $2)
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, since, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var severity string
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.EventType, &severity,
			&e.IPAddress, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Severity = domain.Severity(severity)
		out = append(out, &e)
	}
	return out, rows.Err()
}
