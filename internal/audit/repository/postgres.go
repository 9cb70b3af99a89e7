package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/db"
)

// PostgresRepository persists audit entries with pgx.
type PostgresRepository struct {
	db *db.DB
}

// NewPostgresRepository returns an audit repository backed by the given pool.
func NewPostgresRepository(d *db.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

const entryColumns = `seq, id, created_at, actor_user_id, actor_role, session_id,
ip_address, user_agent, event_type, entity_type, entity_id, severity, metadata, prev_hash, hash`

// Append locks the current chain head, computes the entry's prev_hash and hash,
// and inserts the row, all inside one transaction. The row lock on the head
// entry makes concurrent appends queue instead of diverging.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("audit append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prevHash := domain.GenesisHash
	row := tx.QueryRow(ctx, `SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1 FOR UPDATE`)
	if err := row.Scan(&prevHash); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit append: head: %w", err)
		}
		prevHash = domain.GenesisHash
	}

	e.PrevHash = prevHash
	e.Hash = domain.ComputeHash(e, prevHash)

	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	err = tx.QueryRow(ctx, `
INSERT INTO audit_log (id, created_at, actor_user_id, actor_role, session_id,
    ip_address, user_agent, event_type, entity_type, entity_id, severity, metadata, prev_hash, hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING seq`,
		e.ID, e.CreatedAt, e.ActorUserID, e.ActorRole, e.SessionID,
		e.IPAddress, e.UserAgent, e.EventType, e.EntityType, e.EntityID,
		string(e.Severity), meta, e.PrevHash, e.Hash,
	).Scan(&e.Seq)
	if err != nil {
		return nil, fmt.Errorf("audit append: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("audit append: commit: %w", err)
	}
	return e, nil
}

// ListAsc returns entries in seq order within [fromSeq, toSeq]; toSeq <= 0
// means unbounded above.
func (r *PostgresRepository) ListAsc(ctx context.Context, fromSeq, toSeq int64, limit int32) ([]*domain.Entry, error) {
	const q = `
SELECT ` + entryColumns + `
FROM audit_log
WHERE seq >= $1 AND ($2 <= 0 OR seq <= $2)
ORDER BY seq ASC
LIMIT $3`
	rows, err := r.db.Pool.Query(ctx, q, fromSeq, toSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID returns the entry for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM audit_log WHERE id = $1`
	e, err := scanEntry(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var e domain.Entry
	var severity string
	if err := row.Scan(
		&e.Seq, &e.ID, &e.CreatedAt, &e.ActorUserID, &e.ActorRole, &e.SessionID,
		&e.IPAddress, &e.UserAgent, &e.EventType, &e.EntityType, &e.EntityID,
		&severity, &e.Metadata, &e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	e.Severity = domain.Severity(severity)
	return &e, nil
}
