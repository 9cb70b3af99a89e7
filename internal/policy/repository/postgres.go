package repository

import (
	"context"
	"fmt"

	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/policy/domain"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.LoginPolicy, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, rules, enabled, created_at, updated_at
		FROM login_policies WHERE enabled ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list login policies: %w", err)
	}
	defer rows.Close()

	var out []*domain.LoginPolicy
	for rows.Next() {
		var p domain.LoginPolicy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan login policy: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, p *domain.LoginPolicy) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO login_policies (id, name, rules, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert login policy: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE login_policies SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("update login policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
