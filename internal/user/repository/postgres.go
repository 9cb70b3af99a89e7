package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/user/domain"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

const userColumns = `id, email, phone, role, password_hash, totp_secret, status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, email, phone, role, password_hash, totp_secret, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)`,
		u.ID, u.Email, u.Phone, string(u.Role), u.PasswordHash, u.TOTPSecret, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresRepository) SetTOTPSecret(ctx context.Context, id, secret string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE users SET totp_secret = NULLIF($2, ''), updated_at = now() WHERE id = $1`, id, secret)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.UserStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) getBy(ctx context.Context, query, arg string) (*domain.User, error) {
	var (
		u                       domain.User
		email, phone, pwh, totp *string
		roleStr, status         string
	)
	err := r.db.Pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &email, &phone, &roleStr, &pwh, &totp, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if email != nil {
		u.Email = *email
	}
	if phone != nil {
		u.Phone = *phone
	}
	if pwh != nil {
		u.PasswordHash = *pwh
	}
	if totp != nil {
		u.TOTPSecret = *totp
	}
	u.Role = role.Role(roleStr)
	u.Status = domain.UserStatus(status)
	return &u, nil
}
