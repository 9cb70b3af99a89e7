package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/device/domain"
	"appliance-fieldops/authcore/internal/errs"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

func (r *PostgresRepository) GetLock(ctx context.Context, userID string) (*domain.DeviceLock, error) {
	var lock domain.DeviceLock
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, device_id, override_allowed, created_at, updated_at
		FROM device_locks WHERE user_id = $1`, userID).
		Scan(&lock.UserID, &lock.DeviceID, &lock.OverrideAllowed, &lock.CreatedAt, &lock.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get device lock: %w", err)
	}
	return &lock, nil
}

func (r *PostgresRepository) CreateLock(ctx context.Context, lock *domain.DeviceLock) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO device_locks (user_id, device_id, override_allowed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		lock.UserID, lock.DeviceID, lock.OverrideAllowed, lock.CreatedAt, lock.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert device lock: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SwapDevice(ctx context.Context, userID, oldDevice, newDevice string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE device_locks SET device_id = $3, updated_at = now()
		WHERE user_id = $1 AND device_id = $2`, userID, oldDevice, newDevice)
	if err != nil {
		return false, fmt.Errorf("swap device lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SetOverride(ctx context.Context, userID string, allowed bool) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE device_locks SET override_allowed = $2, updated_at = now()
		WHERE user_id = $1`, userID, allowed)
	if err != nil {
		return fmt.Errorf("set device override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteLock(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM device_locks WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete device lock: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateConflict(ctx context.Context, c *domain.DeviceConflict) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO device_conflicts (id, user_id, old_device, new_device, ip_address, user_agent, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.OldDevice, c.NewDevice, c.IPAddress, c.UserAgent, c.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert device conflict: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListConflictsSince(ctx context.Context, since time.Time) ([]*domain.DeviceConflict, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, old_device, new_device, ip_address, user_agent, detected_at
		FROM device_conflicts WHERE detected_at >= $1 ORDER BY detected_at`, since)
	if err != nil {
		return nil, fmt.Errorf("list device conflicts: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeviceConflict
	for rows.Next() {
		var (
			c         domain.DeviceConflict
			ip, agent *string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.OldDevice, &c.NewDevice, &ip, &agent, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan device conflict: %w", err)
		}
		if ip != nil {
			c.IPAddress = *ip
		}
		if agent != nil {
			c.UserAgent = *agent
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
