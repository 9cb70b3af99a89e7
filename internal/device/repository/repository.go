package repository

import (
	"context"
	"time"

	"appliance-fieldops/authcore/internal/device/domain"
)

type Repository interface {
	GetLock(ctx context.Context, userID string) (*domain.DeviceLock, error)

	// CreateLock inserts the user's first lock. Returns db.IsUniqueViolation
	// errors unwrapped so the caller can retry as a swap when two logins race.
	CreateLock(ctx context.Context, lock *domain.DeviceLock) error

	// SwapDevice moves the lock from oldDevice to newDevice with a
	// compare-and-set on the current device id. Returns true when this
	// call won the swap.
	SwapDevice(ctx context.Context, userID, oldDevice, newDevice string) (bool, error)

	SetOverride(ctx context.Context, userID string, allowed bool) error
	DeleteLock(ctx context.Context, userID string) error

	CreateConflict(ctx context.Context, c *domain.DeviceConflict) error
	ListConflictsSince(ctx context.Context, since time.Time) ([]*domain.DeviceConflict, error)
}
