package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/audit"
	auditdomain "appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/device/domain"
	"appliance-fieldops/authcore/internal/device/repository"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/role"
	sessiondomain "appliance-fieldops/authcore/internal/session/domain"
)

// Conflict resolution modes.
const (
	ModeTakeover = "takeover"
	ModeReject   = "reject"
)

// Policy is the per-login decision the policy engine hands the enforcer.
type Policy struct {
	SingleDeviceEnforced bool
	ConflictMode         string
}

// ConflictError is returned in reject mode when a user attempts a login
// from a device other than the one they are locked to.
type ConflictError struct {
	UserID    string
	OldDevice string
	NewDevice string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("device conflict for user %s: active device differs from login device", e.UserID)
}

// Outcome describes what the enforcer did for a login attempt.
type Outcome struct {
	// TookOver is set when an existing binding to a different device was
	// replaced and that device's sessions were revoked.
	TookOver  bool
	OldDevice string
}

type sessionRevoker interface {
	RevokeAllForDevice(ctx context.Context, userID, deviceID, reason string) (int64, error)
}

// Enforcer maintains the one-active-device rule for field roles. All
// lock transitions go through a compare-and-set on the current device id
// so two racing logins resolve to exactly one holder.
type Enforcer struct {
	repo     repository.Repository
	sessions sessionRevoker
	chain    *audit.Chain
	now      func() time.Time
	log      *zap.Logger
}

func NewEnforcer(repo repository.Repository, sessions sessionRevoker, chain *audit.Chain, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		repo:     repo,
		sessions: sessions,
		chain:    chain,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

// Authorize runs before session creation. When the policy enforces a
// single device and the user is locked to a different one, the conflict
// is recorded and resolved per the policy's conflict mode: takeover
// revokes the old device's sessions and moves the lock, reject returns
// a ConflictError and leaves the lock untouched. A lock flagged with
// OverrideAllowed rebinds without recording a conflict.
func (e *Enforcer) Authorize(ctx context.Context, userID string, r role.Role, deviceID string, pol Policy) (*Outcome, error) {
	if userID == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: user id and device id are required", errs.ErrValidation)
	}
	if !pol.SingleDeviceEnforced {
		return &Outcome{}, nil
	}

	lock, err := e.repo.GetLock(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		now := e.now()
		createErr := e.repo.CreateLock(ctx, &domain.DeviceLock{
			UserID:    userID,
			DeviceID:  deviceID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if createErr == nil {
			return &Outcome{}, nil
		}
		if !db.IsUniqueViolation(createErr) {
			return nil, createErr
		}
		// Lost the insert race to a concurrent first login; re-read and
		// resolve against the winner's lock.
		lock, err = e.repo.GetLock(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	if lock.DeviceID == deviceID {
		return &Outcome{}, nil
	}

	// An admin-sanctioned override rebinds silently: no conflict row,
	// no mode check.
	if lock.OverrideAllowed {
		return e.takeover(ctx, userID, r, lock.DeviceID, deviceID)
	}

	client := authctx.ClientOf(ctx)
	conflict := &domain.DeviceConflict{
		ID:         uuid.NewString(),
		UserID:     userID,
		OldDevice:  lock.DeviceID,
		NewDevice:  deviceID,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		DetectedAt: e.now(),
	}
	if err := e.repo.CreateConflict(ctx, conflict); err != nil {
		e.log.Error("recording device conflict failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	if pol.ConflictMode == ModeReject {
		return nil, &ConflictError{UserID: userID, OldDevice: lock.DeviceID, NewDevice: deviceID}
	}

	return e.takeover(ctx, userID, r, lock.DeviceID, deviceID)
}

func (e *Enforcer) takeover(ctx context.Context, userID string, r role.Role, oldDevice, newDevice string) (*Outcome, error) {
	won, err := e.repo.SwapDevice(ctx, userID, oldDevice, newDevice)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent takeover moved the lock first. If it landed on our
		// device we are the effective holder; otherwise the other login won.
		lock, err := e.repo.GetLock(ctx, userID)
		if err != nil {
			return nil, err
		}
		if lock.DeviceID != newDevice {
			return nil, &ConflictError{UserID: userID, OldDevice: lock.DeviceID, NewDevice: newDevice}
		}
		return &Outcome{}, nil
	}

	revoked, err := e.sessions.RevokeAllForDevice(ctx, userID, oldDevice, sessiondomain.RevokeReasonDeviceConflict)
	if err != nil {
		return nil, fmt.Errorf("revoke sessions on displaced device: %w", err)
	}

	client := authctx.ClientOf(ctx)
	e.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: userID,
		ActorRole:   string(r),
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
		EventType:   audit.EventDeviceTakeover,
		EntityType:  "device_lock",
		EntityID:    userID,
		Severity:    auditdomain.SeverityWarning,
		Metadata: map[string]string{
			"old_device": oldDevice,
			"new_device": newDevice,
			"revoked":    fmt.Sprintf("%d", revoked),
		},
	})

	return &Outcome{TookOver: true, OldDevice: oldDevice}, nil
}

// Lock returns the user's current device binding, or errs.ErrNotFound.
func (e *Enforcer) Lock(ctx context.Context, userID string) (*domain.DeviceLock, error) {
	return e.repo.GetLock(ctx, userID)
}

// Unlock removes the user's device binding entirely. Admin operation;
// the next login re-establishes a lock on whatever device it comes from.
func (e *Enforcer) Unlock(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	if err := e.repo.DeleteLock(ctx, userID); err != nil {
		return err
	}
	e.chain.Record(ctx, &auditdomain.Entry{
		EventType:  audit.EventDeviceUnlocked,
		EntityType: "device_lock",
		EntityID:   userID,
		Metadata:   map[string]string{"user_id": userID},
	})
	return nil
}

// SetOverride flags the user's lock so the next conflicting login takes
// over regardless of the configured conflict mode.
func (e *Enforcer) SetOverride(ctx context.Context, userID string, allowed bool) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return e.repo.SetOverride(ctx, userID, allowed)
}
