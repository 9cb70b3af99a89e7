package engine

import (
	"context"
	"time"

	"appliance-fieldops/authcore/internal/role"
)

// LoginResult is the policy decision for a single login attempt.
type LoginResult struct {
	// SingleDeviceEnforced binds the user to one active device.
	SingleDeviceEnforced bool
	// ConflictMode is "takeover" or "reject".
	ConflictMode string
	// OddHour flags a login outside the configured working-hours band.
	OddHour bool
}

// Evaluator decides the device and anomaly policy for a login attempt.
type Evaluator interface {
	EvaluateLogin(ctx context.Context, userID string, r role.Role, loginAt time.Time) (LoginResult, error)
}
