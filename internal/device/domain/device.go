package domain

import "time"

// DeviceLock binds a user to the single device they are allowed to hold
// active sessions on. One row per user.
type DeviceLock struct {
	UserID          string
	DeviceID        string
	OverrideAllowed bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeviceConflict records a login attempt from a device other than the
// locked one, regardless of how the conflict was resolved.
type DeviceConflict struct {
	ID         string
	UserID     string
	OldDevice  string
	NewDevice  string
	IPAddress  string
	UserAgent  string
	DetectedAt time.Time
}
