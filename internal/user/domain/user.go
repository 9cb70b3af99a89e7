package domain

import (
	"errors"
	"time"

	"appliance-fieldops/authcore/internal/role"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is an account in the field-operations system. Office roles
// (admin, manager) and customers authenticate with email and password;
// field roles (technician, transporter) authenticate with phone and a
// one-time code.
type User struct {
	ID           string
	Email        string
	Phone        string
	Role         role.Role
	PasswordHash string
	TOTPSecret   string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the user for persistence. Field roles need a phone,
// everyone else an email.
func (u *User) Validate() error {
	if !u.Role.Valid() {
		return errors.New("role is required")
	}
	switch u.Role {
	case role.Technician, role.Transporter:
		if u.Phone == "" {
			return errors.New("phone is required for field roles")
		}
	default:
		if u.Email == "" {
			return errors.New("email is required")
		}
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

func (u *User) Active() bool {
	return u.Status == UserStatusActive
}

// TOTPEnrolled reports whether the user has completed authenticator
// app setup.
func (u *User) TOTPEnrolled() bool {
	return u.TOTPSecret != ""
}
