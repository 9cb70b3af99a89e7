package repository

import (
	"context"

	"appliance-fieldops/authcore/internal/user/domain"
)

type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	SetTOTPSecret(ctx context.Context, id, secret string) error
	SetStatus(ctx context.Context, id string, status domain.UserStatus) error
}
