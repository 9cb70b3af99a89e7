package repository

import (
	"context"

	"appliance-fieldops/authcore/internal/policy/domain"
)

type Repository interface {
	ListEnabled(ctx context.Context) ([]*domain.LoginPolicy, error)
	Create(ctx context.Context, p *domain.LoginPolicy) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
