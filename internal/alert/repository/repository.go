package repository

import (
	"context"

	"appliance-fieldops/authcore/internal/alert/domain"
)

type Repository interface {
	CreateRule(ctx context.Context, r *domain.AlertRule) error
	ListActiveRules(ctx context.Context) ([]*domain.AlertRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error

	CreateAlert(ctx context.Context, a *domain.SecurityAlert) error
	// HasOpenAlert reports whether an open alert already exists for the
	// rule and group key. The engine uses it to deduplicate firings.
	HasOpenAlert(ctx context.Context, ruleID, groupKey string) (bool, error)
	ListOpenAlerts(ctx context.Context) ([]*domain.SecurityAlert, error)
	ResolveAlert(ctx context.Context, id string) error
}
