// Package admin groups the privileged operations: account status,
// device lock escape hatches, alert handling, and login policy
// management. Every call requires an admin identity in the context and
// lands in the audit chain.
package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	alertdomain "appliance-fieldops/authcore/internal/alert/domain"
	alertrepo "appliance-fieldops/authcore/internal/alert/repository"
	"appliance-fieldops/authcore/internal/audit"
	auditdomain "appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/device"
	"appliance-fieldops/authcore/internal/errs"
	policydomain "appliance-fieldops/authcore/internal/policy/domain"
	policyrepo "appliance-fieldops/authcore/internal/policy/repository"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/session"
	sessiondomain "appliance-fieldops/authcore/internal/session/domain"
	userdomain "appliance-fieldops/authcore/internal/user/domain"
	userrepo "appliance-fieldops/authcore/internal/user/repository"
)

type Service struct {
	users    userrepo.Repository
	sessions *session.Manager
	enforcer *device.Enforcer
	alerts   alertrepo.Repository
	policies policyrepo.Repository
	chain    *audit.Chain
	log      *zap.Logger
}

func NewService(
	users userrepo.Repository,
	sessions *session.Manager,
	enforcer *device.Enforcer,
	alerts alertrepo.Repository,
	policies policyrepo.Repository,
	chain *audit.Chain,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		enforcer: enforcer,
		alerts:   alerts,
		policies: policies,
		chain:    chain,
		log:      logger,
	}
}

// requireAdmin resolves the caller from context and rejects anyone who
// is not an authenticated admin.
func requireAdmin(ctx context.Context) (string, error) {
	userID, ok := authctx.UserID(ctx)
	if !ok || userID == "" {
		return "", errs.ErrAuthenticationRequired
	}
	r, ok := authctx.RoleOf(ctx)
	if !ok {
		return "", errs.ErrAuthenticationRequired
	}
	if r != role.Admin {
		return "", fmt.Errorf("%w: admin role required", errs.ErrForbidden)
	}
	return userID, nil
}

// SetUserStatus enables or disables an account. Disabling revokes every
// live session so the change takes effect immediately.
func (s *Service) SetUserStatus(ctx context.Context, userID string, status userdomain.UserStatus) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if status != userdomain.UserStatusActive && status != userdomain.UserStatusDisabled {
		return fmt.Errorf("%w: unknown status %q", errs.ErrValidation, status)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.SetStatus(ctx, u.ID, status); err != nil {
		return err
	}

	revoked := int64(0)
	if status == userdomain.UserStatusDisabled {
		revoked, err = s.sessions.RevokeAllForUser(ctx, u.ID, sessiondomain.RevokeReasonAdmin)
		if err != nil {
			s.log.Error("session revocation after disable failed",
				zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	s.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: actor,
		EventType:   audit.EventUserStatusChanged,
		EntityType:  "user",
		EntityID:    u.ID,
		Severity:    auditdomain.SeverityWarning,
		Metadata: map[string]string{
			"status":  string(status),
			"revoked": fmt.Sprintf("%d", revoked),
		},
	})
	return nil
}

// UnlockDevice removes a user's device binding so their next login can
// come from any device.
func (s *Service) UnlockDevice(ctx context.Context, userID string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.enforcer.Unlock(ctx, userID)
}

// SetDeviceOverride flags a user's lock so their next conflicting login
// takes over regardless of the configured conflict mode.
func (s *Service) SetDeviceOverride(ctx context.Context, userID string, allowed bool) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.enforcer.SetOverride(ctx, userID, allowed)
}

// OpenAlerts lists alerts awaiting triage.
func (s *Service) OpenAlerts(ctx context.Context) ([]*alertdomain.SecurityAlert, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.alerts.ListOpenAlerts(ctx)
}

// ResolveAlert closes an open alert. The same rule and group can fire
// again afterwards.
func (s *Service) ResolveAlert(ctx context.Context, alertID string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.alerts.ResolveAlert(ctx, alertID); err != nil {
		return err
	}
	s.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: actor,
		EventType:   audit.EventAlertResolved,
		EntityType:  "security_alert",
		EntityID:    alertID,
	})
	return nil
}

// SetRuleActive toggles an alert rule.
func (s *Service) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.alerts.SetRuleActive(ctx, ruleID, active)
}

// CreateLoginPolicy installs an operator Rego module layered over the
// built-in login policy.
func (s *Service) CreateLoginPolicy(ctx context.Context, p *policydomain.LoginPolicy) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if p == nil || p.Name == "" || p.Rules == "" {
		return fmt.Errorf("%w: policy name and rules are required", errs.ErrValidation)
	}
	if err := s.policies.Create(ctx, p); err != nil {
		return err
	}
	s.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: actor,
		EventType:   audit.EventPolicyChanged,
		EntityType:  "login_policy",
		EntityID:    p.ID,
		Metadata:    map[string]string{"name": p.Name, "action": "created"},
	})
	return nil
}

// SetLoginPolicyEnabled toggles an operator policy.
func (s *Service) SetLoginPolicyEnabled(ctx context.Context, policyID string, enabled bool) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.policies.SetEnabled(ctx, policyID, enabled); err != nil {
		return err
	}
	s.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: actor,
		EventType:   audit.EventPolicyChanged,
		EntityType:  "login_policy",
		EntityID:    policyID,
		Metadata:    map[string]string{"action": "toggled", "enabled": fmt.Sprintf("%t", enabled)},
	})
	return nil
}
