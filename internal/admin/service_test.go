package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	alertdomain "appliance-fieldops/authcore/internal/alert/domain"
	"appliance-fieldops/authcore/internal/audit"
	auditdomain "appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/device"
	devicedomain "appliance-fieldops/authcore/internal/device/domain"
	"appliance-fieldops/authcore/internal/errs"
	policydomain "appliance-fieldops/authcore/internal/policy/domain"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/security"
	"appliance-fieldops/authcore/internal/session"
	sessiondomain "appliance-fieldops/authcore/internal/session/domain"
	userdomain "appliance-fieldops/authcore/internal/user/domain"
)

type memUserRepo struct {
	users map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *memUserRepo) GetByPhone(_ context.Context, phone string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *memUserRepo) SetTOTPSecret(_ context.Context, id, secret string) error {
	u, ok := r.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.TOTPSecret = secret
	return nil
}

func (r *memUserRepo) SetStatus(_ context.Context, id string, status userdomain.UserStatus) error {
	u, ok := r.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.Status = status
	return nil
}

type memSessionRepo struct {
	sessions map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) Revoke(_ context.Context, id, reason string) (bool, error) {
	s, ok := r.sessions[id]
	if !ok {
		return false, nil
	}
	if s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	s.RevokeReason = reason
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(_ context.Context, userID, reason string) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			s.RevokeReason = reason
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) RevokeAllByUserAndDevice(_ context.Context, userID, deviceID, reason string) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.UserID == userID && s.DeviceID == deviceID && s.RevokedAt == nil {
			s.RevokedAt = &now
			s.RevokeReason = reason
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) UpdateRefreshToken(_ context.Context, id, jti, tokenHash string) error {
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return errs.ErrNotFound
	}
	s.RefreshJti = jti
	s.RefreshTokenHash = tokenHash
	return nil
}

func (r *memSessionRepo) HasSessionFromIP(_ context.Context, userID, ip string, _ time.Time) (bool, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.IPAddress == ip {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessionRepo) HasSessionFromDevice(_ context.Context, userID, deviceID string) (bool, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

type memDeviceRepo struct {
	locks map[string]*devicedomain.DeviceLock
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{locks: make(map[string]*devicedomain.DeviceLock)}
}

func (r *memDeviceRepo) GetLock(_ context.Context, userID string) (*devicedomain.DeviceLock, error) {
	l, ok := r.locks[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memDeviceRepo) CreateLock(_ context.Context, lock *devicedomain.DeviceLock) error {
	cp := *lock
	r.locks[lock.UserID] = &cp
	return nil
}

func (r *memDeviceRepo) SwapDevice(_ context.Context, userID, oldDevice, newDevice string) (bool, error) {
	l, ok := r.locks[userID]
	if !ok || l.DeviceID != oldDevice {
		return false, nil
	}
	l.DeviceID = newDevice
	l.OverrideAllowed = false
	return true, nil
}

func (r *memDeviceRepo) SetOverride(_ context.Context, userID string, allowed bool) error {
	l, ok := r.locks[userID]
	if !ok {
		return errs.ErrNotFound
	}
	l.OverrideAllowed = allowed
	return nil
}

func (r *memDeviceRepo) DeleteLock(_ context.Context, userID string) error {
	delete(r.locks, userID)
	return nil
}

func (r *memDeviceRepo) CreateConflict(_ context.Context, _ *devicedomain.DeviceConflict) error {
	return nil
}

func (r *memDeviceRepo) ListConflictsSince(_ context.Context, _ time.Time) ([]*devicedomain.DeviceConflict, error) {
	return nil, nil
}

type memAlertRepo struct {
	rules  map[string]*alertdomain.AlertRule
	alerts map[string]*alertdomain.SecurityAlert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{
		rules:  make(map[string]*alertdomain.AlertRule),
		alerts: make(map[string]*alertdomain.SecurityAlert),
	}
}

func (r *memAlertRepo) CreateRule(_ context.Context, rule *alertdomain.AlertRule) error {
	cp := *rule
	r.rules[rule.ID] = &cp
	return nil
}

func (r *memAlertRepo) ListActiveRules(_ context.Context) ([]*alertdomain.AlertRule, error) {
	var out []*alertdomain.AlertRule
	for _, rule := range r.rules {
		if rule.IsActive {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAlertRepo) SetRuleActive(_ context.Context, id string, active bool) error {
	rule, ok := r.rules[id]
	if !ok {
		return errs.ErrNotFound
	}
	rule.IsActive = active
	return nil
}

func (r *memAlertRepo) CreateAlert(_ context.Context, a *alertdomain.SecurityAlert) error {
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) HasOpenAlert(_ context.Context, ruleID, groupKey string) (bool, error) {
	for _, a := range r.alerts {
		if a.RuleID == ruleID && a.GroupKey == groupKey && a.Status == alertdomain.AlertStatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAlertRepo) ListOpenAlerts(_ context.Context) ([]*alertdomain.SecurityAlert, error) {
	var out []*alertdomain.SecurityAlert
	for _, a := range r.alerts {
		if a.Status == alertdomain.AlertStatusOpen {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAlertRepo) ResolveAlert(_ context.Context, id string) error {
	a, ok := r.alerts[id]
	if !ok {
		return errs.ErrNotFound
	}
	now := time.Now().UTC()
	a.Status = alertdomain.AlertStatusResolved
	a.ResolvedAt = &now
	return nil
}

type memPolicyRepo struct {
	policies map[string]*policydomain.LoginPolicy
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{policies: make(map[string]*policydomain.LoginPolicy)}
}

func (r *memPolicyRepo) ListEnabled(_ context.Context) ([]*policydomain.LoginPolicy, error) {
	var out []*policydomain.LoginPolicy
	for _, p := range r.policies {
		if p.Enabled {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPolicyRepo) Create(_ context.Context, p *policydomain.LoginPolicy) error {
	cp := *p
	r.policies[p.ID] = &cp
	return nil
}

func (r *memPolicyRepo) SetEnabled(_ context.Context, id string, enabled bool) error {
	p, ok := r.policies[id]
	if !ok {
		return errs.ErrNotFound
	}
	p.Enabled = enabled
	return nil
}

type memAuditRepo struct {
	entries []*auditdomain.Entry
}

func (r *memAuditRepo) Append(_ context.Context, e *auditdomain.Entry) (*auditdomain.Entry, error) {
	cp := *e
	cp.Seq = int64(len(r.entries) + 1)
	cp.PrevHash = auditdomain.GenesisHash
	if len(r.entries) > 0 {
		cp.PrevHash = r.entries[len(r.entries)-1].Hash
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.Hash = auditdomain.ComputeHash(&cp, cp.PrevHash)
	r.entries = append(r.entries, &cp)
	return &cp, nil
}

func (r *memAuditRepo) ListAsc(_ context.Context, fromSeq, toSeq int64, _ int32) ([]*auditdomain.Entry, error) {
	var out []*auditdomain.Entry
	for _, e := range r.entries {
		if e.Seq >= fromSeq && (toSeq <= 0 || e.Seq <= toSeq) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAuditRepo) GetByID(_ context.Context, id string) (*auditdomain.Entry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

type fixture struct {
	svc      *Service
	users    *memUserRepo
	sessions *memSessionRepo
	devices  *memDeviceRepo
	alerts   *memAlertRepo
	policies *memPolicyRepo
	auditlog *memAuditRepo
	manager  *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	devices := newMemDeviceRepo()
	alerts := newMemAlertRepo()
	policies := newMemPolicyRepo()
	auditlog := &memAuditRepo{}

	chain := audit.NewChain(auditlog, zap.NewNop())
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	manager := session.NewManager(sessions, tokens, chain, time.Hour, zap.NewNop())
	enforcer := device.NewEnforcer(devices, manager, chain, zap.NewNop())

	return &fixture{
		svc:      NewService(users, manager, enforcer, alerts, policies, chain, zap.NewNop()),
		users:    users,
		sessions: sessions,
		devices:  devices,
		alerts:   alerts,
		policies: policies,
		auditlog: auditlog,
		manager:  manager,
	}
}

func adminCtx() context.Context {
	return authctx.WithIdentity(context.Background(), "admin-1", role.Admin, "sess-admin")
}

func TestService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)

	err := f.svc.UnlockDevice(context.Background(), "tech-1")
	require.ErrorIs(t, err, errs.ErrAuthenticationRequired)

	techCtx := authctx.WithIdentity(context.Background(), "tech-1", role.Technician, "s1")
	err = f.svc.UnlockDevice(techCtx, "tech-1")
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.OpenAlerts(techCtx)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestService_DisableUserRevokesSessions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Create(context.Background(), &userdomain.User{
		ID: "tech-1", Phone: "+15550001", Role: role.Technician, Status: userdomain.UserStatusActive,
	}))
	sess, _, err := f.manager.Create(context.Background(), "tech-1", role.Technician, "dev-a")
	require.NoError(t, err)

	err = f.svc.SetUserStatus(adminCtx(), "tech-1", userdomain.UserStatusDisabled)
	require.NoError(t, err)

	require.Equal(t, userdomain.UserStatusDisabled, f.users.users["tech-1"].Status)
	stored := f.sessions.sessions[sess.ID]
	require.NotNil(t, stored.RevokedAt)
	require.Equal(t, sessiondomain.RevokeReasonAdmin, stored.RevokeReason)

	var found bool
	for _, e := range f.auditlog.entries {
		if e.EventType == audit.EventUserStatusChanged {
			found = true
			require.Equal(t, "admin-1", e.ActorUserID)
			require.Equal(t, "disabled", e.Metadata["status"])
		}
	}
	require.True(t, found)
}

func TestService_SetUserStatusValidation(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SetUserStatus(adminCtx(), "tech-1", "frozen")
	require.ErrorIs(t, err, errs.ErrValidation)

	err = f.svc.SetUserStatus(adminCtx(), "nobody", userdomain.UserStatusDisabled)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_UnlockDevice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.devices.CreateLock(context.Background(), &devicedomain.DeviceLock{
		UserID: "tech-1", DeviceID: "dev-a",
	}))

	require.NoError(t, f.svc.UnlockDevice(adminCtx(), "tech-1"))

	_, err := f.devices.GetLock(context.Background(), "tech-1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_SetDeviceOverride(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.devices.CreateLock(context.Background(), &devicedomain.DeviceLock{
		UserID: "tech-1", DeviceID: "dev-a",
	}))

	require.NoError(t, f.svc.SetDeviceOverride(adminCtx(), "tech-1", true))
	require.True(t, f.devices.locks["tech-1"].OverrideAllowed)
}

func TestService_ResolveAlert(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.alerts.CreateAlert(context.Background(), &alertdomain.SecurityAlert{
		ID: "alert-1", RuleID: "rule-1", GroupKey: "g", Status: alertdomain.AlertStatusOpen,
	}))

	open, err := f.svc.OpenAlerts(adminCtx())
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, f.svc.ResolveAlert(adminCtx(), "alert-1"))

	open, err = f.svc.OpenAlerts(adminCtx())
	require.NoError(t, err)
	require.Empty(t, open)

	var found bool
	for _, e := range f.auditlog.entries {
		if e.EventType == audit.EventAlertResolved && e.EntityID == "alert-1" {
			found = true
		}
	}
	require.True(t, found)
}

func TestService_LoginPolicyLifecycle(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CreateLoginPolicy(adminCtx(), &policydomain.LoginPolicy{ID: "p1"})
	require.ErrorIs(t, err, errs.ErrValidation)

	err = f.svc.CreateLoginPolicy(adminCtx(), &policydomain.LoginPolicy{
		ID: "p1", Name: "night-shift", Rules: "package fieldops.login\n", Enabled: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetLoginPolicyEnabled(adminCtx(), "p1", false))
	require.False(t, f.policies.policies["p1"].Enabled)

	var changes int
	for _, e := range f.auditlog.entries {
		if e.EventType == audit.EventPolicyChanged {
			changes++
		}
	}
	require.Equal(t, 2, changes)
}
