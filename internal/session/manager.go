package session

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
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/security"
	"appliance-fieldops/authcore/internal/session/domain"
	"appliance-fieldops/authcore/internal/session/repository"
)

// Validation failure reasons. Distinguishable so the client can tell a
// forced takeover ("logged in elsewhere") apart from an ordinary expiry.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonNotFound     = "session_not_found"
	ReasonRevoked      = "session_revoked"
	ReasonExpired      = "session_expired"
	ReasonStorageError = "storage_error"
)

// Result is the outcome of validating an access token. Validation never
// returns an error to the caller; any failure, including a storage
// failure, yields an invalid result.
type Result struct {
	Valid   bool
	Reason  string
	Session *domain.Session
	UserID  string
	Role    role.Role
}

type Tokens struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

type Manager struct {
	repo     repository.Repository
	tokens   *security.TokenProvider
	chain    *audit.Chain
	lifetime time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewManager(repo repository.Repository, tokens *security.TokenProvider, chain *audit.Chain, lifetime time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		repo:     repo,
		tokens:   tokens,
		chain:    chain,
		lifetime: lifetime,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

// Create opens a session bound to the user's current device fingerprint
// and issues the access/refresh token pair. Client metadata (IP, user
// agent) is taken from ctx when present.
func (m *Manager) Create(ctx context.Context, userID string, r role.Role, deviceID string) (*domain.Session, *Tokens, error) {
	if userID == "" || deviceID == "" {
		return nil, nil, fmt.Errorf("%w: user id and device id are required", errs.ErrValidation)
	}
	if !r.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, r)
	}

	now := m.now()
	client := authctx.ClientOf(ctx)
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      r,
		DeviceID:  deviceID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		ExpiresAt: now.Add(m.lifetime),
		CreatedAt: now,
	}

	access, _, accessExp, err := m.tokens.IssueAccess(s.ID, userID, r, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, jti, _, err := m.tokens.IssueRefresh(s.ID, userID, r)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.RefreshJti = jti
	s.RefreshTokenHash = security.HashSecret(refresh)

	if err := m.repo.Create(ctx, s); err != nil {
		return nil, nil, err
	}

	m.chain.Record(ctx, &auditdomain.Entry{
		ActorUserID: userID,
		ActorRole:   string(r),
		SessionID:   s.ID,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
		EventType:   audit.EventSessionCreated,
		EntityType:  "session",
		EntityID:    s.ID,
		Metadata:    map[string]string{"device_id": deviceID},
	})

	return s, &Tokens{AccessToken: access, RefreshToken: refresh, AccessExpiresAt: accessExp}, nil
}

// Validate checks an access token against both its signature and the
// stored session state. It fails closed: when session state cannot be
// read the token is treated as invalid.
func (m *Manager) Validate(ctx context.Context, accessToken string) Result {
	if accessToken == "" {
		return Result{Reason: ReasonMissingToken}
	}
	sessionID, userID, r, _, err := m.tokens.ValidateAccess(accessToken)
	if err != nil {
		return Result{Reason: ReasonInvalidToken}
	}

	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Result{Reason: ReasonNotFound}
		}
		m.log.Error("session lookup failed, failing closed",
			zap.String("session_id", sessionID), zap.Error(err))
		return Result{Reason: ReasonStorageError}
	}
	if s.UserID != userID {
		return Result{Reason: ReasonInvalidToken}
	}
	if s.Revoked() {
		return Result{Reason: ReasonRevoked, Session: s}
	}
	if !m.now().Before(s.ExpiresAt) {
		return Result{Reason: ReasonExpired, Session: s}
	}
	return Result{Valid: true, Session: s, UserID: userID, Role: r}
}

// Revoke marks the session revoked. Revoking an unknown or already
// revoked session is a no-op; only an actual transition is audited.
func (m *Manager) Revoke(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", errs.ErrValidation)
	}
	changed, err := m.repo.Revoke(ctx, sessionID, reason)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	m.chain.Record(ctx, &auditdomain.Entry{
		SessionID:  sessionID,
		EventType:  audit.EventSessionRevoked,
		EntityType: "session",
		EntityID:   sessionID,
		Metadata:   map[string]string{"reason": reason},
	})
	return nil
}

// RevokeAllForDevice revokes every active session the user holds on the
// given device. Used by the device policy enforcer during a takeover.
func (m *Manager) RevokeAllForDevice(ctx context.Context, userID, deviceID, reason string) (int64, error) {
	n, err := m.repo.RevokeAllByUserAndDevice(ctx, userID, deviceID, reason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.chain.Record(ctx, &auditdomain.Entry{
			ActorUserID: userID,
			EventType:   audit.EventSessionRevoked,
			EntityType:  "device",
			EntityID:    deviceID,
			Metadata:    map[string]string{"reason": reason, "revoked": fmt.Sprintf("%d", n)},
		})
	}
	return n, nil
}

// RevokeAllForUser revokes every active session the user holds,
// regardless of device. Used on refresh-token reuse detection.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	return m.repo.RevokeAllByUser(ctx, userID, reason)
}

func (m *Manager) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return m.repo.ListByUser(ctx, userID)
}

func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.repo.GetByID(ctx, sessionID)
}
