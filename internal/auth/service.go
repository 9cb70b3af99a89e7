// Package auth orchestrates the login flows: credential checks, device
// policy, anomaly inspection, and session issuance, in that order.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/anomaly"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/device"
	"appliance-fieldops/authcore/internal/errs"
	eventdomain "appliance-fieldops/authcore/internal/event/domain"
	"appliance-fieldops/authcore/internal/fingerprint"
	"appliance-fieldops/authcore/internal/otp"
	"appliance-fieldops/authcore/internal/policy/engine"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/security"
	"appliance-fieldops/authcore/internal/session"
	sessiondomain "appliance-fieldops/authcore/internal/session/domain"
	sessionrepo "appliance-fieldops/authcore/internal/session/repository"
	userdomain "appliance-fieldops/authcore/internal/user/domain"
	userrepo "appliance-fieldops/authcore/internal/user/repository"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTOTPRequired        = errors.New("totp code required")
	ErrInvalidTOTP         = errors.New("invalid totp code")
	ErrTOTPAlreadySet      = errors.New("totp already configured")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; all sessions revoked")
)

// AuthResult is returned by every flow that ends in a session.
type AuthResult struct {
	UserID       string
	Role         role.Role
	SessionID    string
	DeviceID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	// DeviceTakeover is set when this login displaced sessions on the
	// user's previous device.
	DeviceTakeover bool
}

type Service struct {
	users       userrepo.Repository
	sessions    *session.Manager
	sessionRepo sessionrepo.Repository
	enforcer    *device.Enforcer
	policies    engine.Evaluator
	detector    *anomaly.Detector
	otp         *otp.Service
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	now         func() time.Time
	log         *zap.Logger
}

func NewService(
	users userrepo.Repository,
	sessions *session.Manager,
	sessionRepo sessionrepo.Repository,
	enforcer *device.Enforcer,
	policies engine.Evaluator,
	detector *anomaly.Detector,
	otpService *otp.Service,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		sessionRepo: sessionRepo,
		enforcer:    enforcer,
		policies:    policies,
		detector:    detector,
		otp:         otpService,
		hasher:      hasher,
		tokens:      tokens,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger,
	}
}

// LoginPassword authenticates office roles and customers with email and
// password, plus a TOTP code once the account has enrolled.
func (s *Service) LoginPassword(ctx context.Context, email, password, totpCode string, signals fingerprint.Signals) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.detector.RecordLoginFailed(ctx, "", email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active() || user.PasswordHash == "" {
		s.detector.RecordLoginFailed(ctx, user.ID, email)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.detector.RecordLoginFailed(ctx, user.ID, email)
		return nil, ErrInvalidCredentials
	}

	if user.TOTPEnrolled() {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		ok, err := security.VerifyTOTP(user.TOTPSecret, totpCode, s.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			s.detector.RecordMFA(ctx, user.ID, eventdomain.TypeMFAChallengeFailed)
			return nil, ErrInvalidTOTP
		}
		s.detector.RecordMFA(ctx, user.ID, eventdomain.TypeMFAChallengePassed)
	}

	return s.openSession(ctx, user, signals)
}

// RequestOTP issues a login code for a field user's phone. The code is
// sent through the configured sender and returned to the caller for
// handoff when no sender is set. Unknown phones are recorded and
// rejected.
func (s *Service) RequestOTP(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrInvalidCredentials
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.detector.RecordLoginFailed(ctx, "", phone)
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !user.Active() {
		s.detector.RecordLoginFailed(ctx, user.ID, phone)
		return "", ErrInvalidCredentials
	}
	return s.otp.Issue(ctx, phone)
}

// LoginOTP authenticates field roles with phone and the code issued by
// RequestOTP.
func (s *Service) LoginOTP(ctx context.Context, phone, code string, signals fingerprint.Signals) (*AuthResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.detector.RecordLoginFailed(ctx, "", phone)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active() {
		s.detector.RecordLoginFailed(ctx, user.ID, phone)
		return nil, ErrInvalidCredentials
	}
	ok, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.detector.RecordLoginFailed(ctx, user.ID, phone)
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, user, signals)
}

// openSession is the shared tail of every login flow: policy decision,
// device enforcement, anomaly inspection, then session creation. The
// detector runs before the session exists so this login cannot vouch
// for its own IP or device.
func (s *Service) openSession(ctx context.Context, user *userdomain.User, signals fingerprint.Signals) (*AuthResult, error) {
	deviceID := fingerprint.Compute(signals)

	pol, err := s.policies.EvaluateLogin(ctx, user.ID, user.Role, s.now())
	if err != nil {
		return nil, err
	}

	outcome, err := s.enforcer.Authorize(ctx, user.ID, user.Role, deviceID, device.Policy{
		SingleDeviceEnforced: pol.SingleDeviceEnforced,
		ConflictMode:         pol.ConflictMode,
	})
	if err != nil {
		return nil, err
	}

	s.detector.Inspect(ctx, user.ID, deviceID, pol.OddHour)

	sess, tokens, err := s.sessions.Create(ctx, user.ID, user.Role, deviceID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:         user.ID,
		Role:           user.Role,
		SessionID:      sess.ID,
		DeviceID:       deviceID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      tokens.AccessExpiresAt,
		DeviceTakeover: outcome.TookOver,
	}, nil
}

// Refresh validates the refresh token, rotates it, and returns a new
// token pair. Presenting a superseded token is treated as theft: every
// session the user holds is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, r, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if sess.Revoked() || !s.now().Before(sess.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		if _, err := s.sessions.RevokeAllForUser(ctx, userID, sessiondomain.RevokeReasonRefreshReuse); err != nil {
			s.log.Error("revoking sessions after refresh reuse failed",
				zap.String("user_id", userID), zap.Error(err))
		}
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.SecretEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}

	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID, r)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateRefreshToken(ctx, sessionID, newJti, security.HashSecret(newRefresh)); err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, userID, r, sess.DeviceID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:       userID,
		Role:         r,
		SessionID:    sessionID,
		DeviceID:     sess.DeviceID,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
	}, nil
}

// Logout revokes the session identified by the refresh token, or the
// session in ctx when no token is given. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		sessionID, _, _, _, err := s.tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		return s.sessions.Revoke(ctx, sessionID, sessiondomain.RevokeReasonLogout)
	}
	sessionID, ok := authctx.SessionID(ctx)
	if !ok {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID, sessiondomain.RevokeReasonLogout)
}

// SetupTOTP generates a secret for authenticator enrollment. The
// secret takes effect only after ConfirmTOTP proves the user has it.
func (s *Service) SetupTOTP(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.TOTPEnrolled() {
		return "", ErrTOTPAlreadySet
	}
	return security.GenerateTOTPSecret()
}

// ConfirmTOTP verifies the first code against the pending secret and
// stores it, completing enrollment.
func (s *Service) ConfirmTOTP(ctx context.Context, userID, secret, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPEnrolled() {
		return ErrTOTPAlreadySet
	}
	ok, err := security.VerifyTOTP(secret, code, s.now())
	if err != nil {
		return err
	}
	if !ok {
		s.detector.RecordMFA(ctx, userID, eventdomain.TypeMFAChallengeFailed)
		return ErrInvalidTOTP
	}
	if err := s.users.SetTOTPSecret(ctx, userID, secret); err != nil {
		return err
	}
	s.detector.RecordMFA(ctx, userID, eventdomain.TypeMFASetupCompleted)
	return nil
}
