package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/security"
)

const codeLength = 6

// Sender delivers a code to the identifier out of band. The SMS Local
// client in otp/sms implements it.
type Sender interface {
	SendCode(ctx context.Context, identifier, code string) error
}

// Service issues and verifies login codes. Without a Sender, Issue
// returns the plain code to the caller for handoff.
type Service struct {
	store   Store
	journal Journal
	sender  Sender
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewService(store Store, journal Journal, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		journal: journal,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger,
	}
}

// WithSender enables out-of-band delivery on Issue.
func (s *Service) WithSender(sender Sender) *Service {
	s.sender = sender
	return s
}

// Issue generates a fresh code for the identifier, replacing any code
// still outstanding. Every request is journaled, throttled or not, so
// the alert engine sees the full request rate.
func (s *Service) Issue(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("%w: identifier is required", errs.ErrValidation)
	}

	code, err := GenerateCode(codeLength)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, identifier, security.HashSecret(code), s.ttl); err != nil {
		return "", err
	}

	client := authctx.ClientOf(ctx)
	if err := s.journal.Record(ctx, &Request{
		ID:          uuid.NewString(),
		Identifier:  identifier,
		IPAddress:   client.IPAddress,
		RequestedAt: s.now(),
	}); err != nil {
		s.log.Warn("otp request journal write failed",
			zap.String("identifier", identifier), zap.Error(err))
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, identifier, code); err != nil {
			return "", fmt.Errorf("otp delivery: %w", err)
		}
	}
	return code, nil
}

// Verify consumes the outstanding code for the identifier and compares
// it against the submitted one. A wrong submission still burns the
// stored code.
func (s *Service) Verify(ctx context.Context, identifier, code string) (bool, error) {
	if identifier == "" || code == "" {
		return false, fmt.Errorf("%w: identifier and code are required", errs.ErrValidation)
	}
	storedHash, ok, err := s.store.Consume(ctx, identifier)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return security.SecretEqual(code, storedHash), nil
}
