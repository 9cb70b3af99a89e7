// Package audit maintains the tamper-evident, hash-chained log of privileged
// actions and provides the integrity-verification sweep.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/audit/domain"
	auditrepo "appliance-fieldops/authcore/internal/audit/repository"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/errs"
)

// Event types mirrored into the chain by the session manager, enforcer,
// and admin service.
const (
	EventSessionCreated    = "SESSION_CREATED"
	EventSessionRevoked    = "SESSION_REVOKED"
	EventDeviceTakeover    = "DEVICE_TAKEOVER"
	EventDeviceUnlocked    = "DEVICE_UNLOCKED"
	EventUserStatusChanged = "USER_STATUS_CHANGED"
	EventAlertResolved     = "ALERT_RESOLVED"
	EventPolicyChanged     = "POLICY_CHANGED"
)

// IntegrityError reports a broken chain. It is distinct from transient storage
// errors because it indicates possible tampering; it is never auto-repaired.
type IntegrityError struct {
	Seq    int64
	ID     string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit chain integrity violation at seq %d (id %s): %s", e.Seq, e.ID, e.Reason)
}

// Report is the outcome of a verification sweep.
type Report struct {
	OK           bool
	Checked      int
	FirstInvalid *IntegrityError // nil when OK
}

// Err returns the integrity error, or nil when the sweep passed.
func (r *Report) Err() error {
	if r.OK || r.FirstInvalid == nil {
		return nil
	}
	return r.FirstInvalid
}

// Chain appends entries and verifies the chain. Appends are serialized through
// an in-process mutex in addition to the repository's head row lock, so a
// single instance never races itself.
type Chain struct {
	repo auditrepo.Repository
	log  *zap.Logger

	mu sync.Mutex
}

// NewChain returns a Chain over the given repository. logger may be nil.
func NewChain(repo auditrepo.Repository, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{repo: repo, log: logger}
}

// Append validates the entry, fills identity fields from ctx when absent, and
// persists it linked to the chain head. EventType is required.
func (c *Chain) Append(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	if e == nil || e.EventType == "" {
		return nil, fmt.Errorf("%w: audit entry requires event_type", errs.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	// TIMESTAMPTZ keeps microseconds. Hash only what the store can
	// return, or a pristine chain fails verification after re-read.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	if e.ActorUserID == "" {
		if uid, ok := authctx.UserID(ctx); ok {
			e.ActorUserID = uid
		}
	}
	if e.ActorRole == "" {
		if r, ok := authctx.RoleOf(ctx); ok {
			e.ActorRole = r.String()
		}
	}
	if e.SessionID == "" {
		if sid, ok := authctx.SessionID(ctx); ok {
			e.SessionID = sid
		}
	}
	if e.IPAddress == "" || e.UserAgent == "" {
		client := authctx.ClientOf(ctx)
		if e.IPAddress == "" {
			e.IPAddress = client.IPAddress
		}
		if e.UserAgent == "" {
			e.UserAgent = client.UserAgent
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo.Append(ctx, e)
}

// Record is the best-effort form of Append used for mirroring session and
// device events: failures are logged and not returned, so the primary
// operation is never aborted by an audit write.
func (c *Chain) Record(ctx context.Context, e *domain.Entry) {
	if _, err := c.Append(ctx, e); err != nil {
		c.log.Warn("audit: failed to record entry",
			zap.String("event_type", eventTypeOf(e)),
			zap.Error(err))
	}
}

func eventTypeOf(e *domain.Entry) string {
	if e == nil {
		return ""
	}
	return e.EventType
}

// verifyPageSize bounds memory during a sweep; chains are verified in order
// across page boundaries.
const verifyPageSize = 500

// Verify re-reads entries with seq in [fromSeq, toSeq] in creation order,
// recomputes every hash, and checks each prev_hash link. toSeq <= 0 means "to
// the end". An empty range verifies trivially. Verify never mutates; a failed
// sweep is reported, not repaired.
//
// When fromSeq addresses the middle of the chain, the first entry's prev_hash
// is taken as trusted and only subsequent links are checked.
func (c *Chain) Verify(ctx context.Context, fromSeq, toSeq int64) (*Report, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}
	report := &Report{OK: true}
	wantPrev := domain.GenesisHash
	first := true
	next := fromSeq

	for {
		page, err := c.repo.ListAsc(ctx, next, toSeq, verifyPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return report, nil
		}
		for _, e := range page {
			if first {
				first = false
				if e.Seq > 1 {
					// Mid-chain start: trust the stored prev_hash as the anchor.
					wantPrev = e.PrevHash
				}
			}
			if e.PrevHash != wantPrev {
				report.OK = false
				report.FirstInvalid = &IntegrityError{Seq: e.Seq, ID: e.ID, Reason: "prev_hash does not match previous entry's hash"}
				return report, nil
			}
			if domain.ComputeHash(e, e.PrevHash) != e.Hash {
				report.OK = false
				report.FirstInvalid = &IntegrityError{Seq: e.Seq, ID: e.ID, Reason: "stored hash does not match recomputed hash"}
				return report, nil
			}
			report.Checked++
			wantPrev = e.Hash
			next = e.Seq + 1
		}
		if int32(len(page)) < verifyPageSize {
			return report, nil
		}
	}
}
