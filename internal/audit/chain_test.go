package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"appliance-fieldops/authcore/internal/audit/domain"
	"appliance-fieldops/authcore/internal/authctx"
	"appliance-fieldops/authcore/internal/errs"
	"appliance-fieldops/authcore/internal/role"
)

// memAuditRepo mimics the postgres repository: it links each appended entry to
// the previous one and assigns seq numbers.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.Entry
	failing bool
}

func (r *memAuditRepo) Append(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errors.New("storage down")
	}
	prev := domain.GenesisHash
	if n := len(r.entries); n > 0 {
		prev = r.entries[n-1].Hash
	}
	e.Seq = int64(len(r.entries) + 1)
	e.PrevHash = prev
	e.Hash = domain.ComputeHash(e, prev)
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *memAuditRepo) ListAsc(ctx context.Context, fromSeq, toSeq int64, limit int32) ([]*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entry
	for _, e := range r.entries {
		if e.Seq < fromSeq {
			continue
		}
		if toSeq > 0 && e.Seq > toSeq {
			continue
		}
		out = append(out, e)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memAuditRepo) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func appendN(t *testing.T, c *Chain, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := c.Append(context.Background(), &domain.Entry{
			ActorUserID: "u1",
			ActorRole:   "technician",
			EventType:   EventSessionCreated,
			EntityType:  "session",
			EntityID:    "s1",
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
}

func TestChain_GenesisEntry(t *testing.T) {
	repo := &memAuditRepo{}
	c := NewChain(repo, nil)
	appendN(t, c, 1)

	if repo.entries[0].PrevHash != domain.GenesisHash {
		t.Errorf("first entry prev_hash = %q, want genesis", repo.entries[0].PrevHash)
	}
	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK || report.Checked != 1 {
		t.Errorf("report = %+v, want ok with 1 checked", report)
	}
}

func TestChain_VerifyRoundTrip(t *testing.T) {
	repo := &memAuditRepo{}
	c := NewChain(repo, nil)
	appendN(t, c, 25)

	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK {
		t.Fatalf("chain should verify: %+v", report.FirstInvalid)
	}
	if report.Checked != 25 {
		t.Errorf("checked = %d, want 25", report.Checked)
	}
}

// microsecondAuditRepo stores entries the way TIMESTAMPTZ does: the hash is
// computed over the submitted entry, then the stored created_at loses any
// sub-microsecond digits.
type microsecondAuditRepo struct {
	memAuditRepo
}

func (r *microsecondAuditRepo) Append(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	stored, err := r.memAuditRepo.Append(ctx, e)
	if err != nil {
		return nil, err
	}
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Microsecond)
	return stored, nil
}

func TestChain_VerifySurvivesMicrosecondStore(t *testing.T) {
	repo := &microsecondAuditRepo{}
	c := NewChain(repo, nil)
	appendN(t, c, 5)

	// A caller-supplied nanosecond timestamp must be normalized too.
	_, err := c.Append(context.Background(), &domain.Entry{
		CreatedAt: time.Date(2026, 8, 31, 9, 30, 0, 123456789, time.UTC),
		EventType: EventSessionRevoked,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK {
		t.Fatalf("untampered chain must verify after re-read: %+v", report.FirstInvalid)
	}
	if report.Checked != 6 {
		t.Errorf("checked = %d, want 6", report.Checked)
	}
}

func TestChain_VerifyEmptyRange(t *testing.T) {
	c := NewChain(&memAuditRepo{}, nil)
	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OK || report.Checked != 0 {
		t.Errorf("empty chain should verify trivially: %+v", report)
	}
}

func TestChain_DetectsFieldTampering(t *testing.T) {
	repo := &memAuditRepo{}
	c := NewChain(repo, nil)
	appendN(t, c, 10)

	repo.entries[4].ActorUserID = "intruder"

	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK {
		t.Fatal("tampered chain must not verify")
	}
	if report.FirstInvalid.Seq < 5 {
		t.Errorf("first invalid seq = %d, want >= 5", report.FirstInvalid.Seq)
	}
	var integrity *IntegrityError
	if !errors.As(report.Err(), &integrity) {
		t.Errorf("report.Err() = %v, want *IntegrityError", report.Err())
	}
}

func TestChain_DetectsLinkTampering(t *testing.T) {
	repo := &memAuditRepo{}
	c := NewChain(repo, nil)
	appendN(t, c, 3)

	// Rewrite entry 2 self-consistently: its own hash matches its fields, but
	// entry 3's prev_hash no longer lines up.
	repo.entries[1].ActorUserID = "intruder"
	repo.entries[1].Hash = domain.ComputeHash(repo.entries[1], repo.entries[1].PrevHash)

	report, err := c.Verify(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OK {
		t.Fatal("re-hashed entry must break the next link")
	}
	if report.FirstInvalid.Seq != 3 {
		t.Errorf("first invalid seq = %d, want 3", report.FirstInvalid.Seq)
	}
}

func TestChain_AppendRequiresEventType(t *testing.T) {
	c := NewChain(&memAuditRepo{}, nil)
	_, err := c.Append(context.Background(), &domain.Entry{})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestChain_AppendFillsIdentityFromContext(t *testing.T) {
	repo := &memAuditRepo{}
	c := NewChain(repo, nil)

	ctx := authctx.WithIdentity(context.Background(), "u9", role.Admin, "s9")
	ctx = authctx.WithClient(ctx, authctx.Client{IPAddress: "10.1.1.1", UserAgent: "cli"})

	e, err := c.Append(ctx, &domain.Entry{EventType: EventDeviceUnlocked, EntityType: "device_lock", EntityID: "u3"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.ActorUserID != "u9" || e.ActorRole != "admin" || e.SessionID != "s9" {
		t.Errorf("identity not filled from context: %+v", e)
	}
	if e.IPAddress != "10.1.1.1" || e.UserAgent != "cli" {
		t.Errorf("client not filled from context: %+v", e)
	}
}

func TestChain_RecordSwallowsFailures(t *testing.T) {
	c := NewChain(&memAuditRepo{failing: true}, nil)
	// Must not panic or propagate.
	c.Record(context.Background(), &domain.Entry{EventType: EventSessionRevoked})
}
