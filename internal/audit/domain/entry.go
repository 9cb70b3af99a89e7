// Package domain defines the hash-chained audit log entry and its canonical
// hashing rules.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// GenesisHash is the prev_hash of the first entry in the chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Severity classifies an audit entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Entry is one tamper-evident audit record. Hash covers every field below plus
// PrevHash; entries are never mutated or deleted after insertion.
type Entry struct {
	Seq         int64
	ID          string
	CreatedAt   time.Time
	ActorUserID string
	ActorRole   string
	SessionID   string
	IPAddress   string
	UserAgent   string
	EventType   string
	EntityType  string
	EntityID    string
	Severity    Severity
	Metadata    map[string]string
	PrevHash    string
	Hash        string
}

// CanonicalMetadata serializes metadata deterministically. encoding/json sorts
// map keys, which fixes the byte representation for a given key set; a nil map
// serializes as "{}". Changing this breaks independent re-verification of every
// existing entry.
func CanonicalMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		// map[string]string cannot fail to marshal; keep the chain total anyway.
		return "{}"
	}
	return string(b)
}

// ComputeHash returns the hex SHA-256 digest over the entry's fields joined with
// "|" in the fixed order below, ending with prevHash. The order is part of the
// verification contract:
//
//	created_at(RFC3339Nano,UTC) | actor_user_id | actor_role | session_id |
//	ip_address | user_agent | event_type | entity_type | entity_id | severity |
//	canonical(metadata) | prev_hash
func ComputeHash(e *Entry, prevHash string) string {
	fields := []string{
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.ActorUserID,
		e.ActorRole,
		e.SessionID,
		e.IPAddress,
		e.UserAgent,
		e.EventType,
		e.EntityType,
		e.EntityID,
		string(e.Severity),
		CanonicalMetadata(e.Metadata),
		prevHash,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the entry's hash against the stored fields and the previous
// entry's hash. It reports ok=false when either the recomputed hash differs
// from the stored one or the stored prev_hash does not match wantPrev.
func (e *Entry) Verify(wantPrev string) bool {
	if e.PrevHash != wantPrev {
		return false
	}
	return ComputeHash(e, e.PrevHash) == e.Hash
}
