package repository

import (
	"context"

	"appliance-fieldops/authcore/internal/audit/domain"
)

// Repository defines persistence for the hash-chained audit log.
type Repository interface {
	// Append links the entry to the current chain head and persists it in one
	// transaction. It assigns Seq, PrevHash, and Hash. Concurrent appends are
	// serialized so the chain head used for prev_hash is unambiguous.
	Append(ctx context.Context, e *domain.Entry) (*domain.Entry, error)
	// ListAsc returns entries with fromSeq <= seq <= toSeq in seq order.
	// toSeq <= 0 means no upper bound.
	ListAsc(ctx context.Context, fromSeq, toSeq int64, limit int32) ([]*domain.Entry, error)
	// GetByID returns the entry with the given id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
}
