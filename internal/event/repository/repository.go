package repository

import (
	"context"
	"time"

	"appliance-fieldops/authcore/internal/event/domain"
)

// Repository defines persistence for security events.
type Repository interface {
	// Create appends the event. Events are immutable once written.
	Create(ctx context.Context, e *domain.Event) error
	// ListSince returns events created at or after since, optionally filtered by
	// eventType (empty matches all), oldest first.
	ListSince(ctx context.Context, since time.Time, eventType string) ([]*domain.Event, error)
}
