// Package stream publishes security events to the event firehose that
// downstream consumers (SIEM ingestion, ops dashboards) subscribe to.
package stream

import (
	"context"

	eventdomain "appliance-fieldops/authcore/internal/event/domain"
)

// Producer emits security events. Callers use it best-effort: log and
// ignore errors; the database row is the source of truth.
type Producer interface {
	Emit(ctx context.Context, e *eventdomain.Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
