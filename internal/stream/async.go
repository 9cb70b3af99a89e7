package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	eventdomain "appliance-fieldops/authcore/internal/event/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by
// EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait before closing the producer
// on shutdown so in-flight async emits have time to complete. Must be
// >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine so the login path is never blocked
// on Kafka. producer and event may be nil; EmitAsync then returns
// without starting a goroutine. The goroutine uses context.Background()
// so request cancellation does not abort an in-flight emit.
func EmitAsync(producer Producer, _ context.Context, e *eventdomain.Event, logger *zap.Logger) {
	if producer == nil || e == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := producer.Emit(emitCtx, e); err != nil && logger != nil {
			logger.Warn("async emit failed", zap.String("event_type", e.EventType), zap.Error(err))
		}
	}()
}
