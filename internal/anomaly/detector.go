// Package anomaly inspects login attempts against the user's history
// and flags departures from it as security events. Detection is
// advisory: it never blocks a login, and a detector failure degrades to
// no event rather than an error.
package anomaly

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/authctx"
	eventdomain "appliance-fieldops/authcore/internal/event/domain"
	eventrepo "appliance-fieldops/authcore/internal/event/repository"
	"appliance-fieldops/authcore/internal/stream"
)

type sessionHistory interface {
	HasSessionFromIP(ctx context.Context, userID, ip string, since time.Time) (bool, error)
	HasSessionFromDevice(ctx context.Context, userID, deviceID string) (bool, error)
}

// Detector runs before session creation, so "previously seen" always
// means prior logins only.
type Detector struct {
	history  sessionHistory
	events   eventrepo.Repository
	firehose stream.Producer
	ipWindow time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewDetector(history sessionHistory, events eventrepo.Repository, firehose stream.Producer, ipWindow time.Duration, logger *zap.Logger) *Detector {
	return &Detector{
		history:  history,
		events:   events,
		firehose: firehose,
		ipWindow: ipWindow,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

// Inspect checks one successful login attempt. oddHour comes from the
// policy decision for this login. Each finding becomes one security
// event; findings are independent, so one login can produce several.
func (d *Detector) Inspect(ctx context.Context, userID, deviceID string, oddHour bool) {
	client := authctx.ClientOf(ctx)

	if client.IPAddress != "" {
		seen, err := d.history.HasSessionFromIP(ctx, userID, client.IPAddress, d.now().Add(-d.ipWindow))
		if err != nil {
			d.log.Warn("ip history lookup failed", zap.String("user_id", userID), zap.Error(err))
		} else if !seen {
			d.record(ctx, userID, eventdomain.TypeAnomalyNewIP, eventdomain.SeverityWarning, map[string]string{
				"ip_address": client.IPAddress,
			})
		}
	}

	if deviceID != "" {
		seen, err := d.history.HasSessionFromDevice(ctx, userID, deviceID)
		if err != nil {
			d.log.Warn("device history lookup failed", zap.String("user_id", userID), zap.Error(err))
		} else if !seen {
			d.record(ctx, userID, eventdomain.TypeAnomalyNewDevice, eventdomain.SeverityWarning, map[string]string{
				"device_id": deviceID,
			})
		}
	}

	if oddHour {
		d.record(ctx, userID, eventdomain.TypeAnomalyOddHourLogin, eventdomain.SeverityInfo, map[string]string{
			"hour": d.now().Format("15"),
		})
	}
}

// RecordLoginFailed notes a failed credential or OTP check. identifier
// is the submitted email or phone; userID may be empty when the account
// does not exist.
func (d *Detector) RecordLoginFailed(ctx context.Context, userID, identifier string) {
	d.record(ctx, userID, eventdomain.TypeLoginFailed, eventdomain.SeverityWarning, map[string]string{
		"identifier": identifier,
	})
}

// RecordMFA notes a TOTP lifecycle event: setup completion or a
// challenge outcome.
func (d *Detector) RecordMFA(ctx context.Context, userID, eventType string) {
	sev := eventdomain.SeverityInfo
	if eventType == eventdomain.TypeMFAChallengeFailed {
		sev = eventdomain.SeverityWarning
	}
	d.record(ctx, userID, eventType, sev, nil)
}

func (d *Detector) record(ctx context.Context, userID, eventType string, sev eventdomain.Severity, metadata map[string]string) {
	client := authctx.ClientOf(ctx)
	e := &eventdomain.Event{
		ID:          uuid.NewString(),
		ActorUserID: userID,
		EventType:   eventType,
		Severity:    sev,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
		Metadata:    metadata,
		CreatedAt:   d.now(),
	}
	if err := d.events.Create(ctx, e); err != nil {
		d.log.Warn("security event write failed",
			zap.String("event_type", eventType), zap.String("user_id", userID), zap.Error(err))
		return
	}
	stream.EmitAsync(d.firehose, ctx, e, d.log)
}
