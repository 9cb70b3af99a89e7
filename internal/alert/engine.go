// Package alert evaluates declarative threshold rules over recent
// security data and opens alerts when they trip.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/alert/domain"
	"appliance-fieldops/authcore/internal/alert/repository"
	devicedomain "appliance-fieldops/authcore/internal/device/domain"
	eventdomain "appliance-fieldops/authcore/internal/event/domain"
	"appliance-fieldops/authcore/internal/otp"
)

// record is one unit from a rule source, reduced to the fields a rule
// may group by.
type record map[string]string

type securityEventSource interface {
	ListSince(ctx context.Context, since time.Time, eventType string) ([]*eventdomain.Event, error)
}

type conflictSource interface {
	ListConflictsSince(ctx context.Context, since time.Time) ([]*devicedomain.DeviceConflict, error)
}

type otpRequestSource interface {
	ListSince(ctx context.Context, since time.Time) ([]*otp.Request, error)
}

// Engine runs rule sweeps. Each sweep is idempotent: a rule that already
// has an open alert for a group key does not fire again for it.
type Engine struct {
	repo      repository.Repository
	events    securityEventSource
	conflicts conflictSource
	requests  otpRequestSource
	now       func() time.Time
	log       *zap.Logger
}

func NewEngine(repo repository.Repository, events securityEventSource, conflicts conflictSource, requests otpRequestSource, logger *zap.Logger) *Engine {
	return &Engine{
		repo:      repo,
		events:    events,
		conflicts: conflicts,
		requests:  requests,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger,
	}
}

// Run performs one sweep over all active rules. A failing rule is
// logged and skipped so one bad rule cannot stall the rest.
func (e *Engine) Run(ctx context.Context) error {
	rules, err := e.repo.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("load alert rules: %w", err)
	}
	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule); err != nil {
			e.log.Error("alert rule evaluation failed",
				zap.String("rule", rule.Name), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule *domain.AlertRule) error {
	if rule.Threshold <= 0 || rule.WindowMinutes <= 0 || rule.GroupByField == "" {
		return fmt.Errorf("rule %s is malformed", rule.ID)
	}
	since := e.now().Add(-time.Duration(rule.WindowMinutes) * time.Minute)

	records, err := e.collect(ctx, rule, since)
	if err != nil {
		return err
	}

	groups := make(map[string][]record)
	for _, rec := range records {
		key := rec[rule.GroupByField]
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], rec)
	}

	for key, group := range groups {
		count := len(group)
		if count < rule.Threshold {
			continue
		}
		open, err := e.repo.HasOpenAlert(ctx, rule.ID, key)
		if err != nil {
			return err
		}
		if open {
			continue
		}
		alert := &domain.SecurityAlert{
			ID:         uuid.NewString(),
			RuleID:     rule.ID,
			SourceType: rule.SourceType,
			Severity:   rule.Severity,
			Message: fmt.Sprintf("%s: %d %s records for %s=%s within %dm",
				rule.Name, count, rule.SourceType, rule.GroupByField, key, rule.WindowMinutes),
			GroupKey: key,
			Metadata: map[string]string{
				"key":            key,
				"count":          fmt.Sprintf("%d", count),
				"window_minutes": fmt.Sprintf("%d", rule.WindowMinutes),
				"group_by":       rule.GroupByField,
				"related_events": relatedEvents(group),
			},
			Status:    domain.AlertStatusOpen,
			CreatedAt: e.now(),
		}
		if err := e.repo.CreateAlert(ctx, alert); err != nil {
			return err
		}
		e.log.Warn("alert opened",
			zap.String("rule", rule.Name),
			zap.String("group_key", key),
			zap.Int("count", count))
	}
	return nil
}

// relatedEventsSample bounds how many contributing records an alert
// carries for triage.
const relatedEventsSample = 5

func relatedEvents(group []record) string {
	if len(group) > relatedEventsSample {
		group = group[:relatedEventsSample]
	}
	b, err := json.Marshal(group)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (e *Engine) collect(ctx context.Context, rule *domain.AlertRule, since time.Time) ([]record, error) {
	switch rule.SourceType {
	case domain.SourceSecurityEvents:
		events, err := e.events.ListSince(ctx, since, rule.EventType)
		if err != nil {
			return nil, err
		}
		out := make([]record, 0, len(events))
		for _, ev := range events {
			out = append(out, record{
				"actor_user_id": ev.ActorUserID,
				"event_type":    ev.EventType,
				"ip_address":    ev.IPAddress,
				"user_agent":    ev.UserAgent,
			})
		}
		return out, nil

	case domain.SourceDeviceConflicts:
		conflicts, err := e.conflicts.ListConflictsSince(ctx, since)
		if err != nil {
			return nil, err
		}
		out := make([]record, 0, len(conflicts))
		for _, c := range conflicts {
			out = append(out, record{
				"user_id":    c.UserID,
				"old_device": c.OldDevice,
				"new_device": c.NewDevice,
				"ip_address": c.IPAddress,
			})
		}
		return out, nil

	case domain.SourceOTPRequests:
		requests, err := e.requests.ListSince(ctx, since)
		if err != nil {
			return nil, err
		}
		out := make([]record, 0, len(requests))
		for _, req := range requests {
			out = append(out, record{
				"identifier": req.Identifier,
				"ip_address": req.IPAddress,
			})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown source type %q", rule.SourceType)
}
