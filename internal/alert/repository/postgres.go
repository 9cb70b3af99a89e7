package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"appliance-fieldops/authcore/internal/alert/domain"
	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/errs"
)

type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *domain.AlertRule) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO alert_rules (id, name, description, is_active, severity, source_type,
			event_type, window_minutes, threshold, group_by_field, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)`,
		rule.ID, rule.Name, rule.Description, rule.IsActive, rule.Severity, rule.SourceType,
		rule.EventType, rule.WindowMinutes, rule.Threshold, rule.GroupByField, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert rule: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveRules(ctx context.Context) ([]*domain.AlertRule, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, description, is_active, severity, source_type,
			event_type, window_minutes, threshold, group_by_field, created_at
		FROM alert_rules WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.AlertRule
	for rows.Next() {
		var (
			rule      domain.AlertRule
			eventType *string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.IsActive, &rule.Severity,
			&rule.SourceType, &eventType, &rule.WindowMinutes, &rule.Threshold,
			&rule.GroupByField, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		if eventType != nil {
			rule.EventType = *eventType
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetRuleActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE alert_rules SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateAlert(ctx context.Context, a *domain.SecurityAlert) error {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO security_alerts (id, rule_id, source_type, severity, message, group_key, metadata, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.RuleID, a.SourceType, a.Severity, a.Message, a.GroupKey, metaJSON, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasOpenAlert(ctx context.Context, ruleID, groupKey string) (bool, error) {
	var open bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM security_alerts
			WHERE rule_id = $1 AND group_key = $2 AND status = 'open'
		)`, ruleID, groupKey).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("check open alert: %w", err)
	}
	return open, nil
}

func (r *PostgresRepository) ListOpenAlerts(ctx context.Context) ([]*domain.SecurityAlert, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, rule_id, source_type, severity, message, group_key, metadata, status, created_at, resolved_at
		FROM security_alerts WHERE status = 'open' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.SecurityAlert
	for rows.Next() {
		var (
			a        domain.SecurityAlert
			status   string
			metaJSON []byte
		)
		if err := rows.Scan(&a.ID, &a.RuleID, &a.SourceType, &a.Severity, &a.Message,
			&a.GroupKey, &metaJSON, &status, &a.CreatedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Status = domain.AlertStatus(status)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal alert metadata: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ResolveAlert(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE security_alerts SET status = 'resolved', resolved_at = now()
		WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
