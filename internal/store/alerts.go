package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
)

// CreateAlertRule inserts a new alert rule.
func (s *Store) CreateAlertRule(ctx context.Context, rule *model.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO alert_rules
		(id, org_id, camera_id, rule_type, threshold, window_seconds, enabled, created_at)
		VALUES
		(:id, :org_id, :camera_id, :rule_type, :threshold, :window_seconds, :enabled, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, rule); err != nil {
		return fmt.Errorf("insert alert rule: %w", err)
	}
	return nil
}

// GetAlertRule returns an alert rule by ID.
func (s *Store) GetAlertRule(ctx context.Context, id string) (*model.AlertRule, error) {
	var rule model.AlertRule
	q := s.rebind("SELECT * FROM alert_rules WHERE id = ?")
	if err := s.db.GetContext(ctx, &rule, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get alert rule: %w", err)
	}
	return &rule, nil
}

// ListAlertRules returns alert rules, optionally filtered by org and camera.
func (s *Store) ListAlertRules(ctx context.Context, orgID, cameraID string) ([]model.AlertRule, error) {
	q := "SELECT * FROM alert_rules WHERE 1=1"
	var args []interface{}
	if orgID != "" {
		q += " AND org_id = ?"
		args = append(args, orgID)
	}
	if cameraID != "" {
		q += " AND camera_id = ?"
		args = append(args, cameraID)
	}
	q += " ORDER BY created_at"

	var rules []model.AlertRule
	if err := s.db.SelectContext(ctx, &rules, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	return rules, nil
}

// ListEnabledRulesForCamera returns the enabled rules evaluated on every
// verified event for a camera.
func (s *Store) ListEnabledRulesForCamera(ctx context.Context, orgID, cameraID string) ([]model.AlertRule, error) {
	q := s.rebind(`SELECT * FROM alert_rules
		WHERE org_id = ? AND camera_id = ? AND enabled = ` + s.dialect.boolTrue)
	var rules []model.AlertRule
	if err := s.db.SelectContext(ctx, &rules, q, orgID, cameraID); err != nil {
		return nil, fmt.Errorf("list enabled alert rules: %w", err)
	}
	return rules, nil
}

// UpdateAlertRule updates a rule's mutable fields by ID.
func (s *Store) UpdateAlertRule(ctx context.Context, rule *model.AlertRule) error {
	const q = `UPDATE alert_rules SET
		rule_type = :rule_type, threshold = :threshold,
		window_seconds = :window_seconds, enabled = :enabled
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, rule)
	if err != nil {
		return fmt.Errorf("update alert rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert rule rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAlertLog records one rule evaluation outcome.
func (s *Store) CreateAlertLog(ctx context.Context, log *model.AlertLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO alert_logs
		(id, alert_rule_id, event_id, org_id, status, message, created_at)
		VALUES
		(:id, :alert_rule_id, :event_id, :org_id, :status, :message, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, log); err != nil {
		return fmt.Errorf("insert alert log: %w", err)
	}
	return nil
}

// ListAlertLogs returns recent alert log entries for an organization.
func (s *Store) ListAlertLogs(ctx context.Context, orgID string, limit int) ([]model.AlertLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := "SELECT * FROM alert_logs WHERE 1=1"
	var args []interface{}
	if orgID != "" {
		q += " AND org_id = ?"
		args = append(args, orgID)
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var logs []model.AlertLog
	if err := s.db.SelectContext(ctx, &logs, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list alert logs: %w", err)
	}
	return logs, nil
}
