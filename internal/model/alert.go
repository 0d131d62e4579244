package model

import "time"

// Alert rule types.
const (
	RulePersonPresence = "person_presence"
	RuleFrequency      = "frequency"
)

// Alert log statuses.
const (
	AlertTriggered  = "triggered"
	AlertSuppressed = "suppressed"
)

// AlertRule is a threshold or frequency check evaluated against verified
// events for a single camera.
type AlertRule struct {
	ID            string    `json:"id" db:"id"`
	OrgID         string    `json:"org_id" db:"org_id"`
	CameraID      string    `json:"camera_id" db:"camera_id"`
	RuleType      string    `json:"rule_type" db:"rule_type"`
	Threshold     float64   `json:"threshold" db:"threshold"`
	WindowSeconds int       `json:"window_seconds" db:"window_seconds"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AlertLog records one evaluation of a rule against an event.
type AlertLog struct {
	ID          string    `json:"id" db:"id"`
	AlertRuleID string    `json:"alert_rule_id" db:"alert_rule_id"`
	EventID     string    `json:"event_id" db:"event_id"`
	OrgID       string    `json:"org_id" db:"org_id"`
	Status      string    `json:"status" db:"status"`
	Message     string    `json:"message" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
