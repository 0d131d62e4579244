package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

// Evaluator runs the enabled alert rules for a camera against each newly
// stored event and records the outcome in alert_logs.
type Evaluator struct {
	store  *store.Store
	logger *slog.Logger
}

func NewEvaluator(st *store.Store, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: st, logger: logger}
}

// Evaluate checks every enabled rule for the event's camera. Rule
// evaluation never fails ingestion: errors are logged and the remaining
// rules still run. It returns the logs it created.
func (e *Evaluator) Evaluate(ctx context.Context, ev *model.Event) []model.AlertLog {
	rules, err := e.store.ListEnabledRulesForCamera(ctx, ev.OrgID, ev.CameraID)
	if err != nil {
		e.logger.Error("list alert rules", "camera_id", ev.CameraID, "error", err)
		return nil
	}

	var logs []model.AlertLog
	for _, rule := range rules {
		log, err := e.evaluateRule(ctx, rule, ev)
		if err != nil {
			e.logger.Error("evaluate alert rule", "rule_id", rule.ID, "error", err)
			continue
		}
		if log != nil {
			logs = append(logs, *log)
		}
	}
	return logs
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule model.AlertRule, ev *model.Event) (*model.AlertLog, error) {
	switch rule.RuleType {
	case model.RulePersonPresence:
		return e.evaluatePresence(ctx, rule, ev)
	case model.RuleFrequency:
		return e.evaluateFrequency(ctx, rule, ev)
	default:
		return nil, fmt.Errorf("unknown rule type %q", rule.RuleType)
	}
}

// evaluatePresence fires when a detection's confidence meets the rule
// threshold. Events without a confidence score never match.
func (e *Evaluator) evaluatePresence(ctx context.Context, rule model.AlertRule, ev *model.Event) (*model.AlertLog, error) {
	if ev.EventType != model.EventPersonDetected || ev.Confidence == nil {
		return nil, nil
	}
	if *ev.Confidence >= rule.Threshold {
		msg := fmt.Sprintf("person detected with confidence %.1f (threshold %.1f)", *ev.Confidence, rule.Threshold)
		return e.record(ctx, rule, ev, model.AlertTriggered, msg)
	}
	msg := fmt.Sprintf("confidence %.1f below threshold %.1f", *ev.Confidence, rule.Threshold)
	return e.record(ctx, rule, ev, model.AlertSuppressed, msg)
}

// evaluateFrequency fires when the detection count for the camera within
// the rule window reaches the threshold.
func (e *Evaluator) evaluateFrequency(ctx context.Context, rule model.AlertRule, ev *model.Event) (*model.AlertLog, error) {
	if ev.EventType != model.EventPersonDetected {
		return nil, nil
	}
	since := ev.OccurredAt.Add(-time.Duration(rule.WindowSeconds) * time.Second)
	count, err := e.store.CountEventsSince(ctx, ev.CameraID, ev.OrgID, model.EventPersonDetected, since)
	if err != nil {
		return nil, err
	}
	if float64(count) >= rule.Threshold {
		msg := fmt.Sprintf("%d detections in %ds window (threshold %.0f)", count, rule.WindowSeconds, rule.Threshold)
		return e.record(ctx, rule, ev, model.AlertTriggered, msg)
	}
	return nil, nil
}

func (e *Evaluator) record(ctx context.Context, rule model.AlertRule, ev *model.Event, status, message string) (*model.AlertLog, error) {
	log := &model.AlertLog{
		ID:          uuid.NewString(),
		AlertRuleID: rule.ID,
		EventID:     ev.ID,
		OrgID:       rule.OrgID,
		Status:      status,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateAlertLog(ctx, log); err != nil {
		return nil, err
	}
	if status == model.AlertTriggered {
		e.logger.Info("alert triggered", "rule_id", rule.ID, "event_id", ev.ID, "message", message)
	}
	return log, nil
}
