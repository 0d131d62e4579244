package alert

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

func newTestEvaluator(t *testing.T) (*Evaluator, *store.Store) {
	t.Helper()
	dsn, err := store.SQLiteDSN("")
	if err != nil {
		t.Fatalf("SQLiteDSN: %v", err)
	}
	st, err := store.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewEvaluator(st, slog.New(slog.NewTextHandler(io.Discard, nil))), st
}

func seedRule(t *testing.T, st *store.Store, cameraID, ruleType string, threshold float64, windowSeconds int) *model.AlertRule {
	t.Helper()
	rule := &model.AlertRule{
		OrgID:         "org-1",
		CameraID:      cameraID,
		RuleType:      ruleType,
		Threshold:     threshold,
		WindowSeconds: windowSeconds,
		Enabled:       true,
	}
	if err := st.CreateAlertRule(context.Background(), rule); err != nil {
		t.Fatalf("CreateAlertRule: %v", err)
	}
	return rule
}

func detection(cameraID string, confidence float64) *model.Event {
	return &model.Event{
		ID:         "evt-1",
		CameraID:   cameraID,
		OrgID:      "org-1",
		EventType:  model.EventPersonDetected,
		Confidence: &confidence,
		OccurredAt: time.Now().UTC(),
	}
}

func TestPresenceRule_Triggers(t *testing.T) {
	eval, st := newTestEvaluator(t)
	rule := seedRule(t, st, "cam-1", model.RulePersonPresence, 90, 0)

	logs := eval.Evaluate(context.Background(), detection("cam-1", 95))
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Status != model.AlertTriggered {
		t.Errorf("status = %q, want %q", logs[0].Status, model.AlertTriggered)
	}
	if logs[0].AlertRuleID != rule.ID {
		t.Errorf("rule id = %q, want %q", logs[0].AlertRuleID, rule.ID)
	}

	// The log is persisted, not just returned.
	stored, err := st.ListAlertLogs(context.Background(), "org-1", 10)
	if err != nil {
		t.Fatalf("ListAlertLogs: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored logs = %d, want 1", len(stored))
	}
}

func TestPresenceRule_SuppressedBelowThreshold(t *testing.T) {
	eval, st := newTestEvaluator(t)
	seedRule(t, st, "cam-1", model.RulePersonPresence, 90, 0)

	logs := eval.Evaluate(context.Background(), detection("cam-1", 50))
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Status != model.AlertSuppressed {
		t.Errorf("status = %q, want %q", logs[0].Status, model.AlertSuppressed)
	}
}

func TestPresenceRule_IgnoresOtherEventTypes(t *testing.T) {
	eval, st := newTestEvaluator(t)
	seedRule(t, st, "cam-1", model.RulePersonPresence, 90, 0)

	ev := detection("cam-1", 95)
	ev.EventType = model.EventHeartbeat
	if logs := eval.Evaluate(context.Background(), ev); len(logs) != 0 {
		t.Errorf("logs = %d, want 0 for heartbeat events", len(logs))
	}

	ev = detection("cam-1", 0)
	ev.Confidence = nil
	if logs := eval.Evaluate(context.Background(), ev); len(logs) != 0 {
		t.Errorf("logs = %d, want 0 for events without confidence", len(logs))
	}
}

func TestFrequencyRule(t *testing.T) {
	eval, st := newTestEvaluator(t)
	seedRule(t, st, "cam-1", model.RuleFrequency, 3, 60)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two stored detections inside the window: not enough yet.
	for i := 0; i < 2; i++ {
		conf := 80.0
		evt := &model.Event{
			CameraID:   "cam-1",
			OrgID:      "org-1",
			EventType:  model.EventPersonDetected,
			Confidence: &conf,
			OccurredAt: now.Add(-time.Duration(i+1) * time.Second),
		}
		if err := st.CreateEvent(ctx, evt); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	ev := detection("cam-1", 80)
	if logs := eval.Evaluate(ctx, ev); len(logs) != 0 {
		t.Fatalf("logs = %d, want 0 below the frequency threshold", len(logs))
	}

	// Persist the third detection; evaluation now sees three in the window.
	ev.OccurredAt = now
	if err := st.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	logs := eval.Evaluate(ctx, ev)
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Status != model.AlertTriggered {
		t.Errorf("status = %q, want %q", logs[0].Status, model.AlertTriggered)
	}
}

func TestEvaluate_DisabledRulesSkipped(t *testing.T) {
	eval, st := newTestEvaluator(t)
	rule := seedRule(t, st, "cam-1", model.RulePersonPresence, 10, 0)
	rule.Enabled = false
	if err := st.UpdateAlertRule(context.Background(), rule); err != nil {
		t.Fatalf("UpdateAlertRule: %v", err)
	}

	if logs := eval.Evaluate(context.Background(), detection("cam-1", 95)); len(logs) != 0 {
		t.Errorf("logs = %d, want 0 for disabled rules", len(logs))
	}
}

func TestEvaluate_OtherCameraRulesSkipped(t *testing.T) {
	eval, st := newTestEvaluator(t)
	seedRule(t, st, "cam-other", model.RulePersonPresence, 10, 0)

	if logs := eval.Evaluate(context.Background(), detection("cam-1", 95)); len(logs) != 0 {
		t.Errorf("logs = %d, want 0 for rules on other cameras", len(logs))
	}
}
