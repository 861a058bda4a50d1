package audithook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	ah "github.com/Pasan-pramu/remind/audit_hook"
	"github.com/Pasan-pramu/remind/ext"
	"github.com/Pasan-pramu/remind/id"
	"github.com/Pasan-pramu/remind/job"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Name:       "workflow.wake",
		Key:        "wake:wfrun_01:1700000000",
		Queue:      "timers",
		MaxRetries: 3,
		RetryCount: 1,
	}
}

func newTestRun() *workflow.Run {
	return &workflow.Run{
		ID:          id.NewRunID(),
		Name:        "subscription-reminders",
		Input:       []byte(`{"subscription_id":"sub_1"}`),
		SleepStep:   "Reminder 7 days before",
		Activations: 2,
	}
}

func newTestSubscription() *subscription.Subscription {
	return &subscription.Subscription{
		ID:          "sub_1",
		RenewalDate: time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC),
		User:        subscription.User{ID: "usr_1", Email: "ada@example.com"},
	}
}

func TestExtension_Name(t *testing.T) {
	if got := ah.New(&mockRecorder{}).Name(); got != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", got)
	}
}

func TestExtension_ReminderSent(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	run := newTestRun()

	if err := e.OnReminderSent(context.Background(), run, newTestSubscription(), "7 days before reminder"); err != nil {
		t.Fatalf("OnReminderSent: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionReminderSent || evt.Category != ah.CategoryReminder {
		t.Errorf("action/category = %q/%q", evt.Action, evt.Category)
	}
	if evt.Resource != ah.ResourceSubscription || evt.ResourceID != "sub_1" {
		t.Errorf("resource = %q/%q", evt.Resource, evt.ResourceID)
	}
	if evt.Severity != ah.SeverityInfo || evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("severity/outcome = %q/%q", evt.Severity, evt.Outcome)
	}
	want := map[string]any{
		"run_id":       run.ID.String(),
		"label":        "7 days before reminder",
		"user_id":      "usr_1",
		"renewal_date": "2025-03-11",
	}
	for k, v := range want {
		if evt.Metadata[k] != v {
			t.Errorf("Metadata[%s] = %v, want %v", k, evt.Metadata[k], v)
		}
	}
}

func TestExtension_ReminderSkipped(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	_ = e.OnReminderSkipped(context.Background(), newTestRun(), "sub_1", "5 days before reminder", "missed reminder day")

	evt := rec.last()
	if evt.Action != ah.ActionReminderSkipped || evt.Outcome != ah.OutcomeSkipped || evt.Severity != ah.SeverityWarning {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.Metadata["skip_reason"] != "missed reminder day" {
		t.Errorf("Metadata[skip_reason] = %v", evt.Metadata["skip_reason"])
	}
}

func TestExtension_WorkflowHooks(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	run := newTestRun()
	wakeAt := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)

	_ = e.OnWorkflowStarted(ctx, run)
	if rec.last().Metadata["input"] != `{"subscription_id":"sub_1"}` {
		t.Errorf("started input = %v", rec.last().Metadata["input"])
	}

	_ = e.OnWorkflowSuspended(ctx, run, wakeAt)
	evt := rec.last()
	if evt.Action != ah.ActionWorkflowSuspended || evt.Metadata["wake_at"] != "2025-03-04T09:00:00Z" {
		t.Errorf("suspended event %+v", evt)
	}
	if evt.Metadata["sleep_step"] != "Reminder 7 days before" {
		t.Errorf("sleep_step = %v", evt.Metadata["sleep_step"])
	}

	_ = e.OnWorkflowResumed(ctx, run)
	if rec.last().Metadata["activations"] != 2 {
		t.Errorf("resumed activations = %v", rec.last().Metadata["activations"])
	}

	_ = e.OnWorkflowStepFailed(ctx, run, "2 days before reminder", errors.New("smtp: 421"))
	if evt := rec.last(); evt.Severity != ah.SeverityWarning || evt.Reason != "smtp: 421" {
		t.Errorf("step failed event %+v", evt)
	}

	_ = e.OnWorkflowCompleted(ctx, run, 3*time.Second)
	if rec.last().Metadata["elapsed_ms"] != int64(3000) {
		t.Errorf("elapsed_ms = %v", rec.last().Metadata["elapsed_ms"])
	}

	_ = e.OnWorkflowFailed(ctx, run, errors.New("boom"))
	if evt := rec.last(); evt.Severity != ah.SeverityCritical || evt.Metadata["error"] != "boom" {
		t.Errorf("failed event %+v", evt)
	}
}

func TestExtension_JobHooks(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	j := newTestJob()

	_ = e.OnJobRetrying(ctx, j, 2, time.Date(2025, time.March, 4, 9, 1, 0, 0, time.UTC))
	if evt := rec.last(); evt.Action != ah.ActionJobRetrying || evt.Metadata["attempt"] != 2 {
		t.Errorf("retrying event %+v", evt)
	}

	_ = e.OnJobFailed(ctx, j, errors.New("run not found"))
	if evt := rec.last(); evt.Severity != ah.SeverityCritical || evt.Reason != "run not found" {
		t.Errorf("failed event %+v", evt)
	}

	_ = e.OnJobDLQ(ctx, j, errors.New("run not found"))
	if evt := rec.last(); evt.Action != ah.ActionJobDLQ || evt.Metadata["job_key"] != j.Key {
		t.Errorf("dlq event %+v", evt)
	}
}

func TestExtension_EmptySweepNotRecorded(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	_ = e.OnSweepCompleted(context.Background(), 0)
	if rec.count() != 0 {
		t.Fatalf("expected no event, got %d", rec.count())
	}
	_ = e.OnSweepCompleted(context.Background(), 4)
	if evt := rec.last(); evt == nil || evt.Metadata["rescheduled"] != 4 {
		t.Fatalf("sweep event %+v", evt)
	}
}

func TestExtension_WithActionsFilters(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionReminderSent))
	ctx := context.Background()

	_ = e.OnWorkflowStarted(ctx, newTestRun())
	_ = e.OnReminderSkipped(ctx, newTestRun(), "sub_1", "1 days before reminder", "x")
	_ = e.OnReminderSent(ctx, newTestRun(), newTestSubscription(), "1 days before reminder")

	if rec.count() != 1 || rec.last().Action != ah.ActionReminderSent {
		t.Fatalf("expected only reminder.sent, got %d events", rec.count())
	}
}

func TestExtension_RecorderErrorSwallowed(t *testing.T) {
	failing := ah.RecorderFunc(func(context.Context, *ah.AuditEvent) error {
		return errors.New("backend down")
	})
	e := ah.New(failing, ah.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := e.OnWorkflowFailed(context.Background(), newTestRun(), errors.New("boom")); err != nil {
		t.Fatalf("recorder errors must not propagate, got %v", err)
	}
}

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(ah.New(rec))

	reg.EmitReminderSent(context.Background(), newTestRun(), newTestSubscription(), "2 days before reminder")
	reg.EmitJobEnqueued(context.Background(), newTestJob())

	if rec.count() != 1 {
		t.Fatalf("expected 1 event (job.enqueued is not audited), got %d", rec.count())
	}
}

func TestAllActions(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range ah.AllActions() {
		if seen[a] {
			t.Errorf("duplicate action %q", a)
		}
		seen[a] = true
	}
	if len(seen) != 12 {
		t.Errorf("expected 12 actions, got %d", len(seen))
	}
}

func TestSlogRecorder_WritesAuditGroup(t *testing.T) {
	var buf bytes.Buffer
	rec := ah.NewSlogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := ah.New(rec)

	_ = e.OnWorkflowFailed(context.Background(), newTestRun(), errors.New("boom"))

	var line struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		Audit struct {
			Action   string         `json:"action"`
			Reason   string         `json:"reason"`
			Metadata map[string]any `json:"metadata"`
		} `json:"audit"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line.Level != "ERROR" || line.Msg != "audit event" {
		t.Errorf("level/msg = %q/%q", line.Level, line.Msg)
	}
	if line.Audit.Action != ah.ActionWorkflowFailed || line.Audit.Reason != "boom" {
		t.Errorf("audit = %+v", line.Audit)
	}
	if line.Audit.Metadata["workflow_name"] != "subscription-reminders" {
		t.Errorf("metadata = %v", line.Audit.Metadata)
	}
}
