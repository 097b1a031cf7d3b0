package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/intervention"
	"github.com/vigil/vigil/internal/domain/notification"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/clock"
)

type fixture struct {
	events        *crisis.EventStore
	interventions *intervention.Orchestrator
	notifications *notification.Dispatcher
	assessor      *risk.Assessor
	clk           *clock.Fake
	svc           *Service
}

func newFixture() *fixture {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	events := crisis.NewEventStore(clk)
	ivs := intervention.NewOrchestrator(nil, clk, zerolog.Nop())
	ns := notification.NewDispatcher(nil, notification.Targets{}, &notification.MockSink{}, clk, zerolog.Nop())
	detector := risk.NewDetector(nil)
	assessor := risk.NewAssessor(detector, risk.NewScorer(detector.Rules()),
		risk.NewHistoryLog(24*time.Hour, clk), time.Second, clk, zerolog.Nop())
	return &fixture{
		events:        events,
		interventions: ivs,
		notifications: ns,
		assessor:      assessor,
		clk:           clk,
		svc:           NewService(events, ivs, ns, assessor),
	}
}

func (f *fixture) recordEvent(subjectID string, level crisis.Level) crisis.Event {
	e := &crisis.Event{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		Level:      level,
		DetectedAt: f.clk.Now(),
	}
	f.events.Record(context.Background(), e)
	return *e
}

func TestService_ActiveEventsSeverityOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	low := f.recordEvent("a", crisis.LevelLow)
	f.clk.Advance(time.Minute)
	critOld := f.recordEvent("b", crisis.LevelCritical)
	f.clk.Advance(time.Minute)
	critNew := f.recordEvent("c", crisis.LevelCritical)
	f.clk.Advance(time.Minute)
	high := f.recordEvent("d", crisis.LevelHigh)

	got := f.svc.ActiveEvents(ctx)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	// Severity descending; equal severity by detection time ascending.
	wantOrder := []uuid.UUID{critOld.ID, critNew.ID, high.ID, low.ID}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s level %s, got %s level %s",
				i, want, "", got[i].ID, got[i].Level)
		}
	}
}

func TestService_SubjectEventsNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	older := f.recordEvent("subj-1", crisis.LevelLow)
	f.clk.Advance(time.Hour)
	newer := f.recordEvent("subj-1", crisis.LevelHigh)
	f.recordEvent("subj-2", crisis.LevelCritical)

	got := f.svc.SubjectEvents(ctx, "subj-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 events for subj-1, got %d", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatal("subject events not newest first")
	}
}

func TestService_PendingViews(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	event := f.recordEvent("subj-1", crisis.LevelModerate)
	f.interventions.Open(ctx, event)
	f.notifications.Send(ctx, event)

	if got := f.svc.PendingInterventions(ctx); len(got) != 2 {
		t.Fatalf("expected 2 pending interventions, got %d", len(got))
	}
	if got := f.svc.PendingNotifications(ctx); len(got) != 1 {
		t.Fatalf("expected 1 pending notification, got %d", len(got))
	}
}

func TestService_Summary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.recordEvent("subj-1", crisis.LevelCritical)
	f.recordEvent("subj-2", crisis.LevelHigh)
	event := f.recordEvent("subj-3", crisis.LevelModerate)

	ivs := f.interventions.Open(ctx, event)
	f.interventions.UpdateStatus(ctx, ivs[0].ID, intervention.StatusInProgress, "nurse-1", "")
	f.interventions.UpdateStatus(ctx, ivs[0].ID, intervention.StatusCompleted, "nurse-1", "")
	f.notifications.Send(ctx, event)

	f.assessor.Assess(ctx, "subj-1", "I feel hopeless", nil)
	f.assessor.Assess(ctx, "subj-2", "all fine", nil)

	summary := f.svc.Summary(ctx)

	if summary.ActiveEvents != 3 {
		t.Fatalf("expected 3 active events, got %d", summary.ActiveEvents)
	}
	if summary.EventsByLevel["critical"] != 1 || summary.EventsByLevel["high"] != 1 || summary.EventsByLevel["moderate"] != 1 {
		t.Fatalf("unexpected per-level counts: %v", summary.EventsByLevel)
	}
	if summary.PendingInterventions != 1 {
		t.Fatalf("expected 1 pending intervention, got %d", summary.PendingInterventions)
	}
	if summary.CompletedCount != 1 {
		t.Fatalf("expected 1 completed intervention, got %d", summary.CompletedCount)
	}
	if summary.UnacknowledgedAlerts != 1 {
		t.Fatalf("expected 1 unacknowledged alert, got %d", summary.UnacknowledgedAlerts)
	}
	if summary.AssessmentsProcessed != 2 {
		t.Fatalf("expected 2 assessments processed, got %d", summary.AssessmentsProcessed)
	}
	if summary.AverageAssessmentMs < 0 {
		t.Fatalf("average latency should be non-negative, got %f", summary.AverageAssessmentMs)
	}
	if summary.GeneratedAt.IsZero() {
		t.Fatal("expected GeneratedAt stamped")
	}
}

func TestService_SummaryEmpty(t *testing.T) {
	f := newFixture()

	summary := f.svc.Summary(context.Background())
	if summary.ActiveEvents != 0 || summary.PendingInterventions != 0 || summary.UnacknowledgedAlerts != 0 {
		t.Fatalf("expected zero counts, got %+v", summary)
	}
	if summary.AssessmentsProcessed != 0 || summary.AverageAssessmentMs != 0 {
		t.Fatalf("expected zero assessment stats, got %+v", summary)
	}
}
