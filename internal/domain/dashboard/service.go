// Package dashboard exposes read-only projections over the crisis
// registries for monitoring clients. All views are built from value
// snapshots and never mutate state.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/intervention"
	"github.com/vigil/vigil/internal/domain/notification"
	"github.com/vigil/vigil/internal/domain/risk"
)

// Summary is the aggregate operational view.
type Summary struct {
	ActiveEvents         int                        `json:"active_events"`
	EventsByLevel        map[string]int             `json:"events_by_level"`
	PendingInterventions int                        `json:"pending_interventions"`
	PendingByType        map[intervention.Type]int  `json:"pending_by_type"`
	CompletedCount       int64                      `json:"completed_interventions"`
	UnacknowledgedAlerts int                        `json:"unacknowledged_alerts"`
	AssessmentsProcessed int64                      `json:"assessments_processed"`
	AverageAssessmentMs  float64                    `json:"average_assessment_ms"`
	GeneratedAt          time.Time                  `json:"generated_at"`
}

// Service answers dashboard queries against the live registries.
type Service struct {
	events        *crisis.EventStore
	interventions *intervention.Orchestrator
	notifications *notification.Dispatcher
	assessor      *risk.Assessor
}

func NewService(events *crisis.EventStore, ivs *intervention.Orchestrator, ns *notification.Dispatcher, assessor *risk.Assessor) *Service {
	return &Service{
		events:        events,
		interventions: ivs,
		notifications: ns,
		assessor:      assessor,
	}
}

// ActiveEvents returns open crisis events ordered by severity descending,
// then detection time ascending, so the most urgent and longest-waiting
// entries surface first.
func (s *Service) ActiveEvents(ctx context.Context) []crisis.Event {
	events := s.events.Active(ctx)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Level != events[j].Level {
			return events[i].Level > events[j].Level
		}
		return events[i].DetectedAt.Before(events[j].DetectedAt)
	})
	return events
}

// PendingInterventions returns open interventions oldest first.
func (s *Service) PendingInterventions(ctx context.Context) []intervention.Intervention {
	return s.interventions.Pending(ctx)
}

// PendingNotifications returns unacknowledged notifications oldest first.
func (s *Service) PendingNotifications(ctx context.Context) []notification.Notification {
	return s.notifications.Pending(ctx)
}

// SubjectEvents returns the crisis history for one subject, newest first.
func (s *Service) SubjectEvents(ctx context.Context, subjectID string) []crisis.Event {
	events := s.events.BySubject(ctx, subjectID)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DetectedAt.After(events[j].DetectedAt)
	})
	return events
}

// Summary builds the aggregate view. Counts come from independent
// snapshots, so totals may skew by one entry under concurrent writes.
func (s *Service) Summary(ctx context.Context) Summary {
	byLevel := make(map[string]int)
	for level, n := range s.events.CountByLevel(ctx) {
		byLevel[level.String()] = n
	}

	avg, processed := s.assessor.AverageLatency()

	return Summary{
		ActiveEvents:         s.events.Count(ctx),
		EventsByLevel:        byLevel,
		PendingInterventions: len(s.interventions.Pending(ctx)),
		PendingByType:        s.interventions.PendingByType(ctx),
		CompletedCount:       s.interventions.CompletedCount(),
		UnacknowledgedAlerts: len(s.notifications.Pending(ctx)),
		AssessmentsProcessed: processed,
		AverageAssessmentMs:  float64(avg.Microseconds()) / 1000.0,
		GeneratedAt:          time.Now().UTC(),
	}
}
