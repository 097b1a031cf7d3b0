// Package engine wires the assessment pipeline together: detection,
// scoring, event recording, intervention planning, notification dispatch,
// and the background escalation monitor.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/config"
	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/dashboard"
	"github.com/vigil/vigil/internal/domain/escalation"
	"github.com/vigil/vigil/internal/domain/intervention"
	"github.com/vigil/vigil/internal/domain/notification"
	"github.com/vigil/vigil/internal/domain/risk"
	"github.com/vigil/vigil/internal/platform/audit"
	"github.com/vigil/vigil/internal/platform/clock"
	"github.com/vigil/vigil/internal/platform/telemetry"
	"github.com/vigil/vigil/internal/platform/websocket"
)

// excerptLimit caps the amount of assessed text stored on a crisis event.
const excerptLimit = 200

// AssessRequest is one message to evaluate.
type AssessRequest struct {
	SubjectID string               `json:"subject_id"`
	SessionID string               `json:"session_id"`
	Text      string               `json:"text"`
	History   *risk.SubjectHistory `json:"history,omitempty"`
}

// AssessResult is the outcome of a pipeline run. Event, Interventions and
// Notification are only populated when the assessment crossed the
// corresponding thresholds.
type AssessResult struct {
	Assessment    risk.Assessment             `json:"assessment"`
	Event         *crisis.Event               `json:"event,omitempty"`
	Interventions []intervention.Intervention `json:"interventions,omitempty"`
	Notification  *notification.Notification  `json:"notification,omitempty"`
}

// Engine owns the crisis pipeline and its registries.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
	clk    clock.Clock

	assessor      *risk.Assessor
	events        *crisis.EventStore
	interventions *intervention.Orchestrator
	notifications *notification.Dispatcher
	monitor       *escalation.Monitor
	dashboard     *dashboard.Service

	auditRepo audit.Repository
	hub       *websocket.Hub
	tp        *telemetry.TelemetryProvider
}

// New assembles an Engine from configuration. The sink receives every
// dispatched notification; the audit repository records the trail.
func New(cfg *config.Config, logger zerolog.Logger, sink notification.Sink,
	auditRepo audit.Repository, hub *websocket.Hub, tp *telemetry.TelemetryProvider, clk clock.Clock) *Engine {

	if clk == nil {
		clk = clock.System{}
	}

	detector := risk.NewDetector(risk.DefaultRules())
	scorer := risk.NewScorer(risk.DefaultRules())
	history := risk.NewHistoryLog(cfg.HistoryWindow, clk)
	assessor := risk.NewAssessor(detector, scorer, history, cfg.AssessmentBudget, clk, logger)

	events := crisis.NewEventStore(clk)
	interventions := intervention.NewOrchestrator(intervention.DefaultPlan(), clk, logger)

	policies := notification.DefaultPolicies()
	policies[crisis.LevelCritical] = notification.DeliveryPolicy{
		Priority: notification.PriorityCritical,
		Deadline: cfg.CriticalResponse,
	}
	policies[crisis.LevelHigh] = notification.DeliveryPolicy{
		Priority: notification.PriorityHigh,
		Deadline: cfg.HighResponse,
	}
	targets := notification.Targets{
		OnCall:     cfg.OnCallRole,
		Escalation: cfg.EscalationRole,
		Supervisor: cfg.SupervisorRole,
	}
	notifications := notification.NewDispatcher(policies, targets, sink, clk, logger)

	thresholds := map[crisis.Level]time.Duration{
		crisis.LevelCritical: cfg.CriticalResponse,
		crisis.LevelHigh:     cfg.HighResponse,
	}
	monitor := escalation.NewMonitor(events, interventions, notifications,
		cfg.ScanInterval, thresholds, clk, logger)

	e := &Engine{
		cfg:           cfg,
		logger:        logger,
		clk:           clk,
		assessor:      assessor,
		events:        events,
		interventions: interventions,
		notifications: notifications,
		monitor:       monitor,
		dashboard:     dashboard.NewService(events, interventions, notifications, assessor),
		auditRepo:     auditRepo,
		hub:           hub,
		tp:            tp,
	}

	monitor.SetEscalatedCallback(e.onEscalated)
	return e
}

// Start launches the escalation monitor.
func (e *Engine) Start(ctx context.Context) {
	e.monitor.Start(ctx)
}

// Stop shuts the monitor down and drains the in-flight scan cycle.
func (e *Engine) Stop() {
	e.monitor.Stop()
}

// ---------------------------------------------------------------------------
// Assessment pipeline
// ---------------------------------------------------------------------------

// Assess runs the full pipeline for one message. Detection failures degrade
// to a safe assessment rather than an error; the only error returned is a
// missing subject identifier.
func (e *Engine) Assess(ctx context.Context, req AssessRequest) (AssessResult, error) {
	if strings.TrimSpace(req.SubjectID) == "" {
		return AssessResult{}, fmt.Errorf("subject_id is required")
	}

	assessment := e.assessor.Assess(ctx, req.SubjectID, req.Text, req.History)

	if e.tp != nil {
		e.tp.RecordAssessment(assessment.Level.String(), assessment.Latency)
		if assessment.Degraded {
			e.tp.RecordDegradedAssessment()
		}
	}

	result := AssessResult{Assessment: assessment}
	if !assessment.Detected {
		return result, nil
	}

	event := crisis.Event{
		ID:                   uuid.New(),
		SubjectID:            req.SubjectID,
		SessionID:            req.SessionID,
		Level:                assessment.Level,
		Indicators:           assessment.Indicators,
		Score:                assessment.Score,
		Excerpt:              truncate(req.Text, excerptLimit),
		DetectedAt:           e.clk.Now(),
		AssessmentLatency:    assessment.Latency,
		InterventionRequired: assessment.Level >= crisis.LevelModerate,
		EscalationRequired:   assessment.Level >= crisis.LevelHigh,
	}
	e.events.Record(ctx, &event)
	result.Event = &event

	e.audit(ctx, audit.Entry{
		Action:    audit.ActionEventRecorded,
		SubjectID: event.SubjectID,
		EventID:   event.ID.String(),
		Detail:    fmt.Sprintf("level=%s score=%d", event.Level, event.Score),
	})
	e.broadcast(websocket.TopicEvents, "event_recorded", event.Level.String(), event)

	if event.InterventionRequired {
		opened := e.interventions.Open(ctx, event)
		result.Interventions = opened
		for _, iv := range opened {
			e.audit(ctx, audit.Entry{
				Action:    audit.ActionInterventionOpened,
				SubjectID: event.SubjectID,
				EventID:   event.ID.String(),
				Detail:    string(iv.Type),
			})
		}
		e.broadcast(websocket.TopicInterventions, "interventions_opened", event.Level.String(), opened)
	}

	n := e.notifications.Send(ctx, event)
	result.Notification = &n
	e.audit(ctx, audit.Entry{
		Action:    audit.ActionNotificationSent,
		SubjectID: event.SubjectID,
		EventID:   event.ID.String(),
		Detail:    fmt.Sprintf("recipient=%s priority=%s", n.Recipient, n.Priority),
	})
	e.broadcast(websocket.TopicNotifications, "notification_sent", event.Level.String(), n)

	e.updateGauges(ctx)
	return result, nil
}

// ---------------------------------------------------------------------------
// Operator actions
// ---------------------------------------------------------------------------

// AcknowledgeNotification marks a notification acknowledged. Returns false
// for an unknown identifier.
func (e *Engine) AcknowledgeNotification(ctx context.Context, id uuid.UUID, actor string) bool {
	if !e.notifications.Acknowledge(ctx, id, actor) {
		return false
	}
	e.audit(ctx, audit.Entry{
		Action: audit.ActionNotificationAcked,
		Actor:  actor,
		Detail: id.String(),
	})
	e.updateGauges(ctx)
	return true
}

// UpdateInterventionStatus applies a status transition. Returns false for
// an unknown intervention or a disallowed transition.
func (e *Engine) UpdateInterventionStatus(ctx context.Context, id uuid.UUID, status intervention.Status, actor, note string) bool {
	if !e.interventions.UpdateStatus(ctx, id, status, actor, note) {
		return false
	}
	iv, _ := e.interventions.Get(ctx, id)
	e.audit(ctx, audit.Entry{
		Action:  audit.ActionInterventionStatus,
		EventID: iv.EventID.String(),
		Actor:   actor,
		Detail:  fmt.Sprintf("%s -> %s", iv.Type, status),
	})
	e.broadcast(websocket.TopicInterventions, "intervention_updated", "", iv)
	e.updateGauges(ctx)
	return true
}

// ---------------------------------------------------------------------------
// Escalation plumbing
// ---------------------------------------------------------------------------

// onEscalated runs after the monitor escalates an event or notification.
func (e *Engine) onEscalated(kind, eventID string) {
	ctx := context.Background()

	action := audit.ActionEventEscalated
	if kind == "notification" {
		action = audit.ActionNotificationEscal
	}
	e.audit(ctx, audit.Entry{
		Action:  action,
		EventID: eventID,
		Detail:  kind,
	})
	if e.tp != nil {
		e.tp.RecordEscalation(kind)
	}
	e.broadcast(websocket.TopicEscalations, "escalated", "", map[string]string{
		"kind":     kind,
		"event_id": eventID,
	})
	e.updateGauges(ctx)
}

// ---------------------------------------------------------------------------
// Queries and health
// ---------------------------------------------------------------------------

func (e *Engine) Events() *crisis.EventStore                  { return e.events }
func (e *Engine) Interventions() *intervention.Orchestrator   { return e.interventions }
func (e *Engine) Notifications() *notification.Dispatcher     { return e.notifications }
func (e *Engine) Dashboard() *dashboard.Service               { return e.dashboard }
func (e *Engine) Monitor() *escalation.Monitor                { return e.monitor }
func (e *Engine) Assessor() *risk.Assessor                    { return e.assessor }
func (e *Engine) AuditTrail() audit.Repository                { return e.auditRepo }

// Health is the liveness view served at /health.
type Health struct {
	Status               string `json:"status"`
	ActiveEvents         int    `json:"active_events"`
	PendingInterventions int    `json:"pending_interventions"`
	UnacknowledgedAlerts int    `json:"unacknowledged_alerts"`
	MonitorRunning       bool   `json:"monitor_running"`
	AssessmentsProcessed int64  `json:"assessments_processed"`
}

func (e *Engine) Health(ctx context.Context) Health {
	_, processed := e.assessor.AverageLatency()
	status := "ok"
	if !e.monitor.Running() {
		status = "degraded"
	}
	return Health{
		Status:               status,
		ActiveEvents:         e.events.Count(ctx),
		PendingInterventions: len(e.interventions.Pending(ctx)),
		UnacknowledgedAlerts: len(e.notifications.Pending(ctx)),
		MonitorRunning:       e.monitor.Running(),
		AssessmentsProcessed: processed,
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (e *Engine) audit(ctx context.Context, entry audit.Entry) {
	if e.auditRepo == nil {
		return
	}
	entry.ID = uuid.New()
	entry.At = e.clk.Now()
	if err := e.auditRepo.Append(ctx, entry); err != nil {
		e.logger.Error().Err(err).Str("action", entry.Action).Msg("audit append failed")
	}
}

func (e *Engine) broadcast(topic, eventType, level string, payload interface{}) {
	if e.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Str("topic", topic).Msg("feed payload marshal failed")
		return
	}
	e.hub.Broadcast(topic, websocket.Event{
		Type:      eventType,
		Topic:     topic,
		Level:     level,
		Timestamp: e.clk.Now(),
		Data:      data,
	})
	if e.tp != nil {
		e.tp.Gauges().SetFeedClients(int64(e.hub.ClientCount()))
	}
}

func (e *Engine) updateGauges(ctx context.Context) {
	if e.tp == nil {
		return
	}
	g := e.tp.Gauges()
	g.SetActiveEvents(int64(e.events.Count(ctx)))
	g.SetPendingInterventions(int64(len(e.interventions.Pending(ctx))))
	g.SetUnacknowledgedAlerts(int64(len(e.notifications.Pending(ctx))))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
