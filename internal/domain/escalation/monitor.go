// Package escalation runs the background deadline audit: a periodic scan
// over open crisis events and pending notifications that escalates
// anything past its response threshold, at most once per breach.
package escalation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/domain/intervention"
	"github.com/vigil/vigil/internal/domain/notification"
	"github.com/vigil/vigil/internal/platform/clock"
)

// DefaultThresholds returns the built-in immediate-response thresholds.
// Moderate and low events are not time-boxed.
func DefaultThresholds() map[crisis.Level]time.Duration {
	return map[crisis.Level]time.Duration{
		crisis.LevelCritical: 30 * time.Second,
		crisis.LevelHigh:     2 * time.Minute,
	}
}

// Escalated is the callback invoked after each escalation, used to feed
// the live dashboard stream and telemetry. May be nil.
type Escalated func(kind string, eventID string)

// Monitor is the periodic deadline auditor. One Monitor runs per engine
// instance for the lifetime of the service.
type Monitor struct {
	events        *crisis.EventStore
	interventions *intervention.Orchestrator
	notifications *notification.Dispatcher

	interval   time.Duration
	thresholds map[crisis.Level]time.Duration
	clk        clock.Clock
	logger     zerolog.Logger
	onEscalate Escalated

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
	cycles  atomic.Int64
}

// NewMonitor wires a Monitor over the three registries. A zero interval
// defaults to 30 seconds; nil thresholds default to DefaultThresholds.
func NewMonitor(events *crisis.EventStore, ivs *intervention.Orchestrator, ns *notification.Dispatcher,
	interval time.Duration, thresholds map[crisis.Level]time.Duration, clk clock.Clock, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Monitor{
		events:        events,
		interventions: ivs,
		notifications: ns,
		interval:      interval,
		thresholds:    thresholds,
		clk:           clk,
		logger:        logger,
	}
}

// SetEscalatedCallback registers the post-escalation callback. Must be
// called before Start.
func (m *Monitor) SetEscalatedCallback(cb Escalated) { m.onEscalate = cb }

// Start launches the periodic scan loop. It is a no-op if the monitor is
// already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running.Load() {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running.Store(true)

	go m.loop(ctx, m.stop, m.done)
	m.logger.Info().Dur("interval", m.interval).Msg("escalation monitor started")
}

// Stop signals the loop to exit and waits for the in-flight cycle to
// drain. It is a no-op if the monitor is not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running.Load() {
		m.mu.Unlock()
		return
	}
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	m.running.Store(false)
	m.logger.Info().Int64("cycles", m.cycles.Load()).Msg("escalation monitor stopped")
}

// Running reports whether the scan loop is active.
func (m *Monitor) Running() bool { return m.running.Load() }

// Cycles returns the number of completed scan cycles.
func (m *Monitor) Cycles() int64 { return m.cycles.Load() }

func (m *Monitor) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunCycle(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			m.running.Store(false)
			return
		}
	}
}

// RunCycle executes one scan over a snapshot of current entries. A failure
// inside a cycle is logged and swallowed so the loop keeps running on the
// next tick. Exported so tests can drive cycles deterministically.
func (m *Monitor) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("escalation cycle failed; will retry next tick")
		}
		m.cycles.Add(1)
	}()

	now := m.clk.Now()
	m.scanEvents(ctx, now)
	m.scanNotifications(ctx, now)
}

// scanEvents escalates open events whose level-specific response threshold
// has passed without the event being escalated already.
func (m *Monitor) scanEvents(ctx context.Context, now time.Time) {
	for _, event := range m.events.Active(ctx) {
		threshold, boxed := m.thresholds[event.Level]
		if !boxed || event.Escalated {
			continue
		}
		overdue := now.Sub(event.DetectedAt)
		if overdue <= threshold {
			continue
		}
		// MarkEscalated is the at-most-once gate: a concurrent or later
		// cycle that loses the race skips the breach entirely.
		if !m.events.MarkEscalated(ctx, event.ID) {
			continue
		}

		reason := fmt.Sprintf("no response %s after detection (threshold %s)",
			overdue.Round(time.Second), threshold)
		m.logger.Warn().
			Str("event_id", event.ID.String()).
			Str("subject_id", event.SubjectID).
			Str("level", event.Level.String()).
			Dur("overdue", overdue).
			Msg("crisis event breached response threshold; escalating")

		m.interventions.OpenEmergency(ctx, event, reason)
		m.notifications.SendEventEscalation(ctx, event, reason)
		if m.onEscalate != nil {
			m.onEscalate("event", event.ID.String())
		}
	}
}

// scanNotifications escalates pending notifications past their deadline.
func (m *Monitor) scanNotifications(ctx context.Context, now time.Time) {
	for _, n := range m.notifications.Pending(ctx) {
		if n.Escalated || !n.ResponseRequired || !now.After(n.Deadline) {
			continue
		}
		if !m.notifications.MarkEscalated(ctx, n.ID) {
			continue
		}

		m.logger.Warn().
			Str("notification_id", n.ID.String()).
			Str("recipient", n.Recipient).
			Time("deadline", n.Deadline).
			Msg("notification unacknowledged past deadline; escalating")

		m.notifications.SendNotificationEscalation(ctx, n)
		if m.onEscalate != nil {
			m.onEscalate("notification", n.EventID.String())
		}
	}
}
