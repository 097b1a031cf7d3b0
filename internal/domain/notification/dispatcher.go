package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/platform/clock"
)

const excerptLimit = 120

// DeliveryPolicy binds a priority and response deadline to a crisis level.
type DeliveryPolicy struct {
	Priority string
	Deadline time.Duration
}

// DefaultPolicies returns the built-in level-to-policy table. Levels absent
// from the table fall back to the medium/5-minute policy.
func DefaultPolicies() map[crisis.Level]DeliveryPolicy {
	return map[crisis.Level]DeliveryPolicy{
		crisis.LevelCritical: {Priority: PriorityCritical, Deadline: 30 * time.Second},
		crisis.LevelHigh:     {Priority: PriorityHigh, Deadline: 2 * time.Minute},
	}
}

var fallbackPolicy = DeliveryPolicy{Priority: PriorityMedium, Deadline: 5 * time.Minute}

// Targets names the recipient roles for each notification kind. Identity
// resolution is the caller's concern; these are opaque recipient ids.
type Targets struct {
	OnCall     string
	Escalation string
	Supervisor string
}

// DefaultTargets returns the built-in recipient roles.
func DefaultTargets() Targets {
	return Targets{
		OnCall:     "role:crisis-on-call",
		Escalation: "role:crisis-escalation",
		Supervisor: "role:crisis-supervisor",
	}
}

// Dispatcher creates, stores, and delivers crisis notifications. The
// registry is mutex-guarded; sink delivery happens outside the lock.
type Dispatcher struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*Notification
	order         []uuid.UUID

	policies map[crisis.Level]DeliveryPolicy
	targets  Targets
	sink     Sink
	clk      clock.Clock
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher. Nil policies default to
// DefaultPolicies; a zero Targets defaults to DefaultTargets.
func NewDispatcher(policies map[crisis.Level]DeliveryPolicy, targets Targets, sink Sink, clk clock.Clock, logger zerolog.Logger) *Dispatcher {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if targets == (Targets{}) {
		targets = DefaultTargets()
	}
	if sink == nil {
		sink = &LogSink{Logger: logger}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Dispatcher{
		notifications: make(map[uuid.UUID]*Notification),
		policies:      policies,
		targets:       targets,
		sink:          sink,
		clk:           clk,
		logger:        logger,
	}
}

func (d *Dispatcher) policyFor(level crisis.Level) DeliveryPolicy {
	if p, ok := d.policies[level]; ok {
		return p
	}
	return fallbackPolicy
}

// Send creates and delivers the initial notification for a crisis event.
// Priority and deadline derive purely from the event's level. Delivery
// failure is logged but does not prevent the notification from being
// tracked: the escalation monitor will catch the missed acknowledgement.
func (d *Dispatcher) Send(ctx context.Context, event crisis.Event) Notification {
	policy := d.policyFor(event.Level)
	now := d.clk.Now()

	n := &Notification{
		ID:               uuid.New(),
		EventID:          event.ID,
		Recipient:        d.targets.OnCall,
		Kind:             KindCrisisAlert,
		Priority:         policy.Priority,
		Message:          formatAlertMessage(event),
		SentAt:           now,
		ResponseRequired: true,
		Deadline:         now.Add(policy.Deadline),
	}
	d.deliverAndStore(ctx, n)
	return *n
}

// SendEventEscalation creates the critical notification produced when a
// crisis event breaches its immediate-response threshold. It targets the
// escalation role with a one-minute deadline.
func (d *Dispatcher) SendEventEscalation(ctx context.Context, event crisis.Event, reason string) Notification {
	now := d.clk.Now()
	n := &Notification{
		ID:               uuid.New(),
		EventID:          event.ID,
		Recipient:        d.targets.Escalation,
		Kind:             KindEventEscalation,
		Priority:         PriorityCritical,
		Message: fmt.Sprintf(
			"ESCALATION: crisis event %s for subject %s (level %s) breached its response deadline. %s",
			event.ID, event.SubjectID, event.Level, reason),
		SentAt:           now,
		ResponseRequired: true,
		Deadline:         now.Add(time.Minute),
	}
	d.deliverAndStore(ctx, n)
	return *n
}

// SendNotificationEscalation creates the critical notification produced
// when an earlier notification goes unacknowledged past its deadline. It
// targets the supervisory role with a two-minute deadline and references
// the original notification.
func (d *Dispatcher) SendNotificationEscalation(ctx context.Context, original Notification) Notification {
	now := d.clk.Now()
	n := &Notification{
		ID:        uuid.New(),
		EventID:   original.EventID,
		Recipient: d.targets.Supervisor,
		Kind:      KindNotificationEscalation,
		Priority:  PriorityCritical,
		Message: fmt.Sprintf(
			"ESCALATION: notification %s to %s sent at %s was not acknowledged by its %s deadline.",
			original.ID, original.Recipient,
			original.SentAt.Format(time.RFC3339), original.Deadline.Format(time.RFC3339)),
		SentAt:           now,
		ResponseRequired: true,
		Deadline:         now.Add(2 * time.Minute),
		SupersedesID:     &original.ID,
	}
	d.deliverAndStore(ctx, n)
	return *n
}

func (d *Dispatcher) deliverAndStore(ctx context.Context, n *Notification) {
	// Sink I/O stays outside the registry lock.
	if err := d.sink.Deliver(ctx, n); err != nil {
		d.logger.Error().Err(err).
			Str("notification_id", n.ID.String()).
			Str("recipient", n.Recipient).
			Msg("notification delivery failed")
	}

	d.mu.Lock()
	d.notifications[n.ID] = n
	d.order = append(d.order, n.ID)
	d.mu.Unlock()
}

// Acknowledge records a practitioner's acknowledgement. The first call
// stamps the time; repeated calls are idempotent no-ops that still return
// true. Unknown ids return false.
func (d *Dispatcher) Acknowledge(_ context.Context, id uuid.UUID, practitionerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.notifications[id]
	if !ok {
		return false
	}
	if n.Acknowledged {
		return true
	}
	now := d.clk.Now()
	n.Acknowledged = true
	n.AcknowledgedBy = practitionerID
	n.AcknowledgedAt = &now
	return true
}

// MarkEscalated flips the notification's escalated flag, returning true
// only on the first call. This is the at-most-once guard for deadline
// escalations.
func (d *Dispatcher) MarkEscalated(_ context.Context, id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.notifications[id]
	if !ok || n.Escalated {
		return false
	}
	n.Escalated = true
	return true
}

// Get returns a copy of the notification with the given id.
func (d *Dispatcher) Get(_ context.Context, id uuid.UUID) (Notification, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// Pending returns copies of all unacknowledged notifications sorted by
// sent time ascending.
func (d *Dispatcher) Pending(_ context.Context) []Notification {
	d.mu.RLock()
	var out []Notification
	for _, id := range d.order {
		if n, ok := d.notifications[id]; ok && !n.Acknowledged {
			out = append(out, *n)
		}
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out
}

// Count returns the total number of tracked notifications.
func (d *Dispatcher) Count(_ context.Context) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.notifications)
}

// formatAlertMessage renders the deterministic alert template.
func formatAlertMessage(event crisis.Event) string {
	indicators := make([]string, len(event.Indicators))
	for i, ind := range event.Indicators {
		indicators[i] = string(ind)
	}
	excerpt := event.Excerpt
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit] + "..."
	}
	return fmt.Sprintf(
		"CRISIS ALERT [%s] subject=%s session=%s score=%d indicators=%s immediate_intervention=%t escalation_required=%t input=%q",
		strings.ToUpper(event.Level.String()), event.SubjectID, event.SessionID,
		event.Score, strings.Join(indicators, ","),
		event.InterventionRequired, event.EscalationRequired, excerpt)
}
