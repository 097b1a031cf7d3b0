package intervention

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/platform/clock"
)

// DefaultPlan returns the built-in level-to-intervention lookup table.
// Levels below moderate receive no interventions from the table.
func DefaultPlan() map[crisis.Level][]Type {
	return map[crisis.Level][]Type{
		crisis.LevelCritical: {
			TypeImmediateContact,
			TypeEmergencyServices,
			TypeSafetyPlanning,
			TypeFamilyNotification,
		},
		crisis.LevelHigh: {
			TypeImmediateContact,
			TypeCrisisCounseling,
			TypeSafetyPlanning,
			TypeFollowUp,
		},
		crisis.LevelModerate: {
			TypeCrisisCounseling,
			TypeFollowUp,
		},
	}
}

// Orchestrator maps crisis events to required interventions and tracks
// their lifecycle in a mutex-guarded in-memory registry.
type Orchestrator struct {
	mu            sync.RWMutex
	interventions map[uuid.UUID]*Intervention
	byEvent       map[uuid.UUID][]uuid.UUID
	order         []uuid.UUID
	completed     int64

	plan   map[crisis.Level][]Type
	clk    clock.Clock
	logger zerolog.Logger
}

// NewOrchestrator creates an Orchestrator using the given plan table, or
// DefaultPlan when plan is nil.
func NewOrchestrator(plan map[crisis.Level][]Type, clk clock.Clock, logger zerolog.Logger) *Orchestrator {
	if plan == nil {
		plan = DefaultPlan()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Orchestrator{
		interventions: make(map[uuid.UUID]*Intervention),
		byEvent:       make(map[uuid.UUID][]uuid.UUID),
		plan:          plan,
		clk:           clk,
		logger:        logger,
	}
}

// Open creates the intervention records required for a crisis event and
// returns copies of them. The plan table selects by level; two override
// rules then apply regardless of level: suicidal ideation always adds
// safety planning, and self-harm always adds immediate contact. Overrides
// are additive, never removals.
func (o *Orchestrator) Open(_ context.Context, event crisis.Event) []Intervention {
	types := append([]Type(nil), o.plan[event.Level]...)

	if event.HasIndicator(crisis.IndicatorSuicidalIdeation) && !containsType(types, TypeSafetyPlanning) {
		types = append(types, TypeSafetyPlanning)
	}
	if event.HasIndicator(crisis.IndicatorSelfHarm) && !containsType(types, TypeImmediateContact) {
		types = append(types, TypeImmediateContact)
	}

	out := make([]Intervention, 0, len(types))
	for _, t := range types {
		iv := o.create(event, t, "")
		out = append(out, iv)
	}
	if len(out) > 0 {
		o.logger.Info().
			Str("event_id", event.ID.String()).
			Str("subject_id", event.SubjectID).
			Str("level", event.Level.String()).
			Int("interventions", len(out)).
			Msg("opened interventions for crisis event")
	}
	return out
}

// OpenEmergency creates a single pending emergency-services intervention
// for an escalated event, annotated with the breach reason.
func (o *Orchestrator) OpenEmergency(_ context.Context, event crisis.Event, reason string) Intervention {
	return o.create(event, TypeEmergencyServices, reason)
}

func (o *Orchestrator) create(event crisis.Event, t Type, note string) Intervention {
	now := o.clk.Now()
	iv := &Intervention{
		ID:               uuid.New(),
		EventID:          event.ID,
		SubjectID:        event.SubjectID,
		Type:             t,
		Status:           StatusPending,
		CreatedAt:        now,
		FollowUpRequired: t == TypeFollowUp,
	}
	if iv.FollowUpRequired {
		at := now.Add(24 * time.Hour)
		iv.FollowUpAt = &at
	}
	if note != "" {
		iv.Notes = append(iv.Notes, Note{At: now, Text: note})
	}

	o.mu.Lock()
	o.interventions[iv.ID] = iv
	o.byEvent[event.ID] = append(o.byEvent[event.ID], iv.ID)
	o.order = append(o.order, iv.ID)
	o.mu.Unlock()

	return *iv
}

// UpdateStatus applies a lifecycle transition. It returns false for unknown
// ids and for transitions the state machine forbids. Same-status calls are
// idempotent: they return true without touching timestamps or counters.
// Entering in_progress stamps StartedAt exactly once; entering completed
// stamps CompletedAt and increments the success counter exactly once.
func (o *Orchestrator) UpdateStatus(_ context.Context, id uuid.UUID, status Status, actor, note string) bool {
	if !ValidStatus(status) {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	iv, ok := o.interventions[id]
	if !ok {
		return false
	}
	if iv.Status == status {
		return true
	}
	if !transitionAllowed(iv.Status, status) {
		return false
	}

	now := o.clk.Now()
	iv.Status = status
	if actor != "" {
		iv.AssignedTo = actor
	}
	if note != "" {
		iv.Notes = append(iv.Notes, Note{At: now, Author: actor, Text: note})
	}

	switch status {
	case StatusInProgress:
		if iv.StartedAt == nil {
			iv.StartedAt = &now
		}
	case StatusCompleted:
		if iv.CompletedAt == nil {
			iv.CompletedAt = &now
			o.completed++
		}
	}
	return true
}

func transitionAllowed(from, to Status) bool {
	if to == StatusCancelled {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusEscalated
	case StatusInProgress:
		return to == StatusCompleted
	}
	return false
}

// Get returns a copy of the intervention with the given id.
func (o *Orchestrator) Get(_ context.Context, id uuid.UUID) (Intervention, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	iv, ok := o.interventions[id]
	if !ok {
		return Intervention{}, false
	}
	return *iv, true
}

// ByEvent returns copies of the interventions opened for an event, in
// creation order.
func (o *Orchestrator) ByEvent(_ context.Context, eventID uuid.UUID) []Intervention {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.byEvent[eventID]
	out := make([]Intervention, 0, len(ids))
	for _, id := range ids {
		if iv, ok := o.interventions[id]; ok {
			out = append(out, *iv)
		}
	}
	return out
}

// Pending returns copies of all pending interventions sorted by creation
// time ascending.
func (o *Orchestrator) Pending(_ context.Context) []Intervention {
	o.mu.RLock()
	var out []Intervention
	for _, id := range o.order {
		if iv, ok := o.interventions[id]; ok && iv.Status == StatusPending {
			out = append(out, *iv)
		}
	}
	o.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PendingByType returns per-type counts of pending interventions.
func (o *Orchestrator) PendingByType(_ context.Context) map[Type]int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	counts := make(map[Type]int)
	for _, iv := range o.interventions {
		if iv.Status == StatusPending {
			counts[iv.Type]++
		}
	}
	return counts
}

// CompletedCount returns the number of successfully completed interventions.
func (o *Orchestrator) CompletedCount() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.completed
}

// Count returns the total number of tracked interventions.
func (o *Orchestrator) Count(_ context.Context) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.interventions)
}

func containsType(types []Type, t Type) bool {
	for _, have := range types {
		if have == t {
			return true
		}
	}
	return false
}
