// Package audit records an append-only trail of engine actions:
// assessments, escalations, status changes, and acknowledgements.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the trail.
const (
	ActionAssessment         = "assessment"
	ActionEventRecorded      = "event_recorded"
	ActionEventEscalated     = "event_escalated"
	ActionInterventionOpened = "intervention_opened"
	ActionInterventionStatus = "intervention_status"
	ActionNotificationSent   = "notification_sent"
	ActionNotificationAcked  = "notification_acked"
	ActionNotificationEscal  = "notification_escalated"
)

// Entry is a single audit record. Detail is free-form context for the
// action, e.g. the status transition or the escalation reason.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	SubjectID string    `json:"subject_id,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Repository is the storage behind the trail. The memory implementation
// backs the default deployment; the Postgres implementation is used when
// a database URL is configured.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	CountByAction(ctx context.Context) (map[string]int, error)
}

// ---------------------------------------------------------------------------
// MemoryRepository
// ---------------------------------------------------------------------------

const defaultCap = 10000

// MemoryRepository keeps the trail in a capped in-memory ring. Oldest
// entries are discarded once the cap is reached.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

// NewMemoryRepository creates a trail capped at maxEntries; a non-positive
// cap uses the default of 10000.
func NewMemoryRepository(maxEntries int) *MemoryRepository {
	if maxEntries <= 0 {
		maxEntries = defaultCap
	}
	return &MemoryRepository{cap: maxEntries}
}

func (r *MemoryRepository) Append(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.entries) {
		limit = len(r.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func (r *MemoryRepository) CountByAction(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range r.entries {
		counts[e.Action]++
	}
	return counts, nil
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
