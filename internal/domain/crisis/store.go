package crisis

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vigil/vigil/internal/platform/clock"
)

// EventStore is a thread-safe in-memory registry of open crisis events,
// indexed by event id and by subject id. Iteration always happens over a
// snapshot so the escalation monitor never traverses a collection that a
// concurrent assessment is mutating.
type EventStore struct {
	mu        sync.RWMutex
	events    map[uuid.UUID]*Event
	bySubject map[string][]uuid.UUID
	order     []uuid.UUID
	clk       clock.Clock
}

// NewEventStore creates an empty EventStore using the given clock for
// escalation timestamps.
func NewEventStore(clk clock.Clock) *EventStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &EventStore{
		events:    make(map[uuid.UUID]*Event),
		bySubject: make(map[string][]uuid.UUID),
		clk:       clk,
	}
}

// Record inserts a new event into the registry.
func (s *EventStore) Record(_ context.Context, e *Event) {
	cp := *e
	s.mu.Lock()
	s.events[cp.ID] = &cp
	s.bySubject[cp.SubjectID] = append(s.bySubject[cp.SubjectID], cp.ID)
	s.order = append(s.order, cp.ID)
	s.mu.Unlock()
}

// Get returns a copy of the event with the given id.
func (s *EventStore) Get(_ context.Context, id uuid.UUID) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

// Active returns a snapshot of all open events in insertion order.
func (s *EventStore) Active(_ context.Context) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// BySubject returns a snapshot of the subject's open events in insertion order.
func (s *EventStore) BySubject(_ context.Context, subjectID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySubject[subjectID]
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// MarkEscalated flips the event's escalated flag. It returns true only on
// the first call for a given event; subsequent calls are no-ops returning
// false, which is what guarantees at-most-once escalation per breach.
func (s *EventStore) MarkEscalated(_ context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.Escalated {
		return false
	}
	e.Escalated = true
	at := s.clk.Now()
	e.EscalatedAt = &at
	return true
}

// Resolve removes an event from the registry. Returns false for unknown ids.
func (s *EventStore) Resolve(_ context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return false
	}
	delete(s.events, id)
	ids := s.bySubject[e.SubjectID]
	for i, eid := range ids {
		if eid == id {
			s.bySubject[e.SubjectID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.bySubject[e.SubjectID]) == 0 {
		delete(s.bySubject, e.SubjectID)
	}
	for i, eid := range s.order {
		if eid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of open events.
func (s *EventStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// CountByLevel returns per-level counts of open events.
func (s *EventStore) CountByLevel(_ context.Context) map[Level]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Level]int)
	for _, e := range s.events {
		counts[e.Level]++
	}
	return counts
}
