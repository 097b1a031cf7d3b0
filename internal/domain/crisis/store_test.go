package crisis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vigil/vigil/internal/platform/clock"
)

func newEvent(subjectID string, level Level) *Event {
	return &Event{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		SessionID:  "sess-1",
		Level:      level,
		Indicators: []IndicatorCategory{IndicatorHopelessness},
		Score:      2,
		DetectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// Level tests
// ---------------------------------------------------------------------------

func TestLevel_Ordering(t *testing.T) {
	if !(LevelNone < LevelLow && LevelLow < LevelModerate && LevelModerate < LevelHigh && LevelHigh < LevelCritical) {
		t.Fatal("level ordering broken")
	}
}

func TestLevel_String(t *testing.T) {
	cases := map[Level]string{
		LevelNone:     "none",
		LevelLow:      "low",
		LevelModerate: "moderate",
		LevelHigh:     "high",
		LevelCritical: "critical",
	}
	for level, want := range cases {
		if level.String() != want {
			t.Fatalf("expected %s, got %s", want, level.String())
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"none", "low", "moderate", "high", "critical"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%s) failed: %v", name, err)
		}
		if level.String() != name {
			t.Fatalf("round trip failed for %s: got %s", name, level.String())
		}
	}

	if _, err := ParseLevel("catastrophic"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLevel_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(LevelHigh)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"high"` {
		t.Fatalf("expected \"high\", got %s", data)
	}

	var level Level
	if err := json.Unmarshal(data, &level); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if level != LevelHigh {
		t.Fatalf("expected LevelHigh, got %v", level)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &level); err == nil {
		t.Fatal("expected error for unknown wire name")
	}
}

func TestEvent_HasIndicator(t *testing.T) {
	e := newEvent("subj-1", LevelModerate)
	if !e.HasIndicator(IndicatorHopelessness) {
		t.Fatal("expected hopelessness indicator present")
	}
	if e.HasIndicator(IndicatorSuicidalIdeation) {
		t.Fatal("did not expect suicidal ideation indicator")
	}
}

// ---------------------------------------------------------------------------
// EventStore tests
// ---------------------------------------------------------------------------

func TestEventStore_RecordAndGet(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	e := newEvent("subj-1", LevelHigh)
	store.Record(ctx, e)

	got, ok := store.Get(ctx, e.ID)
	if !ok {
		t.Fatal("expected event to be found")
	}
	if got.SubjectID != "subj-1" {
		t.Fatalf("expected subj-1, got %s", got.SubjectID)
	}
	if got.Level != LevelHigh {
		t.Fatalf("expected high, got %s", got.Level)
	}

	if _, ok := store.Get(ctx, uuid.New()); ok {
		t.Fatal("expected unknown id to miss")
	}
}

func TestEventStore_RecordCopies(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	e := newEvent("subj-1", LevelLow)
	store.Record(ctx, e)

	// Mutating the caller's copy must not affect the stored event.
	e.SubjectID = "tampered"

	got, _ := store.Get(ctx, e.ID)
	if got.SubjectID != "subj-1" {
		t.Fatalf("store returned mutated event: %s", got.SubjectID)
	}
}

func TestEventStore_ActiveInsertionOrder(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	first := newEvent("subj-1", LevelLow)
	second := newEvent("subj-2", LevelHigh)
	third := newEvent("subj-1", LevelCritical)
	store.Record(ctx, first)
	store.Record(ctx, second)
	store.Record(ctx, third)

	active := store.Active(ctx)
	if len(active) != 3 {
		t.Fatalf("expected 3 active events, got %d", len(active))
	}
	if active[0].ID != first.ID || active[1].ID != second.ID || active[2].ID != third.ID {
		t.Fatal("active events not in insertion order")
	}
}

func TestEventStore_BySubject(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	a1 := newEvent("subj-a", LevelLow)
	b1 := newEvent("subj-b", LevelHigh)
	a2 := newEvent("subj-a", LevelModerate)
	store.Record(ctx, a1)
	store.Record(ctx, b1)
	store.Record(ctx, a2)

	got := store.BySubject(ctx, "subj-a")
	if len(got) != 2 {
		t.Fatalf("expected 2 events for subj-a, got %d", len(got))
	}
	if got[0].ID != a1.ID || got[1].ID != a2.ID {
		t.Fatal("subject events not in insertion order")
	}

	if len(store.BySubject(ctx, "nobody")) != 0 {
		t.Fatal("expected no events for unknown subject")
	}
}

func TestEventStore_MarkEscalatedOnce(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(base)
	store := NewEventStore(clk)
	ctx := context.Background()

	e := newEvent("subj-1", LevelCritical)
	store.Record(ctx, e)

	if !store.MarkEscalated(ctx, e.ID) {
		t.Fatal("first MarkEscalated should return true")
	}
	if store.MarkEscalated(ctx, e.ID) {
		t.Fatal("second MarkEscalated should return false")
	}

	got, _ := store.Get(ctx, e.ID)
	if !got.Escalated {
		t.Fatal("expected escalated flag set")
	}
	if got.EscalatedAt == nil || !got.EscalatedAt.Equal(base) {
		t.Fatalf("expected EscalatedAt %v, got %v", base, got.EscalatedAt)
	}

	if store.MarkEscalated(ctx, uuid.New()) {
		t.Fatal("unknown id should return false")
	}
}

func TestEventStore_MarkEscalatedConcurrent(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	e := newEvent("subj-1", LevelCritical)
	store.Record(ctx, e)

	const workers = 20
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			results <- store.MarkEscalated(ctx, e.ID)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for r := range results {
		if r {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestEventStore_Resolve(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	e := newEvent("subj-1", LevelModerate)
	store.Record(ctx, e)

	if !store.Resolve(ctx, e.ID) {
		t.Fatal("expected resolve to succeed")
	}
	if store.Resolve(ctx, e.ID) {
		t.Fatal("double resolve should return false")
	}
	if _, ok := store.Get(ctx, e.ID); ok {
		t.Fatal("resolved event should be gone")
	}
	if len(store.Active(ctx)) != 0 {
		t.Fatal("resolved event should not appear in Active")
	}
	if len(store.BySubject(ctx, "subj-1")) != 0 {
		t.Fatal("resolved event should not appear in BySubject")
	}
}

func TestEventStore_Counts(t *testing.T) {
	store := NewEventStore(nil)
	ctx := context.Background()

	store.Record(ctx, newEvent("a", LevelHigh))
	store.Record(ctx, newEvent("b", LevelHigh))
	store.Record(ctx, newEvent("c", LevelCritical))

	if store.Count(ctx) != 3 {
		t.Fatalf("expected 3 events, got %d", store.Count(ctx))
	}
	counts := store.CountByLevel(ctx)
	if counts[LevelHigh] != 2 {
		t.Fatalf("expected 2 high, got %d", counts[LevelHigh])
	}
	if counts[LevelCritical] != 1 {
		t.Fatalf("expected 1 critical, got %d", counts[LevelCritical])
	}
}
