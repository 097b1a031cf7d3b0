package risk

import (
	"sync"
	"time"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/platform/clock"
)

// HistoryEntry is one point in a subject's rolling risk history.
type HistoryEntry struct {
	At    time.Time    `json:"at"`
	Level crisis.Level `json:"level"`
	Score int          `json:"score"`
}

// HistoryLog keeps a rolling window of risk-history entries per subject.
// Entries older than the window are pruned on every append.
type HistoryLog struct {
	mu      sync.Mutex
	entries map[string][]HistoryEntry
	window  time.Duration
	clk     clock.Clock
}

// NewHistoryLog creates a HistoryLog with the given retention window.
func NewHistoryLog(window time.Duration, clk clock.Clock) *HistoryLog {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &HistoryLog{
		entries: make(map[string][]HistoryEntry),
		window:  window,
		clk:     clk,
	}
}

// Append records an assessment outcome for the subject and prunes entries
// that have fallen out of the rolling window.
func (h *HistoryLog) Append(subjectID string, level crisis.Level, score int) {
	now := h.clk.Now()
	cutoff := now.Add(-h.window)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.entries[subjectID][:0]
	for _, e := range h.entries[subjectID] {
		if e.At.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, HistoryEntry{At: now, Level: level, Score: score})
	h.entries[subjectID] = kept
}

// Recent returns a copy of the subject's in-window entries, oldest first.
func (h *HistoryLog) Recent(subjectID string) []HistoryEntry {
	cutoff := h.clk.Now().Add(-h.window)

	h.mu.Lock()
	defer h.mu.Unlock()

	var out []HistoryEntry
	for _, e := range h.entries[subjectID] {
		if e.At.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Subjects returns the number of subjects with at least one stored entry.
func (h *HistoryLog) Subjects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
