// Package crisis defines the crisis event data model and the in-memory
// event registry shared by the assessment, intervention, notification, and
// escalation subsystems.
package crisis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the totally ordered crisis severity scale. Higher values are more
// severe; dashboards sort by it, so the ordering is part of the contract.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelModerate
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelNone:     "none",
	LevelLow:      "low",
	LevelModerate: "moderate",
	LevelHigh:     "high",
	LevelCritical: "critical",
}

// String returns the lowercase wire name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a wire name back into a Level.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown crisis level %q", s)
}

// MarshalJSON serialises the level as its wire name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON parses a level from its wire name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// IndicatorCategory names a category of risk language detected in user input.
type IndicatorCategory string

const (
	IndicatorSuicidalIdeation IndicatorCategory = "suicidal_ideation"
	IndicatorSelfHarm         IndicatorCategory = "self_harm"
	IndicatorHopelessness     IndicatorCategory = "hopelessness"
	IndicatorSevereDepression IndicatorCategory = "severe_depression"
	IndicatorPanic            IndicatorCategory = "panic"
	IndicatorPsychosis        IndicatorCategory = "psychosis"
	IndicatorSubstanceAbuse   IndicatorCategory = "substance_abuse"
	IndicatorDomesticViolence IndicatorCategory = "domestic_violence"
)

// Event is a detected instance of risk-indicating input tied to a subject
// and session. Events are created by the assessor when at least one
// indicator is detected and live in the EventStore until resolved. Only the
// escalation monitor mutates an event after creation, and only to set the
// escalated flag.
type Event struct {
	ID                   uuid.UUID           `json:"id"`
	SubjectID            string              `json:"subject_id"`
	SessionID            string              `json:"session_id"`
	Level                Level               `json:"level"`
	Indicators           []IndicatorCategory `json:"indicators"`
	Score                int                 `json:"score"`
	Excerpt              string              `json:"excerpt"`
	DetectedAt           time.Time           `json:"detected_at"`
	AssessmentLatency    time.Duration       `json:"assessment_latency_ns"`
	InterventionRequired bool                `json:"intervention_required"`
	EscalationRequired   bool                `json:"escalation_required"`
	Escalated            bool                `json:"escalated"`
	EscalatedAt          *time.Time          `json:"escalated_at,omitempty"`
}

// HasIndicator reports whether the event carries the given category.
func (e *Event) HasIndicator(cat IndicatorCategory) bool {
	for _, c := range e.Indicators {
		if c == cat {
			return true
		}
	}
	return false
}
