// Package intervention tracks clinical intervention records spawned from
// crisis events and enforces their lifecycle state machine.
package intervention

import (
	"time"

	"github.com/google/uuid"
)

// Type names a category of clinical response action.
type Type string

const (
	TypeImmediateContact   Type = "immediate_contact"
	TypeSafetyPlanning     Type = "safety_planning"
	TypeCrisisCounseling   Type = "crisis_counseling"
	TypeEmergencyServices  Type = "emergency_services"
	TypeFamilyNotification Type = "family_notification"
	TypeHospitalization    Type = "hospitalization"
	TypeFollowUp           Type = "follow_up"
)

// Status is the lifecycle state of an intervention.
//
// Allowed transitions:
//
//	pending -> in_progress -> completed
//	pending -> escalated
//	any     -> cancelled
//
// Same-status transitions are idempotent no-ops.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusEscalated  Status = "escalated"
	StatusCancelled  Status = "cancelled"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusEscalated, StatusCancelled:
		return true
	}
	return false
}

// Note is one free-text annotation on an intervention.
type Note struct {
	At     time.Time `json:"at"`
	Author string    `json:"author,omitempty"`
	Text   string    `json:"text"`
}

// Intervention is a tracked clinical response action tied to a crisis event.
type Intervention struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	SubjectID        string     `json:"subject_id"`
	Type             Type       `json:"type"`
	Status           Status     `json:"status"`
	AssignedTo       string     `json:"assigned_to,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Notes            []Note     `json:"notes,omitempty"`
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpAt       *time.Time `json:"follow_up_at,omitempty"`
}
