// Package notification creates deadline-bearing crisis notifications for
// practitioners, delivers them through a pluggable sink, and records
// acknowledgement.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes why a notification was created.
type Kind string

const (
	KindCrisisAlert            Kind = "crisis_alert"
	KindEventEscalation        Kind = "event_escalation"
	KindNotificationEscalation Kind = "notification_escalation"
)

// Priority levels, derived purely from the crisis level.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
)

// Notification is a deadline-bearing alert to a practitioner. The deadline
// is set at creation and never removed; a breached notification is
// superseded by a newer escalation notification, not edited.
type Notification struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	Recipient        string     `json:"recipient"`
	Kind             Kind       `json:"kind"`
	Priority         string     `json:"priority"`
	Message          string     `json:"message"`
	SentAt           time.Time  `json:"sent_at"`
	Acknowledged     bool       `json:"acknowledged"`
	AcknowledgedBy   string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	ResponseRequired bool       `json:"response_required"`
	Deadline         time.Time  `json:"response_deadline"`
	SupersedesID     *uuid.UUID `json:"supersedes_id,omitempty"`
	Escalated        bool       `json:"escalated"`
}
