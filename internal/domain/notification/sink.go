package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Sink is the delivery boundary. SMS/email/push transports live outside
// this core; a Sink implementation adapts one of them. Deliver is called
// without any dispatcher lock held.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// LogSink writes notifications to the structured log. It is the default
// sink for deployments that wire a real transport downstream of the log
// pipeline, and for development.
type LogSink struct {
	Logger zerolog.Logger
}

// Deliver logs the notification.
func (s *LogSink) Deliver(_ context.Context, n *Notification) error {
	s.Logger.Info().
		Str("notification_id", n.ID.String()).
		Str("event_id", n.EventID.String()).
		Str("recipient", n.Recipient).
		Str("kind", string(n.Kind)).
		Str("priority", n.Priority).
		Time("deadline", n.Deadline).
		Msg(n.Message)
	return nil
}

// MockSink is a test double that records delivered notifications.
type MockSink struct {
	mu         sync.Mutex
	delivered  []Notification
	ShouldFail bool
	FailError  string
}

// Deliver records the call and optionally returns an error.
func (s *MockSink) Deliver(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, *n)
	if s.ShouldFail {
		return errors.New(s.FailError)
	}
	return nil
}

// Delivered returns a copy of the recorded notifications.
func (s *MockSink) Delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.delivered))
	copy(out, s.delivered)
	return out
}
