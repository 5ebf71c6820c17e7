package memory

import (
	"context"
	"sync"

	"github.com/agepath/placement-engine/internal/domain/notification"
)

// NotificationSink keeps delivered notifications in memory.
type NotificationSink struct {
	mu    sync.Mutex
	items []*notification.Notification
}

// NewNotificationSink creates an empty sink.
func NewNotificationSink() *NotificationSink {
	return &NotificationSink{}
}

// Deliver implements notification.Sink.
func (s *NotificationSink) Deliver(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

// Delivered returns a copy of everything delivered so far.
func (s *NotificationSink) Delivered() []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// ForRecipient returns notifications addressed to recipientID.
func (s *NotificationSink) ForRecipient(recipientID string) []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}
