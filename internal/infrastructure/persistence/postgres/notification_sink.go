package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agepath/placement-engine/internal/domain/notification"
)

// NotificationSink stores notifications in the notifications table, where
// the surrounding application reads them.
type NotificationSink struct {
	conn *Connection
}

// NewNotificationSink creates a new NotificationSink.
func NewNotificationSink(conn *Connection) *NotificationSink {
	return &NotificationSink{conn: conn}
}

// Deliver implements notification.Sink.
func (s *NotificationSink) Deliver(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, tenant_id, type, title, body, link, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = s.conn.Pool().Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.TenantID,
		string(n.Type),
		n.Title,
		n.Body,
		n.Link,
		data,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}
