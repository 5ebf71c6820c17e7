// Package eventhandler contains the post-commit reactions to assessment
// events: staff notifications and grid cache invalidation.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/notification"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLER
// Turns LessonSubmitted and ReadyForPromotion events into notifications for
// the staff member who placed the student.
//
// Delivery is best effort: a failed delivery is logged and never reaches the
// command that produced the event.
// ═══════════════════════════════════════════════════════════════════════════

// NotifyToggles switch each notification kind per tenant.
type NotifyToggles interface {
	NotifyLessonSubmitted(tenantID string) bool
	NotifyReadyForPromotion(tenantID string) bool
}

// NotificationHandler delivers assessment notifications.
type NotificationHandler struct {
	directory directory.Directory
	sink      notification.Sink
	toggles   NotifyToggles
	clock     timeutil.Clock
	logger    *slog.Logger

	// deliveryTimeout bounds one Deliver call.
	deliveryTimeout time.Duration
}

// NotificationConfig configures the NotificationHandler.
type NotificationConfig struct {
	DeliveryTimeout time.Duration
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	dir directory.Directory,
	sink notification.Sink,
	toggles NotifyToggles,
	clock timeutil.Clock,
	logger *slog.Logger,
	config NotificationConfig,
) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = 5 * time.Second
	}
	return &NotificationHandler{
		directory:       dir,
		sink:            sink,
		toggles:         toggles,
		clock:           clock,
		logger:          logger.With("handler", "assessment_notifications"),
		deliveryTimeout: config.DeliveryTimeout,
	}
}

// Register subscribes the handler to the events it reacts to.
func (h *NotificationHandler) Register(sub shared.EventSubscriber) error {
	if err := sub.Subscribe(shared.EventLessonSubmitted, h.HandleLessonSubmitted); err != nil {
		return fmt.Errorf("subscribe %s: %w", shared.EventLessonSubmitted, err)
	}
	if err := sub.Subscribe(shared.EventReadyForPromotion, h.HandleReadyForPromotion); err != nil {
		return fmt.Errorf("subscribe %s: %w", shared.EventReadyForPromotion, err)
	}
	return nil
}

// HandleLessonSubmitted notifies the placing teacher about a submission.
func (h *NotificationHandler) HandleLessonSubmitted(event shared.Event) error {
	tenantID := shared.StringField(event, "tenant_id")
	if h.toggles != nil && !h.toggles.NotifyLessonSubmitted(tenantID) {
		return nil
	}

	recipient := shared.StringField(event, "recipient_id")
	if recipient == "" {
		h.logger.Warn("lesson submitted without recipient", "placement_id", event.AggregateID())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.deliveryTimeout)
	defer cancel()

	studentID := shared.StringField(event, "student_id")
	n := notification.NewLessonSubmitted(notification.LessonSubmittedParams{
		RecipientID: recipient,
		TenantID:    tenantID,
		PlacementID: event.AggregateID(),
		StudentID:   studentID,
		StudentName: h.studentName(ctx, studentID),
		Subject:     shared.StringField(event, "subject"),
		LessonID:    shared.StringField(event, "lesson_id"),
		LessonTitle: shared.StringField(event, "lesson_title"),
	}, h.clock.Now())

	return h.deliver(ctx, n)
}

// HandleReadyForPromotion notifies the placing teacher about the readiness flip.
func (h *NotificationHandler) HandleReadyForPromotion(event shared.Event) error {
	tenantID := shared.StringField(event, "tenant_id")
	if h.toggles != nil && !h.toggles.NotifyReadyForPromotion(tenantID) {
		return nil
	}

	recipient := shared.StringField(event, "recipient_id")
	if recipient == "" {
		h.logger.Warn("readiness flip without recipient", "placement_id", event.AggregateID())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.deliveryTimeout)
	defer cancel()

	studentID := shared.StringField(event, "student_id")
	n := notification.NewReadyForPromotion(notification.ReadyForPromotionParams{
		RecipientID:      recipient,
		TenantID:         tenantID,
		PlacementID:      event.AggregateID(),
		StudentID:        studentID,
		StudentName:      h.studentName(ctx, studentID),
		Subject:          shared.StringField(event, "subject"),
		LessonsCompleted: intField(event, "lessons_completed"),
	}, h.clock.Now())

	return h.deliver(ctx, n)
}

func (h *NotificationHandler) deliver(ctx context.Context, n *notification.Notification) error {
	if err := h.sink.Deliver(ctx, n); err != nil {
		h.logger.Error("failed to deliver notification",
			"type", n.Type,
			"recipient_id", n.RecipientID,
			"error", err,
		)
		return fmt.Errorf("deliver %s: %w", n.Type, err)
	}
	h.logger.Debug("notification delivered",
		"type", n.Type,
		"recipient_id", n.RecipientID,
	)
	return nil
}

// studentName falls back to an anonymous wording when the directory lookup fails.
func (h *NotificationHandler) studentName(ctx context.Context, studentID string) string {
	if h.directory == nil || studentID == "" {
		return ""
	}
	u, err := h.directory.GetUser(ctx, studentID)
	if err != nil {
		h.logger.Warn("student lookup failed", "student_id", studentID, "error", err)
		return ""
	}
	return u.FullName
}

// intField reads an integer payload value. Payloads decoded from JSON carry
// float64.
func intField(e shared.Event, key string) int {
	switch v := e.Payload()[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
