package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// GridCache is the part of the grid cache the invalidator needs.
type GridCache interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// gridEvents change what a grid cell shows.
var gridEvents = []shared.EventType{
	shared.EventPlacementCreated,
	shared.EventPlacementLevelChanged,
	shared.EventPlacementUpdated,
	shared.EventPlacementArchived,
	shared.EventLessonMarked,
	shared.EventReadyForPromotion,
}

// GridInvalidator drops cached grids of a tenant whenever one of its
// placements changes.
type GridInvalidator struct {
	cache   GridCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewGridInvalidator creates a new GridInvalidator.
func NewGridInvalidator(cache GridCache, logger *slog.Logger) *GridInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GridInvalidator{
		cache:   cache,
		logger:  logger.With("handler", "grid_invalidator"),
		timeout: 2 * time.Second,
	}
}

// Register subscribes the invalidator to every grid-affecting event.
func (g *GridInvalidator) Register(sub shared.EventSubscriber) error {
	for _, t := range gridEvents {
		if err := sub.Subscribe(t, g.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle invalidates the tenant of the event.
func (g *GridInvalidator) Handle(event shared.Event) error {
	tenantID := shared.StringField(event, "tenant_id")
	if tenantID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if err := g.cache.InvalidateTenant(ctx, tenantID); err != nil {
		g.logger.Warn("grid cache invalidation failed",
			"tenant_id", tenantID,
			"event_type", event.EventType(),
			"error", err,
		)
		return fmt.Errorf("invalidate grid cache: %w", err)
	}
	return nil
}
