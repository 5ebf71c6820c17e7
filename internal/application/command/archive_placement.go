package command

import (
	"context"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/pkg/logger"
)

// ArchivePlacementCommand ends a placement. Archiving is terminal and frees
// the (student, subject) slot.
type ArchivePlacementCommand struct {
	Actor Actor `json:"-"`

	PlacementID string `json:"placementId" validate:"required"`
	Reason      string `json:"reason" validate:"max=2000"`
}

// ArchivePlacementHandler handles the ArchivePlacementCommand.
type ArchivePlacementHandler struct {
	deps Deps
}

// NewArchivePlacementHandler creates a new ArchivePlacementHandler.
func NewArchivePlacementHandler(deps Deps) *ArchivePlacementHandler {
	return &ArchivePlacementHandler{deps: deps.withDefaults()}
}

// Handle executes the archive command.
func (h *ArchivePlacementHandler) Handle(ctx context.Context, cmd ArchivePlacementCommand) (*assessment.Placement, error) {
	const op = "Archive"

	if err := cmd.Actor.RequireStaff("placement", op); err != nil {
		return nil, err
	}
	if err := validateInput("placement", op, cmd); err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	var placement *assessment.Placement
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		p, err := tx.Placements.GetForUpdate(ctx, cmd.PlacementID)
		if err != nil {
			return err
		}
		if err := cmd.Actor.RequireStaffFor("placement", op, p.TenantID); err != nil {
			return err
		}
		if err := p.Archive(cmd.Reason, now); err != nil {
			return err
		}
		if err := tx.Placements.Update(ctx, p); err != nil {
			return err
		}
		placement = p
		return nil
	})
	if err != nil {
		return nil, asDomainError("placement", op, err)
	}

	h.deps.Logger.Info("placement archived",
		logger.PlacementID(placement.ID),
		logger.ActorID(cmd.Actor.UserID),
	)
	h.deps.publish(assessment.PlacementArchived(placement, cmd.Actor.UserID))

	return placement, nil
}
