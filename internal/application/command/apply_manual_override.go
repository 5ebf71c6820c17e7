package command

import (
	"context"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY MANUAL OVERRIDE COMMAND
// Staff correction of a placement. A level change and its MANUAL_OVERRIDE
// history row are written in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyManualOverrideCommand contains a partial placement correction.
// Nil fields are left unchanged.
type ApplyManualOverrideCommand struct {
	Actor Actor `json:"-"`

	PlacementID         string  `json:"placementId" validate:"required"`
	AgeYear             *int    `json:"ageYear" validate:"omitempty,gte=0,lte=25"`
	AgeMonth            *int    `json:"ageMonth" validate:"omitempty,gte=0,lte=12"`
	CurrentLessonNumber *int    `json:"currentLessonNumber"`
	Status              *string `json:"status" validate:"omitempty,oneof=ACTIVE ARCHIVED"`
	ReadyForPromotion   *bool   `json:"readyForPromotion"`
	Notes               *string `json:"notes" validate:"omitempty,max=2000"`
}

// ApplyManualOverrideResult contains the updated placement.
type ApplyManualOverrideResult struct {
	Placement    *assessment.Placement
	Level        *assessment.Level
	LevelChanged bool
}

// ApplyManualOverrideHandler handles the ApplyManualOverrideCommand.
type ApplyManualOverrideHandler struct {
	deps Deps
}

// NewApplyManualOverrideHandler creates a new ApplyManualOverrideHandler.
func NewApplyManualOverrideHandler(deps Deps) *ApplyManualOverrideHandler {
	return &ApplyManualOverrideHandler{deps: deps.withDefaults()}
}

// Handle executes the manual override command.
func (h *ApplyManualOverrideHandler) Handle(ctx context.Context, cmd ApplyManualOverrideCommand) (*ApplyManualOverrideResult, error) {
	const op = "Override"

	if err := cmd.Actor.RequireStaff("placement", op); err != nil {
		return nil, err
	}
	if err := validateInput("placement", op, cmd); err != nil {
		return nil, err
	}
	if (cmd.AgeYear == nil) != (cmd.AgeMonth == nil) {
		return nil, shared.Invalid("placement", op, "ageYear and ageMonth must be supplied together",
			shared.FieldError{Field: "ageYear", Message: "must be supplied with ageMonth"})
	}

	now := h.deps.Clock.Now()
	var (
		placement *assessment.Placement
		level     *assessment.Level
		result    assessment.OverrideResult
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		p, err := tx.Placements.GetForUpdate(ctx, cmd.PlacementID)
		if err != nil {
			return err
		}
		if err := cmd.Actor.RequireStaffFor("placement", op, p.TenantID); err != nil {
			return err
		}
		if p.IsArchived() {
			return shared.Invalid("placement", op, "archived placements cannot be modified")
		}

		override := assessment.Override{
			CurrentLessonNumber: cmd.CurrentLessonNumber,
			ReadyForPromotion:   cmd.ReadyForPromotion,
			Notes:               cmd.Notes,
		}
		if cmd.Status != nil {
			s := assessment.PlacementStatus(*cmd.Status)
			override.Status = &s
		}

		if cmd.AgeYear != nil {
			level, err = tx.Levels.GetByAge(ctx, *cmd.AgeYear, *cmd.AgeMonth)
			if err != nil {
				return err
			}
			if !level.IsActive && level.ID != p.CurrentAgeID {
				return shared.Invalid("placement", op, "assessment level is inactive",
					shared.FieldError{Field: "ageYear", Message: "level " + level.DisplayLabel() + " is inactive"})
			}
			override.LevelID = &level.ID
		}

		result, err = p.ApplyOverride(override, h.deps.Policy, now)
		if err != nil {
			return err
		}
		if err := tx.Placements.Update(ctx, p); err != nil {
			return err
		}

		if result.LevelChanged {
			from := result.FromLevelID
			reason := ""
			if cmd.Notes != nil {
				reason = *cmd.Notes
			}
			entry := assessment.NewHistoryEntry(p, &from, assessment.ChangeManualOverride, reason, cmd.Actor.UserID, now)
			if err := tx.History.Append(ctx, entry); err != nil {
				return err
			}
		}

		if level == nil {
			level, err = tx.Levels.GetByID(ctx, p.CurrentAgeID)
			if err != nil {
				return err
			}
		}
		placement = p
		return nil
	})
	if err != nil {
		return nil, asDomainError("placement", op, err)
	}

	h.deps.Logger.Info("placement overridden",
		logger.PlacementID(placement.ID),
		logger.LevelID(placement.CurrentAgeID),
		logger.Bool("level_changed", result.LevelChanged),
		logger.ActorID(cmd.Actor.UserID),
	)

	events := make([]shared.Event, 0, 2)
	if result.LevelChanged {
		events = append(events, assessment.LevelChanged(placement, result.FromLevelID, cmd.Actor.UserID))
	} else {
		events = append(events, assessment.PlacementUpdated(placement, cmd.Actor.UserID))
	}
	if result.Archived {
		events = append(events, assessment.PlacementArchived(placement, cmd.Actor.UserID))
	}
	h.deps.publish(events...)

	return &ApplyManualOverrideResult{
		Placement:    placement,
		Level:        level,
		LevelChanged: result.LevelChanged,
	}, nil
}
