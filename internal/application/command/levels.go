package command

import (
	"context"
	"strings"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL ADMINISTRATION
// Levels are never deleted. Admins add them and switch them on or off.
// ══════════════════════════════════════════════════════════════════════════════

// CreateLevelCommand adds a level to the catalogue.
type CreateLevelCommand struct {
	Actor Actor `json:"-"`

	AgeYear         *int    `json:"ageYear" validate:"required,gte=0,lte=25"`
	AgeMonth        *int    `json:"ageMonth" validate:"required,gte=0,lte=12"`
	LocaleYearLabel *string `json:"localeYearLabel" validate:"omitempty,max=64"`
}

// SetLevelActiveCommand toggles a level and optionally relabels it.
type SetLevelActiveCommand struct {
	Actor Actor `json:"-"`

	LevelID         string  `json:"id" validate:"required"`
	IsActive        *bool   `json:"isActive"`
	LocaleYearLabel *string `json:"localeYearLabel" validate:"omitempty,max=64"`
}

// LevelHandler handles level administration commands.
type LevelHandler struct {
	deps Deps
}

// NewLevelHandler creates a new LevelHandler.
func NewLevelHandler(deps Deps) *LevelHandler {
	return &LevelHandler{deps: deps.withDefaults()}
}

func requireAdmin(actor Actor, op string) error {
	if err := actor.Validate("level", op); err != nil {
		return err
	}
	if !actor.Role.IsAdmin() {
		return shared.Forbidden("level", op, "admin role required")
	}
	return nil
}

// Create adds a new active level. Duplicate (ageYear, ageMonth) is a conflict.
func (h *LevelHandler) Create(ctx context.Context, cmd CreateLevelCommand) (*assessment.Level, error) {
	const op = "Create"

	if err := requireAdmin(cmd.Actor, op); err != nil {
		return nil, err
	}
	if err := validateInput("level", op, cmd); err != nil {
		return nil, err
	}

	year, month := *cmd.AgeYear, *cmd.AgeMonth
	level, err := assessment.NewLevel(year, month, trimLabel(cmd.LocaleYearLabel), h.deps.Clock.Now())
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		if _, err := tx.Levels.GetByAge(ctx, year, month); err == nil {
			return shared.Conflict("level", op, "level "+level.DisplayLabel()+" already exists")
		} else if !shared.IsNotFound(err) {
			return err
		}
		return tx.Levels.Create(ctx, level)
	})
	if err != nil {
		return nil, asDomainError("level", op, err)
	}

	h.deps.Logger.Info("level created",
		logger.LevelID(level.ID),
		logger.String("label", level.DisplayLabel()),
		logger.ActorID(cmd.Actor.UserID),
	)
	return level, nil
}

// SetActive updates a level's active flag and label.
func (h *LevelHandler) SetActive(ctx context.Context, cmd SetLevelActiveCommand) (*assessment.Level, error) {
	const op = "SetActive"

	if err := requireAdmin(cmd.Actor, op); err != nil {
		return nil, err
	}
	if err := validateInput("level", op, cmd); err != nil {
		return nil, err
	}

	var level *assessment.Level
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		l, err := tx.Levels.GetByID(ctx, cmd.LevelID)
		if err != nil {
			return err
		}
		if cmd.IsActive != nil {
			l.IsActive = *cmd.IsActive
		}
		if cmd.LocaleYearLabel != nil {
			l.LocaleYearLabel = trimLabel(cmd.LocaleYearLabel)
		}
		if err := tx.Levels.Update(ctx, l); err != nil {
			return err
		}
		level = l
		return nil
	})
	if err != nil {
		return nil, asDomainError("level", op, err)
	}

	h.deps.Logger.Info("level updated",
		logger.LevelID(level.ID),
		logger.Bool("is_active", level.IsActive),
		logger.ActorID(cmd.Actor.UserID),
	)
	return level, nil
}

func trimLabel(label *string) *string {
	if label == nil {
		return nil
	}
	s := strings.TrimSpace(*label)
	if s == "" {
		return nil
	}
	return &s
}
