package command

import (
	"context"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PLACEMENT COMMAND
// Places a student at an assessment level in one subject. A student holds at
// most one non-archived placement per subject.
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlacementCommand contains the data to place a student.
type CreatePlacementCommand struct {
	Actor Actor `json:"-"`

	StudentID       string `json:"studentId" validate:"required"`
	Subject         string `json:"subject" validate:"required,oneof=ENGLISH MATHEMATICS SCIENCE READING WRITING SPELLING"`
	AgeYear         *int   `json:"ageYear" validate:"required,gte=0,lte=25"`
	AgeMonth        *int   `json:"ageMonth" validate:"required,gte=0,lte=12"`
	PlacementMethod string `json:"placementMethod" validate:"required,oneof=ASSESSMENT_TEST TEACHER_JUDGEMENT TRANSFER OTHER"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// PlacementResult is a placement with its resolved current level.
type PlacementResult struct {
	Placement *assessment.Placement
	Level     *assessment.Level
}

// CreatePlacementHandler handles the CreatePlacementCommand.
type CreatePlacementHandler struct {
	deps Deps
}

// NewCreatePlacementHandler creates a new CreatePlacementHandler.
func NewCreatePlacementHandler(deps Deps) *CreatePlacementHandler {
	return &CreatePlacementHandler{deps: deps.withDefaults()}
}

// Handle executes the create placement command.
func (h *CreatePlacementHandler) Handle(ctx context.Context, cmd CreatePlacementCommand) (*PlacementResult, error) {
	const op = "Create"

	if err := cmd.Actor.RequireStaff("placement", op); err != nil {
		return nil, err
	}
	if err := validateInput("placement", op, cmd); err != nil {
		return nil, err
	}

	student, err := h.deps.Directory.GetUser(ctx, cmd.StudentID)
	if err != nil {
		return nil, asDomainError("placement", op, err)
	}
	if !student.IsStudent() {
		return nil, shared.NotFound("placement", op, "student not found")
	}
	if !cmd.Actor.CanAccessTenant(student.TenantID) {
		return nil, shared.Forbidden("placement", op, "student belongs to another tenant")
	}

	repos := h.deps.Store.Repositories()
	level, err := repos.Levels.GetByAge(ctx, *cmd.AgeYear, *cmd.AgeMonth)
	if err != nil {
		return nil, asDomainError("placement", op, err)
	}
	if !level.IsActive {
		return nil, shared.Invalid("placement", op, "assessment level is inactive",
			shared.FieldError{Field: "ageYear", Message: "level " + level.DisplayLabel() + " is inactive"})
	}

	subject := assessment.Subject(cmd.Subject)
	now := h.deps.Clock.Now()

	var placement *assessment.Placement
	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		existing, err := tx.Placements.FindActive(ctx, student.ID, subject)
		if err != nil {
			return err
		}
		if existing != nil {
			return shared.Conflict("placement", op, "student already has an active placement in "+subject.String())
		}

		placement, err = assessment.NewPlacement(assessment.NewPlacementParams{
			StudentID: student.ID,
			TenantID:  student.TenantID,
			Subject:   subject,
			LevelID:   level.ID,
			Method:    assessment.PlacementMethod(cmd.PlacementMethod),
			Notes:     cmd.Notes,
			PlacedBy:  cmd.Actor.UserID,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.Placements.Create(ctx, placement); err != nil {
			return err
		}

		entry := assessment.NewHistoryEntry(placement, nil, assessment.ChangeInitialPlacement, placement.Notes, cmd.Actor.UserID, now)
		return tx.History.Append(ctx, entry)
	})
	if err != nil {
		return nil, asDomainError("placement", op, err)
	}

	h.deps.Logger.Info("placement created",
		logger.PlacementID(placement.ID),
		logger.StudentID(placement.StudentID),
		logger.Subject(placement.Subject.String()),
		logger.LevelID(level.ID),
		logger.ActorID(cmd.Actor.UserID),
	)
	h.deps.publish(assessment.PlacementCreated(placement))

	return &PlacementResult{Placement: placement, Level: level}, nil
}
