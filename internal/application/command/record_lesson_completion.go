package command

import (
	"context"
	"fmt"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LESSON COMPLETION COMMAND
// Upserts the progress of one lesson, recounts MARKED lessons and flags the
// placement ready for promotion when the threshold is first reached.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLessonCompletionCommand contains the data of one completion write.
type RecordLessonCompletionCommand struct {
	Actor Actor `json:"-"`

	PlacementID string   `json:"placementId" validate:"required"`
	LessonID    string   `json:"lessonId" validate:"required"`
	Status      string   `json:"status" validate:"required,oneof=IN_PROGRESS SUBMITTED MARKED"`
	Score       *float64 `json:"score" validate:"omitempty,gte=0"`
}

// RecordLessonCompletionResult contains the outcome of the write.
type RecordLessonCompletionResult struct {
	Completion *assessment.LessonCompletion
	Placement  *assessment.Placement

	// BecameReady is true only for the write that flipped readiness.
	BecameReady bool
}

// RecordLessonCompletionHandler handles the RecordLessonCompletionCommand.
type RecordLessonCompletionHandler struct {
	deps Deps
}

// NewRecordLessonCompletionHandler creates a new RecordLessonCompletionHandler.
func NewRecordLessonCompletionHandler(deps Deps) *RecordLessonCompletionHandler {
	return &RecordLessonCompletionHandler{deps: deps.withDefaults()}
}

// Handle executes the record lesson completion command.
func (h *RecordLessonCompletionHandler) Handle(ctx context.Context, cmd RecordLessonCompletionCommand) (*RecordLessonCompletionResult, error) {
	const op = "RecordCompletion"

	if err := cmd.Actor.Validate("completion", op); err != nil {
		return nil, err
	}
	if err := validateInput("completion", op, cmd); err != nil {
		return nil, err
	}
	status := assessment.CompletionStatus(cmd.Status)

	placement, err := h.deps.Store.Repositories().Placements.GetByID(ctx, cmd.PlacementID)
	if err != nil {
		return nil, asDomainError("completion", op, err)
	}
	if placement.IsArchived() {
		return nil, shared.Invalid("completion", op, "placement is archived")
	}

	isOwner := cmd.Actor.UserID == placement.StudentID && cmd.Actor.Role == shared.RoleStudent
	if err := authorizeCompletion(cmd.Actor, isOwner, placement, status, cmd.Score); err != nil {
		return nil, err
	}

	lesson, err := h.deps.Directory.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, asDomainError("completion", op, err)
	}
	if lesson.Subject != placement.Subject.String() {
		return nil, shared.Invalid("completion", op, "lesson subject does not match placement",
			shared.FieldError{Field: "lessonId", Message: fmt.Sprintf("lesson is %s, placement is %s", lesson.Subject, placement.Subject)})
	}

	update, err := scoreUpdate(cmd, status, lesson)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	var (
		completion *assessment.LessonCompletion
		flipped    bool
	)
	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, tx assessment.Repositories) error {
		locked, err := tx.Placements.GetForUpdate(ctx, placement.ID)
		if err != nil {
			return err
		}
		if locked.IsArchived() {
			return shared.Invalid("completion", op, "placement is archived")
		}

		completion, err = tx.Completions.Get(ctx, locked.ID, lesson.ID)
		if err != nil {
			return err
		}
		if completion == nil {
			completion = assessment.NewCompletion(locked.ID, lesson.ID, now)
		} else if isOwner && completion.IsMarked() {
			return shared.Forbidden("completion", op, "marked lessons can only be changed by staff")
		}
		completion.Apply(update, now)
		if err := tx.Completions.Upsert(ctx, completion); err != nil {
			return err
		}

		count, err := tx.Completions.CountMarked(ctx, locked.ID)
		if err != nil {
			return err
		}
		flipped = locked.ApplyMarkedCount(count, h.deps.Policy, now)
		if err := tx.Placements.Update(ctx, locked); err != nil {
			return err
		}

		if flipped && h.deps.Toggles.AuditReadinessFlip(locked.TenantID) {
			from := locked.CurrentAgeID
			reason := fmt.Sprintf("%d lessons marked", count)
			entry := assessment.NewHistoryEntry(locked, &from, assessment.ChangeReadinessFlagged, reason, cmd.Actor.UserID, now)
			if err := tx.History.Append(ctx, entry); err != nil {
				return err
			}
		}
		placement = locked
		return nil
	})
	if err != nil {
		return nil, asDomainError("completion", op, err)
	}

	h.deps.Logger.Info("lesson completion recorded",
		logger.PlacementID(placement.ID),
		logger.LessonID(lesson.ID),
		logger.String("status", string(status)),
		logger.Int("lessons_completed", placement.LessonsCompleted),
		logger.Bool("became_ready", flipped),
		logger.ActorID(cmd.Actor.UserID),
	)

	var events []shared.Event
	switch status {
	case assessment.CompletionSubmitted:
		events = append(events, assessment.LessonSubmitted(placement, lesson.ID, lesson.Title))
	case assessment.CompletionMarked:
		events = append(events, assessment.LessonMarked(placement, completion, cmd.Actor.UserID))
	}
	if flipped {
		events = append(events, assessment.ReadyForPromotion(placement, cmd.Actor.UserID))
	}
	h.deps.publish(events...)

	return &RecordLessonCompletionResult{
		Completion:  completion,
		Placement:   placement,
		BecameReady: flipped,
	}, nil
}

// authorizeCompletion applies the write rules: the placement's own student may
// report progress without a score, staff of the tenant may do anything.
func authorizeCompletion(actor Actor, isOwner bool, p *assessment.Placement, status assessment.CompletionStatus, score *float64) error {
	const op = "RecordCompletion"
	switch {
	case isOwner:
		if !status.SelfServe() {
			return shared.Forbidden("completion", op, "students may only set IN_PROGRESS or SUBMITTED")
		}
		if score != nil {
			return shared.Forbidden("completion", op, "students may not score lessons")
		}
		return nil
	case actor.IsStaff():
		if !actor.CanAccessTenant(p.TenantID) {
			return shared.Forbidden("completion", op, "tenant mismatch")
		}
		return nil
	default:
		return shared.Forbidden("completion", op, "not allowed to record progress for this placement")
	}
}

func scoreUpdate(cmd RecordLessonCompletionCommand, status assessment.CompletionStatus, lesson *directory.Lesson) (assessment.CompletionUpdate, error) {
	u := assessment.CompletionUpdate{Status: status, ActorID: cmd.Actor.UserID}
	if cmd.Score == nil {
		return u, nil
	}
	score := *cmd.Score
	if lesson.MaxScore > 0 && score > lesson.MaxScore {
		return u, shared.Invalid("completion", "RecordCompletion", "score out of range",
			shared.FieldError{Field: "score", Message: fmt.Sprintf("must be between 0 and %g", lesson.MaxScore)})
	}
	u.Score = &score
	u.Percentage = shared.Percentage(score, lesson.MaxScore)
	return u, nil
}
