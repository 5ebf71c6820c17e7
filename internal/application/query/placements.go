package query

import (
	"context"
	"errors"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT QUERIES
// Readable by staff of the placement's tenant and by the student themself.
// ══════════════════════════════════════════════════════════════════════════════

// PlacementHandler serves placement and level reads.
type PlacementHandler struct {
	deps Deps
}

// NewPlacementHandler creates a new PlacementHandler.
func NewPlacementHandler(deps Deps) *PlacementHandler {
	return &PlacementHandler{deps: deps.withDefaults()}
}

// PlacementDetail is a placement with its gap and completions.
type PlacementDetail struct {
	Placement   *PlacementDTO   `json:"placement"`
	Gap         *float64        `json:"gap"`
	Band        *string         `json:"band"`
	Completions []CompletionDTO `json:"completions"`
}

// GetPlacement returns one placement.
func (h *PlacementHandler) GetPlacement(ctx context.Context, actor Actor, placementID string) (*PlacementDetail, error) {
	const op = "GetPlacement"
	if err := actor.Validate("placement", op); err != nil {
		return nil, err
	}

	repos := h.deps.Store.Repositories()
	p, err := repos.Placements.GetByID(ctx, placementID)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	if !canRead(actor, p.StudentID, p.TenantID) {
		return nil, shared.Forbidden("placement", op, "not allowed to read this placement")
	}

	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	completions, err := repos.Completions.ListByPlacement(ctx, p.ID)
	if err != nil {
		return nil, wrap("placement", op, err)
	}

	detail := &PlacementDetail{
		Placement:   NewPlacementDTO(p, catalog, h.deps.Policy),
		Completions: make([]CompletionDTO, 0, len(completions)),
	}
	for _, c := range completions {
		detail.Completions = append(detail.Completions, *NewCompletionDTO(c))
	}

	// A student missing from the directory only loses the gap.
	student, err := h.deps.Directory.GetUser(ctx, p.StudentID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, wrap("placement", op, err)
	}
	if student != nil {
		level, _ := catalog.ByID(p.CurrentAgeID)
		gap := assessment.GapFor(student.DateOfBirth, level, h.deps.Clock.Now(), h.deps.Policy.Bands)
		detail.Gap = gap.Gap
		if gap.Band != nil {
			band := string(*gap.Band)
			detail.Band = &band
		}
	}
	return detail, nil
}

// ListStudentPlacements returns a student's placements, newest first.
func (h *PlacementHandler) ListStudentPlacements(ctx context.Context, actor Actor, studentID string, includeArchived bool) ([]*PlacementDTO, error) {
	const op = "ListStudentPlacements"
	if err := actor.Validate("placement", op); err != nil {
		return nil, err
	}

	student, err := h.deps.Directory.GetUser(ctx, studentID)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	if !canRead(actor, student.ID, student.TenantID) {
		return nil, shared.Forbidden("placement", op, "not allowed to read this student")
	}

	placements, err := h.deps.Store.Repositories().Placements.ListByStudent(ctx, studentID, includeArchived)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, wrap("placement", op, err)
	}

	out := make([]*PlacementDTO, 0, len(placements))
	for _, p := range placements {
		out = append(out, NewPlacementDTO(p, catalog, h.deps.Policy))
	}
	return out, nil
}

// GetPlacementHistory returns the audit trail of a placement, oldest first.
func (h *PlacementHandler) GetPlacementHistory(ctx context.Context, actor Actor, placementID string) ([]HistoryEntryDTO, error) {
	const op = "GetPlacementHistory"
	if err := actor.Validate("placement", op); err != nil {
		return nil, err
	}

	repos := h.deps.Store.Repositories()
	p, err := repos.Placements.GetByID(ctx, placementID)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	if !canRead(actor, p.StudentID, p.TenantID) {
		return nil, shared.Forbidden("placement", op, "not allowed to read this placement")
	}

	entries, err := repos.History.ListByPlacement(ctx, p.ID)
	if err != nil {
		return nil, wrap("placement", op, err)
	}
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, wrap("placement", op, err)
	}

	out := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, newHistoryEntryDTO(e, catalog))
	}
	return out, nil
}

// ListLevels returns the catalogue ordered by year, then month. Inactive
// levels are included only when asked for.
func (h *PlacementHandler) ListLevels(ctx context.Context, includeInactive bool) ([]*LevelDTO, error) {
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, wrap("level", "List", err)
	}

	levels := catalog.Active()
	if includeInactive {
		levels = catalog.Levels()
	}
	out := make([]*LevelDTO, 0, len(levels))
	for _, l := range levels {
		out = append(out, NewLevelDTO(l))
	}
	return out, nil
}

// Describe renders a placement already authorized by the caller, such as
// the result of a command.
func (h *PlacementHandler) Describe(ctx context.Context, p *assessment.Placement) (*PlacementDTO, error) {
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, wrap("placement", "Describe", err)
	}
	return NewPlacementDTO(p, catalog, h.deps.Policy), nil
}

// wrap keeps DomainErrors and reports anything else as internal.
func wrap(domain, op string, err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.Internal(domain, op, "query failed", err)
}
