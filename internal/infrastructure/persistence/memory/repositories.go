package memory

import (
	"context"
	"sort"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS
// ══════════════════════════════════════════════════════════════════════════════

type levelRepository struct {
	v view
}

func (r *levelRepository) Create(_ context.Context, level *assessment.Level) error {
	return r.v.with(func(st *state) error {
		for _, l := range st.levels {
			if l.AgeYear == level.AgeYear && l.AgeMonth == level.AgeMonth {
				return shared.Conflict("level", "Create", "level "+level.DisplayLabel()+" already exists")
			}
		}
		st.levels[level.ID] = level.Clone()
		return nil
	})
}

func (r *levelRepository) Update(_ context.Context, level *assessment.Level) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.levels[level.ID]; !ok {
			return shared.NotFound("level", "Update", "level not found")
		}
		st.levels[level.ID] = level.Clone()
		return nil
	})
}

func (r *levelRepository) GetByID(_ context.Context, id string) (*assessment.Level, error) {
	var out *assessment.Level
	err := r.v.with(func(st *state) error {
		l, ok := st.levels[id]
		if !ok {
			return shared.NotFound("level", "GetByID", "level not found")
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (r *levelRepository) GetByAge(_ context.Context, ageYear, ageMonth int) (*assessment.Level, error) {
	var out *assessment.Level
	err := r.v.with(func(st *state) error {
		for _, l := range st.levels {
			if l.AgeYear == ageYear && l.AgeMonth == ageMonth {
				out = l.Clone()
				return nil
			}
		}
		return shared.NotFound("level", "GetByAge", "assessment level not found")
	})
	return out, err
}

func (r *levelRepository) List(_ context.Context) ([]*assessment.Level, error) {
	var out []*assessment.Level
	err := r.v.with(func(st *state) error {
		out = make([]*assessment.Level, 0, len(st.levels))
		for _, l := range st.levels {
			out = append(out, l.Clone())
		}
		return nil
	})
	assessment.SortLevels(out)
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENTS
// ══════════════════════════════════════════════════════════════════════════════

type placementRepository struct {
	v view
}

func (r *placementRepository) Create(_ context.Context, p *assessment.Placement) error {
	return r.v.with(func(st *state) error {
		if !p.IsArchived() {
			for _, other := range st.placements {
				if other.StudentID == p.StudentID && other.Subject == p.Subject && !other.IsArchived() {
					return shared.Conflict("placement", "Create", "student already has an active placement in "+p.Subject.String())
				}
			}
		}
		st.placements[p.ID] = p.Clone()
		return nil
	})
}

func (r *placementRepository) Update(_ context.Context, p *assessment.Placement) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.placements[p.ID]; !ok {
			return shared.NotFound("placement", "Update", "placement not found")
		}
		st.placements[p.ID] = p.Clone()
		return nil
	})
}

func (r *placementRepository) GetByID(_ context.Context, id string) (*assessment.Placement, error) {
	var out *assessment.Placement
	err := r.v.with(func(st *state) error {
		p, ok := st.placements[id]
		if !ok {
			return shared.NotFound("placement", "GetByID", "placement not found")
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: a transaction already holds the store mutex.
func (r *placementRepository) GetForUpdate(ctx context.Context, id string) (*assessment.Placement, error) {
	return r.GetByID(ctx, id)
}

func (r *placementRepository) FindActive(_ context.Context, studentID string, subject assessment.Subject) (*assessment.Placement, error) {
	var out *assessment.Placement
	err := r.v.with(func(st *state) error {
		for _, p := range st.placements {
			if p.StudentID == studentID && p.Subject == subject && !p.IsArchived() {
				out = p.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *placementRepository) ListByStudent(_ context.Context, studentID string, includeArchived bool) ([]*assessment.Placement, error) {
	var out []*assessment.Placement
	err := r.v.with(func(st *state) error {
		for _, p := range st.placements {
			if p.StudentID != studentID {
				continue
			}
			if p.IsArchived() && !includeArchived {
				continue
			}
			out = append(out, p.Clone())
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	return out, err
}

func (r *placementRepository) ListActiveByStudents(_ context.Context, studentIDs []string, subject *assessment.Subject) ([]*assessment.Placement, error) {
	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}

	var out []*assessment.Placement
	err := r.v.with(func(st *state) error {
		for _, p := range st.placements {
			if _, ok := wanted[p.StudentID]; !ok || p.IsArchived() {
				continue
			}
			if subject != nil && p.Subject != *subject {
				continue
			}
			out = append(out, p.Clone())
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

type completionRepository struct {
	v view
}

func (r *completionRepository) Get(_ context.Context, placementID, lessonID string) (*assessment.LessonCompletion, error) {
	var out *assessment.LessonCompletion
	err := r.v.with(func(st *state) error {
		if c, ok := st.completions[completionKey{placementID, lessonID}]; ok {
			out = c.Clone()
		}
		return nil
	})
	return out, err
}

func (r *completionRepository) Upsert(_ context.Context, c *assessment.LessonCompletion) error {
	return r.v.with(func(st *state) error {
		key := completionKey{c.PlacementID, c.LessonID}
		stored := c.Clone()
		if existing, ok := st.completions[key]; ok {
			stored.ID = existing.ID
			stored.StartedAt = existing.StartedAt
		}
		st.completions[key] = stored
		return nil
	})
}

func (r *completionRepository) CountMarked(_ context.Context, placementID string) (int, error) {
	count := 0
	err := r.v.with(func(st *state) error {
		for key, c := range st.completions {
			if key.placementID == placementID && c.IsMarked() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *completionRepository) ListByPlacement(_ context.Context, placementID string) ([]*assessment.LessonCompletion, error) {
	var out []*assessment.LessonCompletion
	err := r.v.with(func(st *state) error {
		for key, c := range st.completions {
			if key.placementID == placementID {
				out = append(out, c.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ══════════════════════════════════════════════════════════════════════════════

type historyRepository struct {
	v view
}

func (r *historyRepository) Append(_ context.Context, entry *assessment.HistoryEntry) error {
	return r.v.with(func(st *state) error {
		st.history = append(st.history, entry.Clone())
		return nil
	})
}

func (r *historyRepository) ListByPlacement(_ context.Context, placementID string) ([]*assessment.HistoryEntry, error) {
	var out []*assessment.HistoryEntry
	err := r.v.with(func(st *state) error {
		for _, h := range st.history {
			if h.PlacementID == placementID {
				out = append(out, h.Clone())
			}
		}
		return nil
	})
	return out, err
}
