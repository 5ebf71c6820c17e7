package query

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUILD ASSESSMENT GRID QUERY
// Students × subjects report. Each cell holds the student's current level in
// the subject, lesson progress and the classified age gap.
// ══════════════════════════════════════════════════════════════════════════════

// BuildGridQuery contains the grid filters. Empty fields do not filter.
type BuildGridQuery struct {
	Actor Actor

	// TenantID is honoured only for SUPER_ADMIN. Other staff always see their
	// own tenant.
	TenantID string
	ClassID  string
	Subject  string
	AgeBand  string
	Search   string
}

// GridCell is one (student, subject) intersection.
type GridCell struct {
	PlacementID         string   `json:"placementId"`
	LevelID             string   `json:"levelId"`
	Label               string   `json:"label,omitempty"`
	AgeYear             *int     `json:"ageYear,omitempty"`
	AgeMonth            *int     `json:"ageMonth,omitempty"`
	AssessmentAge       *float64 `json:"assessmentAge,omitempty"`
	LessonsCompleted    int      `json:"lessonsCompleted"`
	LessonsPerLevel     int      `json:"lessonsPerLevel"`
	LessonProgress      string   `json:"lessonProgress"`
	CurrentLessonNumber int      `json:"currentLessonNumber"`
	ReadyForPromotion   bool     `json:"readyForPromotion"`
	Gap                 *float64 `json:"gap"`
	Band                *string  `json:"band"`
}

// GridRow is one student.
type GridRow struct {
	StudentID        string               `json:"studentId"`
	FullName         string               `json:"fullName"`
	TenantID         string               `json:"tenantId"`
	DateOfBirth      *string              `json:"dateOfBirth"`
	ChronologicalAge *float64             `json:"chronologicalAge"`
	Cells            map[string]*GridCell `json:"cells"`
}

// GridResult is the whole grid.
type GridResult struct {
	Rows        []GridRow `json:"rows"`
	Subjects    []string  `json:"subjects"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// gridScope is the validated form of a BuildGridQuery.
type gridScope struct {
	tenantID string
	classID  string
	subject  *assessment.Subject
	band     *assessment.AgeBand
	search   string
}

// BuildGridHandler handles the BuildGridQuery.
type BuildGridHandler struct {
	deps Deps
}

// NewBuildGridHandler creates a new BuildGridHandler.
func NewBuildGridHandler(deps Deps) *BuildGridHandler {
	return &BuildGridHandler{deps: deps.withDefaults()}
}

// Handle builds the grid, serving it from the cache when enabled.
func (h *BuildGridHandler) Handle(ctx context.Context, q BuildGridQuery) (*GridResult, error) {
	const op = "BuildGrid"

	scope, err := resolveScope(q)
	if err != nil {
		return nil, err
	}

	useCache := h.deps.Cache != nil && (h.deps.Toggles == nil || h.deps.Toggles.GridCacheEnabled(scope.tenantID))
	key := scope.cacheKey()
	var generation int64
	if useCache {
		if res, ok := h.fromCache(ctx, key); ok {
			return res, nil
		}
		generation, err = h.deps.Cache.Generation(ctx, tenantScope(scope.tenantID))
		if err != nil {
			h.deps.Logger.Warn("grid cache generation read failed", logger.Err(err))
			useCache = false
		}
	}

	start := time.Now()
	res, err := h.build(ctx, scope)
	if err != nil {
		return nil, wrap("grid", op, err)
	}

	h.deps.Logger.Debug("assessment grid built",
		logger.TenantID(scope.tenantID),
		logger.Int("rows", len(res.Rows)),
		logger.Latency(time.Since(start)),
	)

	if useCache {
		h.toCache(ctx, key, scope.tenantID, generation, res)
	}
	return res, nil
}

func resolveScope(q BuildGridQuery) (gridScope, error) {
	const op = "BuildGrid"

	if err := q.Actor.RequireStaff("grid", op); err != nil {
		return gridScope{}, err
	}

	scope := gridScope{
		tenantID: q.Actor.TenantID,
		classID:  strings.TrimSpace(q.ClassID),
		search:   strings.TrimSpace(q.Search),
	}
	tenant := strings.TrimSpace(q.TenantID)
	switch {
	case q.Actor.Role.SpansTenants():
		scope.tenantID = tenant
	case tenant != "" && tenant != q.Actor.TenantID:
		return gridScope{}, shared.Forbidden("grid", op, "tenant mismatch")
	}

	var fields []shared.FieldError
	if q.Subject != "" {
		s, ok := assessment.ParseSubject(q.Subject)
		if !ok {
			fields = append(fields, shared.FieldError{Field: "subject", Message: "unknown subject " + q.Subject})
		} else {
			scope.subject = &s
		}
	}
	if q.AgeBand != "" {
		b, ok := assessment.ParseAgeBand(strings.ToUpper(strings.TrimSpace(q.AgeBand)))
		if !ok {
			fields = append(fields, shared.FieldError{Field: "ageBand", Message: "unknown age band " + q.AgeBand})
		} else {
			scope.band = &b
		}
	}
	if len(fields) > 0 {
		return gridScope{}, shared.Invalid("grid", op, "invalid grid filters", fields...)
	}
	return scope, nil
}

// cacheKey is stable for equal scopes. Tenant stays readable so keys can be
// invalidated per tenant.
func (s gridScope) cacheKey() string {
	subject, band := "", ""
	if s.subject != nil {
		subject = s.subject.String()
	}
	if s.band != nil {
		band = string(*s.band)
	}
	sum := sha1.Sum([]byte(strings.Join([]string{s.classID, subject, band, strings.ToLower(s.search)}, "\x1f")))
	return fmt.Sprintf("grid:%s:%s", tenantScope(s.tenantID), hex.EncodeToString(sum[:8]))
}

// tenantScope names the cache bucket of a tenant; cross-tenant grids share "all".
func tenantScope(tenantID string) string {
	if tenantID == "" {
		return "all"
	}
	return tenantID
}

func (h *BuildGridHandler) fromCache(ctx context.Context, key string) (*GridResult, bool) {
	data, err := h.deps.Cache.Get(ctx, key)
	if err != nil {
		h.deps.Logger.Warn("grid cache read failed", logger.String("key", key), logger.Err(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var res GridResult
	if err := json.Unmarshal(data, &res); err != nil {
		h.deps.Logger.Warn("grid cache entry unreadable", logger.String("key", key), logger.Err(err))
		return nil, false
	}
	return &res, true
}

// toCache stores the grid unless the tenant was invalidated while it was
// being built.
func (h *BuildGridHandler) toCache(ctx context.Context, key, tenantID string, generation int64, res *GridResult) {
	data, err := json.Marshal(res)
	if err != nil {
		h.deps.Logger.Warn("grid cache encode failed", logger.Err(err))
		return
	}
	stored, err := h.deps.Cache.Set(ctx, key, tenantScope(tenantID), generation, data, h.deps.CacheTTL)
	if err != nil {
		h.deps.Logger.Warn("grid cache write failed", logger.String("key", key), logger.Err(err))
		return
	}
	if !stored {
		h.deps.Logger.Debug("grid cache write skipped, scope invalidated during build", logger.String("key", key))
	}
}

func (h *BuildGridHandler) build(ctx context.Context, scope gridScope) (*GridResult, error) {
	now := h.deps.Clock.Now()

	subjects := assessment.AllSubjects()
	if scope.subject != nil {
		subjects = []assessment.Subject{*scope.subject}
	}
	res := &GridResult{
		Rows:        []GridRow{},
		Subjects:    make([]string, 0, len(subjects)),
		GeneratedAt: now,
	}
	for _, s := range subjects {
		res.Subjects = append(res.Subjects, s.String())
	}

	students, err := h.deps.Directory.ListStudents(ctx, directory.StudentFilter{
		TenantID: scope.tenantID,
		ClassID:  scope.classID,
		Search:   scope.search,
	})
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	placements, err := h.deps.Store.Repositories().Placements.ListActiveByStudents(ctx, ids, scope.subject)
	if err != nil {
		return nil, err
	}
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]map[assessment.Subject]*assessment.Placement, len(students))
	for _, p := range placements {
		if index[p.StudentID] == nil {
			index[p.StudentID] = make(map[assessment.Subject]*assessment.Placement)
		}
		index[p.StudentID][p.Subject] = p
	}

	for _, student := range students {
		row := GridRow{
			StudentID:   student.ID,
			FullName:    student.FullName,
			TenantID:    student.TenantID,
			DateOfBirth: timeutil.FormatDatePtr(student.DateOfBirth),
			Cells:       make(map[string]*GridCell, len(subjects)),
		}
		if student.DateOfBirth != nil {
			age := assessment.Round1(assessment.ChronologicalAge(*student.DateOfBirth, now))
			row.ChronologicalAge = &age
		}

		matched := scope.band == nil
		for _, subject := range subjects {
			p, ok := index[student.ID][subject]
			if !ok {
				row.Cells[subject.String()] = nil
				continue
			}
			cell := h.cell(p, catalog, student.DateOfBirth, now)
			if scope.band != nil && cell.Band != nil && *cell.Band == string(*scope.band) {
				matched = true
			}
			row.Cells[subject.String()] = cell
		}
		if matched {
			res.Rows = append(res.Rows, row)
		}
	}
	return res, nil
}

func (h *BuildGridHandler) cell(p *assessment.Placement, catalog *assessment.Catalog, dob *time.Time, now time.Time) *GridCell {
	policy := h.deps.Policy
	cell := &GridCell{
		PlacementID:         p.ID,
		LevelID:             p.CurrentAgeID,
		LessonsCompleted:    p.LessonsCompleted,
		LessonsPerLevel:     policy.LessonsPerLevel,
		LessonProgress:      p.LessonProgress(policy),
		CurrentLessonNumber: p.CurrentLessonNumber,
		ReadyForPromotion:   p.ReadyForPromotion,
	}

	level, ok := catalog.ByID(p.CurrentAgeID)
	if !ok {
		return cell
	}
	year, month, age := level.AgeYear, level.AgeMonth, level.AssessmentAge()
	cell.Label = level.DisplayLabel()
	cell.AgeYear = &year
	cell.AgeMonth = &month
	cell.AssessmentAge = &age

	gap := assessment.GapFor(dob, level, now, policy.Bands)
	cell.Gap = gap.Gap
	if gap.Band != nil {
		band := string(*gap.Band)
		cell.Band = &band
	}
	return cell
}
