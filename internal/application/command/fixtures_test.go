package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/memory"
	"github.com/agepath/placement-engine/pkg/timeutil"
	"github.com/stretchr/testify/require"
)

var fixtureNow = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

var (
	teacher    = Actor{UserID: "teacher-1", Role: shared.RoleTeacher, TenantID: "tenant-a"}
	admin      = Actor{UserID: "admin-1", Role: shared.RoleCentreAdmin, TenantID: "tenant-a"}
	superAdmin = Actor{UserID: "super-1", Role: shared.RoleSuperAdmin, TenantID: "tenant-hq"}
	otherStaff = Actor{UserID: "teacher-b", Role: shared.RoleTeacher, TenantID: "tenant-b"}
	studentS1  = Actor{UserID: "student-1", Role: shared.RoleStudent, TenantID: "tenant-a"}
	studentS2  = Actor{UserID: "student-2", Role: shared.RoleStudent, TenantID: "tenant-a"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type toggles struct {
	audit bool
}

func (t toggles) AuditReadinessFlip(string) bool { return t.audit }

type fixture struct {
	store     *memory.Store
	dir       *memory.Directory
	publisher *recordingPublisher
	deps      Deps
	levels    map[string]*assessment.Level

	create   *CreatePlacementHandler
	record   *RecordLessonCompletionHandler
	override *ApplyManualOverrideHandler
	archive  *ArchivePlacementHandler
	level    *LevelHandler
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		dir:       memory.NewDirectory(),
		publisher: &recordingPublisher{},
		levels:    make(map[string]*assessment.Level),
	}

	for _, age := range [][2]int{{5, 0}, {6, 1}, {7, 0}, {8, 0}, {8, 1}} {
		l, err := assessment.NewLevel(age[0], age[1], nil, fixtureNow)
		require.NoError(t, err)
		if age[0] == 5 {
			l.IsActive = false
		}
		f.levels[l.DisplayLabel()] = l
		f.store.SeedLevels(l)
	}

	dob := fixtureNow.AddDate(0, 0, -2922)
	f.dir.AddUser(directory.User{ID: "student-1", TenantID: "tenant-a", FullName: "Sam One", Role: shared.RoleStudent, DateOfBirth: &dob, IsActive: true})
	f.dir.AddUser(directory.User{ID: "student-2", TenantID: "tenant-a", FullName: "Sky Two", Role: shared.RoleStudent, IsActive: true})
	f.dir.AddUser(directory.User{ID: "student-b", TenantID: "tenant-b", FullName: "Bo Other", Role: shared.RoleStudent, IsActive: true})
	f.dir.AddUser(directory.User{ID: "teacher-1", TenantID: "tenant-a", FullName: "Tess Teacher", Role: shared.RoleTeacher, IsActive: true})

	for i := 1; i <= 30; i++ {
		f.dir.AddLesson(directory.Lesson{
			ID:           fmt.Sprintf("math-%d", i),
			Subject:      "MATHEMATICS",
			AgeLevelID:   f.levels["6.1"].ID,
			LessonNumber: i,
			Title:        fmt.Sprintf("Maths lesson %d", i),
			MaxScore:     10,
		})
	}
	f.dir.AddLesson(directory.Lesson{ID: "eng-1", Subject: "ENGLISH", LessonNumber: 1, Title: "Phonics 1"})

	f.deps = Deps{
		Store:     f.store,
		Directory: f.dir,
		Publisher: f.publisher,
		Policy:    assessment.DefaultPolicy(),
		Clock:     timeutil.NewFixedClock(fixtureNow),
	}
	for _, opt := range opts {
		opt(&f.deps)
	}

	f.create = NewCreatePlacementHandler(f.deps)
	f.record = NewRecordLessonCompletionHandler(f.deps)
	f.override = NewApplyManualOverrideHandler(f.deps)
	f.archive = NewArchivePlacementHandler(f.deps)
	f.level = NewLevelHandler(f.deps)
	return f
}

func (f *fixture) place(t *testing.T, studentID, subject string, year, month int) *assessment.Placement {
	t.Helper()
	res, err := f.create.Handle(context.Background(), CreatePlacementCommand{
		Actor:           teacher,
		StudentID:       studentID,
		Subject:         subject,
		AgeYear:         &year,
		AgeMonth:        &month,
		PlacementMethod: "ASSESSMENT_TEST",
	})
	require.NoError(t, err)
	return res.Placement
}

func (f *fixture) mark(t *testing.T, placementID string, lessons int) *RecordLessonCompletionResult {
	t.Helper()
	var last *RecordLessonCompletionResult
	for i := 1; i <= lessons; i++ {
		res, err := f.record.Handle(context.Background(), RecordLessonCompletionCommand{
			Actor:       teacher,
			PlacementID: placementID,
			LessonID:    fmt.Sprintf("math-%d", i),
			Status:      "MARKED",
		})
		require.NoError(t, err)
		last = res
	}
	return last
}

func (f *fixture) history(t *testing.T, placementID string) []*assessment.HistoryEntry {
	t.Helper()
	h, err := f.store.Repositories().History.ListByPlacement(context.Background(), placementID)
	require.NoError(t, err)
	return h
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool { return &v }
func floatPtr(v float64) *float64 { return &v }
