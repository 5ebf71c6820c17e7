package query

import (
	"context"
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
	superAdmin = Actor{UserID: "super-1", Role: shared.RoleSuperAdmin, TenantID: "tenant-hq"}
	studentS1  = Actor{UserID: "student-1", Role: shared.RoleStudent, TenantID: "tenant-a"}
	studentS2  = Actor{UserID: "student-2", Role: shared.RoleStudent, TenantID: "tenant-a"}
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	scopes  map[string]string
	gens    map[string]int64
	sets    int
	skipped int

	// duringBuild runs once, after the generation is read.
	duringBuild func()
}

func newMemCache() *memCache {
	return &memCache{
		entries: make(map[string][]byte),
		scopes:  make(map[string]string),
		gens:    make(map[string]int64),
	}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Generation(_ context.Context, scope string) (int64, error) {
	c.mu.Lock()
	gen := c.gens[scope]
	hook := c.duringBuild
	c.duringBuild = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return gen, nil
}

func (c *memCache) Set(_ context.Context, key, scope string, generation int64, value []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[scope] != generation {
		c.skipped++
		return false, nil
	}
	c.entries[key] = value
	c.scopes[key] = scope
	c.sets++
	return true, nil
}

func (c *memCache) InvalidateTenant(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[tenantID]++
	c.gens["all"]++
	for key, scope := range c.scopes {
		if scope == tenantID || scope == "all" {
			delete(c.entries, key)
			delete(c.scopes, key)
		}
	}
	return nil
}

type gridToggle bool

func (g gridToggle) GridCacheEnabled(string) bool { return bool(g) }

type fixture struct {
	store  *memory.Store
	dir    *memory.Directory
	levels map[string]*assessment.Level
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.NewStore(),
		dir:    memory.NewDirectory(),
		levels: make(map[string]*assessment.Level),
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

	// exactly 8.0 years old at fixtureNow
	dob := fixtureNow.AddDate(0, 0, -2922)
	f.dir.AddUser(directory.User{ID: "student-1", TenantID: "tenant-a", FullName: "Sam One", Role: shared.RoleStudent, DateOfBirth: &dob, IsActive: true})
	f.dir.AddUser(directory.User{ID: "student-2", TenantID: "tenant-a", FullName: "Sky Two", Role: shared.RoleStudent, IsActive: true})
	f.dir.AddUser(directory.User{ID: "student-3", TenantID: "tenant-a", FullName: "Gone Three", Role: shared.RoleStudent, IsActive: false})
	f.dir.AddUser(directory.User{ID: "student-b", TenantID: "tenant-b", FullName: "Bo Other", Role: shared.RoleStudent, IsActive: true})
	f.dir.AddUser(directory.User{ID: "teacher-1", TenantID: "tenant-a", FullName: "Tess Teacher", Role: shared.RoleTeacher, IsActive: true})
	f.dir.AddMembership("class-1", "student-2", true)
	f.dir.AddMembership("class-1", "student-1", false)

	f.deps = Deps{
		Store:     f.store,
		Directory: f.dir,
		Policy:    assessment.DefaultPolicy(),
		Clock:     timeutil.NewFixedClock(fixtureNow),
	}
	return f
}

func (f *fixture) place(t *testing.T, studentID, tenantID string, subject assessment.Subject, label string) *assessment.Placement {
	t.Helper()
	p, err := assessment.NewPlacement(assessment.NewPlacementParams{
		StudentID: studentID,
		TenantID:  tenantID,
		Subject:   subject,
		LevelID:   f.levels[label].ID,
		Method:    assessment.MethodAssessmentTest,
		PlacedBy:  "teacher-1",
	}, fixtureNow)
	require.NoError(t, err)
	require.NoError(t, f.store.Repositories().Placements.Create(context.Background(), p))
	return p
}
