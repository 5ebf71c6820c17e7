package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// Directory is an in-memory directory.Directory with seeding helpers.
type Directory struct {
	mu          sync.RWMutex
	users       map[string]*directory.User
	lessons     map[string]*directory.Lesson
	memberships map[string]map[string]bool // classID -> studentID -> active
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:       make(map[string]*directory.User),
		lessons:     make(map[string]*directory.Lesson),
		memberships: make(map[string]map[string]bool),
	}
}

// AddUser inserts or replaces a user.
func (d *Directory) AddUser(u directory.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = &u
}

// AddLesson inserts or replaces a lesson.
func (d *Directory) AddLesson(l directory.Lesson) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lessons[l.ID] = &l
}

// AddMembership enrolls a student in a class.
func (d *Directory) AddMembership(classID, studentID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memberships[classID]; !ok {
		d.memberships[classID] = make(map[string]bool)
	}
	d.memberships[classID][studentID] = active
}

// GetUser implements directory.Directory.
func (d *Directory) GetUser(_ context.Context, id string) (*directory.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, shared.NotFound("directory", "GetUser", "user not found")
	}
	c := *u
	return &c, nil
}

// ListStudents implements directory.Directory.
func (d *Directory) ListStudents(_ context.Context, filter directory.StudentFilter) ([]*directory.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*directory.User, 0)
	for _, u := range d.users {
		if !u.IsStudent() || !u.IsActive {
			continue
		}
		if filter.TenantID != "" && u.TenantID != filter.TenantID {
			continue
		}
		if filter.ClassID != "" && !d.memberships[filter.ClassID][u.ID] {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.FullName), search) {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetLesson implements directory.Directory.
func (d *Directory) GetLesson(_ context.Context, id string) (*directory.Lesson, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.lessons[id]
	if !ok {
		return nil, shared.NotFound("directory", "GetLesson", "lesson not found")
	}
	c := *l
	return &c, nil
}
