package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEVELOPMENT SEED
// Fills the in-memory store and directory from a JSON document so the API is
// usable without PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

// Seed is the document accepted by LoadSeed.
type Seed struct {
	Levels      []SeedLevel      `json:"levels"`
	Users       []SeedUser       `json:"users"`
	Lessons     []SeedLesson     `json:"lessons"`
	Memberships []SeedMembership `json:"memberships"`
}

// SeedLevel is one catalogue entry. IsActive defaults to true.
type SeedLevel struct {
	AgeYear         int     `json:"ageYear"`
	AgeMonth        int     `json:"ageMonth"`
	LocaleYearLabel *string `json:"localeYearLabel"`
	IsActive        *bool   `json:"isActive"`
}

// SeedUser is one directory account. DateOfBirth is YYYY-MM-DD.
type SeedUser struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	FullName    string `json:"fullName"`
	Role        string `json:"role"`
	DateOfBirth string `json:"dateOfBirth"`
	IsActive    *bool  `json:"isActive"`
}

// SeedLesson is one curriculum lesson. Level is the display label of a seeded
// level such as "6.1".
type SeedLesson struct {
	ID           string  `json:"id"`
	Subject      string  `json:"subject"`
	Level        string  `json:"level"`
	LessonNumber int     `json:"lessonNumber"`
	Title        string  `json:"title"`
	MaxScore     float64 `json:"maxScore"`
}

// SeedMembership enrolls a student in a class. Active defaults to true.
type SeedMembership struct {
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	Active    *bool  `json:"active"`
}

// SeedCounts reports what LoadSeed inserted.
type SeedCounts struct {
	Levels      int
	Users       int
	Lessons     int
	Memberships int
}

// LoadSeedFile opens path and passes it to LoadSeed.
func LoadSeedFile(path string, store *Store, dir *Directory, now time.Time) (SeedCounts, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedCounts{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f, store, dir, now)
}

// LoadSeed decodes a Seed and inserts it. The document is validated in full
// before anything is written.
func LoadSeed(r io.Reader, store *Store, dir *Directory, now time.Time) (SeedCounts, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return SeedCounts{}, fmt.Errorf("decode seed: %w", err)
	}

	levels := make([]*assessment.Level, 0, len(seed.Levels))
	byLabel := make(map[string]*assessment.Level, len(seed.Levels))
	for i, sl := range seed.Levels {
		level, err := assessment.NewLevel(sl.AgeYear, sl.AgeMonth, sl.LocaleYearLabel, now)
		if err != nil {
			return SeedCounts{}, fmt.Errorf("levels[%d]: %w", i, err)
		}
		if _, dup := byLabel[level.DisplayLabel()]; dup {
			return SeedCounts{}, fmt.Errorf("levels[%d]: duplicate level %s", i, level.DisplayLabel())
		}
		level.IsActive = boolOr(sl.IsActive, true)
		byLabel[level.DisplayLabel()] = level
		levels = append(levels, level)
	}

	users := make([]directory.User, 0, len(seed.Users))
	for i, su := range seed.Users {
		user, err := su.toUser()
		if err != nil {
			return SeedCounts{}, fmt.Errorf("users[%d]: %w", i, err)
		}
		users = append(users, user)
	}

	lessons := make([]directory.Lesson, 0, len(seed.Lessons))
	for i, sl := range seed.Lessons {
		if sl.ID == "" {
			return SeedCounts{}, fmt.Errorf("lessons[%d]: id is required", i)
		}
		if !assessment.Subject(sl.Subject).IsValid() {
			return SeedCounts{}, fmt.Errorf("lessons[%d]: unknown subject %q", i, sl.Subject)
		}
		lesson := directory.Lesson{
			ID:           sl.ID,
			Subject:      sl.Subject,
			LessonNumber: sl.LessonNumber,
			Title:        sl.Title,
			MaxScore:     sl.MaxScore,
		}
		if sl.Level != "" {
			level, ok := byLabel[sl.Level]
			if !ok {
				return SeedCounts{}, fmt.Errorf("lessons[%d]: unknown level %q", i, sl.Level)
			}
			lesson.AgeLevelID = level.ID
		}
		lessons = append(lessons, lesson)
	}

	for i, m := range seed.Memberships {
		if m.ClassID == "" || m.StudentID == "" {
			return SeedCounts{}, fmt.Errorf("memberships[%d]: classId and studentId are required", i)
		}
	}

	store.SeedLevels(levels...)
	for _, u := range users {
		dir.AddUser(u)
	}
	for _, l := range lessons {
		dir.AddLesson(l)
	}
	for _, m := range seed.Memberships {
		dir.AddMembership(m.ClassID, m.StudentID, boolOr(m.Active, true))
	}

	return SeedCounts{
		Levels:      len(levels),
		Users:       len(users),
		Lessons:     len(lessons),
		Memberships: len(seed.Memberships),
	}, nil
}

func (su SeedUser) toUser() (directory.User, error) {
	if su.ID == "" {
		return directory.User{}, fmt.Errorf("id is required")
	}
	role, ok := shared.ParseRole(su.Role)
	if !ok {
		return directory.User{}, fmt.Errorf("unknown role %q", su.Role)
	}
	user := directory.User{
		ID:       su.ID,
		TenantID: su.TenantID,
		FullName: strings.TrimSpace(su.FullName),
		Role:     role,
		IsActive: boolOr(su.IsActive, true),
	}
	if su.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, su.DateOfBirth)
		if err != nil {
			return directory.User{}, fmt.Errorf("dateOfBirth: %w", err)
		}
		user.DateOfBirth = &dob
	}
	return user, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
