package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeed(t *testing.T) {
	store, dir := NewStore(), NewDirectory()
	doc := `{
		"levels": [
			{"ageYear": 6, "ageMonth": 1, "localeYearLabel": "Year 1"},
			{"ageYear": 9, "ageMonth": 0, "isActive": false}
		],
		"users": [
			{"id": "s-1", "tenantId": "t-1", "fullName": " Amy Adams ", "role": "student", "dateOfBirth": "2016-03-14"},
			{"id": "s-2", "tenantId": "t-1", "fullName": "Ben Brown", "role": "STUDENT", "isActive": false}
		],
		"lessons": [
			{"id": "eng-1", "subject": "ENGLISH", "level": "6.1", "lessonNumber": 1, "title": "Phonics", "maxScore": 10}
		],
		"memberships": [{"classId": "c-1", "studentId": "s-1"}]
	}`

	counts, err := LoadSeed(strings.NewReader(doc), store, dir, now)
	require.NoError(t, err)
	assert.Equal(t, SeedCounts{Levels: 2, Users: 2, Lessons: 1, Memberships: 1}, counts)

	ctx := context.Background()
	levels := store.Repositories().Levels

	l61, err := levels.GetByAge(ctx, 6, 1)
	require.NoError(t, err)
	assert.True(t, l61.IsActive)
	require.NotNil(t, l61.LocaleYearLabel)
	assert.Equal(t, "Year 1", *l61.LocaleYearLabel)

	l90, err := levels.GetByAge(ctx, 9, 0)
	require.NoError(t, err)
	assert.False(t, l90.IsActive)

	user, err := dir.GetUser(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, shared.RoleStudent, user.Role)
	assert.Equal(t, "Amy Adams", user.FullName)
	require.NotNil(t, user.DateOfBirth)
	assert.Equal(t, 2016, user.DateOfBirth.Year())

	lesson, err := dir.GetLesson(ctx, "eng-1")
	require.NoError(t, err)
	assert.Equal(t, l61.ID, lesson.AgeLevelID)

	students, err := dir.ListStudents(ctx, directory.StudentFilter{ClassID: "c-1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "s-1", students[0].ID)
}

func TestLoadSeed_RejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", `{"teachers": []}`, "decode seed"},
		{"level out of range", `{"levels": [{"ageYear": 30, "ageMonth": 0}]}`, "levels[0]"},
		{"duplicate level", `{"levels": [{"ageYear": 6, "ageMonth": 1}, {"ageYear": 6, "ageMonth": 1}]}`, "duplicate level 6.1"},
		{"unknown role", `{"users": [{"id": "u-1", "role": "JANITOR"}]}`, "unknown role"},
		{"bad birth date", `{"users": [{"id": "u-1", "role": "STUDENT", "dateOfBirth": "14/03/2016"}]}`, "dateOfBirth"},
		{"unknown subject", `{"lessons": [{"id": "l-1", "subject": "HISTORY"}]}`, "unknown subject"},
		{"unknown lesson level", `{"lessons": [{"id": "l-1", "subject": "ENGLISH", "level": "7.0"}]}`, "unknown level"},
		{"membership without class", `{"memberships": [{"studentId": "s-1"}]}`, "memberships[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := NewStore(), NewDirectory()
			_, err := LoadSeed(strings.NewReader(tt.doc), store, dir, now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			levels, err := store.Repositories().Levels.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, levels)
		})
	}
}

func TestLoadSeedFile_Example(t *testing.T) {
	store, dir := NewStore(), NewDirectory()

	counts, err := LoadSeedFile("../../../../config/dev_seed.example.json", store, dir, now)
	require.NoError(t, err)
	assert.Equal(t, 7, counts.Levels)
	assert.Equal(t, 5, counts.Users)

	_, err = dir.GetUser(context.Background(), "teacher-1")
	assert.NoError(t, err)

	_, err = LoadSeedFile("testdata/missing.json", store, dir, now)
	assert.Error(t, err)
}
