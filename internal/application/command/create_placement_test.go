package command

import (
	"context"
	"testing"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlacement_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.create.Handle(context.Background(), CreatePlacementCommand{
		Actor:           teacher,
		StudentID:       "student-1",
		Subject:         "MATHEMATICS",
		AgeYear:         intPtr(6),
		AgeMonth:        intPtr(1),
		PlacementMethod: "ASSESSMENT_TEST",
		Notes:           "  baseline test  ",
	})
	require.NoError(t, err)

	p := res.Placement
	assert.Equal(t, assessment.StatusActive, p.Status)
	assert.Equal(t, "tenant-a", p.TenantID)
	assert.Equal(t, f.levels["6.1"].ID, p.CurrentAgeID)
	assert.Equal(t, p.CurrentAgeID, p.InitialAgeID)
	assert.Equal(t, 1, p.CurrentLessonNumber)
	assert.Equal(t, "teacher-1", p.PlacedBy)
	assert.Equal(t, "baseline test", p.Notes)
	assert.Equal(t, "6.1", res.Level.DisplayLabel())

	history := f.history(t, p.ID)
	require.Len(t, history, 1)
	assert.Equal(t, assessment.ChangeInitialPlacement, history[0].ChangeType)
	assert.Nil(t, history[0].FromLevelID)
	assert.Equal(t, p.CurrentAgeID, history[0].ToLevelID)
	assert.Equal(t, "teacher-1", history[0].ActorID)

	assert.Len(t, f.publisher.ofType(shared.EventPlacementCreated), 1)
}

func TestCreatePlacement_Errors(t *testing.T) {
	base := CreatePlacementCommand{
		Actor:           teacher,
		StudentID:       "student-1",
		Subject:         "MATHEMATICS",
		AgeYear:         intPtr(6),
		AgeMonth:        intPtr(1),
		PlacementMethod: "ASSESSMENT_TEST",
	}

	tests := []struct {
		name   string
		mutate func(*CreatePlacementCommand)
		check  func(error) bool
	}{
		{"student actor", func(c *CreatePlacementCommand) { c.Actor = studentS1 }, shared.IsForbidden},
		{"anonymous actor", func(c *CreatePlacementCommand) { c.Actor = Actor{} }, shared.IsForbidden},
		{"unknown subject", func(c *CreatePlacementCommand) { c.Subject = "HISTORY" }, shared.IsValidation},
		{"month out of range", func(c *CreatePlacementCommand) { c.AgeMonth = intPtr(13) }, shared.IsValidation},
		{"unknown method", func(c *CreatePlacementCommand) { c.PlacementMethod = "GUESS" }, shared.IsValidation},
		{"missing student", func(c *CreatePlacementCommand) { c.StudentID = "nobody" }, shared.IsNotFound},
		{"user is not a student", func(c *CreatePlacementCommand) { c.StudentID = "teacher-1" }, shared.IsNotFound},
		{"other tenant", func(c *CreatePlacementCommand) { c.StudentID = "student-b" }, shared.IsForbidden},
		{"missing level", func(c *CreatePlacementCommand) { c.AgeYear, c.AgeMonth = intPtr(9), intPtr(9) }, shared.IsNotFound},
		{"inactive level", func(c *CreatePlacementCommand) { c.AgeYear, c.AgeMonth = intPtr(5), intPtr(0) }, shared.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cmd := base
			tt.mutate(&cmd)

			_, err := f.create.Handle(context.Background(), cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestCreatePlacement_ValidationFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Handle(context.Background(), CreatePlacementCommand{
		Actor:    teacher,
		Subject:  "HISTORY",
		AgeMonth: intPtr(13),
	})
	require.Error(t, err)

	fields := map[string]bool{}
	for _, fe := range shared.FieldsOf(err) {
		fields[fe.Field] = true
		assert.NotEmpty(t, fe.Message)
	}
	assert.True(t, fields["studentId"])
	assert.True(t, fields["subject"])
	assert.True(t, fields["ageYear"])
	assert.True(t, fields["ageMonth"])
	assert.True(t, fields["placementMethod"])
}

func TestCreatePlacement_MissingAgeIsValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Handle(context.Background(), CreatePlacementCommand{
		Actor:           teacher,
		StudentID:       "student-1",
		Subject:         "MATHEMATICS",
		PlacementMethod: "OTHER",
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err), "unexpected error kind: %v", err)
	assert.False(t, shared.IsNotFound(err))

	fields := map[string]string{}
	for _, fe := range shared.FieldsOf(err) {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "this field is required", fields["ageYear"])
	assert.Equal(t, "this field is required", fields["ageMonth"])
	assert.Empty(t, f.publisher.events)
}

func TestCreatePlacement_SuperAdminCrossesTenants(t *testing.T) {
	f := newFixture(t)

	res, err := f.create.Handle(context.Background(), CreatePlacementCommand{
		Actor:           superAdmin,
		StudentID:       "student-b",
		Subject:         "ENGLISH",
		AgeYear:         intPtr(8),
		AgeMonth:        intPtr(1),
		PlacementMethod: "TRANSFER",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", res.Placement.TenantID)
}

func TestCreatePlacement_SingleActivePerSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.place(t, "student-1", "MATHEMATICS", 6, 1)

	_, err := f.create.Handle(ctx, CreatePlacementCommand{
		Actor: teacher, StudentID: "student-1", Subject: "MATHEMATICS",
		AgeYear: intPtr(7), AgeMonth: intPtr(0), PlacementMethod: "TEACHER_JUDGEMENT",
	})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	// a different subject is independent
	f.place(t, "student-1", "ENGLISH", 8, 1)

	_, err = f.archive.Handle(ctx, ArchivePlacementCommand{Actor: teacher, PlacementID: first.ID})
	require.NoError(t, err)

	second := f.place(t, "student-1", "MATHEMATICS", 7, 0)
	assert.NotEqual(t, first.ID, second.ID)
}
