package command

import (
	"context"
	"testing"

	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelHandler_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	level, err := f.level.Create(ctx, CreateLevelCommand{Actor: admin, AgeYear: intPtr(9), AgeMonth: intPtr(6), LocaleYearLabel: strPtr(" Year 5 ")})
	require.NoError(t, err)
	assert.Equal(t, "9.6", level.DisplayLabel())
	assert.True(t, level.IsActive)
	require.NotNil(t, level.LocaleYearLabel)
	assert.Equal(t, "Year 5", *level.LocaleYearLabel)

	stored, err := f.store.Repositories().Levels.GetByAge(ctx, 9, 6)
	require.NoError(t, err)
	assert.Equal(t, level.ID, stored.ID)

	_, err = f.level.Create(ctx, CreateLevelCommand{Actor: admin, AgeYear: intPtr(9), AgeMonth: intPtr(6)})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
}

func TestLevelHandler_CreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.level.Create(context.Background(), CreateLevelCommand{Actor: teacher, AgeYear: intPtr(9), AgeMonth: intPtr(0)})
	require.Error(t, err)
	assert.True(t, shared.IsForbidden(err))

	_, err = f.level.Create(context.Background(), CreateLevelCommand{Actor: admin, AgeYear: intPtr(26), AgeMonth: intPtr(0)})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestLevelHandler_CreateRequiresAge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.level.Create(ctx, CreateLevelCommand{Actor: admin})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = f.store.Repositories().Levels.GetByAge(ctx, 0, 0)
	assert.True(t, shared.IsNotFound(err))

	level, err := f.level.Create(ctx, CreateLevelCommand{Actor: admin, AgeYear: intPtr(0), AgeMonth: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, "0.0", level.DisplayLabel())
}

func TestLevelHandler_SetActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.levels["5.0"].ID

	level, err := f.level.SetActive(ctx, SetLevelActiveCommand{Actor: superAdmin, LevelID: id, IsActive: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, level.IsActive)

	// the reactivated level now accepts placements
	f.place(t, "student-1", "READING", 5, 0)

	level, err = f.level.SetActive(ctx, SetLevelActiveCommand{Actor: admin, LevelID: id, LocaleYearLabel: strPtr("Reception")})
	require.NoError(t, err)
	assert.True(t, level.IsActive)
	require.NotNil(t, level.LocaleYearLabel)
	assert.Equal(t, "Reception", *level.LocaleYearLabel)

	_, err = f.level.SetActive(ctx, SetLevelActiveCommand{Actor: admin, LevelID: "missing", IsActive: boolPtr(false)})
	assert.True(t, shared.IsNotFound(err))
}
