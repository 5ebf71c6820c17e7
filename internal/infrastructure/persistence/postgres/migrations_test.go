package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations_OrderedAndComplete(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestGetMigrations_OneActivePlacementIndex(t *testing.T) {
	up := GetMigrations()[0].UpSQL

	assert.Contains(t, up, "CREATE UNIQUE INDEX IF NOT EXISTS age_placements_one_active")
	assert.Contains(t, up, "WHERE status <> 'ARCHIVED'")
	assert.Contains(t, up, "UNIQUE (placement_id, lesson_id)")
	assert.Contains(t, up, "UNIQUE (age_year, age_month)")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Positive(t, cfg.MaxConns)
	assert.LessOrEqual(t, cfg.MinConns, cfg.MaxConns)
}
