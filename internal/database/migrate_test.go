package database

import (
	"io/fs"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		body, err := fs.ReadFile(migrations, f)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", f)
		assert.Contains(t, string(body), "-- +goose Down", f)
	}
}

// School names are unique ignoring case only; "École" and "Ecole" are two
// schools, matching the in-memory store.
func TestMigrations_schoolNameCollation(t *testing.T) {
	body, err := fs.ReadFile(migrations, "migrations/00001_init.sql")
	require.NoError(t, err)

	col := regexp.MustCompile(`(?m)^\s*name\s+VARCHAR\(255\) NOT NULL COLLATE (\w+),`).FindSubmatch(body)
	require.NotNil(t, col, "schools.name column")
	assert.Equal(t, "utf8mb4_0900_as_ci", string(col[1]))
}
