package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpenDB_Pragmas(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestMigrateUpDown(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	migrations := MigrationsFS()

	v, dirty, err := database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, database.MigrateUp(migrations))
	// Applying again is a no-op.
	require.NoError(t, database.MigrateUp(migrations))

	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	v, dirty, err = database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, latest, v)
	assert.False(t, dirty)

	for _, table := range []string{"assets", "checkpoints"} {
		var n int
		require.NoError(t, database.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}

	require.NoError(t, database.MigrateDown(migrations))
	v, _, err = database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, latest-1, v)

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='checkpoints'`).Scan(&n))
	assert.Zero(t, n)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)

	st, err := database.Status(MigrationsFS())
	require.NoError(t, err)
	assert.True(t, st.Pending())

	require.NoError(t, database.MigrateUp(MigrationsFS()))
	st, err = database.Status(MigrationsFS())
	require.NoError(t, err)
	assert.False(t, st.Pending())
	assert.Equal(t, st.Latest, st.Current)
}

func TestMigrateForce(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	require.NoError(t, database.MigrateUp(MigrationsFS()))
	require.NoError(t, database.MigrateForce(MigrationsFS(), 1))

	v, dirty, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
}

func TestNewMigrate_NilFS(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	assert.Error(t, database.MigrateUp(nil))
}

func TestLatestMigrationVersion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    uint
		wantErr bool
	}{
		{
			name: "highest wins",
			files: fstest.MapFS{
				"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
				"000001_a.down.sql": {Data: []byte("SELECT 1;")},
				"000007_b.up.sql":   {Data: []byte("SELECT 1;")},
			},
			want: 7,
		},
		{name: "empty", files: fstest.MapFS{}, wantErr: true},
		{
			name:    "unnumbered",
			files:   fstest.MapFS{"init.up.sql": {Data: []byte("SELECT 1;")}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatestMigrationVersion(tt.files)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	t.Parallel()
	database, err := NewDB(filepath.Join(t.TempDir(), "new.db"))
	require.NoError(t, err)
	defer database.Close()

	st, err := database.Status(MigrationsFS())
	require.NoError(t, err)
	assert.False(t, st.Pending())
}
