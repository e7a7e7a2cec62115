package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/bookmark"
)

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveObject(context.Background(), bookmark.MustNew("Customer", "a"), "state")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	s = createStoreAt(t, path)
	_, found, err := s.ReadObject(context.Background(), bookmark.MustNew("Customer", "a"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestOpen_PathWithURISyntax(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "we?ird#dir 100%")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "a?b#c.db")

	s := createStoreAt(t, path)
	_, err := s.SaveObject(context.Background(), bookmark.MustNew("Customer", "a"), "state")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDSN_EscapesPathSegments(t *testing.T) {
	got := dsn("/data/we?ird#dir/a b.db")
	assert.True(t, strings.HasPrefix(got, "file:/data/we%3Fird%23dir/a%20b.db?"), got)
	assert.Contains(t, got, "_journal_mode=WAL")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.NoError(t, (&Store{}).Close())
}

func TestOpen_ConnectionSettings(t *testing.T) {
	s := createTestStore(t)

	tests := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, pragma(t, s.db, name))
		})
	}
}

func TestSchema_ObjectsTable(t *testing.T) {
	s := createTestStore(t)

	cols := tableColumns(t, s.db, "objects")
	assert.Equal(t, []string{"logical_type", "identifier", "state", "digest", "version"}, cols)
	assert.Contains(t, tableIndexes(t, s.db, "objects"), "idx_objects_digest")
}

func TestSchema_VersionMustBePositive(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO objects (logical_type, identifier, state, digest, version)
		VALUES ('Customer', 'a', '', 'x', 0)
	`)
	assert.Error(t, err)
}

func TestMigrate_SetsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		assert.Equal(t, fmt.Sprint(SchemaVersion), pragma(t, s.db, "user_version"))
		require.NoError(t, s.Close())
	}
}

func TestMigrate_UpgradesVersionOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// A database that only ever saw the first migration.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO objects (logical_type, identifier, state, digest) VALUES ('Customer', 'a', 's', 'd')`)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s := createStoreAt(t, path)
	assert.Contains(t, tableIndexes(t, s.db, "objects"), "idx_objects_digest")
	assert.Equal(t, fmt.Sprint(SchemaVersion), pragma(t, s.db, "user_version"))

	rows, err := s.ListObjects(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMigrate_RejectsNewerDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func createStoreAt(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pragma(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	var value string
	require.NoError(t, db.QueryRow("PRAGMA "+name).Scan(&value))
	return value
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	return cols
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
