package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration moves the database to version. Migrations run in order, each in
// its own transaction, and PRAGMA user_version records the last applied.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "create objects", schemaSQL},
	{2, "index objects by digest", `CREATE INDEX IF NOT EXISTS idx_objects_digest ON objects(digest)`},
}

// SchemaVersion is the version Open brings every database to.
var SchemaVersion = migrations[len(migrations)-1].version

// Store is a SQLite database of object rows.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it to
// SchemaVersion. Connection settings travel in the DSN so that every pooled
// connection gets them:
//   - journal_mode=WAL, synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=on
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}

	// One writer at a time; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	from, err := migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	slog.Debug("store opened", "path", path, "from_version", from, "schema_version", SchemaVersion)
	return &Store{db: db}, nil
}

// dsn builds a file: URI for path. Each segment is escaped so that '?',
// '#' and '%' in a path are not read as URI syntax.
func dsn(path string) string {
	segs := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return "file:" + strings.Join(segs, "/") + "?" + q.Encode()
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// migrate applies every migration newer than the database's user_version
// and returns the version it started from.
func migrate(db *sql.DB) (int, error) {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	if current > SchemaVersion {
		return current, fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return current, err
		}
		slog.Debug("store migrated", "version", m.version, "migration", m.name)
	}
	return current, nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("v%d %s: %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.stmt); err != nil {
		return fmt.Errorf("v%d %s: %w", m.version, m.name, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("v%d set user_version: %w", m.version, err)
	}
	return tx.Commit()
}
