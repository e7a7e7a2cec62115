package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/canon"
)

// ObjectRow is one stored object state.
type ObjectRow struct {
	LogicalType string
	Identifier  string
	State       string
	Digest      string
	Version     int64
}

// Bookmark returns the row's bookmark.
func (r ObjectRow) Bookmark() (bookmark.Bookmark, error) {
	return bookmark.New(r.LogicalType, r.Identifier)
}

// SaveObject inserts or replaces the state stored under b and returns the
// resulting row. The version increments only when the state changes.
func (s *Store) SaveObject(ctx context.Context, b bookmark.Bookmark, state string) (ObjectRow, error) {
	if b.IsZero() {
		return ObjectRow{}, errors.New("save object: zero bookmark")
	}
	digest := canon.ObjectStateDigest(b.LogicalType(), b.Identifier(), state)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (logical_type, identifier, state, digest, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(logical_type, identifier) DO UPDATE SET
			state = excluded.state,
			digest = excluded.digest,
			version = objects.version + 1
		WHERE objects.digest != excluded.digest
	`,
		b.LogicalType(),
		b.Identifier(),
		state,
		digest,
	)
	if err != nil {
		return ObjectRow{}, fmt.Errorf("save object %s: %w", b, err)
	}

	row, found, err := s.ReadObject(ctx, b)
	if err != nil {
		return ObjectRow{}, err
	}
	if !found {
		return ObjectRow{}, fmt.Errorf("save object %s: row vanished after write", b)
	}
	return row, nil
}

// ReadObject returns the row stored under b. found is false when there is
// none.
func (s *Store) ReadObject(ctx context.Context, b bookmark.Bookmark) (row ObjectRow, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT logical_type, identifier, state, digest, version
		FROM objects
		WHERE logical_type = ? AND identifier = ?
	`, b.LogicalType(), b.Identifier()).Scan(
		&row.LogicalType,
		&row.Identifier,
		&row.State,
		&row.Digest,
		&row.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ObjectRow{}, false, nil
	}
	if err != nil {
		return ObjectRow{}, false, fmt.Errorf("read object %s: %w", b, err)
	}
	return row, true, nil
}

// DeleteObject removes the row stored under b and reports whether one existed.
func (s *Store) DeleteObject(ctx context.Context, b bookmark.Bookmark) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM objects
		WHERE logical_type = ? AND identifier = ?
	`, b.LogicalType(), b.Identifier())
	if err != nil {
		return false, fmt.Errorf("delete object %s: %w", b, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete object %s: %w", b, err)
	}
	return n > 0, nil
}

// ListObjects returns the rows of one logical type, or of all types when
// logicalType is empty.
//
// Returns an empty slice (not nil) if there are no rows.
func (s *Store) ListObjects(ctx context.Context, logicalType string) ([]ObjectRow, error) {
	query := `
		SELECT logical_type, identifier, state, digest, version
		FROM objects
	`
	var args []any
	if logicalType != "" {
		query += ` WHERE logical_type = ?`
		args = append(args, logicalType)
	}
	query += ` ORDER BY logical_type COLLATE BINARY ASC, identifier COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	out := []ObjectRow{}
	for rows.Next() {
		var row ObjectRow
		if err := rows.Scan(&row.LogicalType, &row.Identifier, &row.State, &row.Digest, &row.Version); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return out, nil
}
