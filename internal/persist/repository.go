// Package persist is an entity object manager over the SQLite store.
//
// An entity is saved as its captured memento under its bookmark. Looking a
// bookmark up restores a fresh instance from the stored state; a bookmark
// whose row was deleted resolves to nothing.
package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/store"
)

// Repository implements objects.Bridge for entity types.
type Repository struct {
	store    *store.Store
	types    *objects.Types
	ids      *idstr.Registry
	mementos *memento.Mementos
}

// New returns a repository. mementos must share types with the repository.
func New(st *store.Store, types *objects.Types, ids *idstr.Registry, mementos *memento.Mementos) *Repository {
	return &Repository{store: st, types: types, ids: ids, mementos: mementos}
}

// Save captures obj and writes it under its bookmark.
func (r *Repository) Save(ctx context.Context, obj any) (store.ObjectRow, error) {
	b, err := r.BookmarkFor(ctx, obj)
	if err != nil {
		return store.ObjectRow{}, fmt.Errorf("save: %w", err)
	}
	m := r.mementos.Create()
	if err := memento.Capture(ctx, m, obj); err != nil {
		return store.ObjectRow{}, fmt.Errorf("save %s: %w", b, err)
	}
	row, err := r.store.SaveObject(ctx, b, m.String())
	if err != nil {
		return store.ObjectRow{}, err
	}
	slog.Info("object saved", "bookmark", b.String(), "version", row.Version)
	return row, nil
}

// Delete removes the object stored under b.
func (r *Repository) Delete(ctx context.Context, b bookmark.Bookmark) (bool, error) {
	deleted, err := r.store.DeleteObject(ctx, b)
	if err != nil {
		return false, err
	}
	if deleted {
		slog.Info("object deleted", "bookmark", b.String())
	}
	return deleted, nil
}

// List returns the bookmarks stored for logicalType, or for every type when
// it is empty.
func (r *Repository) List(ctx context.Context, logicalType string) ([]bookmark.Bookmark, error) {
	rows, err := r.store.ListObjects(ctx, logicalType)
	if err != nil {
		return nil, err
	}
	out := make([]bookmark.Bookmark, 0, len(rows))
	for _, row := range rows {
		b, err := row.Bookmark()
		if err != nil {
			return nil, fmt.Errorf("list: stored row %s/%s: %w", row.LogicalType, row.Identifier, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// BookmarkFor implements objects.Bookmarker.
func (r *Repository) BookmarkFor(_ context.Context, obj any) (bookmark.Bookmark, error) {
	return objects.EntityBookmark(r.types, r.ids, obj)
}

// Lookup implements objects.Resolver. Properties that fail to restore are
// left unset and logged.
func (r *Repository) Lookup(ctx context.Context, b bookmark.Bookmark) (any, bool, error) {
	spec, ok := r.types.ByName(b.LogicalType())
	if !ok || spec.Sort != objects.SortEntity {
		return nil, false, nil
	}
	row, found, err := r.store.ReadObject(ctx, b)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	m, err := r.mementos.Parse(row.State)
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: stored state: %w", b, err)
	}
	obj := spec.New()
	if err := memento.Restore(ctx, m, obj); err != nil {
		slog.Warn("entity restored partially", "bookmark", b.String(), "error", err)
	}
	return obj, true, nil
}
