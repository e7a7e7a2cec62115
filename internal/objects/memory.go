package objects

import (
	"context"
	"sync"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
)

// Memory is an in-process object manager for entities. It holds the live
// objects it has been given and is safe for concurrent use.
type Memory struct {
	types *Types
	ids   *idstr.Registry

	mu      sync.RWMutex
	objects map[bookmark.Bookmark]any
}

// NewMemory returns an empty manager.
func NewMemory(types *Types, ids *idstr.Registry) *Memory {
	return &Memory{
		types:   types,
		ids:     ids,
		objects: make(map[bookmark.Bookmark]any),
	}
}

// Put stores obj under its bookmark, replacing any previous object with
// the same identity.
func (m *Memory) Put(ctx context.Context, obj any) (bookmark.Bookmark, error) {
	b, err := m.BookmarkFor(ctx, obj)
	if err != nil {
		return bookmark.Bookmark{}, err
	}
	m.mu.Lock()
	m.objects[b] = obj
	m.mu.Unlock()
	return b, nil
}

// Delete forgets the object under b and reports whether one was held.
func (m *Memory) Delete(b bookmark.Bookmark) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[b]
	delete(m.objects, b)
	return ok
}

// Len returns the number of objects held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// BookmarkFor implements Bookmarker. The object does not need to be held.
func (m *Memory) BookmarkFor(_ context.Context, obj any) (bookmark.Bookmark, error) {
	return EntityBookmark(m.types, m.ids, obj)
}

// Lookup implements Resolver.
func (m *Memory) Lookup(_ context.Context, b bookmark.Bookmark) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[b]
	return obj, ok, nil
}
