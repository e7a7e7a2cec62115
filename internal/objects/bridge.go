// Package objects bridges live domain objects and their bookmarks.
//
// The bridge is the only part of the system that knows how identity is
// resolved. Serialization code depends on the Bridge interface; concrete
// implementations are an in-process Memory manager here, a SQLite-backed
// entity repository in internal/persist and a view-model recreator in
// internal/recreate. Chain composes them.
//
// Lookups never report "not found" as an error: an object may have been
// deleted after its bookmark was captured, and that is a normal outcome.
package objects

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
)

// Bookmarker produces the bookmark of a live object.
type Bookmarker interface {
	// BookmarkFor fails with a NotBookmarkableError when obj has no
	// identity concept. It never returns a bookmark with an empty identifier.
	BookmarkFor(ctx context.Context, obj any) (bookmark.Bookmark, error)
}

// Resolver locates the live object for a bookmark.
type Resolver interface {
	// Lookup returns found=false when nothing currently corresponds to b.
	// Errors are reserved for infrastructure failures and corrupt data.
	Lookup(ctx context.Context, b bookmark.Bookmark) (obj any, found bool, err error)
}

// Bridge is both directions.
type Bridge interface {
	Bookmarker
	Resolver
}

// Keyed is implemented by entities to expose their primary key. The key
// is converted to a bookmark identifier by the idstr registry.
type Keyed interface {
	PrimaryKey() any
}

// LogicalTyped is implemented by dynamic objects that report their own
// logical type instead of being mapped by Go type.
type LogicalTyped interface {
	LogicalType() string
}

// NotBookmarkableError reports a value without identity.
type NotBookmarkableError struct {
	Type   reflect.Type
	Reason string
}

func (e *NotBookmarkableError) Error() string {
	return fmt.Sprintf("objects: %v is not bookmarkable: %s", e.Type, e.Reason)
}

// IsNotBookmarkable reports whether err is or wraps a NotBookmarkableError.
func IsNotBookmarkable(err error) bool {
	var nb *NotBookmarkableError
	return errors.As(err, &nb)
}

func notBookmarkable(v any, reason string) error {
	return &NotBookmarkableError{Type: reflect.TypeOf(v), Reason: reason}
}

// EntityBookmark computes the bookmark of an entity from its declared
// logical type and its enstrung primary key.
func EntityBookmark(types *Types, ids *idstr.Registry, obj any) (bookmark.Bookmark, error) {
	if obj == nil || isNilPointer(obj) {
		return bookmark.Bookmark{}, notBookmarkable(obj, "nil")
	}
	spec, ok := types.Of(obj)
	if !ok {
		return bookmark.Bookmark{}, notBookmarkable(obj, "type is not declared")
	}
	if spec.Sort != SortEntity {
		return bookmark.Bookmark{}, notBookmarkable(obj, fmt.Sprintf("%s is a %s", spec.LogicalType, spec.Sort))
	}

	keyed, ok := obj.(Keyed)
	if !ok {
		// Value receivers are fine; pointer receivers need an addressable copy.
		ptr := reflect.New(reflect.TypeOf(obj))
		ptr.Elem().Set(reflect.ValueOf(obj))
		keyed, ok = ptr.Interface().(Keyed)
	}
	if !ok {
		return bookmark.Bookmark{}, notBookmarkable(obj, "entity has no PrimaryKey")
	}
	key := keyed.PrimaryKey()
	if key == nil {
		return bookmark.Bookmark{}, notBookmarkable(obj, "primary key is nil")
	}

	id, err := ids.Enstring(key)
	if err != nil {
		return bookmark.Bookmark{}, fmt.Errorf("bookmark %s: %w", spec.LogicalType, err)
	}
	if id == "" {
		return bookmark.Bookmark{}, notBookmarkable(obj, "primary key enstrings to an empty identifier")
	}
	return bookmark.New(spec.LogicalType, id)
}

// Chain tries each bridge in order. Configure it during start-up and treat
// it as read-only afterwards.
type Chain struct {
	bridges []Bridge
}

// NewChain returns a chain over the given bridges.
func NewChain(bridges ...Bridge) *Chain {
	return &Chain{bridges: bridges}
}

// Append adds bridges to the end of the chain.
func (c *Chain) Append(bridges ...Bridge) {
	c.bridges = append(c.bridges, bridges...)
}

// BookmarkFor returns the first bookmark produced. A bridge answering
// NotBookmarkable passes the object on; any other error stops the chain.
func (c *Chain) BookmarkFor(ctx context.Context, obj any) (bookmark.Bookmark, error) {
	for _, br := range c.bridges {
		b, err := br.BookmarkFor(ctx, obj)
		if err == nil {
			return b, nil
		}
		if !IsNotBookmarkable(err) {
			return bookmark.Bookmark{}, err
		}
	}
	return bookmark.Bookmark{}, notBookmarkable(obj, "no bridge can bookmark it")
}

// Lookup returns the first object found.
func (c *Chain) Lookup(ctx context.Context, b bookmark.Bookmark) (any, bool, error) {
	for _, br := range c.bridges {
		obj, found, err := br.Lookup(ctx, b)
		if err != nil {
			return nil, false, err
		}
		if found {
			return obj, true, nil
		}
	}
	return nil, false, nil
}
