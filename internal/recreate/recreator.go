// Package recreate gives view models an identity made of their own state.
//
// A view model's bookmark identifier is its captured memento in external
// form, so looking the bookmark up needs no storage: the state is parsed and
// restored onto a fresh instance.
package recreate

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
)

// Recreator implements objects.Bridge for view-model types.
type Recreator struct {
	types    *objects.Types
	mementos *memento.Mementos
}

// New returns a recreator.
func New(types *objects.Types, mementos *memento.Mementos) *Recreator {
	return &Recreator{types: types, mementos: mementos}
}

// BookmarkFor captures vm and wraps the external memento in a bookmark.
func (r *Recreator) BookmarkFor(ctx context.Context, vm any) (bookmark.Bookmark, error) {
	spec, ok := r.types.Of(vm)
	if !ok || spec.Sort != objects.SortViewModel {
		return bookmark.Bookmark{}, &objects.NotBookmarkableError{Type: reflect.TypeOf(vm), Reason: "not a view model"}
	}
	m := r.mementos.Create()
	if err := memento.Capture(ctx, m, vm); err != nil {
		return bookmark.Bookmark{}, fmt.Errorf("bookmark %s: %w", spec.LogicalType, err)
	}
	return bookmark.New(spec.LogicalType, m.String())
}

// Lookup recreates the view model named by b. Properties that cannot be
// restored, such as references to deleted entities, stay unset. A corrupt
// identifier is an error.
func (r *Recreator) Lookup(ctx context.Context, b bookmark.Bookmark) (any, bool, error) {
	spec, ok := r.types.ByName(b.LogicalType())
	if !ok || spec.Sort != objects.SortViewModel {
		return nil, false, nil
	}
	m, err := r.mementos.Parse(b.Identifier())
	if err != nil {
		return nil, false, fmt.Errorf("recreate %s: %w", spec.LogicalType, err)
	}
	vm := spec.New()
	if err := memento.Restore(ctx, m, vm); err != nil {
		slog.Warn("view model recreated partially", "type", spec.LogicalType, "error", err)
	}
	return vm, true, nil
}
