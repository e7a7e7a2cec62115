// Package serial converts arbitrary values to string tokens and back.
//
// Write picks the first strategy that applies, in a fixed order:
//
//  1. a Stringifier registered in the idstr registry
//  2. a bookmark.Bookmark, written in its external form
//  3. a declared identifiable object, written as its bookmark via the bridge
//  4. the value's own text form (encoding.TextMarshaler or a basic kind)
//
// Read mirrors the order for a declared target type. A token that names an
// object which no longer exists reads as absent, never as an error.
package serial

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/idstr"
	"github.com/roach88/keepsake/internal/objects"
)

// ErrUnsupported reports a value or target type with no string form.
var ErrUnsupported = errors.New("serial: no string form")

var (
	bookmarkType        = reflect.TypeOf((*bookmark.Bookmark)(nil)).Elem()
	bookmarkPtrType     = reflect.TypeOf((**bookmark.Bookmark)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	stringType          = reflect.TypeOf((*string)(nil)).Elem()
)

// Adapter is immutable and safe for concurrent use as long as its bridge is.
type Adapter struct {
	ids    *idstr.Registry
	types  *objects.Types
	bridge objects.Bridge
}

// New returns an adapter. types and bridge may be nil, in which case no
// value is treated as an object reference.
func New(ids *idstr.Registry, types *objects.Types, bridge objects.Bridge) *Adapter {
	return &Adapter{ids: ids, types: types, bridge: bridge}
}

// Registry returns the stringifier registry.
func (a *Adapter) Registry() *idstr.Registry {
	return a.ids
}

// Types returns the catalog of identifiable types.
func (a *Adapter) Types() *objects.Types {
	return a.types
}

// Write converts v to a token.
func (a *Adapter) Write(ctx context.Context, v any) (string, error) {
	if v == nil || isNilPointer(v) {
		return "", fmt.Errorf("serial: cannot write nil %T", v)
	}
	rt := reflect.TypeOf(v)

	if a.ids.Handles(rt) {
		return a.ids.Enstring(v)
	}

	switch b := v.(type) {
	case bookmark.Bookmark:
		return writeBookmark(b)
	case *bookmark.Bookmark:
		return writeBookmark(*b)
	}

	if a.types.Identifiable(rt) {
		if a.bridge == nil {
			return "", fmt.Errorf("serial: no bridge to bookmark %v", rt)
		}
		b, err := a.bridge.BookmarkFor(ctx, v)
		if err != nil {
			return "", fmt.Errorf("serial: write %v: %w", rt, err)
		}
		return b.String(), nil
	}

	return writeText(v)
}

func writeBookmark(b bookmark.Bookmark) (string, error) {
	if b.IsZero() {
		return "", errors.New("serial: cannot write zero bookmark")
	}
	return b.String(), nil
}

// Read converts token to a value of type target. found is false when the
// token refers to an object that can no longer be resolved.
func (a *Adapter) Read(ctx context.Context, target reflect.Type, token string) (v any, found bool, err error) {
	if target == nil {
		return nil, false, errors.New("serial: nil target type")
	}

	if a.ids.Handles(target) {
		v, err := a.ids.Destring(target, token, idstr.Hint{})
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}

	switch target {
	case bookmarkType, bookmarkPtrType:
		b, ok := bookmark.Parse(token)
		if !ok || b.IsZero() {
			return nil, false, fmt.Errorf("serial: %q is not a bookmark", token)
		}
		if target == bookmarkPtrType {
			return &b, true, nil
		}
		return b, true, nil
	}

	if a.types.Identifiable(target) {
		b, ok := bookmark.Parse(token)
		if !ok {
			return nil, false, fmt.Errorf("serial: %q is not a bookmark for %v", token, target)
		}
		return a.resolve(ctx, target, b)
	}

	if target.Kind() == reflect.Interface {
		if b, ok := bookmark.Parse(token); ok {
			if _, declared := a.types.ByName(b.LogicalType()); declared {
				return a.resolve(ctx, target, b)
			}
		}
		if stringType.Implements(target) {
			return token, true, nil
		}
		return nil, false, fmt.Errorf("%w for interface %v", ErrUnsupported, target)
	}

	// Pointers to plain values read their element and box it.
	if target.Kind() == reflect.Pointer && !target.Implements(textUnmarshalerType) {
		v, found, err := a.Read(ctx, target.Elem(), token)
		if err != nil || !found {
			return nil, found, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(reflect.ValueOf(v))
		return ptr.Interface(), true, nil
	}

	v, err = readText(target, token)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ReadAs is the typed form of Read.
func ReadAs[T any](ctx context.Context, a *Adapter, token string) (T, bool, error) {
	var zero T
	v, found, err := a.Read(ctx, reflect.TypeOf((*T)(nil)).Elem(), token)
	if err != nil || !found || v == nil {
		return zero, found, err
	}
	return v.(T), true, nil
}

func (a *Adapter) resolve(ctx context.Context, target reflect.Type, b bookmark.Bookmark) (any, bool, error) {
	if a.bridge == nil {
		return nil, false, fmt.Errorf("serial: no bridge to resolve %s", b)
	}
	obj, found, err := a.bridge.Lookup(ctx, b)
	if err != nil {
		return nil, false, fmt.Errorf("serial: resolve %s: %w", b, err)
	}
	if !found {
		slog.Debug("bookmark did not resolve", "bookmark", b.String())
		return nil, false, nil
	}
	v, ok := conform(obj, target)
	if !ok {
		return nil, false, fmt.Errorf("serial: %s resolved to %T, want %v", b, obj, target)
	}
	return v, true, nil
}

// conform adjusts pointer-ness so obj fits target.
func conform(obj any, target reflect.Type) (any, bool) {
	rv := reflect.ValueOf(obj)
	switch {
	case rv.Type().AssignableTo(target):
		return obj, true
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(target):
		return rv.Elem().Interface(), true
	case target.Kind() == reflect.Pointer && rv.Type().AssignableTo(target.Elem()):
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(rv)
		return ptr.Interface(), true
	}
	return nil, false
}

func writeText(v any) (string, error) {
	if m, ok := v.(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()
		if err != nil {
			return "", fmt.Errorf("serial: marshal %T: %w", v, err)
		}
		return string(text), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return writeText(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return "", fmt.Errorf("%w for %T", ErrUnsupported, v)
}

func readText(target reflect.Type, token string) (any, error) {
	if reflect.PointerTo(target).Implements(textUnmarshalerType) || target.Implements(textUnmarshalerType) {
		return unmarshalText(target, token)
	}

	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		out.SetString(token)
	case reflect.Bool:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return nil, fmt.Errorf("serial: read %v: %w", target, err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(token, 10, target.Bits())
		if err != nil {
			return nil, fmt.Errorf("serial: read %v: %w", target, err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(token, 10, target.Bits())
		if err != nil {
			return nil, fmt.Errorf("serial: read %v: %w", target, err)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(token, target.Bits())
		if err != nil {
			return nil, fmt.Errorf("serial: read %v: %w", target, err)
		}
		out.SetFloat(f)
	default:
		return nil, fmt.Errorf("%w for %v", ErrUnsupported, target)
	}
	return out.Interface(), nil
}

func unmarshalText(target reflect.Type, token string) (any, error) {
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Elem())
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(token)); err != nil {
			return nil, fmt.Errorf("serial: read %v: %w", target, err)
		}
		return ptr.Interface(), nil
	}
	ptr := reflect.New(target)
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(token)); err != nil {
		return nil, fmt.Errorf("serial: read %v: %w", target, err)
	}
	return ptr.Elem().Interface(), nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
