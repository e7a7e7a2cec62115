package memento

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/serial"
)

// Marshaler is implemented by types that capture their own properties.
type Marshaler interface {
	MarshalMemento(ctx context.Context, m *Memento) error
}

// Unmarshaler is implemented by types that restore their own properties.
type Unmarshaler interface {
	UnmarshalMemento(ctx context.Context, m *Memento) error
}

// field is one captured struct property.
type field struct {
	index []int
	key   string
	typ   reflect.Type
	depth int
}

// fields lists the exported properties of a struct type, including those
// promoted from embedded structs. A `memento:"name"` tag renames a property
// and `memento:"-"` skips it. A shallower property hides a deeper one with
// the same key; two at the same depth are an error.
func fields(rt reflect.Type) ([]field, error) {
	all, err := collectFields(rt, nil, 0)
	if err != nil {
		return nil, err
	}
	shallowest := make(map[string]int, len(all))
	count := make(map[string]int, len(all))
	for _, f := range all {
		d, seen := shallowest[f.key]
		switch {
		case !seen || f.depth < d:
			shallowest[f.key] = f.depth
			count[f.key] = 1
		case f.depth == d:
			count[f.key]++
		}
	}
	out := make([]field, 0, len(all))
	for _, f := range all {
		if f.depth != shallowest[f.key] {
			continue
		}
		if count[f.key] > 1 {
			return nil, fmt.Errorf("memento: %v has ambiguous property %q", rt, f.key)
		}
		out = append(out, f)
	}
	return out, nil
}

func collectFields(rt reflect.Type, parent []int, depth int) ([]field, error) {
	var out []field
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, tagged := sf.Tag.Lookup("memento")
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}
		index := append(append(make([]int, 0, len(parent)+1), parent...), i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
				return nil, fmt.Errorf("memento: embedded pointer %v in %v is not supported", ft, rt)
			}
			if ft.Kind() == reflect.Struct {
				promoted, err := collectFields(ft, index, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, promoted...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		key := sf.Name
		if tagged && name != "" {
			key = name
		}
		out = append(out, field{index: index, key: key, typ: sf.Type, depth: depth})
	}
	return out, nil
}

func structValue(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("memento: nil %T", obj)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("memento: %T is not a struct", obj)
	}
	return rv, nil
}

// Capture puts every property of obj into m. Nil properties are left out.
// An interface-typed property must hold an identifiable object, since only
// a bookmark reads back as the same value. Any failure aborts the capture:
// dropping a property silently would lose it on restore.
func Capture(ctx context.Context, m *Memento, obj any) error {
	if mm, ok := obj.(Marshaler); ok {
		return mm.MarshalMemento(ctx, m)
	}
	rv, err := structValue(obj)
	if err != nil {
		return err
	}
	fs, err := fields(rv.Type())
	if err != nil {
		return err
	}
	types := m.factory.adapter.Types()
	for _, f := range fs {
		v := rv.FieldByIndex(f.index).Interface()
		if f.typ.Kind() == reflect.Interface && v != nil && !types.Identifiable(reflect.TypeOf(v)) {
			return fmt.Errorf("capture %v: %s holds %T: %w", rv.Type(), f.key, v, serial.ErrUnsupported)
		}
		if err := m.Put(ctx, f.key, v); err != nil {
			return fmt.Errorf("capture %v: %w", rv.Type(), err)
		}
	}
	return nil
}

// Restore applies m to the struct obj points to. A property whose token
// fails to read or whose reference no longer resolves is left unset; the
// other properties are still restored and the failures are returned
// together.
func Restore(ctx context.Context, m *Memento, obj any) error {
	if mu, ok := obj.(Unmarshaler); ok {
		return mu.UnmarshalMemento(ctx, m)
	}
	if rv := reflect.ValueOf(obj); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("memento: restore needs a non-nil pointer, got %T", obj)
	}
	rv, err := structValue(obj)
	if err != nil {
		return err
	}

	fs, err := fields(rv.Type())
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, f := range fs {
		token, ok := m.Token(f.key)
		if !ok {
			continue
		}
		if f.typ.Kind() == reflect.Interface && !m.declaredReference(token) {
			err := fmt.Errorf("restore %v: %s=%q names no declared type: %w", rv.Type(), f.key, token, serial.ErrUnsupported)
			slog.Warn("property not restored", "type", rv.Type().String(), "key", f.key, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		v, found, err := m.Get(ctx, f.key, f.typ)
		if err != nil {
			slog.Warn("property not restored", "type", rv.Type().String(), "key", f.key, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		if !found || v == nil {
			slog.Debug("property reference unresolved", "type", rv.Type().String(), "key", f.key)
			continue
		}
		rv.FieldByIndex(f.index).Set(reflect.ValueOf(v))
	}
	return errs.ErrorOrNil()
}

// declaredReference reports whether token is the bookmark of a declared
// type. Interface properties hold nothing else.
func (m *Memento) declaredReference(token string) bool {
	b, ok := bookmark.Parse(token)
	if !ok {
		return false
	}
	_, declared := m.factory.adapter.Types().ByName(b.LogicalType())
	return declared
}
