// Package record provides a dynamic entity for logical types that have no
// Go domain type, such as those declared in a catalog and edited from the
// command line.
package record

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/keepsake/internal/memento"
	"github.com/roach88/keepsake/internal/objects"
)

// Reserved memento keys.
const (
	TypeKey = "@type"
	KeyKey  = "@key"
)

// Record is an entity whose logical type, key and properties are all data.
// Field values are tokens as the serializing adapter writes them.
type Record struct {
	Type   string
	Key    string
	Fields map[string]string
}

// New returns an empty record.
func New(logicalType, key string) *Record {
	return &Record{Type: logicalType, Key: key, Fields: map[string]string{}}
}

// Spec declares logicalType as backed by Record.
func Spec(logicalType string, sort objects.Sort) objects.Spec {
	return objects.Spec{LogicalType: logicalType, GoType: reflect.TypeOf((*Record)(nil)).Elem(), Sort: sort}
}

// LogicalType implements objects.LogicalTyped.
func (r *Record) LogicalType() string { return r.Type }

// PrimaryKey implements objects.Keyed.
func (r *Record) PrimaryKey() any { return r.Key }

// Set stores a field token. Names starting with '@' are reserved.
func (r *Record) Set(name, token string) error {
	if name == "" || strings.HasPrefix(name, "@") {
		return fmt.Errorf("record: invalid field name %q", name)
	}
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	r.Fields[name] = token
	return nil
}

// Get returns a field token.
func (r *Record) Get(name string) (string, bool) {
	token, ok := r.Fields[name]
	return token, ok
}

// Names returns the field names in sorted order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalMemento implements memento.Marshaler. Fields are written in name
// order so equal records capture to equal mementos.
func (r *Record) MarshalMemento(ctx context.Context, m *memento.Memento) error {
	if r.Type == "" {
		return errors.New("record: missing logical type")
	}
	if err := m.Put(ctx, TypeKey, r.Type); err != nil {
		return err
	}
	if err := m.Put(ctx, KeyKey, r.Key); err != nil {
		return err
	}
	for _, name := range r.Names() {
		if err := m.Put(ctx, name, r.Fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalMemento implements memento.Unmarshaler.
func (r *Record) UnmarshalMemento(_ context.Context, m *memento.Memento) error {
	typ, ok := m.Token(TypeKey)
	if !ok {
		return fmt.Errorf("record: memento has no %s", TypeKey)
	}
	r.Type = typ
	r.Key, _ = m.Token(KeyKey)
	r.Fields = make(map[string]string, m.Len())
	for _, key := range m.Keys() {
		if strings.HasPrefix(key, "@") {
			continue
		}
		r.Fields[key], _ = m.Token(key)
	}
	return nil
}
