package catalog

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/serial"
)

// Kind is the declared type of a key or property.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindUUID   Kind = "uuid"
	KindTime   Kind = "time"
	KindRef    Kind = "ref" // bookmark of another object
)

var kindTypes = map[Kind]reflect.Type{
	KindString: reflect.TypeOf((*string)(nil)).Elem(),
	KindInt:    reflect.TypeOf((*int64)(nil)).Elem(),
	KindBool:   reflect.TypeOf((*bool)(nil)).Elem(),
	KindUUID:   reflect.TypeOf((*uuid.UUID)(nil)).Elem(),
	KindTime:   reflect.TypeOf((*time.Time)(nil)).Elem(),
	KindRef:    reflect.TypeOf((*bookmark.Bookmark)(nil)).Elem(),
}

// Type returns the Go type values of the kind read as.
func (k Kind) Type() reflect.Type {
	return kindTypes[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTypes[k]
	return ok
}

// ValidKey reports whether k may be used as an entity key.
func (k Kind) ValidKey() bool {
	switch k {
	case KindString, KindInt, KindUUID, KindTime:
		return true
	}
	return false
}

// Normalize reads raw as a value of kind k and writes it back, yielding the
// canonical token. Times come back in UTC, refs must parse as bookmarks.
func (k Kind) Normalize(ctx context.Context, a *serial.Adapter, raw string) (string, error) {
	t := k.Type()
	if t == nil {
		return "", fmt.Errorf("unknown kind %q", k)
	}
	v, _, err := a.Read(ctx, t, raw)
	if err != nil {
		return "", err
	}
	return a.Write(ctx, v)
}
