package objects

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sort distinguishes how an identifiable type gets its identity.
type Sort int

const (
	// SortEntity types are identified by a primary key.
	SortEntity Sort = iota + 1

	// SortViewModel types are identified by their own encoded state.
	SortViewModel
)

func (s Sort) String() string {
	switch s {
	case SortEntity:
		return "entity"
	case SortViewModel:
		return "viewmodel"
	default:
		return fmt.Sprintf("Sort(%d)", int(s))
	}
}

// ParseSort parses "entity" or "viewmodel".
func ParseSort(s string) (Sort, error) {
	switch s {
	case "entity":
		return SortEntity, nil
	case "viewmodel":
		return SortViewModel, nil
	default:
		return 0, fmt.Errorf("unknown sort %q (valid: entity, viewmodel)", s)
	}
}

// logicalTypePattern admits dotted names such as "demo.Order" and never
// the bookmark separator.
var logicalTypePattern = regexp.MustCompile(`^[\p{L}_$][\p{L}\p{N}_$.\-]*$`)

// Spec declares one identifiable type.
type Spec struct {
	LogicalType string
	GoType      reflect.Type
	Sort        Sort
}

// Entity declares T as an entity with the given logical type.
func Entity[T any](logicalType string) Spec {
	return Spec{LogicalType: logicalType, GoType: reflect.TypeOf((*T)(nil)).Elem(), Sort: SortEntity}
}

// ViewModel declares T as a view model with the given logical type.
func ViewModel[T any](logicalType string) Spec {
	return Spec{LogicalType: logicalType, GoType: reflect.TypeOf((*T)(nil)).Elem(), Sort: SortViewModel}
}

// Validate checks the declaration.
func (s Spec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.LogicalType,
			validation.Required,
			validation.Length(1, 255),
			validation.Match(logicalTypePattern).Error("must be a dotted name without ':' or spaces"),
		),
		validation.Field(&s.GoType, validation.NotNil),
		validation.Field(&s.Sort, validation.Required, validation.In(SortEntity, SortViewModel)),
	)
}

// New returns a pointer to a fresh zero value of the Go type.
func (s Spec) New() any {
	return reflect.New(s.GoType).Interface()
}

// Types is the catalog of identifiable types. It maps logical type names
// to Go types and back, and is immutable once built.
type Types struct {
	byName map[string]Spec
	byType map[reflect.Type]Spec
}

// NewTypes builds a catalog. Logical type names must be unique. A Go type
// may back several logical types only if it implements LogicalTyped.
func NewTypes(specs ...Spec) (*Types, error) {
	t := &Types{
		byName: make(map[string]Spec, len(specs)),
		byType: make(map[reflect.Type]Spec, len(specs)),
	}
	for _, spec := range specs {
		if spec.GoType != nil && spec.GoType.Kind() == reflect.Pointer {
			spec.GoType = spec.GoType.Elem()
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("objects: type %q: %w", spec.LogicalType, err)
		}
		if _, dup := t.byName[spec.LogicalType]; dup {
			return nil, fmt.Errorf("objects: duplicate logical type %q", spec.LogicalType)
		}
		t.byName[spec.LogicalType] = spec

		if isLogicalTyped(spec.GoType) {
			continue
		}
		if prev, dup := t.byType[spec.GoType]; dup {
			return nil, fmt.Errorf("objects: %v registered as both %q and %q", spec.GoType, prev.LogicalType, spec.LogicalType)
		}
		t.byType[spec.GoType] = spec
	}
	return t, nil
}

// MustTypes is like NewTypes but panics on error.
func MustTypes(specs ...Spec) *Types {
	t, err := NewTypes(specs...)
	if err != nil {
		panic(err)
	}
	return t
}

// ByName returns the spec for a logical type.
func (t *Types) ByName(name string) (Spec, bool) {
	if t == nil {
		return Spec{}, false
	}
	spec, ok := t.byName[name]
	return spec, ok
}

// ByType returns the spec for a Go type. Pointer types resolve to their
// element type.
func (t *Types) ByType(rt reflect.Type) (Spec, bool) {
	if t == nil || rt == nil {
		return Spec{}, false
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	spec, ok := t.byType[rt]
	return spec, ok
}

// Of returns the spec for a live object.
func (t *Types) Of(v any) (Spec, bool) {
	if lt, ok := v.(LogicalTyped); ok && !isNilPointer(v) {
		spec, found := t.ByName(lt.LogicalType())
		if !found || spec.GoType != indirect(reflect.TypeOf(v)) {
			return Spec{}, false
		}
		return spec, true
	}
	return t.ByType(reflect.TypeOf(v))
}

// Identifiable reports whether values of rt carry an identity, that is
// whether rt (or its element type) backs at least one declared type.
func (t *Types) Identifiable(rt reflect.Type) bool {
	if t == nil || rt == nil {
		return false
	}
	if _, ok := t.ByType(rt); ok {
		return true
	}
	et := indirect(rt)
	for _, spec := range t.byName {
		if spec.GoType == et {
			return true
		}
	}
	return false
}

// Specs returns all declarations ordered by logical type.
func (t *Types) Specs() []Spec {
	out := make([]Spec, 0, len(t.byName))
	for _, spec := range t.byName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalType < out[j].LogicalType })
	return out
}

var logicalTypedType = reflect.TypeOf((*LogicalTyped)(nil)).Elem()

func isLogicalTyped(rt reflect.Type) bool {
	return rt.Implements(logicalTypedType) || reflect.PointerTo(rt).Implements(logicalTypedType)
}

func indirect(rt reflect.Type) reflect.Type {
	if rt != nil && rt.Kind() == reflect.Pointer {
		return rt.Elem()
	}
	return rt
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
