package idstr

import (
	"fmt"
	"reflect"
)

// Registry resolves the Stringifier for a runtime type. Exact matches win;
// otherwise capability stringifiers are consulted in registration order.
//
// A Registry is immutable once built.
type Registry struct {
	exact        map[reflect.Type]Stringifier
	capabilities []Capability
}

// NewRegistry builds a Registry from the given stringifiers. Registering two
// stringifiers for the same type is an error.
func NewRegistry(stringifiers ...Stringifier) (*Registry, error) {
	r := &Registry{exact: make(map[reflect.Type]Stringifier, len(stringifiers))}
	for _, s := range stringifiers {
		if s == nil {
			return nil, fmt.Errorf("idstr: nil stringifier")
		}
		if c, ok := s.(Capability); ok {
			r.capabilities = append(r.capabilities, c)
			continue
		}
		t := s.Type()
		if _, dup := r.exact[t]; dup {
			return nil, fmt.Errorf("idstr: duplicate stringifier for %v", t)
		}
		r.exact[t] = s
	}
	return r, nil
}

// Default builds a Registry with the built-in stringifiers followed by
// extra. An extra stringifier replaces a built-in one for the same type.
func Default(extra ...Stringifier) (*Registry, error) {
	overridden := make(map[reflect.Type]bool, len(extra))
	for _, s := range extra {
		if s != nil {
			if _, isCap := s.(Capability); !isCap {
				overridden[s.Type()] = true
			}
		}
	}

	var all []Stringifier
	for _, s := range Builtins() {
		if !overridden[s.Type()] {
			all = append(all, s)
		}
	}
	all = append(all, extra...)
	return NewRegistry(all...)
}

// MustDefault is like Default but panics on error.
func MustDefault(extra ...Stringifier) *Registry {
	r, err := Default(extra...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the Stringifier for t. No match is not an error; callers
// fall back to other strategies.
func (r *Registry) Lookup(t reflect.Type) (Stringifier, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	if s, ok := r.exact[t]; ok {
		return s, true
	}
	for _, c := range r.capabilities {
		if c.Accepts(t) {
			return c, true
		}
	}
	return nil, false
}

// Handles reports whether a Stringifier is registered for t.
func (r *Registry) Handles(t reflect.Type) bool {
	_, ok := r.Lookup(t)
	return ok
}

// Enstring converts v with the Stringifier registered for its dynamic type.
// Failures, including a missing Stringifier, are EncodingErrors.
func (r *Registry) Enstring(v any) (string, error) {
	t := reflect.TypeOf(v)
	s, ok := r.Lookup(t)
	if !ok {
		return "", &EncodingError{Type: t, Err: ErrNoStringifier}
	}
	token, err := s.Enstring(v)
	if err != nil {
		return "", &EncodingError{Type: t, Err: err}
	}
	return token, nil
}

// Destring converts token back into a value of type t. Failures, including
// a result of the wrong type, are DestringingErrors.
func (r *Registry) Destring(t reflect.Type, token string, hint Hint) (any, error) {
	hint.Target = t
	s, ok := r.Lookup(t)
	if !ok {
		return nil, &DestringingError{Type: t, Input: token, Hint: hint, Err: ErrNoStringifier}
	}
	v, err := s.Destring(token, hint)
	if err != nil {
		return nil, &DestringingError{Type: t, Input: token, Hint: hint, Err: err}
	}
	if got := reflect.TypeOf(v); got != t && (got == nil || t.Kind() != reflect.Interface || !got.Implements(t)) {
		return nil, &DestringingError{Type: t, Input: token, Hint: hint, Err: fmt.Errorf("stringifier produced %v", got)}
	}
	return v, nil
}
