// Package idstr converts identifier values to and from string tokens.
//
// A Stringifier is a pure, deterministic pair of functions: Enstring turns a
// value of the handled type into a token and Destring reverses it. Tokens are
// collision free within one type. A Registry maps a runtime type to its
// Stringifier and is built once at start-up; it is read-only afterwards and
// safe for concurrent use without locking.
package idstr

import (
	"fmt"
	"reflect"
)

// Hint carries context a Stringifier may need when destringing.
type Hint struct {
	// LogicalType is the owning object's logical type, when known.
	LogicalType string

	// Target is the concrete type being destrung. The Registry fills it in.
	Target reflect.Type
}

// Stringifier is the runtime form used by the Registry.
type Stringifier interface {
	// Type is the value type handled by exact match.
	Type() reflect.Type
	Enstring(v any) (string, error)
	Destring(s string, hint Hint) (any, error)
}

// Capability is a Stringifier that also handles every type it accepts,
// for example all types implementing a marker interface.
type Capability interface {
	Stringifier
	Accepts(t reflect.Type) bool
}

// Typed is the compile-time checked form of a Stringifier for T.
type Typed[T any] interface {
	Enstring(v T) (string, error)
	Destring(s string, hint Hint) (T, error)
}

// Of adapts a Typed stringifier to the runtime Stringifier interface.
func Of[T any](impl Typed[T]) Stringifier {
	return typed[T]{impl: impl}
}

type typed[T any] struct {
	impl Typed[T]
}

func (s typed[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (s typed[T]) Enstring(v any) (string, error) {
	tv, ok := v.(T)
	if !ok {
		return "", fmt.Errorf("expected %v, got %T", s.Type(), v)
	}
	return s.impl.Enstring(tv)
}

func (s typed[T]) Destring(str string, hint Hint) (any, error) {
	return s.impl.Destring(str, hint)
}

// Funcs builds a Typed stringifier from two functions.
type Funcs[T any] struct {
	En func(T) (string, error)
	De func(string, Hint) (T, error)
}

// Enstring implements Typed.
func (f Funcs[T]) Enstring(v T) (string, error) {
	return f.En(v)
}

// Destring implements Typed.
func (f Funcs[T]) Destring(s string, hint Hint) (T, error) {
	return f.De(s, hint)
}
