package idstr

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoStringifier reports that no Stringifier is registered for a type.
var ErrNoStringifier = errors.New("no stringifier registered")

// EncodingError reports that a value could not be enstrung.
type EncodingError struct {
	Type reflect.Type
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("idstr: enstring %v: %v", e.Type, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DestringingError reports a malformed token.
type DestringingError struct {
	Type  reflect.Type
	Input string
	Hint  Hint
	Err   error
}

func (e *DestringingError) Error() string {
	if e.Hint.LogicalType != "" {
		return fmt.Sprintf("idstr: destring %q as %v (owner %s): %v", e.Input, e.Type, e.Hint.LogicalType, e.Err)
	}
	return fmt.Sprintf("idstr: destring %q as %v: %v", e.Input, e.Type, e.Err)
}

func (e *DestringingError) Unwrap() error {
	return e.Err
}

// IsEncodingError reports whether err is or wraps an EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// IsDestringingError reports whether err is or wraps a DestringingError.
func IsDestringingError(err error) bool {
	var de *DestringingError
	return errors.As(err, &de)
}
