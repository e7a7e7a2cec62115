package memento

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed external memento. Parsing is atomic: when
// it fails no memento is produced.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	input := e.Input
	if len(input) > 48 {
		input = input[:48] + "..."
	}
	msg := fmt.Sprintf("memento: cannot parse %q: %s", input, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ErrEmptyKey is returned when storing under an empty key.
var ErrEmptyKey = errors.New("memento: key cannot be empty")
