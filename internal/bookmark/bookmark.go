// Package bookmark provides the stable external reference to a domain object.
//
// A Bookmark pairs a logical type name with an opaque string identifier. Its
// external form is "<logicalType>:<identifier>". Logical types may not contain
// the separator, identifiers may contain anything, so parsing splits at the
// first ':' and the form round-trips without escaping.
package bookmark

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator divides the logical type from the identifier.
const Separator = ":"

var (
	// ErrEmptyLogicalType is returned when constructing a Bookmark without a logical type.
	ErrEmptyLogicalType = errors.New("bookmark: logical type cannot be empty")

	// ErrSeparatorInLogicalType is returned when the logical type contains the separator.
	ErrSeparatorInLogicalType = errors.New("bookmark: logical type cannot contain " + Separator)
)

// Bookmark identifies a domain object across process and serialization
// boundaries. Bookmarks are immutable values; compare them with == or Equal.
type Bookmark struct {
	logicalType string
	identifier  string
}

// New creates a Bookmark. The logical type is NFC normalized so that
// visually identical names compare equal.
func New(logicalType, identifier string) (Bookmark, error) {
	logicalType = norm.NFC.String(logicalType)
	if logicalType == "" {
		return Bookmark{}, ErrEmptyLogicalType
	}
	if strings.Contains(logicalType, Separator) {
		return Bookmark{}, fmt.Errorf("%w: %q", ErrSeparatorInLogicalType, logicalType)
	}
	return Bookmark{logicalType: logicalType, identifier: identifier}, nil
}

// MustNew is like New but panics on error.
// Use only in tests or for constants known to be valid.
func MustNew(logicalType, identifier string) Bookmark {
	b, err := New(logicalType, identifier)
	if err != nil {
		panic(err)
	}
	return b
}

// Parse parses the external form. Malformed input yields ok=false rather
// than an error: bookmarks are routinely parsed from URLs and stored data
// where absence is the expected failure mode.
func Parse(s string) (b Bookmark, ok bool) {
	logicalType, identifier, found := strings.Cut(s, Separator)
	if !found {
		return Bookmark{}, false
	}
	b, err := New(logicalType, identifier)
	if err != nil {
		return Bookmark{}, false
	}
	// String must reproduce the input byte for byte, so a logical type that
	// only matches after normalization is not a canonical bookmark.
	if b.logicalType != logicalType {
		return Bookmark{}, false
	}
	return b, true
}

// LogicalType returns the logical type name.
func (b Bookmark) LogicalType() string {
	return b.logicalType
}

// Identifier returns the identifier. It is opaque to everything except the
// stringifier or recreator that produced it.
func (b Bookmark) Identifier() string {
	return b.identifier
}

// IsZero reports whether b is the zero Bookmark.
func (b Bookmark) IsZero() bool {
	return b.logicalType == "" && b.identifier == ""
}

// Equal reports whether both fields match.
func (b Bookmark) Equal(other Bookmark) bool {
	return b == other
}

// String returns the external form "<logicalType>:<identifier>".
// The zero Bookmark stringifies to "".
func (b Bookmark) String() string {
	if b.IsZero() {
		return ""
	}
	return b.logicalType + Separator + b.identifier
}

// MarshalText implements encoding.TextMarshaler.
func (b Bookmark) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the
// zero Bookmark; anything else must parse.
func (b *Bookmark) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = Bookmark{}
		return nil
	}
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("bookmark: malformed %q", string(text))
	}
	*b = parsed
	return nil
}

// Scan implements sql.Scanner. Accepts string, []byte and NULL.
func (b *Bookmark) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*b = Bookmark{}
		return nil
	case string:
		return b.UnmarshalText([]byte(v))
	case []byte:
		return b.UnmarshalText(v)
	default:
		return fmt.Errorf("bookmark: cannot scan %T", value)
	}
}

// Value implements driver.Valuer. The zero Bookmark is stored as NULL.
func (b Bookmark) Value() (driver.Value, error) {
	if b.IsZero() {
		return nil, nil
	}
	return b.String(), nil
}
