package idstr

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Builtins returns the stringifiers every Default registry carries:
// string, int, int32, int64, uuid.UUID and time.Time.
func Builtins() []Stringifier {
	return []Stringifier{
		Of[string](StringStringifier{}),
		Of[int](Funcs[int]{
			En: func(v int) (string, error) { return strconv.Itoa(v), nil },
			De: func(s string, _ Hint) (int, error) { return strconv.Atoi(s) },
		}),
		Of[int32](Funcs[int32]{
			En: func(v int32) (string, error) { return strconv.FormatInt(int64(v), 10), nil },
			De: func(s string, _ Hint) (int32, error) {
				n, err := strconv.ParseInt(s, 10, 32)
				return int32(n), err
			},
		}),
		Of[int64](Funcs[int64]{
			En: func(v int64) (string, error) { return strconv.FormatInt(v, 10), nil },
			De: func(s string, _ Hint) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		}),
		Of[uuid.UUID](UUIDStringifier{}),
		Of[time.Time](TimeStringifier{}),
	}
}

// StringStringifier is the identity conversion.
type StringStringifier struct{}

// Enstring implements Typed.
func (StringStringifier) Enstring(v string) (string, error) {
	return v, nil
}

// Destring implements Typed.
func (StringStringifier) Destring(s string, _ Hint) (string, error) {
	return s, nil
}

// UUIDStringifier uses the canonical lowercase hyphenated form.
type UUIDStringifier struct{}

// Enstring implements Typed.
func (UUIDStringifier) Enstring(v uuid.UUID) (string, error) {
	return v.String(), nil
}

// Destring implements Typed. Only the canonical 36 character form is
// accepted so that the mapping stays one-to-one.
func (UUIDStringifier) Destring(s string, _ Hint) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("invalid UUID length %d", len(s))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if u.String() != s {
		return uuid.Nil, fmt.Errorf("UUID %q is not in canonical form", s)
	}
	return u, nil
}

// TimeStringifier uses RFC 3339 with nanoseconds in UTC. Round trips
// preserve the instant, not the original location.
type TimeStringifier struct{}

// Enstring implements Typed.
func (TimeStringifier) Enstring(v time.Time) (string, error) {
	return v.UTC().Format(time.RFC3339Nano), nil
}

// Destring implements Typed.
func (TimeStringifier) Destring(s string, _ Hint) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
