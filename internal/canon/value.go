package canon

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the value shapes canon accepts.
// There is deliberately no float and no null.
type Value interface {
	canonValue()
}

// String is a string value.
type String string

func (String) canonValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) canonValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) canonValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) canonValue() {}

// Object maps string keys to values. Iterate with SortedKeys.
type Object map[string]Value

func (Object) canonValue() {}

// Strings builds an Array of String values.
func Strings(ss ...string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units. Go's native string
// comparison works on UTF-8 bytes, which disagrees for supplementary planes.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
