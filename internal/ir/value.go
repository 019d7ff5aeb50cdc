package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the value kinds allowed in hash inputs.
// Only Str, Int, Bool, Array and Object implement it. There is no float kind:
// binary floating point has no single canonical text form.
type Value interface {
	canonicalValue()
}

// Str is a string value.
type Str string

func (Str) canonicalValue() {}

// Int is an integer value.
type Int int64

func (Int) canonicalValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) canonicalValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) canonicalValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) canonicalValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison is UTF-8 byte order, which differs for characters
// outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
