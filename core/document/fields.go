// Package document maps typed Go structs to the engine's generic
// multi-valued field representation and back. The engine never sees the
// host types; it sees an ordered sequence of (name, value) pairs in which
// several pairs may share a name for array-valued fields.
package document

import (
	"fmt"

	"github.com/tafuta/tafuta/core/value"
)

// Field is a single (name, value) pair of a document.
type Field struct {
	Name  string           `json:"name"`
	Value value.FieldValue `json:"value"`
}

// Fields is the engine-facing representation of one document: an ordered
// sequence of pairs. Insertion order among same-named pairs is preserved on
// encode; engines may return multi-valued fields in any order.
type Fields []Field

// Append adds one pair and returns the extended sequence.
func (f Fields) Append(name string, v value.FieldValue) Fields {
	return append(f, Field{Name: name, Value: v})
}

// Group collects all values by field name, preserving pair order within
// each name.
func (f Fields) Group() map[string][]value.FieldValue {
	out := make(map[string][]value.FieldValue)
	for _, pair := range f {
		out[pair.Name] = append(out[pair.Name], pair.Value)
	}
	return out
}

// First returns the first value stored under name, if any.
func (f Fields) First(name string) (value.FieldValue, bool) {
	for _, pair := range f {
		if pair.Name == name {
			return pair.Value, true
		}
	}
	return value.FieldValue{}, false
}

// Error describes a codec failure for one document field.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("document: field %q: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
