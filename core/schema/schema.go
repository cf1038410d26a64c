// Package schema declares typed document fields and derives engine schemas
// from annotated Go types. A Schema is an ordered collection of field
// declarations handed to an engine when an index is opened or created; it
// is immutable afterwards, since engines do not support online schema
// migration.
package schema

import (
	"fmt"

	"github.com/tafuta/tafuta/core/value"
)

// Error describes an invalid field declaration. Schema errors are
// deterministic and surface before an index is opened.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
}

// FieldSchema is one declared document field: a unique, case-sensitive name,
// a value kind, and kind-specific indexing options. Exactly one of the
// option members is populated, matching Kind.
type FieldSchema struct {
	Name string     `json:"name"`
	Kind value.Kind `json:"kind"`

	Text    *TextOptions    `json:"text,omitempty"`
	Numeric *NumericOptions `json:"numeric,omitempty"`
	Date    *DateOptions    `json:"date,omitempty"`
	Bytes   *BytesOptions   `json:"bytes,omitempty"`
	Facet   *FacetOptions   `json:"facet,omitempty"`
	JSON    *JSONOptions    `json:"json,omitempty"`
}

// Schema is an ordered, immutable collection of field declarations.
type Schema struct {
	fields []FieldSchema
	byName map[string]int
}

// Fields returns the declarations in registration order.
func (s *Schema) Fields() []FieldSchema {
	out := make([]FieldSchema, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the declaration for name, if registered.
func (s *Schema) Field(name string) (FieldSchema, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSchema{}, false
	}
	return s.fields[i], true
}

// Kind returns the declared kind for name, if registered.
func (s *Schema) Kind(name string) (value.Kind, bool) {
	f, ok := s.Field(name)
	if !ok {
		return "", false
	}
	return f.Kind, true
}

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.fields) }

// Builder accumulates field declarations into a Schema. Each Add method
// appends one declaration; names must be non-empty and unique, and
// re-registering a name is rejected rather than merged.
type Builder struct {
	fields []FieldSchema
	seen   map[string]struct{}
}

// NewBuilder returns an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

func (b *Builder) add(f FieldSchema) error {
	if f.Name == "" {
		return &Error{Reason: "field name must not be empty"}
	}
	if _, dup := b.seen[f.Name]; dup {
		return &Error{Field: f.Name, Reason: "field already registered"}
	}
	b.seen[f.Name] = struct{}{}
	b.fields = append(b.fields, f)
	return nil
}

// AddTextField registers a text field.
func (b *Builder) AddTextField(name string, opts TextOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindText, Text: &opts})
}

// AddIDField registers a text field configured as an exact-match identifier
// (raw tokenization, stored, fast).
func (b *Builder) AddIDField(name string) error {
	return b.AddTextField(name, IDOptions())
}

// AddU64Field registers an unsigned integer field.
func (b *Builder) AddU64Field(name string, opts NumericOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindU64, Numeric: &opts})
}

// AddI64Field registers a signed integer field.
func (b *Builder) AddI64Field(name string, opts NumericOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindI64, Numeric: &opts})
}

// AddF64Field registers a floating point field.
func (b *Builder) AddF64Field(name string, opts NumericOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindF64, Numeric: &opts})
}

// AddBoolField registers a boolean field.
func (b *Builder) AddBoolField(name string, opts NumericOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindBool, Numeric: &opts})
}

// AddDateField registers a date field.
func (b *Builder) AddDateField(name string, opts DateOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindDate, Date: &opts})
}

// AddBytesField registers a bytes field.
func (b *Builder) AddBytesField(name string, opts BytesOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindBytes, Bytes: &opts})
}

// AddFacetField registers a facet field.
func (b *Builder) AddFacetField(name string, opts FacetOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindFacet, Facet: &opts})
}

// AddJSONField registers a JSON object field.
func (b *Builder) AddJSONField(name string, opts JSONOptions) error {
	return b.add(FieldSchema{Name: name, Kind: value.KindJSON, JSON: &opts})
}

// Build returns the accumulated Schema. The builder remains usable, but the
// returned Schema is an independent snapshot.
func (b *Builder) Build() *Schema {
	fields := make([]FieldSchema, len(b.fields))
	copy(fields, b.fields)
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.Name] = i
	}
	return &Schema{fields: fields, byName: byName}
}
