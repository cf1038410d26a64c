// Package value defines the closed set of field values that can cross the
// engine boundary. A FieldValue carries exactly one populated variant, and
// the variant tag is always explicit in the wire form so the engine never
// has to infer a kind from the shape of the payload.
package value

import (
	"bytes"
	"fmt"
	"time"
)

// Kind identifies the variant held by a FieldValue. The string forms are
// part of the wire contract and must not change.
type Kind string

// Supported value kinds.
const (
	KindText  Kind = "text"
	KindU64   Kind = "u64"
	KindI64   Kind = "i64"
	KindF64   Kind = "f64"
	KindBool  Kind = "bool"
	KindDate  Kind = "date"
	KindBytes Kind = "bytes"
	KindFacet Kind = "facet"
	KindJSON  Kind = "json"
)

// IsValid reports whether k is one of the nine supported kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindText, KindU64, KindI64, KindF64, KindBool, KindDate, KindBytes, KindFacet, KindJSON:
		return true
	}
	return false
}

// FieldValue is a tagged union over the storable value kinds. Values are
// constructed through the kind-specific constructors and are immutable;
// the zero FieldValue has no kind and is not a legal engine value.
type FieldValue struct {
	kind Kind
	str  string // text, facet, json payloads
	u64  uint64
	i64  int64 // i64 and date (microseconds since epoch)
	f64  float64
	b    bool
	raw  []byte // bytes payload
}

// Text returns a text value.
func Text(s string) FieldValue { return FieldValue{kind: KindText, str: s} }

// U64 returns an unsigned integer value.
func U64(v uint64) FieldValue { return FieldValue{kind: KindU64, u64: v} }

// I64 returns a signed integer value.
func I64(v int64) FieldValue { return FieldValue{kind: KindI64, i64: v} }

// F64 returns a floating point value.
func F64(v float64) FieldValue { return FieldValue{kind: KindF64, f64: v} }

// Bool returns a boolean value.
func Bool(v bool) FieldValue { return FieldValue{kind: KindBool, b: v} }

// Date returns a date value from a Unix timestamp in microseconds.
func Date(micros int64) FieldValue { return FieldValue{kind: KindDate, i64: micros} }

// DateTime returns a date value from a time.Time, rounded half-away-from-zero
// to the nearest microsecond. Round-tripping a value produced by DateTime
// through Time loses no precision.
func DateTime(t time.Time) FieldValue {
	return Date(t.Round(time.Microsecond).UnixMicro())
}

// Bytes returns an opaque byte sequence value. The bytes are copied; no
// encoding transformation is applied.
func Bytes(b []byte) FieldValue {
	cp := make([]byte, len(b))
	copy(cp, b)
	return FieldValue{kind: KindBytes, raw: cp}
}

// Facet returns a hierarchical facet path value, e.g. "/a/b".
func Facet(path string) FieldValue { return FieldValue{kind: KindFacet, str: path} }

// JSON returns a value holding a pre-serialized JSON payload.
func JSON(raw string) FieldValue { return FieldValue{kind: KindJSON, str: raw} }

// Kind returns the variant tag of the value.
func (v FieldValue) Kind() Kind { return v.kind }

// Text returns the text payload. Valid only for KindText.
func (v FieldValue) Text() string { return v.str }

// U64 returns the unsigned integer payload. Valid only for KindU64.
func (v FieldValue) U64() uint64 { return v.u64 }

// I64 returns the signed integer payload. Valid only for KindI64.
func (v FieldValue) I64() int64 { return v.i64 }

// F64 returns the floating point payload. Valid only for KindF64.
func (v FieldValue) F64() float64 { return v.f64 }

// Bool returns the boolean payload. Valid only for KindBool.
func (v FieldValue) Bool() bool { return v.b }

// Micros returns the date payload as microseconds since the Unix epoch.
// Valid only for KindDate.
func (v FieldValue) Micros() int64 { return v.i64 }

// Time reconstructs the timestamp from the microsecond payload, in UTC.
// Valid only for KindDate.
func (v FieldValue) Time() time.Time { return time.UnixMicro(v.i64).UTC() }

// Bytes returns a copy of the byte payload. Valid only for KindBytes.
func (v FieldValue) Bytes() []byte {
	cp := make([]byte, len(v.raw))
	copy(cp, v.raw)
	return cp
}

// Facet returns the facet path payload. Valid only for KindFacet.
func (v FieldValue) Facet() string { return v.str }

// JSON returns the raw JSON payload. Valid only for KindJSON.
func (v FieldValue) JSON() string { return v.str }

// Equal reports structural equality: same kind and same payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText, KindFacet, KindJSON:
		return v.str == o.str
	case KindU64:
		return v.u64 == o.u64
	case KindI64, KindDate:
		return v.i64 == o.i64
	case KindF64:
		return v.f64 == o.f64
	case KindBool:
		return v.b == o.b
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

// String renders the value for logs and error messages.
func (v FieldValue) String() string {
	switch v.kind {
	case KindText:
		return fmt.Sprintf("text(%q)", v.str)
	case KindU64:
		return fmt.Sprintf("u64(%d)", v.u64)
	case KindI64:
		return fmt.Sprintf("i64(%d)", v.i64)
	case KindF64:
		return fmt.Sprintf("f64(%g)", v.f64)
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindDate:
		return fmt.Sprintf("date(%dus)", v.i64)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	case KindFacet:
		return fmt.Sprintf("facet(%s)", v.str)
	case KindJSON:
		return fmt.Sprintf("json(%s)", v.str)
	}
	return "invalid"
}
