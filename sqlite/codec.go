package sqlite

import (
	"encoding/base64"

	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// indexedValue is one field_values row extracted from a document. Text
// kinds bind text, numeric kinds bind a float64 so term and range
// predicates compare uniformly.
type indexedValue struct {
	name string
	text *string
	num  *float64
}

// textForTerm maps a value onto its text_value representation. Bytes
// are stored base64-encoded, matching the transport used for search
// engines without a native binary type.
func textForTerm(v value.FieldValue) string {
	switch v.Kind() {
	case value.KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	case value.KindFacet:
		return v.Facet()
	case value.KindJSON:
		return v.JSON()
	default:
		return v.Text()
	}
}

// numForTerm maps a value onto its num_value representation. Dates
// carry microseconds since epoch, booleans 0 or 1. Integers above 2^53
// lose precision in the REAL column.
func numForTerm(v value.FieldValue) any {
	switch v.Kind() {
	case value.KindU64:
		return float64(v.U64())
	case value.KindI64:
		return float64(v.I64())
	case value.KindF64:
		return v.F64()
	case value.KindDate:
		return float64(v.Micros())
	case value.KindBool:
		if v.Bool() {
			return float64(1)
		}
		return float64(0)
	default:
		return nil
	}
}

// indexRows flattens a document into its field_values rows.
func indexRows(s *schema.Schema, doc document.Fields) []indexedValue {
	rows := make([]indexedValue, 0, len(doc))
	for _, f := range doc {
		kind, ok := s.Kind(f.Name)
		if !ok || kind != f.Value.Kind() {
			continue
		}
		row := indexedValue{name: f.Name}
		switch kind {
		case value.KindText, value.KindFacet, value.KindBytes, value.KindJSON:
			t := textForTerm(f.Value)
			row.text = &t
		default:
			n, _ := numForTerm(f.Value).(float64)
			row.num = &n
		}
		rows = append(rows, row)
	}
	return rows
}

// ftsContent collects the full-text content of a document, one
// space-joined string per indexed column, keyed by field name.
func ftsContent(fields []string, doc document.Fields) map[string]string {
	indexed := make(map[string]bool, len(fields))
	for _, f := range fields {
		indexed[f] = true
	}
	out := make(map[string]string, len(fields))
	for _, f := range doc {
		if !indexed[f.Name] {
			continue
		}
		var text string
		switch f.Value.Kind() {
		case value.KindText:
			text = f.Value.Text()
		case value.KindJSON:
			text = f.Value.JSON()
		default:
			continue
		}
		if prev, ok := out[f.Name]; ok && prev != "" {
			out[f.Name] = prev + " " + text
		} else {
			out[f.Name] = text
		}
	}
	return out
}
