package bleve

import (
	"encoding/base64"
	"fmt"

	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// transportValue converts a field value into what bleve indexes and stores.
// All numerics travel as float64 (bleve's numeric representation); dates as
// microsecond timestamps, bytes as base64 text.
//
// Integer fidelity through this engine is therefore limited to 2^53; the
// wire representation itself is lossless.
func transportValue(v value.FieldValue) (any, error) {
	switch v.Kind() {
	case value.KindText:
		return v.Text(), nil
	case value.KindFacet:
		return v.Facet(), nil
	case value.KindJSON:
		return v.JSON(), nil
	case value.KindU64:
		return float64(v.U64()), nil
	case value.KindI64:
		return float64(v.I64()), nil
	case value.KindF64:
		return v.F64(), nil
	case value.KindDate:
		return float64(v.Micros()), nil
	case value.KindBool:
		return v.Bool(), nil
	case value.KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	}
	return nil, fmt.Errorf("value has no kind")
}

// toBleveDoc flattens a document into the map bleve walks during indexing.
// Fields with several values become a slice; bleve indexes each element.
func toBleveDoc(fields document.Fields) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, pair := range fields {
		tv, err := transportValue(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", pair.Name, err)
		}
		switch existing := out[pair.Name].(type) {
		case nil:
			out[pair.Name] = tv
		case []any:
			out[pair.Name] = append(existing, tv)
		default:
			out[pair.Name] = []any{existing, tv}
		}
	}
	return out, nil
}

// fromStoredFields rebuilds a document from the stored fields of a search
// hit, driven by the declared schema. Values whose stored shape does not
// match the declared kind are skipped.
func fromStoredFields(s *schema.Schema, stored map[string]any) document.Fields {
	var out document.Fields
	for _, f := range s.Fields() {
		raw, ok := stored[f.Name]
		if !ok || raw == nil {
			continue
		}
		vals, multi := raw.([]any)
		if !multi {
			vals = []any{raw}
		}
		for _, rv := range vals {
			fv, ok := storedValue(f.Kind, rv)
			if !ok {
				continue
			}
			out = out.Append(f.Name, fv)
		}
	}
	return out
}

func storedValue(kind value.Kind, raw any) (value.FieldValue, bool) {
	switch kind {
	case value.KindText:
		if s, ok := raw.(string); ok {
			return value.Text(s), true
		}
	case value.KindFacet:
		if s, ok := raw.(string); ok {
			return value.Facet(s), true
		}
	case value.KindJSON:
		if s, ok := raw.(string); ok {
			return value.JSON(s), true
		}
	case value.KindU64:
		if f, ok := raw.(float64); ok && f >= 0 {
			return value.U64(uint64(f)), true
		}
	case value.KindI64:
		if f, ok := raw.(float64); ok {
			return value.I64(int64(f)), true
		}
	case value.KindF64:
		if f, ok := raw.(float64); ok {
			return value.F64(f), true
		}
	case value.KindDate:
		if f, ok := raw.(float64); ok {
			return value.Date(int64(f)), true
		}
	case value.KindBool:
		if b, ok := raw.(bool); ok {
			return value.Bool(b), true
		}
	case value.KindBytes:
		if s, ok := raw.(string); ok {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				return value.Bytes(b), true
			}
		}
	}
	return value.FieldValue{}, false
}
