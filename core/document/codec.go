package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

var timeType = reflect.TypeOf(time.Time{})

// Encode converts a typed document instance into its engine representation.
// Scalar fields contribute one pair, array fields one pair per element in
// order, and optional fields with no value contribute nothing. A nil
// optional array and a present-but-empty array both encode to zero pairs;
// the two are indistinguishable on the wire and are not round-tripped.
func Encode(doc any) (Fields, error) {
	rv := reflect.ValueOf(doc)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("document: cannot encode nil document")
		}
		rv = rv.Elem()
	}

	info, err := schema.Describe(rv.Type())
	if err != nil {
		return nil, err
	}

	var fields Fields
	for _, fi := range info.Fields {
		fv := rv.Field(fi.Index)

		if fi.Optional {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		if fi.Slice {
			for i := 0; i < fv.Len(); i++ {
				el := fv.Index(i)
				if el.Kind() == reflect.Pointer {
					if el.IsNil() {
						continue
					}
					el = el.Elem()
				}
				v, err := encodeValue(fi, el)
				if err != nil {
					return nil, err
				}
				fields = fields.Append(fi.Name, v)
			}
			continue
		}

		v, err := encodeValue(fi, fv)
		if err != nil {
			return nil, err
		}
		fields = fields.Append(fi.Name, v)
	}
	return fields, nil
}

func encodeValue(fi schema.FieldInfo, rv reflect.Value) (value.FieldValue, error) {
	switch fi.Kind {
	case value.KindText:
		return value.Text(rv.String()), nil
	case value.KindFacet:
		return value.Facet(rv.String()), nil
	case value.KindU64:
		return value.U64(rv.Uint()), nil
	case value.KindI64:
		return value.I64(rv.Int()), nil
	case value.KindF64:
		return value.F64(rv.Float()), nil
	case value.KindBool:
		return value.Bool(rv.Bool()), nil
	case value.KindDate:
		if rv.Type() == timeType {
			return value.DateTime(rv.Interface().(time.Time)), nil
		}
		return value.Date(rv.Int()), nil
	case value.KindBytes:
		return value.Bytes(rv.Bytes()), nil
	case value.KindJSON:
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return value.FieldValue{}, &Error{Field: fi.Name, Err: err}
		}
		return value.JSON(string(raw)), nil
	}
	return value.FieldValue{}, &Error{Field: fi.Name, Err: fmt.Errorf("unknown kind %s", fi.Kind)}
}

// Decode populates a typed document from its engine representation. out
// must be a non-nil pointer to a document struct.
//
// Decoding is lenient towards schema drift: a value stored under a declared
// name with a different kind is treated as absent, and a missing required
// scalar takes the kind's zero value rather than failing. Malformed JSON
// payloads are a hard error and fail the whole decode.
func Decode(fields Fields, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("document: decode target must be a non-nil pointer, got %T", out)
	}
	rv = rv.Elem()

	info, err := schema.Describe(rv.Type())
	if err != nil {
		return err
	}

	grouped := fields.Group()
	for _, fi := range info.Fields {
		vals := matchingKind(grouped[fi.Name], fi.Kind)
		target := rv.Field(fi.Index)

		if fi.Slice {
			if err := decodeSlice(fi, vals, target); err != nil {
				return err
			}
			continue
		}

		if fi.Optional {
			if len(vals) == 0 {
				target.SetZero()
				continue
			}
			el := reflect.New(target.Type().Elem())
			if err := decodeValue(fi, vals[0], el.Elem()); err != nil {
				return err
			}
			target.Set(el)
			continue
		}

		if len(vals) == 0 {
			target.SetZero()
			continue
		}
		if err := decodeValue(fi, vals[0], target); err != nil {
			return err
		}
	}
	return nil
}

func matchingKind(vals []value.FieldValue, kind value.Kind) []value.FieldValue {
	out := vals[:0:0]
	for _, v := range vals {
		if v.Kind() == kind {
			out = append(out, v)
		}
	}
	return out
}

func decodeSlice(fi schema.FieldInfo, vals []value.FieldValue, target reflect.Value) error {
	sliceType := target.Type()
	if sliceType.Kind() == reflect.Pointer {
		sliceType = sliceType.Elem()
	}
	if len(vals) == 0 {
		target.SetZero()
		return nil
	}

	out := reflect.MakeSlice(sliceType, len(vals), len(vals))
	for i, v := range vals {
		el := out.Index(i)
		if el.Kind() == reflect.Pointer {
			p := reflect.New(el.Type().Elem())
			if err := decodeValue(fi, v, p.Elem()); err != nil {
				return err
			}
			el.Set(p)
			continue
		}
		if err := decodeValue(fi, v, el); err != nil {
			return err
		}
	}

	if target.Kind() == reflect.Pointer {
		p := reflect.New(sliceType)
		p.Elem().Set(out)
		target.Set(p)
		return nil
	}
	target.Set(out)
	return nil
}

func decodeValue(fi schema.FieldInfo, v value.FieldValue, target reflect.Value) error {
	switch fi.Kind {
	case value.KindText:
		target.SetString(v.Text())
	case value.KindFacet:
		target.SetString(v.Facet())
	case value.KindU64:
		target.SetUint(v.U64())
	case value.KindI64:
		target.SetInt(v.I64())
	case value.KindF64:
		target.SetFloat(v.F64())
	case value.KindBool:
		target.SetBool(v.Bool())
	case value.KindDate:
		if target.Type() == timeType {
			target.Set(reflect.ValueOf(v.Time()))
		} else {
			target.SetInt(v.Micros())
		}
	case value.KindBytes:
		target.SetBytes(v.Bytes())
	case value.KindJSON:
		p := target.Addr().Interface()
		if err := json.Unmarshal([]byte(v.JSON()), p); err != nil {
			return &Error{Field: fi.Name, Err: fmt.Errorf("malformed json payload: %w", err)}
		}
	default:
		return &Error{Field: fi.Name, Err: fmt.Errorf("unknown kind %s", fi.Kind)}
	}
	return nil
}
