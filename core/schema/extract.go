package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/tafuta/tafuta/core/value"
)

// TagName is the struct tag key read by the extractor, e.g.
//
//	type Article struct {
//		ID    string    `search:"id,id"`
//		Title string    `search:"title,text"`
//		Score float64   `search:"score,f64,fast"`
//		Tags  []string  `search:"tags,facet"`
//		Added time.Time `search:"added,date,precision=microseconds"`
//	}
//
// The first tag element is the field name, the optional second element is
// the kind (inferred from the Go type when omitted), and the remaining
// elements adjust the kind's default options.
const TagName = "search"

// FieldInfo is one annotated struct field resolved against the schema
// system: its declaration plus the reflection metadata the codec needs.
type FieldInfo struct {
	FieldSchema

	// Index is the struct field index within the document type.
	Index int
	// Slice reports a repeated (array-valued) field.
	Slice bool
	// Optional reports a pointer scalar field, absent when nil.
	Optional bool
	// Elem is the Go type of a single value, with pointer and slice
	// wrappers removed.
	Elem reflect.Type
}

// TypeInfo is the resolved field registry of one document type. It is a
// pure function of the type: extracting it twice yields structurally
// identical results.
type TypeInfo struct {
	Type   reflect.Type
	Fields []FieldInfo
	schema *Schema
}

// Schema returns the engine schema derived from the document type.
func (t *TypeInfo) Schema() *Schema { return t.schema }

var typeCache sync.Map // reflect.Type -> *TypeInfo

var timeType = reflect.TypeOf(time.Time{})

// Extract derives the Schema of a document type from a template instance.
// The instance's values are never read; only type-level metadata and the
// per-kind defaults participate.
func Extract(template any) (*Schema, error) {
	info, err := Describe(reflect.TypeOf(template))
	if err != nil {
		return nil, err
	}
	return info.Schema(), nil
}

// Describe resolves the annotated fields of a document struct type, in
// declaration order. Results are cached per type. It fails if a field's
// annotation cannot be resolved to one of the supported kinds.
func Describe(t reflect.Type) (*TypeInfo, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &Error{Reason: fmt.Sprintf("document type must be a struct, got %v", t)}
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*TypeInfo), nil
	}

	info := &TypeInfo{Type: t}
	builder := NewBuilder()

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get(TagName)
		if tag == "" || tag == "-" || !sf.IsExported() {
			continue
		}

		fi, err := resolveField(sf, i, tag)
		if err != nil {
			return nil, err
		}
		if err := registerField(builder, fi.FieldSchema); err != nil {
			return nil, err
		}
		info.Fields = append(info.Fields, fi)
	}

	if len(info.Fields) == 0 {
		return nil, &Error{Reason: fmt.Sprintf("type %s declares no %s-tagged fields", t, TagName)}
	}

	info.schema = builder.Build()
	actual, _ := typeCache.LoadOrStore(t, info)
	return actual.(*TypeInfo), nil
}

// registerField feeds one resolved declaration into the Builder, keeping
// extraction and hand-built schemas on the same validation path.
func registerField(b *Builder, f FieldSchema) error {
	switch f.Kind {
	case value.KindText:
		return b.AddTextField(f.Name, *f.Text)
	case value.KindU64:
		return b.AddU64Field(f.Name, *f.Numeric)
	case value.KindI64:
		return b.AddI64Field(f.Name, *f.Numeric)
	case value.KindF64:
		return b.AddF64Field(f.Name, *f.Numeric)
	case value.KindBool:
		return b.AddBoolField(f.Name, *f.Numeric)
	case value.KindDate:
		return b.AddDateField(f.Name, *f.Date)
	case value.KindBytes:
		return b.AddBytesField(f.Name, *f.Bytes)
	case value.KindFacet:
		return b.AddFacetField(f.Name, *f.Facet)
	case value.KindJSON:
		return b.AddJSONField(f.Name, *f.JSON)
	}
	return &Error{Field: f.Name, Reason: fmt.Sprintf("unknown kind %q", f.Kind)}
}

func resolveField(sf reflect.StructField, index int, tag string) (FieldInfo, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return FieldInfo{}, &Error{Field: sf.Name, Reason: "tag must name the field"}
	}

	ft := sf.Type
	fi := FieldInfo{Index: index}
	fi.Name = name

	if ft.Kind() == reflect.Pointer {
		fi.Optional = true
		ft = ft.Elem()
	}
	// []byte is a scalar bytes payload, not a repeated field.
	if ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.Uint8 {
		fi.Slice = true
		ft = ft.Elem()
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
	}
	fi.Elem = ft

	rest := parts[1:]
	kindTok := ""
	if len(rest) > 0 && !strings.Contains(rest[0], "=") && isKindToken(strings.TrimSpace(rest[0])) {
		kindTok = strings.TrimSpace(rest[0])
		rest = rest[1:]
	}

	isID := kindTok == "id"
	var kind value.Kind
	if kindTok == "" {
		inferred, err := inferKind(ft)
		if err != nil {
			return FieldInfo{}, &Error{Field: name, Reason: err.Error()}
		}
		kind = inferred
	} else if isID {
		kind = value.KindText
	} else {
		kind = value.Kind(kindTok)
	}
	if !kind.IsValid() {
		return FieldInfo{}, &Error{Field: name, Reason: fmt.Sprintf("unknown kind %q", kindTok)}
	}
	if err := checkKindType(kind, ft); err != nil {
		return FieldInfo{}, &Error{Field: name, Reason: err.Error()}
	}
	fi.Kind = kind

	if err := applyOptions(&fi, isID, rest); err != nil {
		return FieldInfo{}, err
	}
	return fi, nil
}

func isKindToken(tok string) bool {
	switch tok {
	case "text", "id", "u64", "i64", "f64", "bool", "date", "bytes", "facet", "json":
		return true
	}
	return false
}

// inferKind maps a Go type to its natural value kind. Facet fields are
// never inferred; the tag must request them explicitly.
func inferKind(t reflect.Type) (value.Kind, error) {
	if t == timeType {
		return value.KindDate, nil
	}
	switch t.Kind() {
	case reflect.String:
		return value.KindText, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.KindU64, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.KindI64, nil
	case reflect.Float32, reflect.Float64:
		return value.KindF64, nil
	case reflect.Bool:
		return value.KindBool, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return value.KindBytes, nil
		}
		return "", fmt.Errorf("cannot infer kind for %s", t)
	case reflect.Struct, reflect.Map:
		return value.KindJSON, nil
	}
	return "", fmt.Errorf("cannot infer kind for %s", t)
}

// checkKindType verifies the Go type can carry values of the declared kind.
func checkKindType(k value.Kind, t reflect.Type) error {
	ok := false
	switch k {
	case value.KindText, value.KindFacet:
		ok = t.Kind() == reflect.String
	case value.KindU64:
		switch t.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = true
		}
	case value.KindI64:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			ok = true
		}
	case value.KindF64:
		ok = t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case value.KindBool:
		ok = t.Kind() == reflect.Bool
	case value.KindDate:
		ok = t == timeType || t.Kind() == reflect.Int64
	case value.KindBytes:
		ok = t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
	case value.KindJSON:
		ok = true // any JSON-encodable type
	}
	if !ok {
		return fmt.Errorf("kind %s is not representable by Go type %s", k, t)
	}
	return nil
}

func applyOptions(fi *FieldInfo, isID bool, opts []string) error {
	switch fi.Kind {
	case value.KindText:
		o := DefaultTextOptions()
		if isID {
			o = IDOptions()
		}
		fi.Text = &o
	case value.KindU64, value.KindI64, value.KindF64, value.KindBool:
		o := DefaultNumericOptions()
		fi.Numeric = &o
	case value.KindDate:
		o := DefaultDateOptions()
		fi.Date = &o
	case value.KindBytes:
		o := DefaultBytesOptions()
		fi.Bytes = &o
	case value.KindFacet:
		o := DefaultFacetOptions()
		fi.Facet = &o
	case value.KindJSON:
		o := DefaultJSONOptions()
		fi.JSON = &o
	}

	for _, raw := range opts {
		opt := strings.TrimSpace(raw)
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")
		if err := applyOption(fi, key, val, hasVal); err != nil {
			return &Error{Field: fi.Name, Reason: err.Error()}
		}
	}
	return nil
}

func applyOption(fi *FieldInfo, key, val string, hasVal bool) error {
	setFlag := func(target *bool, on bool) error {
		if target == nil {
			return fmt.Errorf("option %q does not apply to kind %s", key, fi.Kind)
		}
		*target = on
		return nil
	}

	var stored, fast, indexed, fieldnorms *bool
	switch fi.Kind {
	case value.KindText:
		stored, fast, fieldnorms = &fi.Text.Stored, &fi.Text.Fast, &fi.Text.Fieldnorms
	case value.KindU64, value.KindI64, value.KindF64, value.KindBool:
		stored, fast, indexed, fieldnorms = &fi.Numeric.Stored, &fi.Numeric.Fast, &fi.Numeric.Indexed, &fi.Numeric.Fieldnorms
	case value.KindDate:
		stored, fast, indexed, fieldnorms = &fi.Date.Stored, &fi.Date.Fast, &fi.Date.Indexed, &fi.Date.Fieldnorms
	case value.KindBytes:
		stored, fast, indexed = &fi.Bytes.Stored, &fi.Bytes.Fast, &fi.Bytes.Indexed
	case value.KindFacet:
		stored = &fi.Facet.Stored
	case value.KindJSON:
		stored, fast, indexed, fieldnorms = &fi.JSON.Stored, &fi.JSON.Fast, &fi.JSON.Indexed, &fi.JSON.Fieldnorms
	}

	switch key {
	case "stored":
		return setFlag(stored, true)
	case "nostored":
		return setFlag(stored, false)
	case "fast":
		return setFlag(fast, true)
	case "nofast":
		return setFlag(fast, false)
	case "indexed":
		return setFlag(indexed, true)
	case "noindexed":
		return setFlag(indexed, false)
	case "fieldnorms":
		return setFlag(fieldnorms, true)
	case "nofieldnorms":
		return setFlag(fieldnorms, false)
	case "expand_dots":
		if fi.JSON == nil {
			return fmt.Errorf("option %q only applies to json fields", key)
		}
		fi.JSON.ExpandDots = true
		return nil
	case "tokenizer":
		if !hasVal {
			return fmt.Errorf("option %q requires a value", key)
		}
		tok, err := parseTokenizer(val)
		if err != nil {
			return err
		}
		switch {
		case fi.Text != nil:
			fi.Text.Tokenizer = tok
		case fi.JSON != nil:
			fi.JSON.Tokenizer = tok
		default:
			return fmt.Errorf("option %q does not apply to kind %s", key, fi.Kind)
		}
		return nil
	case "fast_tokenizer":
		if !hasVal || fi.JSON == nil {
			return fmt.Errorf("option %q only applies to json fields and requires a value", key)
		}
		tok, err := parseTokenizer(val)
		if err != nil {
			return err
		}
		fi.JSON.FastTokenizer = &tok
		return nil
	case "record":
		if !hasVal {
			return fmt.Errorf("option %q requires a value", key)
		}
		rec, err := parseRecord(val)
		if err != nil {
			return err
		}
		switch {
		case fi.Text != nil:
			fi.Text.Record = rec
		case fi.JSON != nil:
			fi.JSON.Record = rec
		default:
			return fmt.Errorf("option %q does not apply to kind %s", key, fi.Kind)
		}
		return nil
	case "precision":
		if !hasVal || fi.Date == nil {
			return fmt.Errorf("option %q only applies to date fields and requires a value", key)
		}
		switch DatePrecision(val) {
		case PrecisionSeconds, PrecisionMilliseconds, PrecisionMicroseconds:
			fi.Date.Precision = DatePrecision(val)
			return nil
		}
		return fmt.Errorf("unknown date precision %q", val)
	}
	return fmt.Errorf("unknown field option %q", key)
}

func parseTokenizer(val string) (Tokenizer, error) {
	switch Tokenizer(val) {
	case TokenizerRaw, TokenizerDefault, TokenizerUnicode, TokenizerEnStem, TokenizerWhitespace:
		return Tokenizer(val), nil
	}
	return "", fmt.Errorf("unknown tokenizer %q", val)
}

func parseRecord(val string) (IndexRecord, error) {
	switch IndexRecord(val) {
	case RecordBasic, RecordWithFreqs, RecordWithFreqsPositions:
		return IndexRecord(val), nil
	}
	return "", fmt.Errorf("unknown index record %q", val)
}
