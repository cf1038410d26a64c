package schema

// Tokenizer selects the text-splitting strategy applied before a text field
// is indexed.
type Tokenizer string

// Supported tokenizers.
const (
	TokenizerRaw        Tokenizer = "raw"        // no splitting, the whole value is one term
	TokenizerDefault    Tokenizer = "default"    // engine default simple tokenizer
	TokenizerUnicode    Tokenizer = "unicode"    // unicode segmentation + lowercase + ascii folding
	TokenizerEnStem     Tokenizer = "en_stem"    // english stemming
	TokenizerWhitespace Tokenizer = "whitespace" // split on whitespace only
)

// IndexRecord selects how much per-term information the index records for a
// text field.
type IndexRecord string

// Supported index record granularities.
const (
	RecordBasic              IndexRecord = "basic"
	RecordWithFreqs          IndexRecord = "freq"
	RecordWithFreqsPositions IndexRecord = "position"
)

// DatePrecision selects the precision a date field is truncated to when
// indexed. Stored values keep full microsecond precision regardless.
type DatePrecision string

// Supported date precisions.
const (
	PrecisionSeconds      DatePrecision = "seconds"
	PrecisionMilliseconds DatePrecision = "milliseconds"
	PrecisionMicroseconds DatePrecision = "microseconds"
)

// TextOptions configures a text field.
type TextOptions struct {
	Tokenizer  Tokenizer   `json:"tokenizer"`
	Record     IndexRecord `json:"record"`
	Stored     bool        `json:"stored"`
	Fast       bool        `json:"fast"`
	Fieldnorms bool        `json:"fieldnorms"`
}

// DefaultTextOptions returns the default text configuration: unicode
// tokenization with positions, stored, with fieldnorms.
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Tokenizer:  TokenizerUnicode,
		Record:     RecordWithFreqsPositions,
		Stored:     true,
		Fast:       false,
		Fieldnorms: true,
	}
}

// IDOptions returns the configuration for identifier fields: raw
// tokenization so the whole value is a single exact term, stored and fast.
func IDOptions() TextOptions {
	return TextOptions{
		Tokenizer:  TokenizerRaw,
		Record:     RecordBasic,
		Stored:     true,
		Fast:       true,
		Fieldnorms: false,
	}
}

// NumericOptions configures u64, i64, f64 and bool fields.
type NumericOptions struct {
	Indexed    bool `json:"indexed"`
	Stored     bool `json:"stored"`
	Fast       bool `json:"fast"`
	Fieldnorms bool `json:"fieldnorms"`
}

// DefaultNumericOptions returns the default numeric configuration: indexed
// and stored.
func DefaultNumericOptions() NumericOptions {
	return NumericOptions{Indexed: true, Stored: true, Fast: false, Fieldnorms: false}
}

// DateOptions configures a date field.
type DateOptions struct {
	Indexed    bool          `json:"indexed"`
	Stored     bool          `json:"stored"`
	Fast       bool          `json:"fast"`
	Fieldnorms bool          `json:"fieldnorms"`
	Precision  DatePrecision `json:"precision"`
}

// DefaultDateOptions returns the default date configuration: indexed and
// stored at second precision.
func DefaultDateOptions() DateOptions {
	return DateOptions{
		Indexed:    true,
		Stored:     true,
		Fast:       false,
		Fieldnorms: true,
		Precision:  PrecisionSeconds,
	}
}

// BytesOptions configures a bytes field.
type BytesOptions struct {
	Stored  bool `json:"stored"`
	Fast    bool `json:"fast"`
	Indexed bool `json:"indexed"`
}

// DefaultBytesOptions returns the default bytes configuration: indexed and
// stored.
func DefaultBytesOptions() BytesOptions {
	return BytesOptions{Stored: true, Fast: false, Indexed: true}
}

// FacetOptions configures a facet field.
type FacetOptions struct {
	Stored bool `json:"stored"`
}

// DefaultFacetOptions returns the default facet configuration: stored.
func DefaultFacetOptions() FacetOptions {
	return FacetOptions{Stored: true}
}

// JSONOptions configures a JSON object field.
type JSONOptions struct {
	Stored        bool        `json:"stored"`
	Indexed       bool        `json:"indexed"`
	Fast          bool        `json:"fast"`
	Tokenizer     Tokenizer   `json:"tokenizer"`
	Record        IndexRecord `json:"record"`
	Fieldnorms    bool        `json:"fieldnorms"`
	ExpandDots    bool        `json:"expandDots"`
	FastTokenizer *Tokenizer  `json:"fastTokenizer,omitempty"`
}

// DefaultJSONOptions returns the default JSON configuration: stored only.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{
		Stored:     true,
		Indexed:    false,
		Fast:       false,
		Tokenizer:  TokenizerUnicode,
		Record:     RecordWithFreqsPositions,
		Fieldnorms: true,
		ExpandDots: false,
	}
}
