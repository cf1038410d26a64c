package bleve

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/unicodenorm"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

const (
	unicodeNormalizeName  = "unicodeNormalize"
	unicodeAnalyzerName   = "unicodeFolding"
	whitespaceAnalyzeName = "whitespaceOnly"
)

// analyzerFor maps a schema tokenizer to a bleve analyzer name. The unicode
// and whitespace analyzers are custom and registered on the index mapping.
func analyzerFor(t schema.Tokenizer) (string, error) {
	switch t {
	case schema.TokenizerRaw:
		return keyword.Name, nil
	case schema.TokenizerDefault:
		return standard.Name, nil
	case schema.TokenizerUnicode:
		return unicodeAnalyzerName, nil
	case schema.TokenizerEnStem:
		return en.AnalyzerName, nil
	case schema.TokenizerWhitespace:
		return whitespaceAnalyzeName, nil
	}
	return "", fmt.Errorf("unknown tokenizer %q", t)
}

func registerAnalyzers(m *mapping.IndexMappingImpl) error {
	if err := m.AddCustomTokenFilter(unicodeNormalizeName, map[string]any{
		"type": unicodenorm.Name,
		"form": unicodenorm.NFC,
	}); err != nil {
		return err
	}
	if err := m.AddCustomAnalyzer(unicodeAnalyzerName, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{unicodeNormalizeName, lowercase.Name},
	}); err != nil {
		return err
	}
	return m.AddCustomAnalyzer(whitespaceAnalyzeName, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{},
		"tokenizer":     whitespace.Name,
		"token_filters": []string{},
	})
}

// buildIndexMapping translates a declared schema into a bleve index
// mapping. Dates are mapped as numerics carrying microsecond timestamps so
// stored values keep full precision; bytes are mapped as keyword text over
// a base64 transport form.
func buildIndexMapping(s *schema.Schema) (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := registerAnalyzers(im); err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()
	for _, f := range s.Fields() {
		fm, err := fieldMapping(f)
		if err != nil {
			return nil, err
		}
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im, nil
}

func fieldMapping(f schema.FieldSchema) (*mapping.FieldMapping, error) {
	switch f.Kind {
	case value.KindText:
		fm := bleve.NewTextFieldMapping()
		analyzer, err := analyzerFor(f.Text.Tokenizer)
		if err != nil {
			return nil, err
		}
		fm.Analyzer = analyzer
		fm.Store = f.Text.Stored
		fm.DocValues = f.Text.Fast
		fm.IncludeTermVectors = f.Text.Record == schema.RecordWithFreqsPositions
		fm.IncludeInAll = false
		return fm, nil

	case value.KindU64, value.KindI64, value.KindF64, value.KindDate:
		fm := bleve.NewNumericFieldMapping()
		opts := f.Numeric
		if f.Kind == value.KindDate {
			opts = &schema.NumericOptions{
				Indexed:    f.Date.Indexed,
				Stored:     f.Date.Stored,
				Fast:       f.Date.Fast,
				Fieldnorms: f.Date.Fieldnorms,
			}
		}
		fm.Index = opts.Indexed
		fm.Store = opts.Stored
		fm.DocValues = opts.Fast
		fm.IncludeInAll = false
		return fm, nil

	case value.KindBool:
		fm := bleve.NewBooleanFieldMapping()
		fm.Index = f.Numeric.Indexed
		fm.Store = f.Numeric.Stored
		fm.DocValues = f.Numeric.Fast
		fm.IncludeInAll = false
		return fm, nil

	case value.KindBytes:
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Index = f.Bytes.Indexed
		fm.Store = f.Bytes.Stored
		fm.DocValues = f.Bytes.Fast
		fm.IncludeInAll = false
		return fm, nil

	case value.KindFacet:
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = f.Facet.Stored
		fm.IncludeInAll = false
		return fm, nil

	case value.KindJSON:
		fm := bleve.NewTextFieldMapping()
		analyzer, err := analyzerFor(f.JSON.Tokenizer)
		if err != nil {
			return nil, err
		}
		fm.Analyzer = analyzer
		fm.Index = f.JSON.Indexed
		fm.Store = f.JSON.Stored
		fm.DocValues = f.JSON.Fast
		fm.IncludeInAll = false
		return fm, nil
	}
	return nil, fmt.Errorf("unknown field kind %q", f.Kind)
}
