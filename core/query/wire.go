package query

import (
	"encoding/json"
	"fmt"

	"github.com/tafuta/tafuta/core/value"
)

// Wire discriminants. These strings and the variant field names below are
// the serialization contract the engine parses; they must not change.
const (
	typeAll            = "all"
	typeEmpty          = "empty"
	typeTerm           = "term"
	typeTermSet        = "term_set"
	typeBoolean        = "boolean"
	typePhrase         = "phrase"
	typePhrasePrefix   = "phrase_prefix"
	typeRange          = "range"
	typeRegex          = "regex"
	typeFuzzy          = "fuzzy"
	typeExists         = "exists"
	typeBoost          = "boost"
	typeConstScore     = "const_score"
	typeDisjunctionMax = "disjunction_max"
	typeQueryString    = "query_string"
)

type wireTerm struct {
	Name  string           `json:"name"`
	Value value.FieldValue `json:"value"`
}

type wireClause struct {
	Occur Occur           `json:"occur"`
	Query json.RawMessage `json:"query"`
}

// Marshal serializes a query tree into its wire form.
func Marshal(q Query) ([]byte, error) {
	if q == nil {
		return nil, fmt.Errorf("query: cannot serialize nil query")
	}
	return json.Marshal(q)
}

// Unmarshal parses a wire-form query back into its tree representation.
func Unmarshal(data []byte) (Query, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	switch head.Type {
	case typeAll:
		return All{}, nil
	case typeEmpty:
		return Empty{}, nil
	case typeTerm:
		var body struct {
			Term wireTerm `json:"term"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: term: %w", err)
		}
		return Term{Field: body.Term.Name, Value: body.Term.Value}, nil
	case typeTermSet:
		var body struct {
			Terms []wireTerm `json:"terms"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: term_set: %w", err)
		}
		terms := make([]Term, len(body.Terms))
		for i, t := range body.Terms {
			terms[i] = Term{Field: t.Name, Value: t.Value}
		}
		return TermSet{Terms: terms}, nil
	case typeBoolean:
		var body struct {
			Clauses []wireClause `json:"clauses"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: boolean: %w", err)
		}
		clauses := make([]Clause, len(body.Clauses))
		for i, c := range body.Clauses {
			sub, err := Unmarshal(c.Query)
			if err != nil {
				return nil, err
			}
			clauses[i] = Clause{Occur: c.Occur, Query: sub}
		}
		return Boolean{Clauses: clauses}, nil
	case typePhrase:
		var body struct {
			Field string   `json:"field"`
			Terms []string `json:"terms"`
			Slop  *uint32  `json:"slop"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: phrase: %w", err)
		}
		return Phrase{Field: body.Field, Terms: body.Terms, Slop: body.Slop}, nil
	case typePhrasePrefix:
		var body struct {
			Field         string   `json:"field"`
			Terms         []string `json:"terms"`
			MaxExpansions *uint32  `json:"max_expansions"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: phrase_prefix: %w", err)
		}
		return PhrasePrefix{Field: body.Field, Terms: body.Terms, MaxExpansions: body.MaxExpansions}, nil
	case typeRange:
		var body struct {
			Field        string            `json:"field"`
			Lower        *value.FieldValue `json:"lower"`
			Upper        *value.FieldValue `json:"upper"`
			IncludeLower bool              `json:"include_lower"`
			IncludeUpper bool              `json:"include_upper"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: range: %w", err)
		}
		return Range{
			Field:        body.Field,
			Lower:        body.Lower,
			Upper:        body.Upper,
			IncludeLower: body.IncludeLower,
			IncludeUpper: body.IncludeUpper,
		}, nil
	case typeRegex:
		var body struct {
			Field   string `json:"field"`
			Pattern string `json:"pattern"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: regex: %w", err)
		}
		return Regex(body), nil
	case typeFuzzy:
		var body struct {
			Field            string `json:"field"`
			Term             string `json:"term"`
			Distance         uint8  `json:"distance"`
			TransposeCostOne bool   `json:"transpose_cost_one"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: fuzzy: %w", err)
		}
		return Fuzzy(body), nil
	case typeExists:
		var body struct {
			Field string `json:"field"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: exists: %w", err)
		}
		return Exists{Field: body.Field}, nil
	case typeBoost:
		var body struct {
			Query json.RawMessage `json:"query"`
			Boost float32         `json:"boost"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: boost: %w", err)
		}
		sub, err := Unmarshal(body.Query)
		if err != nil {
			return nil, err
		}
		return Boost{Query: sub, Factor: body.Boost}, nil
	case typeConstScore:
		var body struct {
			Query json.RawMessage `json:"query"`
			Score float32         `json:"score"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: const_score: %w", err)
		}
		sub, err := Unmarshal(body.Query)
		if err != nil {
			return nil, err
		}
		return ConstScore{Query: sub, Score: body.Score}, nil
	case typeDisjunctionMax:
		var body struct {
			Queries    []json.RawMessage `json:"queries"`
			TieBreaker *float32          `json:"tie_breaker"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: disjunction_max: %w", err)
		}
		subs := make([]Query, len(body.Queries))
		for i, raw := range body.Queries {
			sub, err := Unmarshal(raw)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		return DisjunctionMax{Queries: subs, TieBreaker: body.TieBreaker}, nil
	case typeQueryString:
		var body struct {
			Query         string       `json:"query"`
			DefaultFields []string     `json:"default_fields"`
			FuzzyFields   []FuzzyField `json:"fuzzy_fields"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("query: query_string: %w", err)
		}
		return QueryString(body), nil
	}
	return nil, fmt.Errorf("query: unknown query type %q", head.Type)
}

func envelope(kind string, body map[string]any) ([]byte, error) {
	out := make(map[string]any, len(body)+1)
	out["type"] = kind
	for k, v := range body {
		out[k] = v
	}
	return json.Marshal(out)
}

// MarshalJSON implementations, one per variant, producing the stable
// discriminated wire records.

func (All) MarshalJSON() ([]byte, error) {
	return envelope(typeAll, nil)
}

func (Empty) MarshalJSON() ([]byte, error) {
	return envelope(typeEmpty, nil)
}

func (q Term) MarshalJSON() ([]byte, error) {
	return envelope(typeTerm, map[string]any{
		"term": wireTerm{Name: q.Field, Value: q.Value},
	})
}

func (q TermSet) MarshalJSON() ([]byte, error) {
	terms := make([]wireTerm, len(q.Terms))
	for i, t := range q.Terms {
		terms[i] = wireTerm{Name: t.Field, Value: t.Value}
	}
	return envelope(typeTermSet, map[string]any{"terms": terms})
}

func (q Boolean) MarshalJSON() ([]byte, error) {
	clauses := make([]map[string]any, len(q.Clauses))
	for i, c := range q.Clauses {
		clauses[i] = map[string]any{"occur": c.Occur, "query": c.Query}
	}
	return envelope(typeBoolean, map[string]any{"clauses": clauses})
}

func (q Phrase) MarshalJSON() ([]byte, error) {
	body := map[string]any{"field": q.Field, "terms": q.Terms}
	if q.Slop != nil {
		body["slop"] = *q.Slop
	}
	return envelope(typePhrase, body)
}

func (q PhrasePrefix) MarshalJSON() ([]byte, error) {
	body := map[string]any{"field": q.Field, "terms": q.Terms}
	if q.MaxExpansions != nil {
		body["max_expansions"] = *q.MaxExpansions
	}
	return envelope(typePhrasePrefix, body)
}

func (q Range) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"field":         q.Field,
		"include_lower": q.IncludeLower,
		"include_upper": q.IncludeUpper,
	}
	if q.Lower != nil {
		body["lower"] = *q.Lower
	}
	if q.Upper != nil {
		body["upper"] = *q.Upper
	}
	return envelope(typeRange, body)
}

func (q Regex) MarshalJSON() ([]byte, error) {
	return envelope(typeRegex, map[string]any{"field": q.Field, "pattern": q.Pattern})
}

func (q Fuzzy) MarshalJSON() ([]byte, error) {
	return envelope(typeFuzzy, map[string]any{
		"field":              q.Field,
		"term":               q.Term,
		"distance":           q.Distance,
		"transpose_cost_one": q.TransposeCostOne,
	})
}

func (q Exists) MarshalJSON() ([]byte, error) {
	return envelope(typeExists, map[string]any{"field": q.Field})
}

func (q Boost) MarshalJSON() ([]byte, error) {
	return envelope(typeBoost, map[string]any{"query": q.Query, "boost": q.Factor})
}

func (q ConstScore) MarshalJSON() ([]byte, error) {
	return envelope(typeConstScore, map[string]any{"query": q.Query, "score": q.Score})
}

func (q DisjunctionMax) MarshalJSON() ([]byte, error) {
	body := map[string]any{"queries": q.Queries}
	if q.TieBreaker != nil {
		body["tie_breaker"] = *q.TieBreaker
	}
	return envelope(typeDisjunctionMax, body)
}

func (q QueryString) MarshalJSON() ([]byte, error) {
	return envelope(typeQueryString, map[string]any{
		"query":          q.Query,
		"default_fields": q.DefaultFields,
		"fuzzy_fields":   q.FuzzyFields,
	})
}
