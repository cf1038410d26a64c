package bleve

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// translate lowers the query algebra into bleve's query types. Engine
// fidelity notes: phrase slop and prefix max-expansions are not supported
// by bleve and are ignored; ConstScore degrades to a boost; the
// disjunction-max tie breaker is ignored.
func translate(s *schema.Schema, q query.Query) (bquery.Query, error) {
	switch qt := q.(type) {
	case query.All:
		return bleve.NewMatchAllQuery(), nil

	case query.Empty:
		return bleve.NewMatchNoneQuery(), nil

	case query.Term:
		return termQuery(s, qt.Field, qt.Value)

	case query.TermSet:
		if len(qt.Terms) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		subs := make([]bquery.Query, len(qt.Terms))
		for i, t := range qt.Terms {
			sub, err := termQuery(s, t.Field, t.Value)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		return bleve.NewDisjunctionQuery(subs...), nil

	case query.Boolean:
		if len(qt.Clauses) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		bq := bleve.NewBooleanQuery()
		for _, clause := range qt.Clauses {
			sub, err := translate(s, clause.Query)
			if err != nil {
				return nil, err
			}
			switch clause.Occur {
			case query.OccurMust:
				bq.AddMust(sub)
			case query.OccurShould:
				bq.AddShould(sub)
			case query.OccurMustNot:
				bq.AddMustNot(sub)
			default:
				return nil, fmt.Errorf("unknown occur %q", clause.Occur)
			}
		}
		return bq, nil

	case query.Phrase:
		if len(qt.Terms) < 2 {
			return nil, fmt.Errorf("phrase query requires at least two terms")
		}
		return bleve.NewPhraseQuery(qt.Terms, qt.Field), nil

	case query.PhrasePrefix:
		if len(qt.Terms) == 0 {
			return nil, fmt.Errorf("phrase prefix query requires at least one term")
		}
		prefix := bleve.NewPrefixQuery(qt.Terms[len(qt.Terms)-1])
		prefix.SetField(qt.Field)
		if len(qt.Terms) == 1 {
			return prefix, nil
		}
		lead := qt.Terms[:len(qt.Terms)-1]
		if len(lead) == 1 {
			tq := bleve.NewTermQuery(lead[0])
			tq.SetField(qt.Field)
			return bleve.NewConjunctionQuery(tq, prefix), nil
		}
		return bleve.NewConjunctionQuery(bleve.NewPhraseQuery(lead, qt.Field), prefix), nil

	case query.Range:
		return rangeQuery(s, qt)

	case query.Regex:
		rq := bleve.NewRegexpQuery(qt.Pattern)
		rq.SetField(qt.Field)
		return rq, nil

	case query.Fuzzy:
		fq := bleve.NewFuzzyQuery(qt.Term)
		fq.SetField(qt.Field)
		fq.SetFuzziness(int(qt.Distance))
		return fq, nil

	case query.Exists:
		return existsQuery(s, qt.Field)

	case query.Boost:
		sub, err := translate(s, qt.Query)
		if err != nil {
			return nil, err
		}
		return boosted(sub, float64(qt.Factor))

	case query.ConstScore:
		sub, err := translate(s, qt.Query)
		if err != nil {
			return nil, err
		}
		return boosted(sub, float64(qt.Score))

	case query.DisjunctionMax:
		if len(qt.Queries) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		subs := make([]bquery.Query, len(qt.Queries))
		for i, sq := range qt.Queries {
			sub, err := translate(s, sq)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		return bleve.NewDisjunctionQuery(subs...), nil

	case query.QueryString:
		return queryStringQuery(qt), nil
	}
	return nil, fmt.Errorf("unknown query variant %T", q)
}

func boosted(q bquery.Query, factor float64) (bquery.Query, error) {
	bq, ok := q.(bquery.BoostableQuery)
	if !ok {
		return nil, fmt.Errorf("sub-query %T does not support boosting", q)
	}
	bq.SetBoost(factor)
	return q, nil
}

// termQuery builds an exact match for the value against its declared field
// kind. Numeric and date equality is an inclusive single-point range;
// booleans use the dedicated bool query.
func termQuery(s *schema.Schema, field string, v value.FieldValue) (bquery.Query, error) {
	kind, ok := s.Kind(field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	if kind != v.Kind() {
		return nil, fmt.Errorf("field %q is %s, term value is %s", field, kind, v.Kind())
	}

	switch kind {
	case value.KindText:
		return exactTerm(v.Text(), field), nil
	case value.KindFacet:
		return exactTerm(v.Facet(), field), nil
	case value.KindBytes:
		return exactTerm(base64.StdEncoding.EncodeToString(v.Bytes()), field), nil
	case value.KindU64:
		return numericEquality(float64(v.U64()), field), nil
	case value.KindI64:
		return numericEquality(float64(v.I64()), field), nil
	case value.KindF64:
		return numericEquality(v.F64(), field), nil
	case value.KindDate:
		return numericEquality(float64(v.Micros()), field), nil
	case value.KindBool:
		bq := bleve.NewBoolFieldQuery(v.Bool())
		bq.SetField(field)
		return bq, nil
	case value.KindJSON:
		return nil, fmt.Errorf("term queries on json fields are not supported")
	}
	return nil, fmt.Errorf("unknown field kind %q", kind)
}

func exactTerm(term, field string) bquery.Query {
	tq := bleve.NewTermQuery(term)
	tq.SetField(field)
	return tq
}

func numericEquality(val float64, field string) bquery.Query {
	tru := true
	q := bleve.NewNumericRangeInclusiveQuery(&val, &val, &tru, &tru)
	q.SetField(field)
	return q
}

func rangeQuery(s *schema.Schema, q query.Range) (bquery.Query, error) {
	kind, ok := s.Kind(q.Field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", q.Field)
	}
	if q.Lower == nil && q.Upper == nil {
		// Unbounded on both sides degenerates to a field-exists filter.
		return existsQuery(s, q.Field)
	}

	switch kind {
	case value.KindU64, value.KindI64, value.KindF64, value.KindDate:
		var minVal, maxVal *float64
		if q.Lower != nil {
			f, err := numericBound(kind, *q.Lower)
			if err != nil {
				return nil, err
			}
			minVal = &f
		}
		if q.Upper != nil {
			f, err := numericBound(kind, *q.Upper)
			if err != nil {
				return nil, err
			}
			maxVal = &f
		}
		incLower, incUpper := q.IncludeLower, q.IncludeUpper
		nrq := bleve.NewNumericRangeInclusiveQuery(minVal, maxVal, &incLower, &incUpper)
		nrq.SetField(q.Field)
		return nrq, nil

	case value.KindText, value.KindFacet, value.KindBytes:
		var lower, upper string
		if q.Lower != nil {
			b, err := textBound(kind, *q.Lower)
			if err != nil {
				return nil, err
			}
			lower = b
		}
		if q.Upper != nil {
			b, err := textBound(kind, *q.Upper)
			if err != nil {
				return nil, err
			}
			upper = b
		}
		incLower, incUpper := q.IncludeLower, q.IncludeUpper
		trq := bleve.NewTermRangeInclusiveQuery(lower, upper, &incLower, &incUpper)
		trq.SetField(q.Field)
		return trq, nil
	}
	return nil, fmt.Errorf("range queries are not supported on %s fields", kind)
}

func numericBound(kind value.Kind, v value.FieldValue) (float64, error) {
	if v.Kind() != kind {
		return 0, fmt.Errorf("range bound kind %s does not match field kind %s", v.Kind(), kind)
	}
	switch kind {
	case value.KindU64:
		return float64(v.U64()), nil
	case value.KindI64:
		return float64(v.I64()), nil
	case value.KindF64:
		return v.F64(), nil
	case value.KindDate:
		return float64(v.Micros()), nil
	}
	return 0, fmt.Errorf("not a numeric kind: %s", kind)
}

func textBound(kind value.Kind, v value.FieldValue) (string, error) {
	if v.Kind() != kind {
		return "", fmt.Errorf("range bound kind %s does not match field kind %s", v.Kind(), kind)
	}
	switch kind {
	case value.KindText:
		return v.Text(), nil
	case value.KindFacet:
		return v.Facet(), nil
	case value.KindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	}
	return "", fmt.Errorf("not a text kind: %s", kind)
}

// existsQuery matches documents with at least one indexed value in the
// field: an unbounded numeric range for numeric kinds, a wildcard for
// term-based kinds, and a true-or-false disjunction for booleans.
func existsQuery(s *schema.Schema, field string) (bquery.Query, error) {
	kind, ok := s.Kind(field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	switch kind {
	case value.KindU64, value.KindI64, value.KindF64, value.KindDate:
		minVal, maxVal := math.Inf(-1), math.Inf(1)
		tru := true
		nrq := bleve.NewNumericRangeInclusiveQuery(&minVal, &maxVal, &tru, &tru)
		nrq.SetField(field)
		return nrq, nil
	case value.KindBool:
		t := bleve.NewBoolFieldQuery(true)
		t.SetField(field)
		f := bleve.NewBoolFieldQuery(false)
		f.SetField(field)
		return bleve.NewDisjunctionQuery(t, f), nil
	default:
		wq := bleve.NewWildcardQuery("*")
		wq.SetField(field)
		return wq, nil
	}
}

// queryStringQuery realizes free-text search as a disjunction of per-field
// match queries so fuzzy opt-ins apply per field. With no default fields
// the text goes to bleve's query-string grammar unchanged.
func queryStringQuery(q query.QueryString) bquery.Query {
	if len(q.DefaultFields) == 0 {
		return bleve.NewQueryStringQuery(q.Query)
	}

	fuzzy := make(map[string]query.FuzzyField, len(q.FuzzyFields))
	for _, ff := range q.FuzzyFields {
		fuzzy[ff.Field] = ff
	}

	subs := make([]bquery.Query, 0, len(q.DefaultFields))
	for _, field := range q.DefaultFields {
		mq := bleve.NewMatchQuery(q.Query)
		mq.SetField(field)
		if ff, ok := fuzzy[field]; ok {
			mq.SetFuzziness(int(ff.Distance))
		}
		subs = append(subs, mq)
	}
	if len(subs) == 1 {
		return subs[0]
	}
	return bleve.NewDisjunctionQuery(subs...)
}
