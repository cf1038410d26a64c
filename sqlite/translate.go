package sqlite

import (
	"fmt"
	"strings"

	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// condition is one SQL predicate over the documents alias "d", together
// with its bind arguments.
type condition struct {
	sql  string
	args []any
}

func matchNone() condition { return condition{sql: "0"} }
func matchAll() condition  { return condition{sql: "1"} }

// translate lowers a query into a predicate selecting docids from the
// documents table. Full-text variants are expressed through the fts
// virtual table; structured variants go through field_values.
func translate(s *schema.Schema, q query.Query) (condition, error) {
	switch v := q.(type) {
	case query.All:
		return matchAll(), nil
	case query.Empty:
		return matchNone(), nil
	case query.Term:
		return termCondition(s, v.Field, v.Value)
	case query.TermSet:
		return termSetCondition(s, v)
	case query.Boolean:
		return booleanCondition(s, v)
	case query.Phrase:
		if len(v.Terms) < 2 {
			return condition{}, fmt.Errorf("phrase query requires at least two terms")
		}
		return ftsCondition(s, phraseExpr(v.Field, v.Terms, v.Slop, false))
	case query.PhrasePrefix:
		if len(v.Terms) == 0 {
			return condition{}, fmt.Errorf("phrase prefix query requires at least one term")
		}
		return ftsCondition(s, phraseExpr(v.Field, v.Terms, nil, true))
	case query.Range:
		return rangeCondition(s, v)
	case query.Regex:
		return regexCondition(s, v)
	case query.Exists:
		return existsCondition(v.Field), nil
	case query.Boost:
		// Boosting only reweights scores; as a filter the inner
		// query decides membership.
		return translate(s, v.Query)
	case query.ConstScore:
		return translate(s, v.Query)
	case query.DisjunctionMax:
		return disjunctionCondition(s, v)
	case query.QueryString:
		return queryStringCondition(s, v)
	case query.Fuzzy:
		return condition{}, fmt.Errorf("fuzzy queries are not supported by the sqlite engine")
	case nil:
		return condition{}, fmt.Errorf("query is nil")
	default:
		return condition{}, fmt.Errorf("unsupported query type %T", q)
	}
}

// termCondition matches one exact value on a field, using the same
// transport conventions as document indexing: text-like kinds compare
// on text_value, numeric-like kinds on num_value.
func termCondition(s *schema.Schema, field string, val value.FieldValue) (condition, error) {
	kind, ok := s.Kind(field)
	if !ok {
		return condition{}, fmt.Errorf("unknown field %q", field)
	}
	if kind != val.Kind() {
		return condition{}, fmt.Errorf("field %q is %s, term value is %s", field, kind, val.Kind())
	}
	switch kind {
	case value.KindText, value.KindFacet, value.KindBytes:
		return condition{
			sql:  "EXISTS (SELECT 1 FROM field_values v WHERE v.docid = d.docid AND v.name = ? AND v.text_value = ?)",
			args: []any{field, textForTerm(val)},
		}, nil
	case value.KindU64, value.KindI64, value.KindF64, value.KindBool, value.KindDate:
		return condition{
			sql:  "EXISTS (SELECT 1 FROM field_values v WHERE v.docid = d.docid AND v.name = ? AND v.num_value = ?)",
			args: []any{field, numForTerm(val)},
		}, nil
	default:
		return condition{}, fmt.Errorf("field %q: term queries are not supported on %s fields", field, kind)
	}
}

func termSetCondition(s *schema.Schema, q query.TermSet) (condition, error) {
	if len(q.Terms) == 0 {
		return matchNone(), nil
	}
	parts := make([]condition, 0, len(q.Terms))
	for _, t := range q.Terms {
		c, err := termCondition(s, t.Field, t.Value)
		if err != nil {
			return condition{}, err
		}
		parts = append(parts, c)
	}
	return anyOf(parts), nil
}

// booleanCondition applies occur semantics as a filter: must clauses
// all hold, must_not clauses all fail, and should clauses only decide
// membership when no must clause is present.
func booleanCondition(s *schema.Schema, q query.Boolean) (condition, error) {
	var musts, shoulds, nots []condition
	for _, cl := range q.Clauses {
		c, err := translate(s, cl.Query)
		if err != nil {
			return condition{}, err
		}
		switch cl.Occur {
		case query.OccurMust:
			musts = append(musts, c)
		case query.OccurShould:
			shoulds = append(shoulds, c)
		case query.OccurMustNot:
			nots = append(nots, c)
		default:
			return condition{}, fmt.Errorf("unknown occur %q", cl.Occur)
		}
	}
	if len(musts) == 0 && len(shoulds) == 0 && len(nots) == 0 {
		return matchNone(), nil
	}

	var out condition
	switch {
	case len(musts) > 0:
		out = allOf(musts)
	case len(shoulds) > 0:
		out = anyOf(shoulds)
	default:
		// Pure negation still needs a base set to subtract from.
		out = matchAll()
	}
	for _, n := range nots {
		out.sql = fmt.Sprintf("(%s AND NOT %s)", out.sql, n.sql)
		out.args = append(out.args, n.args...)
	}
	return out, nil
}

func rangeCondition(s *schema.Schema, q query.Range) (condition, error) {
	kind, ok := s.Kind(q.Field)
	if !ok {
		return condition{}, fmt.Errorf("unknown field %q", q.Field)
	}
	if q.Lower == nil && q.Upper == nil {
		return existsCondition(q.Field), nil
	}

	column := "num_value"
	bind := numForTerm
	switch kind {
	case value.KindText, value.KindFacet, value.KindBytes:
		column = "text_value"
		bind = func(v value.FieldValue) any { return textForTerm(v) }
	case value.KindU64, value.KindI64, value.KindF64, value.KindBool, value.KindDate:
	default:
		return condition{}, fmt.Errorf("field %q: range queries are not supported on %s fields", q.Field, kind)
	}

	cmp := []string{"v.name = ?"}
	args := []any{q.Field}
	if q.Lower != nil {
		if q.Lower.Kind() != kind {
			return condition{}, fmt.Errorf("field %q is %s, lower bound is %s", q.Field, kind, q.Lower.Kind())
		}
		op := ">"
		if q.IncludeLower {
			op = ">="
		}
		cmp = append(cmp, fmt.Sprintf("v.%s %s ?", column, op))
		args = append(args, bind(*q.Lower))
	}
	if q.Upper != nil {
		if q.Upper.Kind() != kind {
			return condition{}, fmt.Errorf("field %q is %s, upper bound is %s", q.Field, kind, q.Upper.Kind())
		}
		op := "<"
		if q.IncludeUpper {
			op = "<="
		}
		cmp = append(cmp, fmt.Sprintf("v.%s %s ?", column, op))
		args = append(args, bind(*q.Upper))
	}
	return condition{
		sql:  fmt.Sprintf("EXISTS (SELECT 1 FROM field_values v WHERE v.docid = d.docid AND %s)", strings.Join(cmp, " AND ")),
		args: args,
	}, nil
}

// regexCondition relies on the regexp function registered on the
// connection; patterns use Go regexp syntax and must match the whole
// stored token to mirror engine term semantics.
func regexCondition(s *schema.Schema, q query.Regex) (condition, error) {
	kind, ok := s.Kind(q.Field)
	if !ok {
		return condition{}, fmt.Errorf("unknown field %q", q.Field)
	}
	switch kind {
	case value.KindText, value.KindFacet, value.KindBytes:
	default:
		return condition{}, fmt.Errorf("field %q: regex queries are not supported on %s fields", q.Field, kind)
	}
	return condition{
		sql:  "EXISTS (SELECT 1 FROM field_values v WHERE v.docid = d.docid AND v.name = ? AND v.text_value REGEXP ?)",
		args: []any{q.Field, "^(?:" + q.Pattern + ")$"},
	}, nil
}

func existsCondition(field string) condition {
	return condition{
		sql:  "EXISTS (SELECT 1 FROM field_values v WHERE v.docid = d.docid AND v.name = ?)",
		args: []any{field},
	}
}

func disjunctionCondition(s *schema.Schema, q query.DisjunctionMax) (condition, error) {
	if len(q.Queries) == 0 {
		return matchNone(), nil
	}
	parts := make([]condition, 0, len(q.Queries))
	for _, sub := range q.Queries {
		c, err := translate(s, sub)
		if err != nil {
			return condition{}, err
		}
		parts = append(parts, c)
	}
	return anyOf(parts), nil
}

func ftsCondition(s *schema.Schema, expr string) (condition, error) {
	if expr == "" {
		return matchNone(), nil
	}
	return condition{
		sql:  "d.docid IN (SELECT rowid FROM search WHERE search MATCH ?)",
		args: []any{expr},
	}, nil
}

func queryStringCondition(s *schema.Schema, q query.QueryString) (condition, error) {
	expr := queryStringExpr(q.Query, q.DefaultFields)
	return ftsCondition(s, expr)
}

// phraseExpr renders an fts5 phrase, optionally column-restricted and
// with slop rendered as a NEAR group. A trailing wildcard makes the
// last term a prefix.
func phraseExpr(field string, terms []string, slop *uint32, prefix bool) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = ftsToken(t)
	}
	var body string
	switch {
	case slop != nil && *slop > 0 && len(quoted) > 1:
		body = fmt.Sprintf("NEAR(%s, %d)", strings.Join(quoted, " "), *slop)
	case prefix:
		body = `"` + strings.Join(terms, " ") + `" *`
	default:
		body = `"` + strings.Join(terms, " ") + `"`
	}
	if field != "" {
		return field + " : " + body
	}
	return body
}

// queryStringExpr renders free text as a disjunction of tokens over the
// default fields. With no default fields every indexed column is
// searched.
func queryStringExpr(text string, fields []string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = ftsToken(t)
	}
	body := strings.Join(quoted, " OR ")
	if len(fields) > 0 {
		return "{" + strings.Join(fields, " ") + "} : (" + body + ")"
	}
	return "(" + body + ")"
}

// ftsToken quotes one term for fts5 so punctuation and keywords are
// matched literally.
func ftsToken(t string) string {
	return `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
}

func allOf(parts []condition) condition { return joinConditions(parts, " AND ") }
func anyOf(parts []condition) condition { return joinConditions(parts, " OR ") }

func joinConditions(parts []condition, sep string) condition {
	if len(parts) == 1 {
		return parts[0]
	}
	sqls := make([]string, len(parts))
	var args []any
	for i, p := range parts {
		sqls[i] = p.sql
		args = append(args, p.args...)
	}
	return condition{sql: "(" + strings.Join(sqls, sep) + ")", args: args}
}
