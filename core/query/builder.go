package query

import (
	"github.com/tafuta/tafuta/core/value"
)

// Constructors for the common compositions. They keep call sites close to
// the shape of the resulting tree; nothing here validates field names or
// value kinds, which stay an engine concern.

// NewTerm returns an exact term match on field.
func NewTerm(field string, v value.FieldValue) Term {
	return Term{Field: field, Value: v}
}

// NewTermSet returns a disjunction over the given terms.
func NewTermSet(terms ...Term) TermSet {
	return TermSet{Terms: terms}
}

// Must wraps q as a required clause.
func Must(q Query) Clause { return Clause{Occur: OccurMust, Query: q} }

// Should wraps q as an optional, score-contributing clause.
func Should(q Query) Clause { return Clause{Occur: OccurShould, Query: q} }

// MustNot wraps q as an excluding clause.
func MustNot(q Query) Clause { return Clause{Occur: OccurMustNot, Query: q} }

// NewBoolean composes clauses into a boolean query.
func NewBoolean(clauses ...Clause) Boolean {
	return Boolean{Clauses: clauses}
}

// NewPhrase returns an ordered phrase match with no slop.
func NewPhrase(field string, terms ...string) Phrase {
	return Phrase{Field: field, Terms: terms}
}

// WithSlop returns a copy of the phrase allowing n positions of tolerance.
func (q Phrase) WithSlop(n uint32) Phrase {
	q.Slop = &n
	return q
}

// NewPhrasePrefix returns a phrase match whose last term is a prefix.
func NewPhrasePrefix(field string, terms ...string) PhrasePrefix {
	return PhrasePrefix{Field: field, Terms: terms}
}

// WithMaxExpansions returns a copy capping prefix expansion at n terms.
func (q PhrasePrefix) WithMaxExpansions(n uint32) PhrasePrefix {
	q.MaxExpansions = &n
	return q
}

// NewRange returns a range over field with both bounds open. Use the
// From/To modifiers to close them.
func NewRange(field string) Range {
	return Range{Field: field}
}

// From returns a copy with an inclusive (or exclusive) lower bound.
func (q Range) From(v value.FieldValue, inclusive bool) Range {
	q.Lower = &v
	q.IncludeLower = inclusive
	return q
}

// To returns a copy with an inclusive (or exclusive) upper bound.
func (q Range) To(v value.FieldValue, inclusive bool) Range {
	q.Upper = &v
	q.IncludeUpper = inclusive
	return q
}

// NewFuzzy returns an edit-distance term match.
func NewFuzzy(field, term string, distance uint8, transposeCostOne bool) Fuzzy {
	return Fuzzy{Field: field, Term: term, Distance: distance, TransposeCostOne: transposeCostOne}
}

// Boosted wraps q, multiplying its scores by factor.
func Boosted(q Query, factor float32) Boost {
	return Boost{Query: q, Factor: factor}
}

// ConstScored wraps q, replacing its scores with score.
func ConstScored(q Query, score float32) ConstScore {
	return ConstScore{Query: q, Score: score}
}

// NewDisjunctionMax scores by the maximum over sub-queries.
func NewDisjunctionMax(queries ...Query) DisjunctionMax {
	return DisjunctionMax{Queries: queries}
}

// WithTieBreaker returns a copy adding tie times the non-maximal scores.
func (q DisjunctionMax) WithTieBreaker(tie float32) DisjunctionMax {
	q.TieBreaker = &tie
	return q
}

// NewQueryString parses free text against the given default fields.
func NewQueryString(text string, defaultFields ...string) QueryString {
	return QueryString{Query: text, DefaultFields: defaultFields}
}

// WithFuzzyField returns a copy opting field into fuzzy matching.
func (q QueryString) WithFuzzyField(f FuzzyField) QueryString {
	q.FuzzyFields = append(q.FuzzyFields[:len(q.FuzzyFields):len(q.FuzzyFields)], f)
	return q
}
