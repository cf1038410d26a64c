// Package query defines the search query algebra: a recursive tagged union
// covering term matching, boolean composition, ranges, phrases, fuzzy and
// regex matching, scoring combinators and free-text parsing. Queries are
// immutable trees built once and serialized per search call; the wire form
// is the contract the engine parses.
package query

import (
	"github.com/tafuta/tafuta/core/value"
)

// Query is the closed set of query variants. Each variant is a struct in
// this package; no other implementations exist.
type Query interface {
	isQuery()
}

// Occur is the membership mode of a boolean clause.
type Occur string

// Supported occur modes.
const (
	OccurMust    Occur = "must"
	OccurShould  Occur = "should"
	OccurMustNot Occur = "must_not"
)

// All matches every document.
type All struct{}

// Empty matches no document.
type Empty struct{}

// Term matches documents containing the exact term value in a field. The
// value kind must be compatible with the field's declared kind; the engine
// enforces this, not the client.
type Term struct {
	Field string
	Value value.FieldValue
}

// TermSet is a disjunction over several exact terms. An empty set matches
// nothing.
type TermSet struct {
	Terms []Term
}

// Clause pairs a sub-query with its occur mode inside a Boolean query.
type Clause struct {
	Occur Occur
	Query Query
}

// Boolean composes clauses with must/should/must-not semantics. An empty
// clause list matches nothing.
type Boolean struct {
	Clauses []Clause
}

// Phrase matches an ordered sequence of at least two terms in a text
// field. Slop, when set, allows that many positions of tolerance between
// terms.
type Phrase struct {
	Field string
	Terms []string
	Slop  *uint32
}

// PhrasePrefix matches a phrase whose last term is a prefix. MaxExpansions
// caps how many terms the prefix may expand to.
type PhrasePrefix struct {
	Field         string
	Terms         []string
	MaxExpansions *uint32
}

// Range matches values between two optional bounds. Both bounds nil
// degenerates to a field-exists filter, not a match-all.
type Range struct {
	Field        string
	Lower        *value.FieldValue
	Upper        *value.FieldValue
	IncludeLower bool
	IncludeUpper bool
}

// Regex matches terms against a pattern in the engine's regex dialect.
// Pattern validity is not checked client-side.
type Regex struct {
	Field   string
	Pattern string
}

// Fuzzy matches terms within an edit distance of the given term. Engines
// cap the distance (commonly 2); values beyond the cap are an engine-side
// error.
type Fuzzy struct {
	Field            string
	Term             string
	Distance         uint8
	TransposeCostOne bool
}

// Exists matches documents with at least one value in the field.
type Exists struct {
	Field string
}

// Boost multiplies the scores of a sub-query by a constant factor.
type Boost struct {
	Query  Query
	Factor float32
}

// ConstScore replaces the scores of a sub-query with a constant.
type ConstScore struct {
	Query Query
	Score float32
}

// DisjunctionMax scores each document by the maximum of its sub-query
// scores, plus TieBreaker times the remaining scores when set.
type DisjunctionMax struct {
	Queries    []Query
	TieBreaker *float32
}

// FuzzyField opts a field into fuzzy matching during query-string parsing.
type FuzzyField struct {
	Field            string `json:"field_name"`
	Prefix           bool   `json:"prefix"`
	Distance         uint8  `json:"distance"`
	TransposeCostOne bool   `json:"transpose_cost_one"`
}

// QueryString parses free text against the engine's query grammar, matching
// the default fields, with opt-in per-field fuzzy matching.
type QueryString struct {
	Query         string
	DefaultFields []string
	FuzzyFields   []FuzzyField
}

func (All) isQuery()            {}
func (Empty) isQuery()          {}
func (Term) isQuery()           {}
func (TermSet) isQuery()        {}
func (Boolean) isQuery()        {}
func (Phrase) isQuery()         {}
func (PhrasePrefix) isQuery()   {}
func (Range) isQuery()          {}
func (Regex) isQuery()          {}
func (Fuzzy) isQuery()          {}
func (Exists) isQuery()         {}
func (Boost) isQuery()          {}
func (ConstScore) isQuery()     {}
func (DisjunctionMax) isQuery() {}
func (QueryString) isQuery()    {}
