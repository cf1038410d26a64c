package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tafuta/tafuta/core/value"
)

type article struct {
	ID       string    `search:"id,id"`
	Title    string    `search:"title"`
	Body     string    `search:"body,text,tokenizer=en_stem,nostored"`
	Score    float64   `search:"score,f64,fast"`
	Views    uint64    `search:"views"`
	Draft    bool      `search:"draft"`
	Added    time.Time `search:"added,date,precision=microseconds"`
	Tags     []string  `search:"tags,facet"`
	Checksum []byte    `search:"checksum,bytes"`
	Summary  *string   `search:"summary,text"`
	Internal string    `search:"-"`
	Skipped  string
}

func TestExtractArticle(t *testing.T) {
	s, err := Extract(article{})
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())

	tests := []struct {
		field string
		kind  value.Kind
	}{
		{"id", value.KindText},
		{"title", value.KindText},
		{"body", value.KindText},
		{"score", value.KindF64},
		{"views", value.KindU64},
		{"draft", value.KindBool},
		{"added", value.KindDate},
		{"tags", value.KindFacet},
		{"checksum", value.KindBytes},
		{"summary", value.KindText},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			kind, ok := s.Kind(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}

	_, ok := s.Field("Internal")
	assert.False(t, ok)
	_, ok = s.Field("Skipped")
	assert.False(t, ok)
}

func TestExtractAppliesOptions(t *testing.T) {
	s, err := Extract(article{})
	require.NoError(t, err)

	id, ok := s.Field("id")
	require.True(t, ok)
	require.NotNil(t, id.Text)
	assert.Equal(t, TokenizerRaw, id.Text.Tokenizer)
	assert.True(t, id.Text.Fast)

	body, ok := s.Field("body")
	require.True(t, ok)
	require.NotNil(t, body.Text)
	assert.Equal(t, TokenizerEnStem, body.Text.Tokenizer)
	assert.False(t, body.Text.Stored)

	score, ok := s.Field("score")
	require.True(t, ok)
	require.NotNil(t, score.Numeric)
	assert.True(t, score.Numeric.Fast)

	added, ok := s.Field("added")
	require.True(t, ok)
	require.NotNil(t, added.Date)
	assert.Equal(t, PrecisionMicroseconds, added.Date.Precision)
}

func TestExtractIsDeterministic(t *testing.T) {
	first, err := Extract(article{})
	require.NoError(t, err)
	second, err := Extract(&article{})
	require.NoError(t, err)
	assert.Equal(t, first.Fields(), second.Fields())
}

func TestDescribeCachesPerType(t *testing.T) {
	a, err := Describe(timeLessType())
	require.NoError(t, err)
	b, err := Describe(timeLessType())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDescribeFieldMetadata(t *testing.T) {
	info, err := Describe(timeLessType())
	require.NoError(t, err)

	byName := make(map[string]FieldInfo)
	for _, f := range info.Fields {
		byName[f.Name] = f
	}

	assert.False(t, byName["name"].Slice)
	assert.False(t, byName["name"].Optional)
	assert.True(t, byName["tags"].Slice)
	assert.True(t, byName["note"].Optional)
	// []byte is one bytes value, not a repeated field.
	assert.False(t, byName["blob"].Slice)
}

type flatDoc struct {
	Name string   `search:"name"`
	Tags []string `search:"tags,facet"`
	Note *string  `search:"note"`
	Blob []byte   `search:"blob"`
}

func timeLessType() reflect.Type { return reflect.TypeOf(flatDoc{}) }

func TestExtractErrors(t *testing.T) {
	type unannotated struct {
		Name string
	}
	type untaggedName struct {
		Name string `search:",text"`
	}
	type badKind struct {
		Name string `search:"name,vector"`
	}
	type kindMismatch struct {
		Count string `search:"count,u64"`
	}
	type duplicate struct {
		A string `search:"name"`
		B string `search:"name"`
	}
	type badOption struct {
		Name string `search:"name,text,precision=seconds"`
	}

	tests := []struct {
		name     string
		template any
	}{
		{"not_a_struct", 42},
		{"no_tagged_fields", unannotated{}},
		{"empty_field_name", untaggedName{}},
		{"unknown_kind", badKind{}},
		{"kind_type_mismatch", kindMismatch{}},
		{"duplicate_names", duplicate{}},
		{"option_kind_mismatch", badOption{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.template)
			require.Error(t, err)
			var serr *Error
			assert.ErrorAs(t, err, &serr)
		})
	}
}
