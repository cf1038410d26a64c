package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tafuta/tafuta/core/value"
)

func TestBuilderBuild(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddIDField("id"))
	require.NoError(t, b.AddTextField("title", DefaultTextOptions()))
	require.NoError(t, b.AddF64Field("score", DefaultNumericOptions()))
	require.NoError(t, b.AddDateField("added", DefaultDateOptions()))
	require.NoError(t, b.AddFacetField("category", DefaultFacetOptions()))

	s := b.Build()
	assert.Equal(t, 5, s.Len())

	names := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "title", "score", "added", "category"}, names)

	kind, ok := s.Kind("score")
	assert.True(t, ok)
	assert.Equal(t, value.KindF64, kind)

	_, ok = s.Field("missing")
	assert.False(t, ok)
}

func TestBuilderRejectsDuplicateNames(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddTextField("title", DefaultTextOptions()))

	err := b.AddU64Field("title", DefaultNumericOptions())
	require.Error(t, err)

	var serr *Error
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, "title", serr.Field)
}

func TestBuilderRejectsEmptyName(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, b.AddTextField("", DefaultTextOptions()))
}

func TestIDOptionsAreExactMatch(t *testing.T) {
	o := IDOptions()
	assert.Equal(t, TokenizerRaw, o.Tokenizer)
	assert.Equal(t, RecordBasic, o.Record)
	assert.True(t, o.Stored)
	assert.True(t, o.Fast)
}

func TestBuildSnapshotIsStable(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddTextField("title", DefaultTextOptions()))
	s := b.Build()

	// Later additions must not leak into an already built schema.
	require.NoError(t, b.AddU64Field("count", DefaultNumericOptions()))
	assert.Equal(t, 1, s.Len())
}
