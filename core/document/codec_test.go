package document

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tafuta/tafuta/core/value"
)

type attrs struct {
	Lang  string `json:"lang"`
	Stars int    `json:"stars"`
}

type book struct {
	ID       string    `search:"id,id"`
	Title    string    `search:"title"`
	Pages    uint64    `search:"pages"`
	Rating   float64   `search:"rating,f64,fast"`
	Draft    bool      `search:"draft"`
	Added    time.Time `search:"added,date"`
	Cover    []byte    `search:"cover,bytes"`
	Tags     []string  `search:"tags,facet"`
	Subtitle *string   `search:"subtitle,text"`
	Meta     attrs     `search:"meta,json"`
}

func sampleBook() book {
	sub := "a field guide"
	return book{
		ID:       "1",
		Title:    "Swift and Rust",
		Pages:    320,
		Rating:   9.5,
		Draft:    false,
		Added:    time.UnixMicro(1700000000123456).UTC(),
		Cover:    []byte{0xde, 0xad},
		Tags:     []string{"/lang/swift", "/lang/rust"},
		Subtitle: &sub,
		Meta:     attrs{Lang: "en", Stars: 5},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleBook()
	fields, err := Encode(in)
	require.NoError(t, err)

	var out book
	require.NoError(t, Decode(fields, &out))
	assert.Equal(t, in, out)
}

func TestEncodeFieldPairs(t *testing.T) {
	fields, err := Encode(sampleBook())
	require.NoError(t, err)

	// One pair per scalar, one per array element.
	assert.Len(t, fields, 11)

	grouped := fields.Group()
	assert.Len(t, grouped["tags"], 2)
	assert.True(t, grouped["tags"][0].Equal(value.Facet("/lang/swift")))
	assert.True(t, grouped["tags"][1].Equal(value.Facet("/lang/rust")))
	assert.True(t, grouped["pages"][0].Equal(value.U64(320)))
	assert.True(t, grouped["added"][0].Equal(value.Date(1700000000123456)))
	assert.True(t, grouped["meta"][0].Equal(value.JSON(`{"lang":"en","stars":5}`)))
}

func TestEncodeSkipsNilOptional(t *testing.T) {
	in := sampleBook()
	in.Subtitle = nil
	fields, err := Encode(in)
	require.NoError(t, err)

	_, ok := fields.First("subtitle")
	assert.False(t, ok)

	var out book
	require.NoError(t, Decode(fields, &out))
	assert.Nil(t, out.Subtitle)
}

func TestEncodePointerDocument(t *testing.T) {
	in := sampleBook()
	direct, err := Encode(in)
	require.NoError(t, err)
	viaPointer, err := Encode(&in)
	require.NoError(t, err)
	assert.Equal(t, direct, viaPointer)
}

func TestEncodeNilDocument(t *testing.T) {
	var in *book
	_, err := Encode(in)
	assert.Error(t, err)
}

func TestDecodeEmptyArrayYieldsNil(t *testing.T) {
	in := sampleBook()
	in.Tags = []string{}
	fields, err := Encode(in)
	require.NoError(t, err)

	var out book
	require.NoError(t, Decode(fields, &out))
	// Empty and absent arrays are indistinguishable after encoding.
	assert.Nil(t, out.Tags)
}

func TestDecodeArrayOrder(t *testing.T) {
	tests := []struct {
		name string
		tags []string
	}{
		{"one", []string{"/a"}},
		{"many", []string{"/a/x", "/a/y", "/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleBook()
			in.Tags = tt.tags
			fields, err := Encode(in)
			require.NoError(t, err)

			var out book
			require.NoError(t, Decode(fields, &out))
			assert.Equal(t, tt.tags, out.Tags)
		})
	}
}

type shelf struct {
	Titles []string    `search:"titles,text"`
	Counts []uint64    `search:"counts,u64"`
	Deltas []int64     `search:"deltas,i64"`
	Scores []float64   `search:"scores,f64"`
	Flags  []bool      `search:"flags,bool"`
	Seen   []time.Time `search:"seen,date"`
	Paths  []string    `search:"paths,facet"`
	Blobs  [][]byte    `search:"blobs,bytes"`
	Extras []attrs     `search:"extras,json"`
}

func TestArrayRoundTripPerKind(t *testing.T) {
	tests := []struct {
		name string
		doc  shelf
	}{
		{"empty", shelf{}},
		{"one", shelf{
			Titles: []string{"solo"},
			Counts: []uint64{math.MaxUint64},
			Deltas: []int64{math.MinInt64},
			Scores: []float64{-2.5},
			Flags:  []bool{true},
			Seen:   []time.Time{time.UnixMicro(0).UTC()},
			Paths:  []string{"/a"},
			Blobs:  [][]byte{{0xde, 0xad}},
			Extras: []attrs{{Lang: "en", Stars: 1}},
		}},
		{"many", shelf{
			Titles: []string{"first", "second", "third"},
			Counts: []uint64{0, 1, math.MaxUint64},
			Deltas: []int64{math.MinInt64, -1, math.MaxInt64},
			Scores: []float64{-2.5, 0, 3.25},
			Flags:  []bool{true, false, true},
			Seen: []time.Time{
				time.UnixMicro(-1).UTC(),
				time.UnixMicro(0).UTC(),
				time.UnixMicro(1700000000123456).UTC(),
			},
			Paths:  []string{"/a/x", "/a/y", "/b"},
			Blobs:  [][]byte{{0x00}, {0xde, 0xad}, {0xff}},
			Extras: []attrs{{Lang: "en", Stars: 1}, {Lang: "sw", Stars: 5}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := Encode(tt.doc)
			require.NoError(t, err)

			var out shelf
			require.NoError(t, Decode(fields, &out))
			assert.Equal(t, tt.doc, out)
		})
	}
}

func TestDecodeSkipsMismatchedKinds(t *testing.T) {
	fields := Fields{}.
		Append("id", value.Text("1")).
		Append("title", value.U64(9)).
		Append("title", value.Text("actual title"))

	var out book
	require.NoError(t, Decode(fields, &out))
	// The u64 value under a text name is ignored, not an error.
	assert.Equal(t, "actual title", out.Title)
}

func TestDecodeMissingScalarUsesZeroValue(t *testing.T) {
	fields := Fields{}.Append("id", value.Text("1"))

	out := sampleBook()
	require.NoError(t, Decode(fields, &out))
	assert.Equal(t, "1", out.ID)
	assert.Equal(t, "", out.Title)
	assert.Zero(t, out.Pages)
	assert.True(t, out.Added.IsZero() || out.Added.Equal(time.UnixMicro(0).UTC()))
	assert.Nil(t, out.Subtitle)
}

func TestDecodeMalformedJSONFails(t *testing.T) {
	fields := Fields{}.
		Append("id", value.Text("1")).
		Append("meta", value.JSON(`{"lang":`))

	var out book
	err := Decode(fields, &out)
	require.Error(t, err)

	var derr *Error
	assert.ErrorAs(t, err, &derr)
	assert.Equal(t, "meta", derr.Field)
}

func TestDecodeTargetValidation(t *testing.T) {
	fields := Fields{}.Append("id", value.Text("1"))
	assert.Error(t, Decode(fields, book{}))
	assert.Error(t, Decode(fields, nil))
	var nilOut *book
	assert.Error(t, Decode(fields, nilOut))
}

func TestFieldsHelpers(t *testing.T) {
	fields := Fields{}.
		Append("a", value.Text("x")).
		Append("b", value.U64(1)).
		Append("a", value.Text("y"))

	first, ok := fields.First("a")
	assert.True(t, ok)
	assert.True(t, first.Equal(value.Text("x")))

	_, ok = fields.First("missing")
	assert.False(t, ok)

	grouped := fields.Group()
	assert.Len(t, grouped["a"], 2)
	assert.Len(t, grouped["b"], 1)
}
