package value

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsAndAccessors(t *testing.T) {
	assert.Equal(t, "hello", Text("hello").Text())
	assert.Equal(t, uint64(math.MaxUint64), U64(math.MaxUint64).U64())
	assert.Equal(t, int64(-42), I64(-42).I64())
	assert.Equal(t, 3.5, F64(3.5).F64())
	assert.True(t, Bool(true).Bool())
	assert.Equal(t, int64(1700000000000000), Date(1700000000000000).Micros())
	assert.Equal(t, []byte{0, 1, 255}, Bytes([]byte{0, 1, 255}).Bytes())
	assert.Equal(t, "/lang/go", Facet("/lang/go").Facet())
	assert.Equal(t, `{"a":1}`, JSON(`{"a":1}`).JSON())
}

func TestBytesCopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Bytes(src)
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, v.Bytes())

	out := v.Bytes()
	out[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, v.Bytes())
}

func TestDateTimeRoundsToMicroseconds(t *testing.T) {
	tests := []struct {
		name   string
		in     time.Time
		micros int64
	}{
		{"exact", time.UnixMicro(1700000000000000).UTC(), 1700000000000000},
		{"rounds_down", time.UnixMicro(10).Add(400 * time.Nanosecond), 10},
		{"rounds_up", time.UnixMicro(10).Add(600 * time.Nanosecond), 11},
		{"epoch", time.Unix(0, 0).UTC(), 0},
		{"pre_epoch", time.UnixMicro(-5).UTC(), -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DateTime(tt.in)
			assert.Equal(t, KindDate, v.Kind())
			assert.Equal(t, tt.micros, v.Micros())
		})
	}
}

func TestTimeAccessor(t *testing.T) {
	v := Date(1700000000123456)
	assert.Equal(t, time.UnixMicro(1700000000123456).UTC(), v.Time())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  FieldValue
		equal bool
	}{
		{"same_text", Text("a"), Text("a"), true},
		{"different_text", Text("a"), Text("b"), false},
		{"kind_mismatch", Text("1"), U64(1), false},
		{"same_bytes", Bytes([]byte{1, 2}), Bytes([]byte{1, 2}), true},
		{"different_bytes", Bytes([]byte{1, 2}), Bytes([]byte{1, 3}), false},
		{"empty_vs_nil_bytes", Bytes(nil), Bytes([]byte{}), true},
		{"same_date", Date(7), Date(7), true},
		{"u64_vs_i64", U64(7), I64(7), false},
		{"same_bool", Bool(false), Bool(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    FieldValue
	}{
		{"text", Text("quick brown fox")},
		{"empty_text", Text("")},
		{"u64_zero", U64(0)},
		{"u64_max", U64(math.MaxUint64)},
		{"i64_min", I64(math.MinInt64)},
		{"f64_negative", F64(-2.25)},
		{"bool", Bool(true)},
		{"date_epoch", Date(0)},
		{"date_micros", Date(1700000000123456)},
		{"bytes", Bytes([]byte{0, 127, 255})},
		{"empty_bytes", Bytes(nil)},
		{"facet", Facet("/a/b/c")},
		{"json", JSON(`{"k":[1,2]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.v)
			require.NoError(t, err)

			var got FieldValue
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.True(t, tt.v.Equal(got), "round trip changed value: %s != %s", tt.v, got)
		})
	}
}

func TestWireFormat(t *testing.T) {
	tests := []struct {
		name string
		v    FieldValue
		want string
	}{
		{"text", Text("hi"), `{"type":"text","value":"hi"}`},
		{"u64", U64(5), `{"type":"u64","value":5}`},
		{"i64", I64(-5), `{"type":"i64","value":-5}`},
		{"f64", F64(1.5), `{"type":"f64","value":1.5}`},
		{"bool", Bool(true), `{"type":"bool","value":true}`},
		{"bytes", Bytes([]byte{1, 2, 255}), `{"type":"bytes","value":[1,2,255]}`},
		{"facet", Facet("/x"), `{"type":"facet","value":"/x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown_kind", `{"type":"complex","value":1}`},
		{"byte_out_of_range", `{"type":"bytes","value":[256]}`},
		{"negative_byte", `{"type":"bytes","value":[-1]}`},
		{"wrong_value_type", `{"type":"u64","value":"five"}`},
		{"missing_value", `{"type":"text"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v FieldValue
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &v))
		})
	}
}

func TestKindIsValid(t *testing.T) {
	for _, k := range []Kind{KindText, KindU64, KindI64, KindF64, KindBool, KindDate, KindBytes, KindFacet, KindJSON} {
		assert.True(t, k.IsValid(), "kind %q", k)
	}
	assert.False(t, Kind("struct").IsValid())
	assert.False(t, Kind("").IsValid())
}
