package jsonld

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) Node {
	t.Helper()
	n, err := Parse(text)
	require.NoError(t, err)
	return n
}

func TestNodeKinds(t *testing.T) {
	n := mustParse(t, `{"o":{"a":1},"l":[1,"x"],"s":"hi","n":2.5,"b":true,"z":null}`)

	assert.Equal(t, KindObject, n.Kind())
	assert.Equal(t, KindObject, n.Get("o").Kind())
	assert.Equal(t, KindList, n.Get("l").Kind())
	assert.Equal(t, KindString, n.Get("s").Kind())
	assert.Equal(t, KindNumber, n.Get("n").Kind())
	assert.Equal(t, KindBool, n.Get("b").Kind())
	assert.Equal(t, KindNull, n.Get("z").Kind())
	assert.Equal(t, KindAbsent, n.Get("missing").Kind())
	assert.Equal(t, KindAbsent, n.Get("s").Get("deeper").Kind())
	assert.Equal(t, "absent", Absent.Kind().String())
}

func TestNodeAccessorsAreTypeChecked(t *testing.T) {
	n := mustParse(t, `{"s":"hi","l":[1,2,3]}`)

	_, ok := n.Get("l").Str()
	assert.False(t, ok)
	assert.Nil(t, n.Get("s").Items())
	assert.Len(t, n.Get("l").Items(), 3)
	assert.Equal(t, 3, n.Get("l").Len())
	assert.Equal(t, 2, n.Len())
}

func TestNodeNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{`4`, 4, true},
		{`4.5`, 4.5, true},
		{`"3"`, 3, true},
		{`"1,250,000"`, 1250000, true},
		{`" $985,000 "`, 985000, true},
		{`"four"`, 0, false},
		{`""`, 0, false},
		{`true`, 0, false},
		{`null`, 0, false},
		{`{"value":3}`, 0, false},
		{`"NaN"`, 0, false},
		{`"Infinity"`, 0, false},
		{`"-Inf"`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := mustParse(t, tt.in).Number()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNodeTruthy(t *testing.T) {
	n := mustParse(t, `{"zero":0,"one":1,"empty":"","s":"x","f":false,"t":true,"el":[],"eo":{},"z":null}`)

	assert.False(t, n.Get("zero").Truthy())
	assert.True(t, n.Get("one").Truthy())
	assert.False(t, n.Get("empty").Truthy())
	assert.True(t, n.Get("s").Truthy())
	assert.False(t, n.Get("f").Truthy())
	assert.True(t, n.Get("t").Truthy())
	assert.False(t, n.Get("el").Truthy())
	assert.False(t, n.Get("eo").Truthy())
	assert.False(t, n.Get("z").Truthy())
	assert.False(t, n.Get("nope").Truthy())
}

func TestNodeTypes(t *testing.T) {
	assert.Equal(t, []string{"House"}, mustParse(t, `{"@type":"House"}`).Types())
	assert.Equal(t, []string{"Thing", "Apartment"}, mustParse(t, `{"@type":["Thing",7,"Apartment"]}`).Types())
	assert.Empty(t, mustParse(t, `{"name":"x"}`).Types())
}

func TestNodeFirstAndText(t *testing.T) {
	n := mustParse(t, `{"unitCode":null,"unitText":"sqm","value":450}`)

	assert.Equal(t, "sqm", n.First("unitCode", "unitText").Text())
	assert.Equal(t, "450", n.Get("value").Text())
	assert.True(t, n.First("a", "b").IsAbsent())
}

func TestNodeMarshalJSON(t *testing.T) {
	n := mustParse(t, `{"@type":"House","numberOfBedrooms":4}`)
	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"@type":"House","numberOfBedrooms":4}`, string(out))

	out, err = json.Marshal(Absent)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
