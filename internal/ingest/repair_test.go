package ingest

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "plain", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", raw: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "upper case fence", raw: "```JSON {\"a\":1} ```", want: `{"a":1}`},
		{name: "prose", raw: "Here you go: {\"a\":1} hope it helps", want: `{"a":1}`},
		{name: "no object", raw: "  nothing here  ", want: "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestExtractObject(t *testing.T) {
	obj, ok := ExtractObject(`say {"a":"}{","b":{"c":1}} and {"d":2}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, obj)

	_, ok = ExtractObject(`{"open":`)
	assert.False(t, ok)

	_, ok = ExtractObject("no braces")
	assert.False(t, ok)
}

func TestRepair_ProducesValidJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "trailing comma in array", in: `{"blocks":[{"x":1},{"x":2},]}`},
		{name: "trailing comma in object", in: `{"name":"a","blocks":[],}`},
		{name: "missing closers", in: `{"name":"a","blocks":[{"x":1}`},
		{name: "truncated element", in: `{"name":"a","blocks":[{"x":1},{"x":2,"y"`},
		{name: "truncated inside string", in: `{"name":"a","blocks":[{"x":1,"material":"STO`},
		{name: "truncated after root field", in: `{"name":"a","description":"unfinished`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Repair(tt.in)
			assert.True(t, json.Valid([]byte(out)), "repaired: %s", out)
		})
	}
}

func TestRepair_KeepsCompleteVoxels(t *testing.T) {
	out := Repair(`{"name":"a","blocks":[{"x":1,"y":0,"z":0,"material":"STONE"},{"x":2,"y`)
	assert.Equal(t, `{"name":"a","blocks":[{"x":1,"y":0,"z":0,"material":"STONE"}]}`, out)
}

func TestRepair_BalancedInputUnchanged(t *testing.T) {
	in := `{"name":"a","blocks":[{"x":1}]}`
	assert.Equal(t, in, Repair(in))
}

func TestIsSuspect(t *testing.T) {
	assert.False(t, IsSuspect(""))
	assert.False(t, IsSuspect(`{"a":[1,2]}`))
	assert.True(t, IsSuspect(`{"a":[1,2]`))
	assert.True(t, IsSuspect(`{"a":[1,2,]}`))
	assert.True(t, IsSuspect(`{"a":"open`))
	assert.False(t, IsSuspect(`{"a":"[,]"}`), "brackets inside strings are ignored")
}
