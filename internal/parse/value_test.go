package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueUnmarshalShapes(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{`null`, Value{Kind: Null}},
		{`true`, BoolValue(true)},
		{`12.5`, NumberValue(12.5)},
		{`"Classic"`, StringValue("Classic")},
		{`[1,2,3]`, NumbersValue(1, 2, 3)},
		{`[]`, NumbersValue()},
	}
	for _, tc := range cases {
		var v Value
		require.NoError(t, v.UnmarshalJSON([]byte(tc.in)), tc.in)
		require.Equal(t, tc.want, v, tc.in)
	}
}

func TestValueRejectsObjects(t *testing.T) {
	var v Value
	require.Error(t, v.UnmarshalJSON([]byte(`{"x":1}`)))
	require.Error(t, v.UnmarshalJSON([]byte(`["a","b"]`)))
}

func TestValueRoundTrip(t *testing.T) {
	for _, in := range []string{`null`, `false`, `42`, `"hi"`, `[1,2]`} {
		var v Value
		require.NoError(t, v.UnmarshalJSON([]byte(in)))
		require.Equal(t, in, v.String())
	}
}

func TestValueInsideMap(t *testing.T) {
	var m map[string]Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":"x","c":[2,3],"d":null}`), &m))
	require.Equal(t, NumberValue(1), m["a"])
	require.Equal(t, StringValue("x"), m["b"])
	require.Equal(t, NumbersValue(2, 3), m["c"])
	require.Equal(t, Value{Kind: Null}, m["d"])
}
