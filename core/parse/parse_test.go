package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTolerantJSONValid(t *testing.T) {
	value, err := TolerantJSON(`{"name": "test", "count": 2}`)
	require.NoError(t, err)

	record, isMap := value.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "test", record["name"])
	assert.Equal(t, float64(2), record["count"])
}

func TestTolerantJSONRepairsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "single quotes", input: `{'name': 'test'}`},
		{name: "unquoted keys", input: `{name: "test"}`},
		{name: "trailing comma", input: `{"name": "test",}`},
		{name: "code fence", input: "```json\n{\"name\": \"test\"}\n```"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, err := TolerantJSON(test.input)
			require.NoError(t, err)

			record, isMap := value.(map[string]any)
			require.True(t, isMap)
			assert.Equal(t, "test", record["name"])
		})
	}
}

func TestTolerantJSONEmpty(t *testing.T) {
	_, err := TolerantJSON("   ")
	assert.Error(t, err)
}

func TestTolerantJSONAs(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	parsed, err := TolerantJSONAs[payload](`{'name': 'test', 'count': 3}`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "test", Count: 3}, parsed)
}

func TestCompactJSON(t *testing.T) {
	encoded, err := CompactJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, encoded)
}

func TestCompactJSONRoundTrip(t *testing.T) {
	encoded, err := CompactJSON([]any{"x", float64(2)})
	require.NoError(t, err)

	value, err := TolerantJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", float64(2)}, value)
}
