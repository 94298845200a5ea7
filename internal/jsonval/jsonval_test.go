package jsonval

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestEqual_NumericUnification(t *testing.T) {
	// ojg parses whole numbers as int64, encoding/json as float64; both
	// spellings of the same document must compare equal.
	assert.True(t, Equal(int64(42), float64(42)))
	assert.True(t, Equal(float64(0), int64(0)))
	assert.False(t, Equal(int64(42), float64(42.5)))
	assert.False(t, Equal(int64(1), "1"))
}

func TestEqual_Structures(t *testing.T) {
	a := mustParse(t, `{"x": [1, 2, {"y": null}], "z": "s"}`)
	b := map[string]any{
		"x": []any{float64(1), float64(2), map[string]any{"y": nil}},
		"z": "s",
	}
	assert.True(t, Equal(a, b))

	assert.False(t, Equal(a, mustParse(t, `{"x": [1, 2, {"y": null}]}`)))
	assert.False(t, Equal(mustParse(t, `[1, 2]`), mustParse(t, `[2, 1]`)))
	assert.False(t, Equal(mustParse(t, `{"a": 1}`), mustParse(t, `{"b": 1}`)))
}

func TestCopy_Independence(t *testing.T) {
	orig := mustParse(t, `{"nested": {"list": [1, 2, 3]}}`)
	dup := Copy(orig)
	require.True(t, Equal(orig, dup))

	dup.(map[string]any)["nested"].(map[string]any)["list"].([]any)[0] = int64(99)
	assert.True(t, Equal(orig, mustParse(t, `{"nested": {"list": [1, 2, 3]}}`)),
		"mutating the copy must not affect the original")
}

func TestSaveAndParse_RoundTrip(t *testing.T) {
	fs := memfs.New()
	doc := mustParse(t, `{"title": "x", "n": 3, "ok": true}`)
	require.NoError(t, Save(fs, "out/doc.json", doc))

	data, err := util.ReadFile(fs, "out/doc.json")
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, Equal(doc, back))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"unterminated": `))
	assert.Error(t, err)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("http://example.com/schema.json"))
	assert.True(t, IsURL("https://example.com/schema.json"))
	assert.False(t, IsURL("local.schema.json"))
	assert.False(t, IsURL("httpx://nope"))
}

func TestSchemaRefs_CollectsAndStripsFragments(t *testing.T) {
	doc := mustParse(t, `{
		"type": "object",
		"properties": {
			"a": {"$ref": "other.schema.json"},
			"b": {"$ref": "other.schema.json#/definitions/x"},
			"c": {"items": {"$ref": "third.schema.json"}},
			"d": {"$ref": "#/definitions/local"}
		}
	}`)
	assert.Equal(t, []string{"other.schema.json", "third.schema.json"}, SchemaRefs(doc))
}

func TestSchemaRefs_NoRefs(t *testing.T) {
	assert.Empty(t, SchemaRefs(mustParse(t, `{"type": "string"}`)))
	assert.Empty(t, SchemaRefs(true))
}
