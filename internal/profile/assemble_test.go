package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/jsonval"
	"github.com/agentic-research/depot/internal/schema"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newAssembler(t *testing.T, dir string) *Assembler {
	t.Helper()
	return NewAssembler(zap.NewNop(), schema.NewStore(zap.NewNop(), dir))
}

func TestAssemble_Minimal(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	p, err := a.Assemble("minimal", mustParse(t, `{
		"title": "Minimal",
		"rootSchema": true,
		"fallbackSchema": true,
		"patterns": []
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Minimal", p.Title)
	assert.True(t, p.RootSchema.IsTrivialTrue())
	assert.True(t, p.FallbackSchema.IsTrivialTrue())
	assert.Empty(t, p.Patterns)
	assert.Equal(t, true, p.Schemas[schema.TrivialTrueName])
	assert.Equal(t, false, p.Schemas[schema.TrivialFalseName])
}

func TestAssemble_TitleFallsBackToName(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	p, err := a.Assemble("unnamed", mustParse(t, `{
		"title": null,
		"rootSchema": true,
		"fallbackSchema": false,
		"patterns": []
	}`))
	require.NoError(t, err)
	assert.Equal(t, "unnamed", p.Title)
}

func TestAssemble_EmbedsReferencedSchemas(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.schema.json", `{"type": "object", "properties": {"b": {"$ref": "b.schema.json"}}}`)
	writeFile(t, dir, "b.schema.json", `{"type": "string"}`)

	a := newAssembler(t, dir)
	p, err := a.Assemble("refs", mustParse(t, `{
		"title": "Refs",
		"rootSchema": "a.schema.json",
		"fallbackSchema": true,
		"patterns": []
	}`))
	require.NoError(t, err)

	// Both the directly referenced schema and its transitive dependency are
	// embedded.
	assert.Contains(t, p.Schemas, "a.schema.json")
	assert.Contains(t, p.Schemas, "b.schema.json")
	assert.True(t, jsonval.Equal(mustParse(t, `{"type": "string"}`), p.Schemas["b.schema.json"]))
}

func TestAssemble_CyclicRefsTerminate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.schema.json", `{"properties": {"y": {"$ref": "y.schema.json"}}}`)
	writeFile(t, dir, "y.schema.json", `{"properties": {"x": {"$ref": "x.schema.json"}}}`)

	a := newAssembler(t, dir)
	p, err := a.Assemble("cyclic", mustParse(t, `{
		"title": "Cyclic",
		"rootSchema": "x.schema.json",
		"fallbackSchema": true,
		"patterns": []
	}`))
	require.NoError(t, err)
	assert.Contains(t, p.Schemas, "x.schema.json")
	assert.Contains(t, p.Schemas, "y.schema.json")
}

func TestAssemble_EmbeddedShadowsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.schema.json", `{"type": "string"}`)

	a := newAssembler(t, dir)
	p, err := a.Assemble("shadow", mustParse(t, `{
		"title": "Shadow",
		"rootSchema": "a.schema.json",
		"fallbackSchema": true,
		"patterns": [],
		"schemas": {"a.schema.json": {"type": "integer"}}
	}`))
	require.NoError(t, err)
	assert.True(t, jsonval.Equal(mustParse(t, `{"type": "integer"}`), p.Schemas["a.schema.json"]),
		"the embedded body wins over the same-named file")
}

func TestAssemble_PatternRules(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	p, err := a.Assemble("patterns", mustParse(t, `{
		"title": "Patterns",
		"rootSchema": true,
		"fallbackSchema": true,
		"patterns": [
			{"pattern": ".*\\.txt", "useSchema": true},
			{"pattern": "secret\\..*", "useSchema": false}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, p.Patterns, 2)
	assert.True(t, p.Patterns[0].UseSchema.IsTrivialTrue())
	assert.True(t, p.Patterns[1].UseSchema.IsTrivialFalse())
}

func TestAssemble_RejectsBadDocuments(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	for name, doc := range map[string]string{
		"missing required": `{"title": "x"}`,
		"unknown key":      `{"title": "x", "rootSchema": true, "fallbackSchema": true, "patterns": [], "extra": 1}`,
		"bad ref type":     `{"title": "x", "rootSchema": 7, "fallbackSchema": true, "patterns": []}`,
		"bad pattern item": `{"title": "x", "rootSchema": true, "fallbackSchema": true, "patterns": [{"pattern": "a"}]}`,
	} {
		_, err := a.Assemble("bad", mustParse(t, doc))
		assert.Error(t, err, name)
	}
}

func TestAssemble_RejectsUncompilablePattern(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	_, err := a.Assemble("badre", mustParse(t, `{
		"title": "x",
		"rootSchema": true,
		"fallbackSchema": true,
		"patterns": [{"pattern": "*[", "useSchema": true}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern")
}

func TestAssemble_RejectsMissingSchemaFile(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	_, err := a.Assemble("missing", mustParse(t, `{
		"title": "x",
		"rootSchema": "nope.schema.json",
		"fallbackSchema": true,
		"patterns": []
	}`))
	assert.Error(t, err)
}

func TestAssemble_RejectsInvalidEmbeddedSchema(t *testing.T) {
	a := newAssembler(t, t.TempDir())
	_, err := a.Assemble("badschema", mustParse(t, `{
		"title": "x",
		"rootSchema": true,
		"fallbackSchema": true,
		"patterns": [],
		"schemas": {"bad.schema.json": {"type": 17}}
	}`))
	assert.Error(t, err)
}

func TestAssembleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "demo.profile.json", `{
		"title": "Demo",
		"rootSchema": true,
		"fallbackSchema": true,
		"patterns": []
	}`)

	a := newAssembler(t, dir)
	p, err := a.AssembleFile(dir, "demo.profile.json")
	require.NoError(t, err)
	assert.Equal(t, "Demo", p.Title)
}
