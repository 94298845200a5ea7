package schema

import (
	"strings"
	"sync"

	"github.com/ohler55/ojg/oj"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentic-research/depot/internal/jsonval"
)

const draft7URL = "http://json-schema.org/draft-07/schema#"

var (
	metaOnce   sync.Once
	metaSchema *jsonschema.Schema
)

// draft7 compiles the embedded draft-7 meta-schema once.
func draft7() *jsonschema.Schema {
	metaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		metaSchema = c.MustCompile(draft7URL)
	})
	return metaSchema
}

// CheckSchema validates that doc is itself a valid draft-7 JSON Schema
// document. Boolean schemas are trivially valid. $refs are not resolved
// here; only the structural shape is checked.
func CheckSchema(doc any) error {
	if _, ok := doc.(bool); ok {
		return nil
	}
	if err := draft7().Validate(doc); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// resourceURL maps a schema name to the URL it is registered under when
// compiling. Plain filenames live in a synthetic scheme so that relative
// $refs between named schemas resolve against each other.
func resourceURL(name string) string {
	if jsonval.IsURL(name) {
		return name
	}
	return "depot:///" + name
}

// mainURL is the compile root; it never collides with a named schema.
const mainURL = "depot:///__main__"

// Validate checks instance against schemaDoc. refs supplies every named
// schema the document may reference (a profile's embedded schema map), so
// validation needs no further lookups. Returns nil when the instance is
// valid, otherwise an error carrying the human-readable failure.
func Validate(instance any, schemaDoc any, refs map[string]any) error {
	// The trivial schemas short-circuit: true accepts everything, false
	// accepts nothing.
	if b, ok := schemaDoc.(bool); ok {
		if b {
			return nil
		}
		return Error.New("schema forbids any content")
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	for name, content := range refs {
		if err := c.AddResource(resourceURL(name), strings.NewReader(oj.JSON(content))); err != nil {
			return Error.New("register schema %q: %v", name, err)
		}
	}
	if err := c.AddResource(mainURL, strings.NewReader(oj.JSON(schemaDoc))); err != nil {
		return Error.Wrap(err)
	}
	sch, err := c.Compile(mainURL)
	if err != nil {
		// Profiles embed only pre-validated schemas, so a compile failure
		// means an unresolvable reference or similar misconfiguration.
		return Error.New("schema does not compile: %v", err)
	}
	if err := sch.Validate(instance); err != nil {
		return Error.Wrap(err)
	}
	return nil
}
