package profile

import (
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/jsonval"
	"github.com/agentic-research/depot/internal/schema"
)

// profileMetaSchema is the structural shape every raw profile document must
// have before assembly.
const profileMetaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "rootSchema", "fallbackSchema", "patterns"],
  "additionalProperties": false,
  "properties": {
    "title": {"type": ["string", "null"]},
    "description": {"type": "string"},
    "rootSchema": {"$ref": "#/definitions/schemaRef"},
    "fallbackSchema": {"$ref": "#/definitions/schemaRef"},
    "schemas": {"type": "object"},
    "patterns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pattern", "useSchema"],
        "additionalProperties": false,
        "properties": {
          "pattern": {"type": "string"},
          "useSchema": {"$ref": "#/definitions/schemaRef"}
        }
      }
    }
  },
  "definitions": {
    "schemaRef": {"type": ["string", "boolean"]}
  }
}`

var profileMeta = func() any {
	doc, err := jsonval.Parse([]byte(profileMetaSchema))
	if err != nil {
		panic(err)
	}
	return doc
}()

// Assembler builds self-contained profiles, resolving schema references
// through a schema store.
type Assembler struct {
	log   *zap.Logger
	store *schema.Store
}

// NewAssembler creates an assembler over the given store.
func NewAssembler(log *zap.Logger, store *schema.Store) *Assembler {
	return &Assembler{log: log, store: store}
}

// Store exposes the underlying schema store.
func (a *Assembler) Store() *schema.Store { return a.store }

// content resolves a schema reference: trivial sentinels map to their
// boolean, names already embedded in the profile win over the store
// (embedding shadows external lookup, letting profile authors override
// shared schemas locally), everything else loads through the store.
func (a *Assembler) content(ref schema.Ref, embedded map[string]any) (any, error) {
	if !ref.IsTrivialTrue() && !ref.IsTrivialFalse() {
		if body, ok := embedded[ref.String()]; ok {
			return body, nil
		}
	}
	return a.store.Get(ref, false)
}

// Assemble turns a raw profile document into its immutable normal form:
// references normalized, every directly and transitively referenced schema
// embedded. name is used as the title fallback and in error messages.
func (a *Assembler) Assemble(name string, doc any) (*Profile, error) {
	if err := schema.Validate(doc, profileMeta, nil); err != nil {
		return nil, Error.New("invalid profile %q: %v", name, err)
	}
	raw := doc.(map[string]any)

	title, _ := raw["title"].(string)
	if title == "" {
		title = name
	}
	description, _ := raw["description"].(string)

	rootRef, err := schema.RefOf(raw["rootSchema"])
	if err != nil {
		return nil, Error.New("profile %q rootSchema: %v", name, err)
	}
	fallbackRef, err := schema.RefOf(raw["fallbackSchema"])
	if err != nil {
		return nil, Error.New("profile %q fallbackSchema: %v", name, err)
	}

	schemas := map[string]any{
		schema.TrivialTrueName:  true,
		schema.TrivialFalseName: false,
	}
	// Directly embedded schema bodies come first so that they shadow any
	// same-named files in the profile directory.
	if emb, ok := raw["schemas"].(map[string]any); ok {
		for embName, body := range emb {
			if err := schema.CheckSchema(body); err != nil {
				return nil, Error.New("profile %q embeds invalid schema %q: %v", name, embName, err)
			}
			schemas[embName] = body
		}
	}

	// Worklist of references whose content must end up embedded.
	var pending []schema.Ref
	for embName := range schemas {
		pending = append(pending, schema.Named(embName))
	}
	pending = append(pending, rootRef, fallbackRef)

	var patterns []PatternRule
	if pats, ok := raw["patterns"].([]any); ok {
		for _, p := range pats {
			rule := p.(map[string]any)
			pattern := rule["pattern"].(string)
			if _, err := regexp.Compile("^(?:" + pattern + ")$"); err != nil {
				return nil, Error.New("profile %q has unusable pattern %q: %v", name, pattern, err)
			}
			useRef, err := schema.RefOf(rule["useSchema"])
			if err != nil {
				return nil, Error.New("profile %q pattern %q: %v", name, pattern, err)
			}
			patterns = append(patterns, PatternRule{Pattern: pattern, UseSchema: useRef})
			pending = append(pending, useRef)
		}
	}

	// Breadth-first walk of the $ref graph. Every reachable schema is
	// embedded exactly once; the visited set makes cycles harmless.
	visited := map[string]bool{}
	for len(pending) > 0 {
		ref := pending[0]
		pending = pending[1:]
		if visited[ref.String()] {
			continue
		}
		visited[ref.String()] = true

		body, err := a.content(ref, schemas)
		if err != nil {
			return nil, Error.New("profile %q: %v", name, err)
		}
		schemas[ref.String()] = body
		for _, next := range jsonval.SchemaRefs(body) {
			pending = append(pending, schema.Named(next))
		}
	}

	a.log.Debug("profile assembled",
		zap.String("name", name),
		zap.Int("schemas", len(schemas)),
		zap.Int("patterns", len(patterns)))

	return &Profile{
		Title:          title,
		Description:    description,
		Schemas:        schemas,
		Patterns:       patterns,
		RootSchema:     rootRef,
		FallbackSchema: fallbackRef,
	}, nil
}

// AssembleFile loads a raw profile document from the profile directory (or a
// URL) and assembles it. The profile name is the filename without suffix.
func (a *Assembler) AssembleFile(dir, filename string) (*Profile, error) {
	path := filename
	if !jsonval.IsURL(filename) {
		path = filepath.Join(dir, filename)
	}
	doc, err := jsonval.Load(path)
	if err != nil {
		return nil, Error.New("cannot load profile %q: %v", filename, err)
	}
	return a.Assemble(strings.TrimSuffix(filepath.Base(filename), ProfileSuffix), doc)
}
