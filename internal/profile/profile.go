// Package profile implements dataset profiles: named bundles of JSON Schemas
// plus filename-pattern routing rules. Profiles are assembled once from a
// directory of *.profile.json documents into a self-contained normal form
// that embeds every referenced schema, so clients and datasets can use them
// without further lookups.
package profile

import (
	"regexp"

	"github.com/zeebo/errs"

	"github.com/agentic-research/depot/internal/jsonval"
	"github.com/agentic-research/depot/internal/schema"
)

// Error is the class for profile failures.
var Error = errs.Class("profile")

// ErrNotFound marks lookups of unknown profile names.
var ErrNotFound = errs.Class("profile not found")

// Suffixes for the files making up a profile directory.
const (
	ProfileSuffix = ".profile.json"
	SchemaSuffix  = ".schema.json"
)

// PatternRule pairs a regular expression with a schema reference. The rule
// applies only when the expression matches the entire candidate filename.
// Rule order in the profile is significant: the first match wins.
type PatternRule struct {
	Pattern   string     `json:"pattern"`
	UseSchema schema.Ref `json:"useSchema"`
}

// Matches reports whether the rule's pattern matches all of name. The
// pattern is wrapped in an anchored group, so a match somewhere inside the
// filename does not count.
func (r PatternRule) Matches(name string) bool {
	re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
	if err != nil {
		// Assembly validates every pattern; an uncompilable one cannot
		// reach a live profile.
		return false
	}
	return re.MatchString(name)
}

// Profile is the assembled, immutable normal form of a profile document.
// Schemas maps every schema reference mentioned anywhere in the profile to
// its full content; RootSchema, FallbackSchema and every rule's UseSchema
// are always keys of it, as are both trivial sentinels.
type Profile struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Schemas        map[string]any `json:"schemas"`
	Patterns       []PatternRule  `json:"patterns"`
	RootSchema     schema.Ref     `json:"rootSchema"`
	FallbackSchema schema.Ref     `json:"fallbackSchema"`
}

// SchemaFor resolves the schema governing a file. A nil filename selects the
// root schema (dataset-level metadata). Otherwise the first pattern rule
// fully matching the filename decides; files matching no rule get the
// fallback schema. Pure function of the profile value.
func (p *Profile) SchemaFor(filename *string) any {
	if filename == nil {
		return p.Schemas[p.RootSchema.String()]
	}
	for _, rule := range p.Patterns {
		if rule.Matches(*filename) {
			return p.Schemas[rule.UseSchema.String()]
		}
	}
	return p.Schemas[p.FallbackSchema.String()]
}

// RefFor is SchemaFor at the reference level; the upload admission check
// uses it to reject filenames mapped to the trivial false schema.
func (p *Profile) RefFor(filename string) schema.Ref {
	for _, rule := range p.Patterns {
		if rule.Matches(filename) {
			return rule.UseSchema
		}
	}
	return p.FallbackSchema
}

// Clone returns an independent deep copy. Datasets embed a clone of their
// chosen profile so that registry reloads never retroactively change the
// rules a dataset was created under.
func (p *Profile) Clone() *Profile {
	out := &Profile{
		Title:          p.Title,
		Description:    p.Description,
		RootSchema:     p.RootSchema,
		FallbackSchema: p.FallbackSchema,
		Patterns:       append([]PatternRule(nil), p.Patterns...),
		Schemas:        make(map[string]any, len(p.Schemas)),
	}
	for name, body := range p.Schemas {
		out.Schemas[name] = jsonval.Copy(body)
	}
	return out
}

// Info is the display subset of a profile, served in overview listings.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Info returns the display subset of the profile.
func (p *Profile) Info() Info {
	return Info{Title: p.Title, Description: p.Description}
}
