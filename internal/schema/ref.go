// Package schema deals with JSON Schema documents: reference naming, the
// on-disk store with its draft-7 meta-schema gate, and instance validation.
package schema

import (
	"encoding/json"

	"github.com/zeebo/errs"
)

// Error is the class for schema failures.
var Error = errs.Class("schema")

// Wire names for the two trivial boolean schemas. Keeping them as reserved
// strings lets every schema reference, trivial or named, live in the same
// string-keyed schema map and survive JSON serialization unchanged.
const (
	TrivialTrueName  = "__TRUE__"
	TrivialFalseName = "__FALSE__"
)

type refKind int

const (
	refNamed refKind = iota
	refTrivialTrue
	refTrivialFalse
)

// Ref identifies a schema: the trivial "accept anything" schema, the trivial
// "accept nothing" schema, or a named schema (filename or URL).
type Ref struct {
	kind refKind
	name string
}

// TrivialTrue is the reference to the boolean true schema.
func TrivialTrue() Ref { return Ref{kind: refTrivialTrue} }

// TrivialFalse is the reference to the boolean false schema.
func TrivialFalse() Ref { return Ref{kind: refTrivialFalse} }

// Named references a schema by filename or URL.
func Named(name string) Ref {
	switch name {
	case TrivialTrueName:
		return TrivialTrue()
	case TrivialFalseName:
		return TrivialFalse()
	}
	return Ref{kind: refNamed, name: name}
}

// RefOf normalizes a schema reference as it appears in a profile document:
// a JSON boolean selects a trivial schema, a string names one.
func RefOf(v any) (Ref, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return TrivialTrue(), nil
		}
		return TrivialFalse(), nil
	case string:
		return Named(t), nil
	}
	return Ref{}, Error.New("schema reference must be a string or boolean, got %T", v)
}

// IsTrivialTrue reports whether the reference is the boolean true schema.
func (r Ref) IsTrivialTrue() bool { return r.kind == refTrivialTrue }

// IsTrivialFalse reports whether the reference is the boolean false schema.
func (r Ref) IsTrivialFalse() bool { return r.kind == refTrivialFalse }

// String returns the wire name of the reference, using the reserved sentinel
// names for the trivial schemas.
func (r Ref) String() string {
	switch r.kind {
	case refTrivialTrue:
		return TrivialTrueName
	case refTrivialFalse:
		return TrivialFalseName
	}
	return r.name
}

// MarshalJSON encodes the reference as its wire name.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire name back into a reference.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return Error.Wrap(err)
	}
	*r = Named(name)
	return nil
}
