// Package jsonval handles the dynamic JSON values that flow through depot:
// profile documents, JSON Schemas and user-supplied metadata. Values use the
// shapes produced by ojg's parser (nil, bool, int64, float64, string, []any,
// map[string]any).
package jsonval

import (
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/zeebo/errs"
)

// Error is the class for jsonval failures.
var Error = errs.Class("jsonval")

// IsURL reports whether ref names an http(s) resource rather than a file.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Load reads and parses a JSON document from a local path or an http(s) URL.
func Load(ref string) (any, error) {
	var data []byte
	if IsURL(ref) {
		resp, err := http.Get(ref)
		if err != nil {
			return nil, Error.New("fetch %s: %v", ref, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, Error.New("fetch %s: %s", ref, resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, Error.New("fetch %s: %v", ref, err)
		}
	} else {
		var err error
		data, err = os.ReadFile(ref)
		if err != nil {
			return nil, Error.New("read %s: %v", ref, err)
		}
	}
	v, err := oj.Parse(data)
	if err != nil {
		return nil, Error.New("parse %s: %v", ref, err)
	}
	return v, nil
}

// Parse parses a JSON document from raw bytes.
func Parse(data []byte) (any, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return v, nil
}

// Save writes v as indented JSON into path on the given filesystem.
func Save(fs billy.Filesystem, path string, v any) error {
	data := []byte(oj.JSON(v, 2))
	data = append(data, '\n')
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return Error.New("write %s: %v", path, err)
	}
	return nil
}

// Copy returns a deep copy of a dynamic JSON value. Datasets embed a copy of
// their profile's schema map so that registry reloads never leak into them.
func Copy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Copy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Copy(e)
		}
		return out
	default:
		return v
	}
}

// Equal compares two dynamic JSON values structurally. Integer and float
// representations of the same number compare equal, so values survive a
// round trip through encoding/json (which decodes all numbers as float64).
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			be, ok := bv[k]
			if !ok || !Equal(e, be) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, e := range av {
			if !Equal(e, bv[i]) {
				return false
			}
		}
		return true
	default:
		if an, ok := asFloat(a); ok {
			bn, ok := asFloat(b)
			return ok && an == bn
		}
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// refQuery matches every "$ref" key anywhere inside a schema document.
var refQuery = jp.MustParseString("$..['$ref']")

// SchemaRefs returns the distinct external schema names referenced via $ref
// anywhere inside the given schema, sorted. The fragment part of each ref is
// stripped; refs that are purely local ("#/definitions/...") name no external
// schema and are dropped.
func SchemaRefs(schema any) []string {
	seen := map[string]bool{}
	for _, v := range refQuery.Get(schema) {
		ref, ok := v.(string)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(ref, "#")
		if name == "" {
			continue
		}
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
