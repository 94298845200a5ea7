package schema

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/jsonval"
)

// Store loads, meta-validates and caches JSON Schema documents by name.
// Names resolve relative to the profile directory unless they are http(s)
// URLs. A schema that is missing, unparsable or not valid draft-7 is a
// deployment misconfiguration; Get reports it as an error and the caller
// (profile loading at startup) treats it as fatal.
type Store struct {
	log *zap.Logger
	dir string

	mu    sync.Mutex
	cache map[string]any
}

// NewStore creates a schema store over the given profile directory.
func NewStore(log *zap.Logger, dir string) *Store {
	return &Store{
		log:   log,
		dir:   dir,
		cache: make(map[string]any),
	}
}

// expand prepends the profile directory to plain filenames; URLs pass through.
func (s *Store) expand(name string) string {
	if jsonval.IsURL(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// Get returns the schema content for a reference. Trivial references answer
// immediately with their boolean schema. Named schemas are served from the
// cache, or else loaded, checked against the draft-7 meta-schema and cached.
// forceReload bypasses the cache (test and administrative use).
func (s *Store) Get(ref Ref, forceReload bool) (any, error) {
	if ref.IsTrivialTrue() {
		return true, nil
	}
	if ref.IsTrivialFalse() {
		return false, nil
	}
	name := ref.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceReload {
		if content, ok := s.cache[name]; ok {
			return content, nil
		}
	}

	content, err := jsonval.Load(s.expand(name))
	if err != nil {
		return nil, Error.New("cannot load schema %q: %v", name, err)
	}
	if err := CheckSchema(content); err != nil {
		return nil, Error.New("%q is not a valid draft-7 JSON Schema: %v", name, err)
	}

	s.log.Debug("schema loaded", zap.String("name", name))
	s.cache[name] = content
	return content, nil
}
