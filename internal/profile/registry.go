package profile

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry is the process-wide index of assembled profiles. Load runs once
// at startup; afterwards the registry is read-only, and every dataset takes
// its own copy of the profile it was created with.
type Registry struct {
	log       *zap.Logger
	assembler *Assembler
	profiles  map[string]*Profile
}

// NewRegistry creates an empty registry using the given assembler.
func NewRegistry(log *zap.Logger, assembler *Assembler) *Registry {
	return &Registry{
		log:       log,
		assembler: assembler,
		profiles:  make(map[string]*Profile),
	}
}

// Load assembles every *.profile.json document in dir and indexes it by
// filename minus suffix. A missing directory or an empty one is a
// configuration error; so is any profile that fails to assemble.
func (r *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Error.New("profile directory %q: %v", dir, err)
	}

	r.log.Info("loading profiles", zap.String("dir", dir), zap.String("suffix", ProfileSuffix))

	found := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ProfileSuffix) {
			continue
		}
		found++
		name := strings.TrimSuffix(entry.Name(), ProfileSuffix)
		p, err := r.assembler.AssembleFile(dir, entry.Name())
		if err != nil {
			return err
		}
		r.profiles[name] = p
	}
	if found == 0 {
		return Error.New("no profiles (*%s) found in %q", ProfileSuffix, dir)
	}
	return nil
}

// Names returns the sorted names of all loaded profiles.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the profile with the given name.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, ErrNotFound.New("no such profile: %q", name)
	}
	return p, nil
}
