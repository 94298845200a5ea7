package dataset

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/checksum"
	"github.com/agentic-research/depot/internal/profile"
)

// Registry owns the set of live staging datasets. It is the only writer of
// the in-memory index and of the per-dataset persistence files; one mutex
// serializes all dataset mutation, including the id-freshness check during
// creation.
type Registry struct {
	log *zap.Logger
	fs  billy.Filesystem
	alg checksum.Alg
	ttl time.Duration

	mu       sync.Mutex
	datasets map[uuid.UUID]*Dataset
}

// NewRegistry creates a registry over the given data filesystem. alg is the
// checksum algorithm stamped onto newly created datasets; ttl is the
// staging lifetime before expiry.
func NewRegistry(log *zap.Logger, fs billy.Filesystem, alg checksum.Alg, ttl time.Duration) *Registry {
	return &Registry{
		log:      log,
		fs:       fs,
		alg:      alg,
		ttl:      ttl,
		datasets: make(map[uuid.UUID]*Dataset),
	}
}

// Load prepares the staging/complete directory structure and loads every
// dataset with a persistence file in the staging directory. Physical files
// without an entry are adopted as fresh untracked entries; entries whose
// physical file is gone are a hard error, since that means data was already
// lost.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fs.MkdirAll(StagingDirName, 0o755); err != nil {
		return Error.New("prepare staging directory: %v", err)
	}
	if err := r.fs.MkdirAll(CompleteDirName, 0o755); err != nil {
		return Error.New("prepare complete directory: %v", err)
	}

	entries, err := r.fs.ReadDir(StagingDirName)
	if err != nil {
		return Error.Wrap(err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PersistSuffix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), PersistSuffix))
		if err != nil {
			r.log.Warn("ignoring stray file in staging directory", zap.String("name", entry.Name()))
			continue
		}
		ds, err := r.loadLocked(id)
		if err != nil {
			return err
		}
		r.datasets[id] = ds
	}
	r.log.Info("datasets loaded", zap.Int("count", len(r.datasets)))
	return nil
}

// loadLocked reads one dataset from its persistence file and reconciles it
// with the physical staging directory.
func (r *Registry) loadLocked(id uuid.UUID) (*Dataset, error) {
	data, err := util.ReadFile(r.fs, persistPath(id))
	if err != nil {
		return nil, Error.New("read persistence file for %s: %v", id, err)
	}
	ds := &Dataset{reg: r}
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, Error.New("parse persistence file for %s: %v", id, err)
	}
	if ds.Files == nil {
		ds.Files = make(map[string]*FileEntry)
	}

	if _, err := r.fs.Stat(ds.uploadDir()); err != nil {
		if len(ds.Files) > 0 {
			return nil, Error.New("staging directory for %s vanished with %d files tracked", id, len(ds.Files))
		}
		r.log.Warn("staging directory missing for empty dataset, recreating", zap.Stringer("id", id))
		if err := r.fs.MkdirAll(ds.uploadDir(), 0o755); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	// Tracked files must exist; their disappearance means data loss.
	for name := range ds.Files {
		if !ds.exists(ds.filePath(name)) {
			return nil, Error.New("file %q referenced in dataset %s but missing on disk", name, id)
		}
	}
	// Untracked physical files are adopted (self-healing after a crash
	// between upload and bookkeeping).
	physical, err := r.fs.ReadDir(ds.uploadDir())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	for _, fi := range physical {
		if _, known := ds.Files[fi.Name()]; !known {
			r.log.Warn("adopting untracked file",
				zap.Stringer("id", id), zap.String("name", fi.Name()))
			ds.Files[fi.Name()] = &FileEntry{}
		}
	}
	return ds, nil
}

// Create allocates a fresh dataset for the given profile. The id is
// guaranteed not to collide with any live dataset nor with anything already
// present in the staging or completed stores; generation and registration
// happen under one lock so the check is atomic.
func (r *Registry) Create(p *profile.Profile, creator *string) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id uuid.UUID
	for {
		id = uuid.New()
		if _, taken := r.datasets[id]; taken {
			continue
		}
		if _, err := r.fs.Stat(persistPath(id)); err == nil {
			continue
		}
		if _, err := r.fs.Stat(filepath.Join(CompleteDirName, id.String())); err == nil {
			continue
		}
		break
	}

	now := time.Now().UTC()
	ds := &Dataset{
		ID:          id,
		Creator:     creator,
		Created:     now,
		Expires:     now.Add(r.ttl),
		ChecksumAlg: r.alg,
		Profile:     p.Clone(),
		Files:       make(map[string]*FileEntry),
		reg:         r,
	}
	if err := r.fs.MkdirAll(ds.uploadDir(), 0o755); err != nil {
		return nil, Error.New("create staging directory for %s: %v", id, err)
	}
	ds.save()
	r.datasets[id] = ds
	r.log.Info("dataset created", zap.Stringer("id", id))
	return ds, nil
}

// Get returns a live dataset by id. Expired datasets are indistinguishable
// from never-existing ones, whether or not the sweep has removed them yet.
func (r *Registry) Get(id uuid.UUID) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.datasets[id]
	if !ok || ds.IsExpired(time.Now()) {
		return nil, ErrNotFound.New("no such dataset: %s", id)
	}
	return ds, nil
}

// List returns the ids of all non-expired datasets, optionally filtered by
// creator, sorted for stable output.
func (r *Registry) List(creator *string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var ids []uuid.UUID
	for id, ds := range r.datasets {
		if ds.IsExpired(now) {
			continue
		}
		if creator != nil && (ds.Creator == nil || *ds.Creator != *creator) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Cleanup deletes every expired dataset.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var expired []*Dataset
	for _, ds := range r.datasets {
		if ds.IsExpired(now) {
			expired = append(expired, ds)
		}
	}
	for _, ds := range expired {
		ds.deleteLocked()
	}
	if len(expired) > 0 {
		r.log.Info("expired datasets cleaned up", zap.Int("count", len(expired)))
	}
}

// Sweep runs Cleanup at the given interval until the context is cancelled.
// Expiry is soft: it only hides datasets from lookups, and this sweep
// eventually reclaims the disk space.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}
