// Package dataset implements the staging-area state machine: per-dataset
// file bookkeeping, metadata assignment, checksum tracking, validation, and
// the atomic promotion of a staging dataset into the read-only completed
// store. Datasets live in a registry backed by one JSON persistence file per
// dataset; every mutating operation re-persists the dataset synchronously
// before returning.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/checksum"
	"github.com/agentic-research/depot/internal/jsonval"
	"github.com/agentic-research/depot/internal/profile"
	"github.com/agentic-research/depot/internal/schema"
)

// Error is the class for hard dataset failures: bookkeeping/filesystem
// divergence, not ordinary client mistakes (those return false).
var Error = errs.Class("dataset")

// ErrNotFound marks lookups of unknown or expired dataset ids.
var ErrNotFound = errs.Class("dataset not found")

// Directory and file naming inside the data filesystem.
const (
	StagingDirName  = "staging"
	CompleteDirName = "complete"

	// PersistSuffix is the suffix of the per-dataset serialization file in
	// the staging directory.
	PersistSuffix = ".dataset.json"

	// MetadataSuffix is appended to data filenames for the sidecar metadata
	// files written on completion; on its own it names the root metadata
	// sidecar.
	MetadataSuffix = "_meta.json"

	// ResidualName is the residual info file written on completion.
	ResidualName = "dataset.json"
)

// FileEntry carries the bookkeeping for one staged file. Checksum is nil
// until computed. Metadata nil means "never set"; validation then checks
// JSON null against the applicable schema, which the trivial true schema
// accepts.
type FileEntry struct {
	Checksum *string `json:"checksum"`
	Metadata any     `json:"metadata"`
}

// Dataset is one staging dataset: uploaded files plus their metadata,
// governed by an embedded copy of the profile chosen at creation.
type Dataset struct {
	ID          uuid.UUID             `json:"id"`
	Creator     *string               `json:"creator"`
	Created     time.Time             `json:"created"`
	Expires     time.Time             `json:"expires"`
	ChecksumAlg checksum.Alg          `json:"checksumAlg"`
	Profile     *profile.Profile      `json:"profile"`
	RootMeta    any                   `json:"rootMeta"`
	Files       map[string]*FileEntry `json:"files"`

	reg *Registry
}

func persistPath(id uuid.UUID) string {
	return filepath.Join(StagingDirName, id.String()+PersistSuffix)
}

func (d *Dataset) uploadDir() string {
	return filepath.Join(StagingDirName, d.ID.String())
}

func (d *Dataset) targetDir() string {
	return filepath.Join(CompleteDirName, d.ID.String())
}

func (d *Dataset) filePath(name string) string {
	return filepath.Join(d.uploadDir(), name)
}

// IsExpired reports whether the dataset has passed its expiry time. Expired
// datasets are treated as absent by all lookups, whether or not the sweep
// has physically removed them yet.
func (d *Dataset) IsExpired(now time.Time) bool {
	return now.After(d.Expires)
}

// HasFile reports whether name is a tracked file of the dataset.
func (d *Dataset) HasFile(name string) bool {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	_, ok := d.Files[name]
	return ok
}

// Checksums returns a snapshot of tracked file names mapped to their
// checksum, nil where not yet computed.
func (d *Dataset) Checksums() map[string]*string {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	out := make(map[string]*string, len(d.Files))
	for name, entry := range d.Files {
		out[name] = entry.Checksum
	}
	return out
}

// Metadata returns the stored metadata of a file, or of the dataset root
// when name is nil. Unknown files answer nil.
func (d *Dataset) Metadata(name *string) any {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	if name == nil {
		return d.RootMeta
	}
	if entry, ok := d.Files[*name]; ok {
		return entry.Metadata
	}
	return nil
}

// JSON serializes the dataset under the registry lock, so API responses see
// a consistent state even while background imports run.
func (d *Dataset) JSON() ([]byte, error) {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	data, err := json.Marshal(d)
	return data, Error.Wrap(err)
}

// save persists the dataset state to its serialization file. Callers hold
// the registry lock. A write failure here is an I/O anomaly; it is logged
// and the in-memory state stays authoritative.
func (d *Dataset) save() {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		d.reg.log.Error("dataset serialization failed", zap.Stringer("id", d.ID), zap.Error(err))
		return
	}
	data = append(data, '\n')
	if err := util.WriteFile(d.reg.fs, persistPath(d.ID), data, 0o644); err != nil {
		d.reg.log.Error("dataset persistence write failed", zap.Stringer("id", d.ID), zap.Error(err))
	}
}

func (d *Dataset) exists(path string) bool {
	_, err := d.reg.fs.Stat(path)
	return err == nil
}

// ImportFile moves the file at srcPath on src into the dataset under its
// base name and creates a fresh entry for it. It refuses sources that are
// not regular files and names that already exist, whether as a registry
// entry or as a physical file (the no-overwrite guarantee holds even if
// bookkeeping and disk disagree).
func (d *Dataset) ImportFile(src billy.Filesystem, srcPath string) bool {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	fi, err := src.Stat(srcPath)
	if err != nil || fi.IsDir() {
		d.reg.log.Warn("cannot import, not a regular file",
			zap.Stringer("dataset", d.ID), zap.String("path", srcPath))
		return false
	}
	name := filepath.Base(srcPath)
	if _, known := d.Files[name]; known || d.exists(d.filePath(name)) {
		d.reg.log.Warn("cannot import, file with that name exists",
			zap.Stringer("dataset", d.ID), zap.String("name", name))
		return false
	}

	if err := moveFile(src, srcPath, d.reg.fs, d.filePath(name)); err != nil {
		d.reg.log.Error("import move failed",
			zap.Stringer("dataset", d.ID), zap.String("name", name), zap.Error(err))
		return false
	}
	d.Files[name] = &FileEntry{}
	d.save()
	return true
}

// moveFile renames when source and destination share a filesystem and
// falls back to copy-and-remove when they do not (the tusd data directory
// is a separate root from the dataset data directory).
func moveFile(src billy.Filesystem, srcPath string, dst billy.Filesystem, dstPath string) error {
	if src == dst {
		return src.Rename(srcPath, dstPath)
	}
	in, err := src.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := dst.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return src.Remove(srcPath)
}

// DeleteFile removes a staged file and its entry. Unknown names fail; a
// missing physical file is logged as an anomaly but does not block removal
// of the entry.
func (d *Dataset) DeleteFile(name string) bool {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if _, known := d.Files[name]; !known {
		d.reg.log.Warn("cannot delete unknown file",
			zap.Stringer("dataset", d.ID), zap.String("name", name))
		return false
	}
	if d.exists(d.filePath(name)) {
		if err := d.reg.fs.Remove(d.filePath(name)); err != nil {
			d.reg.log.Error("failed to remove staged file",
				zap.Stringer("dataset", d.ID), zap.String("name", name), zap.Error(err))
		}
	} else {
		d.reg.log.Error("referenced file missing on disk",
			zap.Stringer("dataset", d.ID), zap.String("name", name))
	}
	delete(d.Files, name)
	d.save()
	return true
}

// RenameFile renames a staged file to a free name, moving its entry along.
// Renaming a file to itself succeeds without side effects. An unknown old
// name or an already-known new name returns false. Divergence between
// bookkeeping and disk (old's file missing, or a file under the new name
// that no entry tracks) is a hard error, distinct from the ordinary
// failures.
func (d *Dataset) RenameFile(oldName, newName string) (bool, error) {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if _, known := d.Files[oldName]; !known {
		d.reg.log.Warn("cannot rename unknown file",
			zap.Stringer("dataset", d.ID), zap.String("name", oldName))
		return false, nil
	}
	if oldName == newName {
		return true, nil
	}
	if _, known := d.Files[newName]; known {
		d.reg.log.Warn("cannot rename, target name taken",
			zap.Stringer("dataset", d.ID), zap.String("from", oldName), zap.String("to", newName))
		return false, nil
	}

	oldPath, newPath := d.filePath(oldName), d.filePath(newName)
	if !d.exists(oldPath) {
		err := Error.New("file %q referenced in dataset %s but missing on disk", oldName, d.ID)
		d.reg.log.Error("rename divergence", zap.Error(err))
		return false, err
	}
	if d.exists(newPath) {
		err := Error.New("file %q present on disk in dataset %s but not referenced", newName, d.ID)
		d.reg.log.Error("rename divergence", zap.Error(err))
		return false, err
	}

	if err := d.reg.fs.Rename(oldPath, newPath); err != nil {
		return false, Error.Wrap(err)
	}
	d.Files[newName] = d.Files[oldName]
	delete(d.Files, oldName)
	d.save()
	return true, nil
}

// ComputeChecksum hashes the staged file with the dataset's algorithm and
// stores the digest on its entry. It re-validates that the entry and the
// physical file still exist, since it typically runs as a background task
// after an import and may race a concurrent delete.
func (d *Dataset) ComputeChecksum(name string) bool {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	entry, known := d.Files[name]
	if !known {
		d.reg.log.Warn("cannot compute checksum for unknown file",
			zap.Stringer("dataset", d.ID), zap.String("name", name))
		return false
	}
	sum, err := checksum.Sum(d.reg.fs, d.filePath(name), d.ChecksumAlg)
	if err != nil {
		d.reg.log.Warn("checksum computation failed",
			zap.Stringer("dataset", d.ID), zap.String("name", name), zap.Error(err))
		return false
	}
	entry.Checksum = &sum
	d.save()
	return true
}

// SetMetadata stores metadata for a file, or for the dataset root when name
// is nil. The value is not validated here; validation is a separate,
// explicit step so clients can save partial drafts. Fails only when a
// non-nil name is not a known file.
func (d *Dataset) SetMetadata(name *string, metadata any) bool {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if name == nil {
		d.RootMeta = metadata
		d.save()
		return true
	}
	entry, known := d.Files[*name]
	if !known {
		d.reg.log.Warn("cannot set metadata on unknown file",
			zap.Stringer("dataset", d.ID), zap.String("name", *name))
		return false
	}
	entry.Metadata = metadata
	d.save()
	return true
}

// ValidateMetadata validates the stored metadata of a file (or of the
// dataset root when name is nil) against the schema the profile resolves
// for it. Returns nil when valid, otherwise an error carrying the
// human-readable message.
func (d *Dataset) ValidateMetadata(name *string) error {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	return d.validateMetadataLocked(name)
}

func (d *Dataset) validateMetadataLocked(name *string) error {
	var metadata any
	if name == nil {
		metadata = d.RootMeta
	} else {
		entry, known := d.Files[*name]
		if !known {
			return Error.New("no file %q in dataset %s", *name, d.ID)
		}
		metadata = entry.Metadata
	}
	return schema.Validate(metadata, d.Profile.SchemaFor(name), d.Profile.Schemas)
}

// Validate validates root metadata and every file's metadata, collecting
// the failures. The root result is keyed by the empty string. An empty map
// means the metadata side of the dataset is ready for completion.
func (d *Dataset) Validate() map[string]string {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	return d.validateLocked()
}

func (d *Dataset) validateLocked() map[string]string {
	failures := map[string]string{}
	if err := d.validateMetadataLocked(nil); err != nil {
		failures[""] = err.Error()
	}
	for name := range d.Files {
		n := name
		if err := d.validateMetadataLocked(&n); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

// residual is the shape of the dataset.json file left in a completed
// dataset for downstream consumers.
type residual struct {
	Creator *string          `json:"creator"`
	Created time.Time        `json:"created"`
	Profile *profile.Profile `json:"profile"`
}

// Complete promotes the dataset into the completed store. It first
// validates all metadata and requires a checksum on every file; failures
// abort with the error map and leave the dataset untouched. The commit
// point is the atomic rename of the staging directory into the completed
// store; the sidecar metadata files, the checksum listing and the residual
// info file are derived afterwards, and I/O failures past the commit point
// are logged anomalies, never a rollback. On success the returned path is
// the completed directory (relative to the data filesystem root).
func (d *Dataset) Complete() (string, map[string]string, error) {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()

	if failures := d.validateLocked(); len(failures) != 0 {
		d.reg.log.Warn("cannot complete dataset, validation failed",
			zap.Stringer("id", d.ID), zap.Int("failures", len(failures)))
		return "", failures, nil
	}
	missing := map[string]string{}
	for name, entry := range d.Files {
		if entry.Checksum == nil {
			missing[name] = fmt.Sprintf("file checksum is missing: %s", name)
		}
	}
	if len(missing) != 0 {
		return "", missing, nil
	}

	target := d.targetDir()
	if err := d.reg.fs.Rename(d.uploadDir(), target); err != nil {
		return "", nil, Error.New("promote dataset %s: %v", d.ID, err)
	}

	// Commit point passed. Everything below is derived output.
	if d.RootMeta != nil {
		d.sidecar(filepath.Join(target, MetadataSuffix), d.RootMeta)
	}
	for name, entry := range d.Files {
		if entry.Metadata != nil {
			d.sidecar(filepath.Join(target, name+MetadataSuffix), entry.Metadata)
		}
	}
	d.writeChecksumListing(target)
	d.writeResidual(target)

	delete(d.reg.datasets, d.ID)
	if err := d.reg.fs.Remove(persistPath(d.ID)); err != nil {
		d.reg.log.Error("failed to remove persistence file after completion",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
	d.reg.log.Info("dataset completed", zap.Stringer("id", d.ID), zap.String("path", target))
	return target, nil, nil
}

func (d *Dataset) sidecar(path string, v any) {
	if err := jsonval.Save(d.reg.fs, path, v); err != nil {
		d.reg.log.Error("failed to write metadata sidecar",
			zap.Stringer("id", d.ID), zap.String("path", path), zap.Error(err))
	}
}

func (d *Dataset) writeChecksumListing(target string) {
	names := make([]string, 0, len(d.Files))
	for name := range d.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	var listing []byte
	for _, name := range names {
		listing = append(listing, fmt.Sprintf("%s  %s\n", name, *d.Files[name].Checksum)...)
	}
	path := filepath.Join(target, string(d.ChecksumAlg)+"sums.txt")
	if err := util.WriteFile(d.reg.fs, path, listing, 0o644); err != nil {
		d.reg.log.Error("failed to write checksum listing",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
}

func (d *Dataset) writeResidual(target string) {
	data, err := json.MarshalIndent(residual{
		Creator: d.Creator,
		Created: d.Created,
		Profile: d.Profile,
	}, "", "  ")
	if err == nil {
		data = append(data, '\n')
		err = util.WriteFile(d.reg.fs, filepath.Join(target, ResidualName), data, 0o644)
	}
	if err != nil {
		d.reg.log.Error("failed to write residual dataset info",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
}

// Delete removes the dataset irreversibly: every staged file, the staging
// directory, the persistence file, and the registry entry. Any user-facing
// confirmation is the boundary layer's concern.
func (d *Dataset) Delete() {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	d.deleteLocked()
}

func (d *Dataset) deleteLocked() {
	entries, err := d.reg.fs.ReadDir(d.uploadDir())
	if err != nil {
		d.reg.log.Error("cannot list staging directory for deletion",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
	for _, entry := range entries {
		if err := d.reg.fs.Remove(d.filePath(entry.Name())); err != nil {
			d.reg.log.Error("failed to remove staged file",
				zap.Stringer("id", d.ID), zap.String("name", entry.Name()), zap.Error(err))
		}
	}
	if err := d.reg.fs.Remove(d.uploadDir()); err != nil {
		d.reg.log.Error("failed to remove staging directory",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
	if err := d.reg.fs.Remove(persistPath(d.ID)); err != nil {
		d.reg.log.Error("failed to remove persistence file",
			zap.Stringer("id", d.ID), zap.Error(err))
	}
	delete(d.reg.datasets, d.ID)
	d.reg.log.Info("dataset deleted", zap.Stringer("id", d.ID))
}
