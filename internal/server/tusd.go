package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/api"
	"github.com/agentic-research/depot/internal/dataset"
)

// handleTusdHook reacts to the events tusd POSTs for every upload. The
// pre-create hook is the admission check; the post-finish hook imports the
// finished upload into its dataset. Hook responses with non-2xx status make
// tusd reject the upload.
func (s *Server) handleTusdHook(w http.ResponseWriter, r *http.Request) {
	hook := api.HookName(r.Header.Get("Hook-Name"))

	var event api.HookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "cannot parse hook event", http.StatusBadRequest)
		return
	}
	meta := event.Upload.MetaData

	dsID, ok := meta[api.MetaDataset]
	if !ok {
		http.Error(w, "exactly one dataset ID must be attached", http.StatusBadRequest)
		return
	}
	filename, ok := meta[api.MetaFilename]
	if !ok {
		http.Error(w, "exactly one filename must be attached", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(filename, "/\\") {
		http.Error(w, "invalid filename: may not contain path separators", http.StatusUnprocessableEntity)
		return
	}
	id, err := uuid.Parse(dsID)
	if err != nil {
		http.Error(w, "invalid dataset ID: "+dsID, http.StatusUnprocessableEntity)
		return
	}
	ds, err := s.datasets.Get(id)
	if err != nil {
		http.Error(w, "no such dataset", http.StatusNotFound)
		return
	}

	switch hook {
	case api.HookPreCreate:
		s.tusdPreCreate(w, ds, filename)
	case api.HookPostFinish:
		s.tusdPostFinish(w, ds, &event, filename)
	default:
		// Other lifecycle events carry no work for us.
		w.WriteHeader(http.StatusOK)
	}
}

// tusdPreCreate decides whether a named file may be uploaded into the
// dataset at all.
func (s *Server) tusdPreCreate(w http.ResponseWriter, ds *dataset.Dataset, filename string) {
	if ds.HasFile(filename) {
		http.Error(w, "file "+filename+" already exists, refused", http.StatusUnprocessableEntity)
		return
	}
	// Only the trivial false schema pre-rejects a filename. Detecting
	// arbitrary unsatisfiable schemas would be overkill; false is the
	// profile author explicitly forbidding files named like this.
	if ds.Profile.RefFor(filename).IsTrivialFalse() {
		http.Error(w, "a file called "+filename+" is forbidden in this dataset", http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// tusdPostFinish imports a finished upload: verify it really lives in the
// tusd data directory, give it its final name, hand it to the dataset, and
// kick off checksum computation in the background so the upload response is
// not stalled by hashing a large file.
func (s *Server) tusdPostFinish(w http.ResponseWriter, ds *dataset.Dataset, event *api.HookEvent, filename string) {
	storage := event.Upload.Storage
	if storage == nil || storage.Type != api.StorageFilestore {
		http.Error(w, "unsupported upload storage", http.StatusUnprocessableEntity)
		return
	}
	abs, err := filepath.Abs(storage.Path)
	if err != nil {
		http.Error(w, "bad upload location", http.StatusUnprocessableEntity)
		return
	}
	wantDir, err := filepath.Abs(s.cfg.TusdDataDir)
	if err != nil || filepath.Dir(abs) != wantDir {
		http.Error(w, "file location does not match tusd_datadir", http.StatusUnprocessableEntity)
		return
	}
	uploadName := filepath.Base(abs)

	if err := s.tusdFS.Rename(uploadName, filename); err != nil {
		s.log.Error("cannot rename finished upload",
			zap.String("upload", uploadName), zap.String("filename", filename), zap.Error(err))
		http.Error(w, "upload import failed", http.StatusUnprocessableEntity)
		return
	}
	if !ds.ImportFile(s.tusdFS, filename) {
		s.log.Warn("finished upload was not imported",
			zap.Stringer("dataset", ds.ID), zap.String("filename", filename))
	}
	if err := s.tusdFS.Remove(uploadName + ".info"); err != nil {
		s.log.Debug("no upload info sidecar to remove", zap.String("upload", uploadName))
	}
	go ds.ComputeChecksum(filename)
	w.WriteHeader(http.StatusOK)
}
