package server

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/dataset"
	"github.com/agentic-research/depot/internal/jsonval"
	"github.com/agentic-research/depot/internal/postproc"
	"github.com/agentic-research/depot/internal/profile"
)

func (s *Server) handleProfileList(w http.ResponseWriter, _ *http.Request) {
	out := map[string]profile.Info{}
	for _, name := range s.profiles.Names() {
		p, err := s.profiles.Get(name)
		if err != nil {
			continue
		}
		out[name] = p.Info()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, err := s.profiles.Get(name)
	if err != nil {
		http.Error(w, "no such profile: "+name, http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDatasetCreate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	p, err := s.profiles.Get(name)
	if err != nil {
		http.Error(w, "no such profile: "+name, http.StatusNotFound)
		return
	}
	ds, err := s.datasets.Create(p, caller(r))
	if err != nil {
		s.log.Error("dataset creation failed", zap.Error(err))
		http.Error(w, "dataset creation failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ds.ID.String())
}

func (s *Server) handleDatasetList(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if user == nil {
		// Anonymous callers own nothing; do not leak the full index.
		s.writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids := s.datasets.List(user)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	s.writeJSON(w, http.StatusOK, out)
}

// lookup resolves the {id} path variable into a live dataset, writing the
// 4xx response itself when that fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *dataset.Dataset {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid dataset id", http.StatusUnprocessableEntity)
		return nil
	}
	ds, err := s.datasets.Get(id)
	if err != nil {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return nil
	}
	return ds
}

// lookupFile additionally requires the {filename} path variable to name a
// known file of the dataset.
func (s *Server) lookupFile(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, string) {
	ds := s.lookup(w, r)
	if ds == nil {
		return nil, ""
	}
	name := mux.Vars(r)["filename"]
	if !ds.HasFile(name) {
		http.Error(w, "file not found in dataset", http.StatusNotFound)
		return nil, ""
	}
	return ds, name
}

func (s *Server) handleDatasetGet(w http.ResponseWriter, r *http.Request) {
	ds := s.lookup(w, r)
	if ds == nil {
		return
	}
	data, err := ds.JSON()
	if err != nil {
		s.log.Error("dataset serialization failed", zap.Error(err))
		http.Error(w, "serialization failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleDatasetComplete(w http.ResponseWriter, r *http.Request) {
	ds := s.lookup(w, r)
	if ds == nil {
		return
	}
	path, failures, err := ds.Complete()
	if err != nil {
		s.log.Error("dataset completion failed", zap.Error(err))
		http.Error(w, "completion failed", http.StatusInternalServerError)
		return
	}
	if path == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, failures)
		return
	}
	if s.cfg.CompletionHook != "" {
		// Best effort: the completion already committed, the client does
		// not care about post-processing trouble.
		postproc.Notify(r.Context(), s.log, s.cfg.CompletionHook, path)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleDatasetDelete(w http.ResponseWriter, r *http.Request) {
	ds := s.lookup(w, r)
	if ds == nil {
		return
	}
	ds.Delete()
	s.writeJSON(w, http.StatusOK, true)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return nil, false
	}
	v, err := jsonval.Parse(data)
	if err != nil {
		http.Error(w, "body is not valid JSON", http.StatusBadRequest)
		return nil, false
	}
	return v, true
}

func (s *Server) handleRootMetaGet(w http.ResponseWriter, r *http.Request) {
	if ds := s.lookup(w, r); ds != nil {
		s.writeJSON(w, http.StatusOK, ds.Metadata(nil))
	}
}

func (s *Server) handleRootMetaPut(w http.ResponseWriter, r *http.Request) {
	ds := s.lookup(w, r)
	if ds == nil {
		return
	}
	v, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, ds.SetMetadata(nil, v))
}

// validationResult serializes like the original API: null on success, the
// message string on failure.
func (s *Server) validationResult(w http.ResponseWriter, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, err.Error())
}

func (s *Server) handleRootMetaValidate(w http.ResponseWriter, r *http.Request) {
	if ds := s.lookup(w, r); ds != nil {
		s.validationResult(w, ds.ValidateMetadata(nil))
	}
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	ds := s.lookup(w, r)
	if ds == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, ds.Checksums())
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	if ds, name := s.lookupFile(w, r); ds != nil {
		s.writeJSON(w, http.StatusOK, ds.DeleteFile(name))
	}
}

func (s *Server) handleFileChecksum(w http.ResponseWriter, r *http.Request) {
	if ds, name := s.lookupFile(w, r); ds != nil {
		s.writeJSON(w, http.StatusOK, ds.Checksums()[name])
	}
}

func (s *Server) handleFileRename(w http.ResponseWriter, r *http.Request) {
	ds, name := s.lookupFile(w, r)
	if ds == nil {
		return
	}
	ok, err := ds.RenameFile(name, mux.Vars(r)["newname"])
	if err != nil {
		s.log.Error("rename hit bookkeeping divergence", zap.Error(err))
		http.Error(w, "rename failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ok)
}

func (s *Server) handleFileMetaGet(w http.ResponseWriter, r *http.Request) {
	if ds, name := s.lookupFile(w, r); ds != nil {
		s.writeJSON(w, http.StatusOK, ds.Metadata(&name))
	}
}

func (s *Server) handleFileMetaPut(w http.ResponseWriter, r *http.Request) {
	ds, name := s.lookupFile(w, r)
	if ds == nil {
		return
	}
	v, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, ds.SetMetadata(&name, v))
}

func (s *Server) handleFileMetaValidate(w http.ResponseWriter, r *http.Request) {
	if ds, name := s.lookupFile(w, r); ds != nil {
		s.validationResult(w, ds.ValidateMetadata(&name))
	}
}
