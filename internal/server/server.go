// Package server is depot's HTTP boundary: the backend API used by the
// frontend, the tusd hook endpoint driving uploads into datasets, and the
// periodic maintenance sweep. Core behavior lives in the profile and
// dataset packages; this layer only maps requests onto them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/config"
	"github.com/agentic-research/depot/internal/dataset"
	"github.com/agentic-research/depot/internal/profile"
)

// UserHeader carries the stable user id of the caller. The identity
// provider in front of depot is expected to set it; requests without it are
// anonymous.
const UserHeader = "X-Depot-User"

// sweepInterval is how often expired datasets and stale tusd files are
// reclaimed, independent of request traffic.
const sweepInterval = time.Hour

// Server wires the registries into an HTTP handler.
type Server struct {
	log      *zap.Logger
	cfg      *config.Config
	profiles *profile.Registry
	datasets *dataset.Registry
	tusdFS   billy.Filesystem
	router   *mux.Router
}

// New builds the server and its routes.
func New(log *zap.Logger, cfg *config.Config, profiles *profile.Registry, datasets *dataset.Registry, tusdFS billy.Filesystem) *Server {
	s := &Server{
		log:      log,
		cfg:      cfg,
		profiles: profiles,
		datasets: datasets,
		tusdFS:   tusdFS,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/tusd-events", s.handleTusdHook).Methods(http.MethodPost)
	s.router.HandleFunc("/site-base", s.handleSiteBase).Methods(http.MethodGet)
	s.router.HandleFunc("/tusd-endpoint", s.handleTusdEndpoint).Methods(http.MethodGet)

	apiR := s.router.PathPrefix("/api").Subrouter()
	apiR.HandleFunc("/profiles", s.handleProfileList).Methods(http.MethodGet)
	apiR.HandleFunc("/profiles/{name}", s.handleProfileGet).Methods(http.MethodGet)
	apiR.HandleFunc("/datasets", s.handleDatasetCreate).Methods(http.MethodPost)
	apiR.HandleFunc("/datasets", s.handleDatasetList).Methods(http.MethodGet)

	dsR := apiR.PathPrefix("/datasets/{id}").Subrouter()
	dsR.HandleFunc("", s.handleDatasetGet).Methods(http.MethodGet)
	dsR.HandleFunc("", s.handleDatasetComplete).Methods(http.MethodPut)
	dsR.HandleFunc("", s.handleDatasetDelete).Methods(http.MethodDelete)
	dsR.HandleFunc("/meta", s.handleRootMetaGet).Methods(http.MethodGet)
	dsR.HandleFunc("/meta", s.handleRootMetaPut).Methods(http.MethodPut)
	dsR.HandleFunc("/meta/validate", s.handleRootMetaValidate).Methods(http.MethodGet)
	dsR.HandleFunc("/files", s.handleFileList).Methods(http.MethodGet)

	fileR := dsR.PathPrefix("/files/{filename}").Subrouter()
	fileR.HandleFunc("", s.handleFileDelete).Methods(http.MethodDelete)
	fileR.HandleFunc("/checksum", s.handleFileChecksum).Methods(http.MethodGet)
	fileR.HandleFunc("/rename-to/{newname}", s.handleFileRename).Methods(http.MethodPatch)
	fileR.HandleFunc("/meta", s.handleFileMetaGet).Methods(http.MethodGet)
	fileR.HandleFunc("/meta", s.handleFileMetaPut).Methods(http.MethodPut)
	fileR.HandleFunc("/meta/validate", s.handleFileMetaValidate).Methods(http.MethodGet)
}

// Handler returns the HTTP handler, for serving and for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the context is cancelled, running the maintenance sweep
// alongside.
func (s *Server) Run(ctx context.Context) error {
	go s.datasets.Sweep(ctx, sweepInterval)
	go s.tusdGarbageSweep(ctx, sweepInterval)

	srv := &http.Server{
		Addr:    net.JoinHostPort(s.cfg.HTTP.Host, fmt.Sprint(s.cfg.HTTP.Port)),
		Handler: s.router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("serving", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// writeJSON writes v as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) handleSiteBase(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Site)
}

func (s *Server) handleTusdEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.TusdEndpoint)
}

// caller extracts the stable user id, nil when anonymous.
func caller(r *http.Request) *string {
	if user := r.Header.Get(UserHeader); user != "" {
		return &user
	}
	return nil
}
