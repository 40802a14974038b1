// Package api exposes the run lifecycle surface of spec.md §6 over HTTP:
// submit a config for execution, poll its status, and fetch the resulting
// artifact paths, plus a Prometheus scrape endpoint. Routing follows
// github.com/gorilla/mux, already part of the retrieved stack.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/launcher"
	"epidemsim/internal/runstore"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Server wires the run store and launcher into an HTTP handler.
type Server struct {
	Store    *runstore.Store
	Launcher *launcher.Launcher
	Log      zerolog.Logger

	router *mux.Router
}

// New builds a Server with its routes registered.
func New(store *runstore.Store, l *launcher.Launcher, log zerolog.Logger) *Server {
	s := &Server{Store: store, Launcher: l, Log: log}

	r := mux.NewRouter()
	r.HandleFunc("/runs", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/runs/{id}", s.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/artifact", s.handleArtifact).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// submitRequest is the POST /runs body: a config to validate and launch,
// plus the run options spec.md's submit(config, runs, overwrite) takes.
type submitRequest struct {
	Name       string `json:"name"`
	ConfigPath string `json:"config_path"`
	SaveDir    string `json:"save_dir"`
	Runs       int    `json:"runs"`
	Overwrite  bool   `json:"overwrite"`
	Seed       int64  `json:"seed"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

// handleSubmit validates the referenced config synchronously (so malformed
// input is reported before any run id is minted, per spec.md's "config
// faults are detected at construction time") and launches the run in the
// background, returning its id immediately.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errs.Wrap(errs.ErrBadConfig, "decoding request body: %v", err))
		return
	}
	if req.ConfigPath == "" {
		writeError(w, http.StatusBadRequest, errs.Wrap(errs.ErrBadConfig, "config_path is required"))
		return
	}
	if req.Runs <= 0 {
		req.Runs = 1
	}

	cfg, err := config.Load(req.ConfigPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID := ksuid.New().String()
	name := req.Name
	if name == "" {
		name = cfg.Scenario.Sim.Name
	}
	opts := launcher.Options{SaveDir: req.SaveDir, Runs: req.Runs, Overwrite: req.Overwrite, Seed: req.Seed}

	go func() {
		if err := s.Launcher.Launch(context.Background(), runID, name, req.ConfigPath, *cfg, opts); err != nil {
			s.Log.Error().Err(err).Str("run_id", runID).Msg("run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, submitResponse{RunID: runID})
}

// handleQuery answers spec.md's query(run id) -> status.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.Store.Query(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type artifactResponse struct {
	OutputDir string   `json:"output_dir"`
	Files     []string `json:"files"`
}

// handleArtifact answers spec.md's fetch(run id) -> artifact paths. It
// lists the run's output directory rather than streaming file bytes, since
// a batch run produces one artifact per replicate.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dir, err := s.Store.Fetch(id)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errs.Wrap(errs.ErrWriteFault, "listing artifact dir %s: %v", dir, err))
		return
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	writeJSON(w, http.StatusOK, artifactResponse{OutputDir: dir, Files: files})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
