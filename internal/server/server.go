package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/ingestion"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
	"github.com/cyderes/jobs-ingestion-service/internal/storage"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, req ingestion.Request) (*models.RunSummary, error)
}

// Server handles HTTP requests
type Server struct {
	config  config.ServerConfig
	runner  Runner
	storage storage.Storage
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, runner Runner, store storage.Storage) *Server {
	s := &Server{
		config:  cfg,
		runner:  runner,
		storage: store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunByID)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleIngest runs the pipeline synchronously and returns the run summary
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseIngestRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A run is not abandoned when the caller disconnects.
	summary, err := s.runner.Run(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writeError(w, statusForRunError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func parseIngestRequest(r *http.Request) (ingestion.Request, error) {
	q := r.URL.Query()
	req := ingestion.Request{
		Query:   q.Get("query"),
		Country: q.Get("country"),
	}

	if v := strings.TrimSpace(q.Get("num_pages")); v != "" {
		pages, err := strconv.Atoi(v)
		if err != nil || pages < 1 {
			return req, fmt.Errorf("num_pages must be a positive integer, got %q", v)
		}
		req.Pages = pages
	}

	if v := strings.TrimSpace(q.Get("enrich")); v != "" {
		enrich, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("enrich must be true or false, got %q", v)
		}
		req.Enrich = enrich
	}

	return req, nil
}

// statusForRunError maps failed runs onto HTTP statuses: upstream problems
// are a bad gateway, everything else is ours.
func statusForRunError(err error) int {
	var runErr *ingestion.RunError
	if errors.As(err, &runErr) && runErr.Phase == ingestion.PhaseFetch {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleRuns lists recent runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := storage.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := s.storage.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	})
}

// handleRunByID returns a single run
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.storage.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve run: %v", err))
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleStatus reports the most recent run
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, err := storage.LatestRun(r.Context(), s.storage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to retrieve status: %v", err))
		return
	}
	if run == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "never_run"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
