package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"lexis/internal/analysis"
	"lexis/internal/profile"
)

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withTelemetry(next http.Handler, telemetry *telemetry, logger *slog.Logger, logRequests bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		telemetry.recordRequest(r.Context(), r.Method, r.URL.Path, recorder.status, duration)
		if logRequests && logger != nil {
			logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration_ms", duration.Milliseconds())
		}
	})
}

// maxAnalyzeBody bounds the text accepted by a single analyze request.
const maxAnalyzeBody = 8 << 20

type apiServer struct {
	registry       *profile.Registry
	defaultProfile string
	telemetry      *telemetry
	logger         *slog.Logger
	ready          atomic.Bool
}

func newAPIServer(registry *profile.Registry, defaultProfile string, telemetry *telemetry, logger *slog.Logger) *apiServer {
	server := &apiServer{
		registry:       registry,
		defaultProfile: defaultProfile,
		telemetry:      telemetry,
		logger:         logger,
	}

	for _, def := range registry.List() {
		if _, err := registry.Analyzer(def.Name); err != nil {
			logger.Error("profile failed to build", "profile", def.Name, "error", err)
		}
	}
	telemetry.observeProfiles(len(registry.List()))
	server.ready.Store(true)

	return server
}

func (s *apiServer) routes(logRequests bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/profiles", s.handleProfiles)
	mux.HandleFunc("/v1/profiles/", s.handleProfileByName)
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/ready", s.handleReadiness)
	if s.telemetry != nil && s.telemetry.enabled {
		mux.HandleFunc("/v1/metrics", s.telemetry.handleMetrics)
	}

	return withTelemetry(withJSONHeaders(mux), s.telemetry, s.logger, logRequests)
}

type analyzeRequest struct {
	Text    string `json:"text"`
	Profile string `json:"profile"`
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json payload", start)
		return
	}

	name := req.Profile
	if name == "" {
		name = s.defaultProfile
	}

	analyzer, err := s.registry.Analyzer(name)
	if err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}

	tokens, err := analyzer.Analyze(req.Text)
	if err != nil {
		s.logger.Error("analysis failed", "profile", name, "error", err)
		respondError(w, http.StatusInternalServerError, "analysis failed", start)
		return
	}
	if tokens == nil {
		tokens = []analysis.Token{}
	}

	s.telemetry.recordAnalysis(r.Context(), name, len(tokens), time.Since(start))
	if err := s.registry.RecordUsage(name, 1, len(tokens)); err != nil {
		s.logger.Warn("failed to record profile usage", "profile", name, "error", err)
	}

	respond(w, http.StatusOK, map[string]any{
		"profile":  name,
		"tokens":   tokens,
		"count":    len(tokens),
		"timingMs": time.Since(start).Milliseconds(),
	})
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createProfile(w, r)
	case http.MethodGet:
		s.listProfiles(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *apiServer) handleProfileByName(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/profiles/"), "/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	def, ok := s.registry.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "profile not found", start)
		return
	}
	respond(w, http.StatusOK, def)
}

func (s *apiServer) createProfile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req profile.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json payload", start)
		return
	}

	def, err := s.registry.Create(req)
	if err != nil {
		respondError(w, httpStatusForError(err), err.Error(), start)
		return
	}
	s.telemetry.observeProfiles(len(s.registry.List()))
	s.logger.Info("profile created", "profile", def.Name, "filters", len(def.Filters))

	respond(w, http.StatusCreated, map[string]any{"profile": def, "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) listProfiles(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	respond(w, http.StatusOK, map[string]any{"profiles": s.registry.List(), "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	respond(w, http.StatusOK, map[string]any{"status": "ok", "timingMs": time.Since(start).Milliseconds()})
}

func (s *apiServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	ready := s.ready.Load()

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respond(w, status, map[string]any{
		"status":   map[bool]string{true: "ready", false: "initializing"}[ready],
		"profiles": len(s.registry.List()),
		"timingMs": time.Since(start).Milliseconds(),
	})
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string, start time.Time) {
	respond(w, status, map[string]any{"error": message, "timingMs": time.Since(start).Milliseconds()})
}

func httpStatusForError(err error) int {
	switch {
	case errors.Is(err, profile.ErrProfileExists):
		return http.StatusConflict
	case errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
