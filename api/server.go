// Package api - Thin HTTP layer over the bill engine
// The API is ONLY responsible for: input ingestion, engine calls, output serialization.
// The API NEVER performs pricing logic.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"utility-bill/core/engine"
	"utility-bill/internal/errors"
)

// Server is the API server
type Server struct {
	handler *Handler
	engine  *engine.Engine
	mux     *http.ServeMux
	version string
	metrics http.Handler
	logger  *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics serves h on GET /metrics
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server
func NewServer(version string, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		handler: NewHandler(eng),
		engine:  eng,
		mux:     http.NewServeMux(),
		version: version,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("POST /bills/electricity", s.handleElectricity)
	s.mux.HandleFunc("POST /bills/water", s.handleWater)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("DELETE /history", s.handleClearHistory)
	s.mux.HandleFunc("GET /summary", s.handleSummary)
	s.mux.HandleFunc("GET /tariffs", s.handleTariffs)

	// Supporting endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// handleElectricity handles POST /bills/electricity
func (s *Server) handleElectricity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := generateRequestID()

	var req ElectricityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, CodeInvalidJSON, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.handler.electricity(r.Context(), &req)
	if err != nil {
		s.writeEngineError(w, requestID, err)
		return
	}

	resp.Metadata = s.metadata(requestID, start)
	s.writeJSON(w, resp, http.StatusOK)
}

// handleWater handles POST /bills/water
func (s *Server) handleWater(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := generateRequestID()

	var req WaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, CodeInvalidJSON, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.handler.water(r.Context(), &req)
	if err != nil {
		s.writeEngineError(w, requestID, err)
		return
	}

	resp.Metadata = s.metadata(requestID, start)
	s.writeJSON(w, resp, http.StatusOK)
}

// handleHistory handles GET /history?type=all|electricity|water
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.handler.history(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		s.writeEngineError(w, generateRequestID(), err)
		return
	}
	s.writeJSON(w, resp, http.StatusOK)
}

// handleClearHistory handles DELETE /history
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	result := s.engine.ClearHistory(r.Context())
	if !result.OK {
		s.writeEngineError(w, generateRequestID(), result.Err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSummary handles GET /summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.handler.summary(r.Context()), http.StatusOK)
}

// handleTariffs handles GET /tariffs
func (s *Server) handleTariffs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Tariffs(), http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.version,
		"engine":      "utility-bill",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) metadata(requestID string, start time.Time) *ResponseMetadata {
	return &ResponseMetadata{
		RequestID:     requestID,
		EngineVersion: s.version,
		DurationMs:    time.Since(start).Milliseconds(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, requestID, code, message string, status int) {
	s.writeJSON(w, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}}, status)
}

// writeEngineError maps typed errors onto HTTP statuses
func (s *Server) writeEngineError(w http.ResponseWriter, requestID string, err error) {
	switch errors.TypeOf(err) {
	case errors.TypeInput:
		s.writeError(w, requestID, CodeValidationError, err.Error(), http.StatusBadRequest)
	case errors.TypeNotFound:
		s.writeError(w, requestID, CodeNotFound, err.Error(), http.StatusNotFound)
	case errors.TypeStorage:
		s.logger.Error("storage failure", zap.String("request_id", requestID), zap.Error(err))
		s.writeError(w, requestID, CodeStorageError, err.Error(), http.StatusInternalServerError)
	default:
		// unclassified causes stay in the log, not the response
		internal := errors.Internal("internal error", err)
		s.logger.Error("request failed", zap.String("request_id", requestID), zap.Error(internal))
		s.writeError(w, requestID, CodeInternalError, internal.Message, http.StatusInternalServerError)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)))
}

// HTTPServer wraps the server in an *http.Server with the given timeouts
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func generateRequestID() string {
	return uuid.NewString()
}
