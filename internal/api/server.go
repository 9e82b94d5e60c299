// Package api provides the HTTP REST API for the scandeck console. It
// implements endpoints for scan lifecycle control, the template catalog
// and validation, findings triage, and system status, plus a WebSocket
// feed of store changes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scandeck/scandeck/internal/config"
	"github.com/scandeck/scandeck/internal/engine"
	"github.com/scandeck/scandeck/internal/lifecycle"
	"github.com/scandeck/scandeck/internal/logging"
	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
	"github.com/scandeck/scandeck/internal/validation"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config

	store      *store.Store
	controller *lifecycle.Controller
	engine     *engine.Engine
	validator  *validation.Simulator
	ws         *WebSocketHandler

	logger    *slog.Logger
	prom      *metrics.PrometheusMetrics
	metrics   metrics.MetricsRegistry
	startTime time.Time
}

// New creates a new API server instance.
func New(cfg *config.Config, st *store.Store, ctrl *lifecycle.Controller,
	eng *engine.Engine, vs *validation.Simulator) (*Server, error) {
	logger := logging.Default().With("component", "api")

	router := mux.NewRouter()

	server := &Server{
		router:     router,
		config:     cfg,
		store:      st,
		controller: ctrl,
		engine:     eng,
		validator:  vs,
		logger:     logger,
		prom:       metrics.GetGlobalMetrics(),
		metrics:    metrics.Default(),
		startTime:  time.Now(),
	}
	server.ws = NewWebSocketHandler(st, logger)

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:      server.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return server, nil
}

// Start starts the API server and blocks until the context is canceled
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	s.ws.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/liveness", s.livenessHandler).Methods("GET")
	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/status", s.statusHandler).Methods("GET")
	api.HandleFunc("/version", s.versionHandler).Methods("GET")

	// Scans
	api.HandleFunc("/scans", s.listScansHandler).Methods("GET")
	api.HandleFunc("/scans", s.createScanHandler).Methods("POST")
	api.HandleFunc("/scans", s.deleteScansHandler).Methods("DELETE")
	api.HandleFunc("/scans/{id}", s.getScanHandler).Methods("GET")
	api.HandleFunc("/scans/{id}", s.deleteScanHandler).Methods("DELETE")
	api.HandleFunc("/scans/{id}/pause", s.pauseScanHandler).Methods("POST")
	api.HandleFunc("/scans/{id}/resume", s.resumeScanHandler).Methods("POST")
	api.HandleFunc("/scans/{id}/stop", s.stopScanHandler).Methods("POST")
	api.HandleFunc("/scans/{id}/restart", s.restartScanHandler).Methods("POST")
	api.HandleFunc("/scans/{id}/findings", s.scanFindingsHandler).Methods("GET")

	// Templates
	api.HandleFunc("/templates", s.listTemplatesHandler).Methods("GET")
	api.HandleFunc("/templates/upload", s.uploadTemplatesHandler).Methods("POST")
	api.HandleFunc("/templates/validate-custom", s.validateCustomHandler).Methods("POST")
	api.HandleFunc("/templates/{id}", s.getTemplateHandler).Methods("GET")
	api.HandleFunc("/templates/{id}/validate", s.validateTemplateHandler).Methods("POST")

	// Findings
	api.HandleFunc("/findings", s.listFindingsHandler).Methods("GET")
	api.HandleFunc("/findings", s.deleteFindingsHandler).Methods("DELETE")
	api.HandleFunc("/findings/{id}", s.getFindingHandler).Methods("GET")
	api.HandleFunc("/findings/{id}/false-positive", s.toggleFalsePositiveHandler).Methods("POST")
	api.HandleFunc("/findings/{id}/notes", s.setFindingNotesHandler).Methods("PUT")

	// Target lists, stats, UI preferences
	api.HandleFunc("/targetlists", s.listTargetListsHandler).Methods("GET")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	api.HandleFunc("/ui", s.getUIHandler).Methods("GET")
	api.HandleFunc("/ui", s.updateUIHandler).Methods("PUT")

	// WebSocket feed of store changes
	s.router.HandleFunc("/ws", s.ws.Serve)

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.HandlerFor(
		s.prom.GetRegistry(), promhttp.HandlerOpts{}))

	// Root index for API clients
	s.router.HandleFunc("/", s.indexHandler).Methods("GET")
}

// setupMiddleware configures middleware for the API server.
func (s *Server) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	if s.config.API.CORS.Enabled {
		corsOptions := handlers.AllowedOrigins(s.config.API.CORS.AllowedOrigins)
		corsHeaders := handlers.AllowedHeaders(s.config.API.CORS.AllowedHeaders)
		corsMethods := handlers.AllowedMethods(s.config.API.CORS.AllowedMethods)
		s.router.Use(handlers.CORS(corsOptions, corsHeaders, corsMethods))
	}

	s.router.Use(s.contentTypeMiddleware)
}

// indexHandler returns API information for root requests.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": "Scandeck API",
		"version": "v1",
		"endpoints": map[string]string{
			"scans":     "/api/v1/scans",
			"templates": "/api/v1/templates",
			"findings":  "/api/v1/findings",
			"health":    "/api/v1/health",
			"metrics":   "/metrics",
			"websocket": "/ws",
		},
		"timestamp": time.Now().UTC(),
	}
	s.WriteJSON(w, r, http.StatusOK, response)
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// ErrorResponse represents a standard API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// writeError writes a standardized error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	s.logger.Error("API error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"error", err,
		"remote_addr", r.RemoteAddr)

	response := ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(r),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.Error("Failed to encode error response", "error", encodeErr)
	}
}

// WriteJSON writes a JSON response.
func (s *Server) WriteJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method)
	}
}

// ParseJSON parses JSON request body into the provided struct.
func (s *Server) ParseJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, s.config.API.MaxRequestSize))
	decoder.DisallowUnknownFields() // Strict parsing

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

// GetQueryParam gets a query parameter with optional default value.
func (s *Server) GetQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}

// GetQueryParamInt gets an integer query parameter with optional default value.
func (s *Server) GetQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		return strconv.Atoi(value)
	}
	return defaultValue, nil
}

// getRequestID extracts or generates a request ID.
func getRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// Middleware functions.

// recoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("Panic in API handler",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method)
				s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and feeds the request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		if s.config.Logging.RequestLogging {
			s.logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", duration,
				"remote_addr", r.RemoteAddr)
		}

		path := routePattern(r)
		s.prom.IncrementHTTPRequests(r.Method, path, strconv.Itoa(wrapped.statusCode))
		s.prom.RecordHTTPDuration(r.Method, path, duration)
		if wrapped.statusCode >= http.StatusInternalServerError {
			s.prom.IncrementHTTPErrors(r.Method, path, "server_error")
		}
	})
}

// routePattern returns the mux route template for metric labels so ids
// do not explode label cardinality.
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// contentTypeMiddleware validates content type for mutating requests.
func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && contentType != "application/json" {
				s.writeError(w, r, http.StatusUnsupportedMediaType,
					fmt.Errorf("unsupported content type: %s", contentType))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// PaginationParams represents pagination parameters.
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Offset   int `json:"offset"`
}

// GetPaginationParams extracts pagination parameters from request.
func (s *Server) GetPaginationParams(r *http.Request) PaginationParams {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	page, err := s.GetQueryParamInt(r, "page", defaultPage)
	if err != nil || page < 1 {
		page = defaultPage
	}

	pageSize, err := s.GetQueryParamInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination struct {
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"pagination"`
}

// WritePaginatedResponse writes a paginated response.
func (s *Server) WritePaginatedResponse(
	w http.ResponseWriter,
	r *http.Request,
	data interface{},
	params PaginationParams,
	totalItems int64,
) {
	totalPages := int((totalItems + int64(params.PageSize) - 1) / int64(params.PageSize))

	response := PaginatedResponse{Data: data}
	response.Pagination.Page = params.Page
	response.Pagination.PageSize = params.PageSize
	response.Pagination.TotalItems = totalItems
	response.Pagination.TotalPages = totalPages

	s.WriteJSON(w, r, http.StatusOK, response)
}
