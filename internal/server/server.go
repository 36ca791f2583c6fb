package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/tracker"

	_ "github.com/raysh454/a11yscan/internal/server/docs" // swagger doc registration
)

const wsWriteTimeout = 10 * time.Second

// ScanService is the intake boundary the HTTP API sits on.
type ScanService interface {
	Submit(ctx context.Context, rawURL string, maxPages *int) (*app.SubmitResult, error)
	Status(ctx context.Context, publicID string) (*report.ScanView, error)
	Report(ctx context.Context, publicID string) (*report.ScanReport, error)
}

// EventSource streams job events for one scan.
type EventSource interface {
	Subscribe(scanID string) (<-chan app.JobEvent, func())
}

// Server is the HTTP + WebSocket API surface for a11yscan.
type Server struct {
	cfg          Config
	service      ScanService
	events       EventSource
	router       chi.Router
	upgrader     websocket.Upgrader
	limiter      *clientLimiter
	allowedHosts map[string]struct{}
	logger       logging.Logger
}

// NewServer builds the API around svc. events may be nil, which disables
// the progress stream.
func NewServer(cfg Config, svc ScanService, events EventSource) *Server {
	cfg.applyDefaults()

	s := &Server{
		cfg:          cfg,
		service:      svc,
		events:       events,
		router:       chi.NewRouter(),
		limiter:      newClientLimiter(cfg.RateLimitWindow, cfg.RateLimitMax),
		allowedHosts: make(map[string]struct{}),
		logger:       cfg.Logger.With(logging.F("component", "server")),
	}
	for _, o := range cfg.AllowedOrigins {
		if h := originHost(o); h != "" {
			s.allowedHosts[h] = struct{}{}
		}
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}

	s.routes()
	return s
}

// NewServerFor serves a wired application.
func NewServerFor(a *app.Application, cfg Config) *Server {
	return NewServer(cfg, a.Service, a.Events)
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/scans", s.optionsHandler("POST"))
	r.Options("/api/scans/{publicId}", s.optionsHandler("GET"))
	r.Options("/api/scans/{publicId}/report", s.optionsHandler("GET"))

	r.Get("/healthz", s.handleHealth)

	// Scans
	r.Post("/api/scans", s.handleCreateScan)
	r.Get("/api/scans/{publicId}", s.handleGetScan)
	r.Get("/api/scans/{publicId}/report", s.handleGetReport)

	// WebSocket for scan progress
	r.Get("/ws/scans/{publicId}", s.handleScanWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// corsMiddleware only grants cross-origin reads to origins the intake accepts.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// originAllowed accepts requests without an Origin header, and those whose
// origin host matches the request Host or an allowed origin.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	h := originHost(origin)
	if h == "" {
		return false
	}
	if r.Host != "" && h == strings.ToLower(r.Host) {
		return true
	}
	_, ok := s.allowedHosts[h]
	return ok
}

// originHost accepts "scheme://host[:port]" or a bare "host[:port]".
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if !strings.Contains(origin, "://") {
		return strings.ToLower(origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		logging.F("method", r.Method),
		logging.F("path", r.URL.Path),
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.F("query", q))
	}

	// Only a bounded prefix is logged; the rest stays unread for the handler.
	if r.Body != nil && r.Method == http.MethodPost {
		if head, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes)); err == nil {
			fields = append(fields, logging.F("body", string(head)))
			r.Body = readCloser{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateScan godoc
// @Summary Submit a scan
// @Tags scans
// @Accept json
// @Produce json
// @Param request body CreateScanRequest true "Scan request"
// @Success 201 {object} CreateScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} CreateScanResponse
// @Router /api/scans [post]
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	if r.ContentLength > s.cfg.MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if ct := strings.ToLower(r.Header.Get("Content-Type")); !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	key := clientKey(r)
	if ok, wait := s.limiter.allow(key); !ok {
		secs := retryAfterSeconds(wait)
		s.logger.Warn("rate limit exceeded", logging.F("client", key), logging.F("retry_after", secs))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("rate limit exceeded, retry in %d seconds", secs))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.service.Submit(r.Context(), req.URL, req.MaxPages)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, CreateScanResponse{PublicID: res.PublicID, Status: res.Status})
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrQueueStopped):
		if res == nil {
			writeError(w, http.StatusServiceUnavailable, app.BusyMessage)
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, CreateScanResponse{
			PublicID: res.PublicID,
			Status:   res.Status,
			Error:    app.BusyMessage,
		})
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("submitting scan", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleGetScan godoc
// @Summary Get scan status
// @Tags scans
// @Produce json
// @Param publicId path string true "Public scan id"
// @Success 200 {object} report.ScanView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/scans/{publicId} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Status(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetReport godoc
// @Summary Get scan report
// @Tags scans
// @Produce json
// @Param publicId path string true "Public scan id"
// @Success 200 {object} report.ScanReport
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/scans/{publicId}/report [get]
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.service.Report(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid scan id")
	case errors.Is(err, tracker.ErrScanNotFound):
		writeError(w, http.StatusNotFound, "scan not found")
	default:
		s.logger.Error("reading scan", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleScanWS sends the current scan view, then streams job events until
// the scan reaches a terminal state or the client goes away.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "progress stream unavailable")
		return
	}
	id := chi.URLParam(r, "publicId")

	// Subscribe before reading the view so no event falls in between.
	events, cancel := s.events.Subscribe(id)
	defer cancel()

	view, err := s.service.Status(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	if err := s.writeWS(conn, view); err != nil || view.Status.Terminal() {
		return
	}

	// Reading is needed to notice the client closing the socket.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeWS(conn, ev); err != nil {
				s.logger.Debug("websocket client went away", logging.F("scan_id", id), logging.Err(err))
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
