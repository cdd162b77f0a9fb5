// Package server exposes the placement engine over HTTP.
//
// The API is session-oriented: clients create a session per viewport, run
// full placements against it, and stream incremental events. A stateless
// mode recomputes every request against a fresh index and serves repeated
// payloads from the result cache instead of holding sessions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/labelgrid/internal/config"
	"github.com/matzehuels/labelgrid/pkg/cache"
	lgerrors "github.com/matzehuels/labelgrid/pkg/errors"
	"github.com/matzehuels/labelgrid/pkg/label"
	"github.com/matzehuels/labelgrid/pkg/observability"
	"github.com/matzehuels/labelgrid/pkg/rtree"
	"github.com/matzehuels/labelgrid/pkg/session"
)

// =============================================================================
// Server
// =============================================================================

// Server is the HTTP boundary around a session manager.
type Server struct {
	cfg     config.Config
	manager *session.Manager
	cache   cache.Cache
	logger  *log.Logger
}

// New creates a server. A nil resultCache disables stateless caching, a nil
// logger discards output.
func New(cfg config.Config, manager *session.Manager, resultCache cache.Cache, logger *log.Logger) *Server {
	if resultCache == nil {
		resultCache = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{cfg: cfg, manager: manager, cache: resultCache, logger: logger}
}

// RegisterMetricsHooks wires the Prometheus collectors into the
// observability registry. Call once at startup.
func RegisterMetricsHooks() {
	observability.SetPlacementHooks(metricsPlacementHooks{})
	observability.SetSessionHooks(metricsSessionHooks{})
	observability.SetCacheHooks(metricsCacheHooks{})
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLog(s.logger))
	r.Use(auth(s.cfg.Server.APIKey))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Put("/", s.handleCreate)
		r.Delete("/", s.handleClose)
		r.Post("/place", s.handlePlace)
		r.Post("/events", s.handleEvents)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", s.cfg.Server.Addr, "stateless", s.cfg.Server.Stateless)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// =============================================================================
// Handlers
// =============================================================================

type placeRequest struct {
	Zoom     float64         `json:"zoom"`
	Features []label.Feature `json:"features"`
}

type placeResponse struct {
	Placements map[string]label.Placement `json:"placements"`
}

type eventsRequest struct {
	Events []session.Event `json:"events"`
}

type healthResponse struct {
	Status string        `json:"status"`
	Stats  session.Stats `json:"stats"`
}

// sessionID extracts and validates the session ID from the route. It writes
// the error response itself and reports ok=false on a bad ID.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := lgerrors.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), lgerrors.UserMessage(err))
		return "", false
	}
	return id, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Server.Stateless {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), "sessions are disabled in stateless mode")
		return
	}
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	s.manager.Create(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if !s.manager.Close(r.Context(), id) {
		writeError(w, http.StatusNotFound, string(lgerrors.ErrCodeUnknownSession), "no session "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), "invalid request body: "+err.Error())
		return
	}

	if s.cfg.Server.Stateless {
		s.placeStateless(w, r, id, req)
		return
	}

	placements, err := s.manager.PlaceAll(r.Context(), id, req.Features, req.Zoom)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placeResponse{Placements: placements})
}

// placeStateless recomputes the placement against a fresh index, serving
// byte-identical repeats from the result cache.
func (s *Server) placeStateless(w http.ResponseWriter, r *http.Request, id string, req placeRequest) {
	ctx := r.Context()

	payload, err := json.Marshal(req.Features)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), "invalid features: "+err.Error())
		return
	}
	key := cache.PlacementKey(id, req.Zoom, payload)

	if data, found, err := s.cache.Get(ctx, key); err == nil && found {
		observability.Cache().OnCacheHit(ctx, key)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	observability.Cache().OnCacheMiss(ctx, key)

	idx := rtree.New(rtree.Config{
		MinEntries: s.cfg.Index.MinEntries,
		MaxEntries: s.cfg.Index.MaxEntries,
	})
	placements, _ := s.manager.Engine().Place(ctx, id, req.Features, idx, req.Zoom)

	body, err := json.Marshal(placeResponse{Placements: placements})
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	if err := s.cache.Set(ctx, key, body, s.cfg.Cache.TTL.Duration); err != nil {
		s.logger.Warn("cache set failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, key, len(body))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Server.Stateless {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), "events require session mode")
		return
	}
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req eventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(lgerrors.ErrCodeInvalidInput), "invalid request body: "+err.Error())
		return
	}

	update, err := s.manager.ApplyEvents(r.Context(), id, req.Events)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Stats: s.manager.Stats()})
}

// =============================================================================
// Error Mapping
// =============================================================================

// writeAPIError maps engine error codes to HTTP statuses.
func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	code := lgerrors.GetCode(err)
	if code == "" {
		code = lgerrors.ErrCodeInternal
	}
	status := http.StatusInternalServerError
	switch code {
	case lgerrors.ErrCodeUnknownSession:
		status = http.StatusNotFound
	case lgerrors.ErrCodeInvalidInput, lgerrors.ErrCodeInvalidGeometry, lgerrors.ErrCodeCandidateOverflow:
		status = http.StatusBadRequest
	case lgerrors.ErrCodeSessionClosed:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeError(w, status, string(code), lgerrors.UserMessage(err))
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
