// Package api exposes the HTTP surface: REST endpoints for flight state
// and diagnostics, the browser WebSocket stream, and the legacy NDJSON
// streaming binding.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"swim_feed/internal/fanout"
	"swim_feed/internal/flightstate"
	"swim_feed/internal/registry"
	"swim_feed/internal/trackid"
)

// DefaultPort is the listen port for the HTTP surface.
const DefaultPort = 5001

// writeTimeout bounds a single envelope write to a client.
const writeTimeout = 5 * time.Second

// drainTimeout bounds graceful shutdown of open connections.
const drainTimeout = 2 * time.Second

// Config holds server settings.
type Config struct {
	Port   int
	KMLDir string // boundary files served as-is; empty disables
}

// Server wires the HTTP handlers to the flight-state store and fanout
// hub.
type Server struct {
	cfg      Config
	store    *flightstate.Store
	hub      *fanout.Hub
	pipeline *registry.Pipeline
	mapper   *trackid.Mapper
	log      *slog.Logger
	started  time.Time
}

func NewServer(cfg Config, store *flightstate.Store, hub *fanout.Hub, pipeline *registry.Pipeline, mapper *trackid.Mapper, log *slog.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		pipeline: pipeline,
		mapper:   mapper,
		log:      log,
		started:  time.Now(),
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/diag", s.handleDiag)

	r.Route("/api", func(r chi.Router) {
		r.Get("/flights", s.handleFlights)
		r.Get("/flights/{gufi}", s.handleFlight)
		r.Get("/stats", s.handleStats)
		if s.cfg.KMLDir != "" {
			r.Get("/kml", s.handleKMLList)
			r.Get("/kml/{name}", s.handleKMLFile)
		}
	})

	r.Get("/ws", s.handleWebSocket)
	r.Get("/dstars/{facility}/updates", s.handleStream)
	return r
}

// Run serves until ctx is cancelled, then drains open connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	s.hub.CloseAll()
	if err := srv.Shutdown(shutCtx); err != nil {
		srv.Close()
	}
	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	gufi := chi.URLParam(r, "gufi")
	f, ok := s.store.Get(gufi)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown gufi")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, rate := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"msgTotal":      total,
		"msgRate":       rate,
		"activeFlights": s.store.Count(),
	})
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	total, rate := s.store.Stats()
	diag := map[string]any{
		"timestamp":        time.Now().UTC(),
		"uptimeSec":        int(time.Since(s.started).Seconds()),
		"activeTracks":     s.store.Count(),
		"connectedClients": s.hub.Count(),
		"msgTotal":         total,
		"msgRate":          rate,
	}
	if s.mapper != nil {
		diag["legacyTrackIds"] = s.mapper.Len()
	}
	if s.pipeline != nil {
		services := make(map[string]any)
		for svc, st := range s.pipeline.Stats() {
			services[string(svc)] = st
		}
		diag["services"] = services
	}
	writeJSON(w, http.StatusOK, diag)
}
