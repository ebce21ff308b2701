// Package api exposes the HTTP status interface used by watch mode.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sitewake/internal/monitor"
	"sitewake/internal/sites"
)

// HistoryStore supplies past check results for one site, newest first.
type HistoryStore interface {
	History(ctx context.Context, siteName string, limit int) ([]monitor.CheckResult, error)
}

// Server serves health, metrics, and the latest fleet report.
type Server struct {
	router  chi.Router
	logger  *zap.Logger
	history HistoryStore

	mu         sync.RWMutex
	fleet      []sites.Site
	lastReport *monitor.Report
}

// NewServer constructs a Server for the given fleet. history may be nil when
// no history store is configured.
func NewServer(fleet []sites.Site, history HistoryStore, logger *zap.Logger) *Server {
	s := &Server{fleet: fleet, history: history, logger: logger}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(logger))
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/report", s.report)
	r.Get("/sites", s.listSites)
	r.Get("/sites/{name}/history", s.siteHistory)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetReport stores the latest aggregate report. Called by the watch loop
// after every pass; a single writer, many readers.
func (s *Server) SetReport(rep monitor.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &rep
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) report(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.lastReport
	s.mu.RUnlock()
	if rep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	fleet := s.fleet
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, fleet)
}

func (s *Server) siteHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history store not configured"})
		return
	}
	name := chi.URLParam(r, "name")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.history.History(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("History query failed", zap.String("site", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
		return
	}
	if results == nil {
		results = []monitor.CheckResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ListenAndServe runs the server until ctx is canceled or the listener
// fails. On cancellation in-flight requests get a short grace period to
// finish before the listener closes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
