// Package api serves the read-only reporting surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/engine"
	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/metrics"
	"buzzbot-go/internal/position"
	"buzzbot-go/internal/signal"
)

const (
	defaultSignalWindow = 2 * time.Hour
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Engine is the part of the trading loop the API reads from.
type Engine interface {
	RunCycle(ctx context.Context) (engine.Report, error)
	Status() engine.Status
	Health() engine.Health
	Positions() []position.Position
	Trades(limit int) []position.Trade
	Summary() ledger.Summary
}

// Signals lists recently persisted signals, newest first.
type Signals interface {
	RecentSignals(ctx context.Context, since time.Time) ([]signal.Signal, error)
}

// Server routes the reporting endpoints.
type Server struct {
	log      zerolog.Logger
	engine   Engine
	signals  Signals
	settings func() (map[string]any, error)
	window   time.Duration
	now      func() time.Time
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithSignalWindow changes how far back /signals looks.
func WithSignalWindow(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the server. settings returns the configuration to publish.
func New(log zerolog.Logger, eng Engine, signals Signals, settings func() (map[string]any, error), opts ...Option) *Server {
	s := &Server{
		log:      log,
		engine:   eng,
		signals:  signals,
		settings: settings,
		window:   defaultSignalWindow,
		now:      time.Now,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /signals", s.handleSignals)
	s.mux.HandleFunc("GET /positions", s.handlePositions)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /settings", s.handleSettings)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /scan", s.handleScan)
	s.mux.Handle("GET /metrics", metrics.Handler())
	return s
}

// Handler exposes the routes.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("api listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		writeJSON(w, http.StatusOK, []signal.Signal{})
		return
	}
	out, err := s.signals.RecentSignals(r.Context(), s.now().Add(-s.window))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if out == nil {
		out = []signal.Signal{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Positions())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	writeJSON(w, http.StatusOK, s.engine.Trades(limit))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Summary())
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	if s.settings == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	out, err := s.settings()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.engine.Health()
	status := http.StatusOK
	if health.Critical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

type scanResponse struct {
	Report engine.Report `json:"report"`
	Error  string        `json:"error,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.RunCycle(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("manual scan failed")
		writeJSON(w, http.StatusBadGateway, scanResponse{Report: report, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Report: report})
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("api request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
