// Package server exposes the conversation engine over a websocket, with
// health, metrics and read-only memory endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kataras/golog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
)

// Config configures the HTTP server.
type Config struct {
	Addr            string        `yaml:"addr"`
	AllowAnyOrigin  bool          `yaml:"allow_any_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig listens on localhost only.
var DefaultConfig = Config{
	Addr:            "127.0.0.1:8080",
	ShutdownTimeout: 10 * time.Second,
}

// Server serves one memory Session per websocket connection.
type Server struct {
	cfg          Config
	engine       *engine.Engine
	dispatcher   *commands.Dispatcher
	systemPrompt string
	gatherer     prometheus.Gatherer
	upgrader     websocket.Upgrader
	connections  atomic.Int64
}

// New creates a server. gatherer backs /metrics; nil uses the default registry.
func New(cfg Config, e *engine.Engine, systemPrompt string, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:          cfg,
		engine:       e,
		dispatcher:   commands.NewDispatcher(e.Manager()),
		systemPrompt: systemPrompt,
		gatherer:     gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWS)

	r.Route("/v1/memory", func(r chi.Router) {
		r.Get("/stats", s.handleCommand("memory_stats", ""))
		r.Get("/search", s.handleSearch)
		r.Get("/recent", s.handleCommand("memory_recent", "n"))
		r.Get("/preview", s.handleCommand("memory_preview", "q"))
		r.Delete("/", s.handleCommand("memory_clear", "confirm"))
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		golog.Infof("[SERVER] Listening on %s", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		golog.Warnf("[SERVER] Graceful shutdown failed: %v", err)
		return httpServer.Close()
	}
	golog.Infof("[SERVER] Shutdown complete")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"memory_enabled": s.engine.Manager().Enabled(),
		"connections":    s.connections.Load(),
	})
}

// handleCommand runs a session-less command, taking its argument from the
// named query parameter.
func (s *Server) handleCommand(name, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		line := name
		if param != "" {
			line += " " + r.URL.Query().Get(param)
		}
		res, _ := s.dispatcher.Dispatch(r.Context(), nil, line)
		respondResult(w, res)
	}
}

// handleSearch runs memory_search with optional min_importance, after and
// before filters. Times are RFC 3339.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, &commands.Result{
			Command: "memory_search",
			Kind:    commands.KindError,
			Message: err.Error(),
		})
		return
	}
	respondResult(w, s.dispatcher.Search(r.Context(), strings.TrimSpace(q.Get("q")), filter))
}

func parseFilter(q url.Values) (memory.Filter, error) {
	var f memory.Filter
	if v := q.Get("min_importance"); v != "" {
		imp, err := strconv.ParseFloat(v, 64)
		if err != nil || imp < 0 || imp > 1 {
			return f, fmt.Errorf("min_importance must be a number within [0,1], got %q", v)
		}
		f.MinImportance = imp
	}
	for name, dst := range map[string]*time.Time{"after": &f.After, "before": &f.Before} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s must be an RFC 3339 time: %w", name, err)
		}
		*dst = t
	}
	return f, nil
}

func respondResult(w http.ResponseWriter, res *commands.Result) {
	status := http.StatusOK
	switch res.Kind {
	case commands.KindAdvisory:
		status = http.StatusConflict
	case commands.KindError:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, res)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
