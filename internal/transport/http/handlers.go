// Package http exposes the simulation control API: health, metrics, the
// engine control endpoints, and the live websocket feed.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"fleet-monitor/simulation/internal/engine"
	"fleet-monitor/simulation/internal/metrics"
)

// Pinger is a storage dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type LiveFeed interface {
	HandleLive(w http.ResponseWriter, r *http.Request)
}

type Server struct {
	engine *engine.Engine
	db     Pinger
	redis  Pinger
	feed   LiveFeed
}

func NewServer(e *engine.Engine, db, redis Pinger, feed LiveFeed) *Server {
	return &Server{engine: e, db: db, redis: redis, feed: feed}
}

// Routes builds the mux. Control endpoints and the live feed sit behind the
// auth middleware; health and metrics stay open for probes.
func (s *Server) Routes(mw *AuthMiddleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", metrics.HandleMetrics)

	protected := http.NewServeMux()
	protected.HandleFunc("/simulation/status", s.handleStatus)
	protected.HandleFunc("/simulation/start", s.handleStart)
	protected.HandleFunc("/simulation/stop", s.handleStop)
	protected.HandleFunc("/simulation/tick", s.handleTick)
	protected.HandleFunc("/simulation/refresh", s.handleRefresh)
	if s.feed != nil {
		protected.HandleFunc("/ws/live", s.feed.HandleLive)
	}
	mux.Handle("/simulation/", mw.Wrap(protected))
	mux.Handle("/ws/", mw.Wrap(protected))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "db": "ok", "redis": "ok"}
	code := http.StatusOK

	if err := s.db.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["db"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.engine.Start()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.engine.Stop()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.engine.Status().Running {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "engine is not running"})
		return
	}
	s.engine.TriggerOnce()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "tick scheduled"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.engine.Status().Running {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "engine is not running"})
		return
	}
	s.engine.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to encode response: %v", err)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
