// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopping-assistant/internal/assistant"
	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/validation"
)

// maxBodyBytes bounds POST /api/ai/ask bodies.
const maxBodyBytes = 1 << 20

// Asker answers one shopping question.
type Asker interface {
	Ask(ctx context.Context, input string) (assistant.Reply, error)
}

type Server struct {
	asker      Asker
	pinger     catalog.Pinger
	askSchema  *validation.Schema
	logger     logger.Logger
	httpServer *http.Server
}

// New wires the routes. pinger may be nil, in which case /ready only reports the process is up.
func New(cfg config.HTTPConfig, asker Asker, pinger catalog.Pinger, log logger.Logger) *Server {
	s := &Server{
		asker:     asker,
		pinger:    pinger,
		askSchema: validation.MustCompile(askSchema),
		logger:    log.With(map[string]interface{}{"component": "http"}),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ai/ask", s.handleAsk)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.recoverer(s.requestLogger(mux))
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"elapsedMs": time.Since(start).Milliseconds(),
		})
	})
}

// recoverer turns a handler panic into the generic failure reply.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("HTTP handler panicked", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": rec,
				})
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: assistant.MessageFailed})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
