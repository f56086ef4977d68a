// Package server exposes a Session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cbegin/beatsmith-go"
	"github.com/cbegin/beatsmith-go/internal/logger"
)

// Config holds server configuration
type Config struct {
	Port int
}

// Server is the HTTP server
type Server struct {
	config  Config
	router  *chi.Mux
	session *beatsmith.Session
}

// New creates a new server
func New(cfg Config, session *beatsmith.Session) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		session: session,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/presets", s.handlePresets)

		r.Post("/compositions", s.handleGenerate)
		r.Get("/composition", s.handleGetComposition)
		r.Put("/composition", s.handlePutComposition)

		r.Get("/export.wav", s.handleExportWAV)
		r.Get("/export.mid", s.handleExportMIDI)

		r.Route("/transport", func(r chi.Router) {
			r.Use(s.requireEngine)
			r.Get("/", s.handleTransport)
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
		})

		r.Route("/mix", func(r chi.Router) {
			r.Use(s.requireEngine)
			r.Get("/", s.handleGetMix)
			r.Put("/master", s.handleSetMaster)
			r.Put("/tracks/{instrument}", s.handleSetTrack)
		})

		r.With(s.requireEngine).Get("/spectrum", s.handleSpectrum)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long renders
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.Fields{"port": s.config.Port})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", err, nil)
		return err
	}
	return <-errCh
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("request", logger.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}

func (s *Server) requireEngine(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.session.Engine() == nil {
			writeError(w, http.StatusServiceUnavailable, "live playback is not available")
			return
		}
		next.ServeHTTP(w, r)
	})
}
