// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/nanotel/internal/runstore"
	"github.com/coffersTech/nanotel/pkg/telparse"
)

// defaultMaxBody bounds an analyze request body unless Config.MaxBodyBytes is set.
const defaultMaxBody = 64 << 20

// Config wires a Server.
type Config struct {
	Port int
	// APIKeyHashes are bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string
	// Runs, when set, records every analysis that asks to be saved.
	Runs         *runstore.Store
	Subscription *telparse.Subscription
	Options      telparse.Options
	// MaxBodyBytes caps analyze bodies; larger ones get 413.
	MaxBodyBytes int64
}

type Server struct {
	Router  *chi.Mux
	port    int
	logger  *slog.Logger
	runs    *runstore.Store
	sub     *telparse.Subscription
	opts    telparse.Options
	maxBody int64
	parser  fastjson.ParserPool
	srv     *http.Server
}

func New(cfg Config, logger *slog.Logger) *Server {
	s := &Server{
		port:   cfg.Port,
		logger: logger,
		runs:   cfg.Runs,
		sub:    cfg.Subscription,
		opts:   cfg.Options,
	}
	s.maxBody = cfg.MaxBodyBytes
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if len(cfg.APIKeyHashes) > 0 {
			r.Use(AuthMiddleware(cfg.APIKeyHashes))
		}
		r.Get("/api/queries", s.handleQueries)
		r.Get("/api/taxonomy", s.handleTaxonomy)
		r.Post("/api/analyze/{query}", s.handleAnalyze)
		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{id}", s.handleGetRun)
	})

	s.Router = r
	return s
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", slog.Int("port", s.port))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
