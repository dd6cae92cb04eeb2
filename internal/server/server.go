// Package server exposes the journal wizard over HTTP: session
// lifecycle, step operations, integration status, local history, and
// the health and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/metrics"
	"github.com/daybookhq/daybook/internal/wizard"
)

// Server is the daybook HTTP API.
type Server struct {
	manager  *wizard.Manager
	registry *connectors.Registry
	store    *entries.Store
	events   *logging.EventRing

	startedAt time.Time
	httpSrv   *http.Server
}

// Options configures the server. Manager is required; the rest degrade
// gracefully when nil.
type Options struct {
	Manager  *wizard.Manager
	Registry *connectors.Registry
	Store    *entries.Store
	Events   *logging.EventRing
}

// New creates the server and registers the daybook Prometheus
// collectors.
func New(opts Options) *Server {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logging.Warn("server", "register metrics: %v", err)
	}
	return &Server{
		manager:   opts.Manager,
		registry:  opts.Registry,
		store:     opts.Store,
		events:    opts.Events,
		startedAt: time.Now(),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)

	mux.HandleFunc("POST /api/sessions/{id}/fetch", s.handleFetch)
	mux.HandleFunc("POST /api/sessions/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/sessions/{id}/selection", s.handleSetSelection)
	mux.HandleFunc("POST /api/sessions/{id}/continue", s.handleContinue)
	mux.HandleFunc("POST /api/sessions/{id}/pipeline", s.handleRunPipeline)
	mux.HandleFunc("POST /api/sessions/{id}/back", s.handleBack)
	mux.HandleFunc("POST /api/sessions/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /api/sessions/{id}/create", s.handleCreateEntry)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /api/integrations", s.handleListIntegrations)
	mux.HandleFunc("POST /api/integrations/validate", s.handleValidateIntegrations)

	mux.HandleFunc("GET /api/entries/recent", s.handleRecentEntries)
	mux.HandleFunc("GET /api/runs/recent", s.handleRecentRuns)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// ListenAndServe runs the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // pipeline runs are slow
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server", "listening on %s", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
