// Package server exposes the voice to issue pipeline over HTTP and relays
// browser speech recognition over a websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/metrics"
	"github.com/danielolaszy/voice2issue/internal/workflow"
)

const requestIDHeader = "X-Request-ID"

// Server serves the HTTP API.
type Server struct {
	cfg      *config.Config
	workflow *workflow.Workflow
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

// New creates a Server. m and gatherer may be nil; /metrics then serves the
// default registry.
func New(cfg *config.Config, wf *workflow.Workflow, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		workflow: wf,
		metrics:  m,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // The UI may be served from another origin during development
			},
		},
	}
}

// Routes returns the HTTP handler of the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/issues", s.handleCreateIssue)
		r.Post("/extract", s.handleExtract)
		r.Post("/github/test", s.handleTestConnection)
		r.Get("/github/repo", s.handleRepositoryInfo)
		r.Get("/transcript/ws", s.handleTranscriptSocket)
	})

	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting http server", "addr", s.cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// requestID tags every request with an id, reusing one supplied by the
// client, and attaches a logger carrying it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logging.NewContext(r.Context(), logging.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
