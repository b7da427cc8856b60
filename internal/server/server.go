// Package server exposes the generator and the post store over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/metrics"
	"github.com/qianshe/snowflake/internal/store"
)

// MaxBatch caps POST /v1/ids?count=N.
const MaxBatch = 1000

// Server wires handlers to their dependencies.
type Server struct {
	gen     *snowflake.Generator
	posts   *store.Store // nil disables /v1/posts
	reg     *metrics.Registry
	logger  *slog.Logger
	handler http.Handler
}

// New builds the router. posts may be nil.
func New(gen *snowflake.Generator, posts *store.Store, reg *metrics.Registry, logger *slog.Logger) *Server {
	s := &Server{
		gen:    gen,
		posts:  posts,
		reg:    reg,
		logger: logger.With(slog.String("component", "http")),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.recovery)
	r.Use(s.logging)
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ids", s.createIDs).Methods(http.MethodPost)
	v1.HandleFunc("/ids/safe", s.safeID).Methods(http.MethodGet)
	v1.HandleFunc("/ids/{id}", s.parseID).Methods(http.MethodGet)

	if s.posts != nil {
		v1.HandleFunc("/posts", s.createPost).Methods(http.MethodPost)
		v1.HandleFunc("/posts", s.listPosts).Methods(http.MethodGet)
		v1.HandleFunc("/posts/{id}", s.getPost).Methods(http.MethodGet)
	}

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight
// requests for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.posts != nil {
		if err := s.posts.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"worker_id":     s.gen.WorkerID(),
		"datacenter_id": s.gen.DatacenterID(),
		"policy":        s.gen.RollbackPolicy().String(),
	})
}
