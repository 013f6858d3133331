package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"autopull/internal/history"
	"autopull/internal/mapping"
	"autopull/internal/runner"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout = 10 * time.Second
	HTTPIdleTimeout = 60 * time.Second

	// ShutdownTimeout bounds how long in-flight requests get on shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxPayloadBytes is the largest accepted hook body.
	MaxPayloadBytes = 1 << 20

	// RecentRunsLimit is the number of runs returned by the status endpoint.
	RecentRunsLimit = 10
)

// Options holds the request-independent server settings.
type Options struct {
	// Namespace is the first path segment of the hook route.
	// Empty means the mode default.
	Namespace string

	// Secret is the shared HMAC key. Empty disables signature checks.
	Secret string

	// RateLimit is the number of hook requests allowed per client address
	// per minute. Zero disables rate limiting.
	RateLimit int
}

// Server represents the HTTP server
type Server struct {
	Mapping  *mapping.Mapping
	Executor *runner.Executor
	History  *history.History // optional
	Logger   *slog.Logger

	opts    Options
	limiter *RateLimiter   // nil when rate limiting is off
	drainWg sync.WaitGroup // Tracks script drain goroutines
}

// NewServer creates a server for an already validated mapping.
func NewServer(m *mapping.Mapping, exec *runner.Executor, hist *history.History, logger *slog.Logger, opts Options) *Server {
	if opts.Namespace == "" {
		opts.Namespace = m.Mode().DefaultNamespace()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Mapping:  m,
		Executor: exec,
		History:  hist,
		Logger:   logger,
		opts:     opts,
	}
	if opts.RateLimit > 0 {
		s.limiter = NewHookRateLimiter(opts.RateLimit)
	}
	return s
}

// Namespace returns the first path segment of the hook route.
func (s *Server) Namespace() string {
	return s.opts.Namespace
}

// HookPath returns the path that triggers key.
func (s *Server) HookPath(key string) string {
	return "/" + s.opts.Namespace + "/" + key
}

// Router creates and configures the HTTP router. Routers built from the same
// Server share one rate limiter.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, s.Logger.With("path", r.URL.Path), errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, s.Logger.With("path", r.URL.Path, "method", r.Method), errMethodNotAllowed)
	})

	r.Get("/health", s.HandleHealth)
	r.Get("/status", s.HandleStatusAll)
	r.Get("/status/{key}", s.HandleStatus)

	r.Route("/"+s.opts.Namespace, func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter, s.Logger))
		}
		r.Post("/{key:[A-Za-z0-9_]+}", s.HandleHook)
		r.Post("/{key:[A-Za-z0-9_]+}/", s.HandleHook)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully and waits
// for running scripts to be drained.
func (s *Server) Start(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: HTTPReadTimeout,
		// A pull may legitimately take up to the pull timeout per target.
		WriteTimeout: 0,
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting server", "addr", addr, "namespace", s.opts.Namespace,
			"mode", s.Mapping.Mode(), "keys", s.Mapping.Keys())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return s.Shutdown(shutdownCtx)
}

// WaitForDrains waits for all script drain goroutines to finish.
func (s *Server) WaitForDrains() {
	s.drainWg.Wait()
}

// Shutdown waits for script drains, up to ctx, and closes the run log.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.drainWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Logger.Warn("Scripts still running at shutdown; their output will not be logged")
	}

	if s.History != nil {
		return s.History.Close()
	}
	return nil
}
