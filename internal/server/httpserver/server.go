// Package httpserver exposes the dispatcher over HTTP/1.1 with a chi
// middleware stack and a Prometheus endpoint.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/envelope"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/router"
	"github.com/dmitrijs2005/usersvc/internal/server/transport"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes = 1 << 20

	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

type Server struct {
	address         string
	binder          *transport.Binder
	dispatcher      *router.Dispatcher
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
	logger          logging.Logger
}

type Option func(*Server)

// WithMetrics instruments every request and mounts GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func New(address string, b *transport.Binder, d *router.Dispatcher, l logging.Logger, opts ...Option) *Server {
	s := &Server{
		address:         address,
		binder:          b,
		dispatcher:      d,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          l.With("module", "http_server"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the chi router. Everything except /metrics goes to the
// dispatcher.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.InstrumentHandler)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.HandleFunc("/*", s.dispatch)
	return r
}

// Run binds the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	bind, err := s.binder.Listen(ctx, "http", s.address, "http/1.1")
	if err != nil {
		return err
	}
	return s.Serve(ctx, bind.Listener)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeReply(w, r, router.Fail(envelope.Validationf("request body exceeds %d bytes", MaxBodyBytes)))
			return
		}
		s.writeReply(w, r, router.Fail(envelope.Validation("could not read request body")))
		return
	}

	reply := s.dispatcher.Dispatch(r.Context(), &router.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	})
	s.writeReply(w, r, reply)
}

func (s *Server) writeReply(w http.ResponseWriter, r *http.Request, reply router.Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status.HTTP())
	if err := json.NewEncoder(w).Encode(reply.Body); err != nil {
		s.logger.Warn(r.Context(), "write response failed", "error", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
