// Package http binds channels to webhook endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/courier"
	"github.com/aretw0/courier/internal/logging"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes limits webhook request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Delivery handles the deliveries of one channel. *courier.Bot implements it.
type Delivery interface {
	Handle(ctx context.Context, req *domain.Request) (*domain.Response, error)
}

// Route mounts a Delivery at Path for GET and POST.
type Route struct {
	Channel  string
	Path     string
	Delivery Delivery
}

// Option configures the handler.
type Option func(*server)

// WithLogger sets the logger used for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *server) {
		s.metrics = h
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

type server struct {
	routes  []Route
	logger  *slog.Logger
	metrics http.Handler
	maxBody int64
}

// NewHandler creates the HTTP handler serving every route plus /health and /info.
// It fails when two routes share a path.
func NewHandler(routes []Route, opts ...Option) (http.Handler, error) {
	s := &server{
		routes:  routes,
		logger:  logging.NewNop(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	seen := make(map[string]string)
	for _, rt := range routes {
		if !strings.HasPrefix(rt.Path, "/") {
			return nil, fmt.Errorf("channel %q: path %q must start with /", rt.Channel, rt.Path)
		}
		if prev, ok := seen[rt.Path]; ok {
			return nil, fmt.Errorf("channels %q and %q share path %q", prev, rt.Channel, rt.Path)
		}
		seen[rt.Path] = rt.Channel

		h := s.webhook(rt)
		r.Get(rt.Path, h)
		r.Post(rt.Path, h)
	}
	return r, nil
}

func (s *server) webhook(rt Route) http.HandlerFunc {
	logger := s.logger.With("channel", rt.Channel)
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		req := &domain.Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		}

		resp, err := rt.Delivery.Handle(r.Context(), req)
		if err != nil {
			resp = domain.ResponseFor(err)
			if resp.Status >= http.StatusInternalServerError {
				logger.Error("Delivery failed", "status", resp.Status, "err", err)
			} else {
				logger.Debug("Delivery rejected", "status", resp.Status, "err", err)
			}
		}
		if resp == nil {
			resp = domain.OK()
		}
		writeResponse(w, resp, logger)
	}
}

// writeResponse writes strings and byte slices as is and encodes any other body as JSON.
func writeResponse(w http.ResponseWriter, resp *domain.Response, logger *slog.Logger) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	var payload []byte
	contentType := ""
	switch body := resp.Body.(type) {
	case nil:
	case string:
		payload = []byte(body)
		contentType = "text/plain; charset=utf-8"
	case json.RawMessage:
		payload = body
		contentType = "application/json"
	case []byte:
		payload = body
		contentType = "application/octet-stream"
	default:
		b, err := json.Marshal(body)
		if err != nil {
			logger.Error("Failed to encode response body", "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		payload = b
		contentType = "application/json"
	}

	if contentType != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			logger.Debug("Failed to write response", "err", err)
		}
	}
}

func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) getInfo(w http.ResponseWriter, r *http.Request) {
	channels := make([]string, 0, len(s.routes))
	for _, rt := range s.routes {
		channels = append(channels, rt.Channel)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"app":      "courier",
		"version":  strings.TrimSpace(courier.Version),
		"channels": channels,
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully within shutdownTimeout.
func Serve(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
