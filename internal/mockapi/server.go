// Package mockapi serves an in-memory REST backend speaking the same
// dialect as the resources of this module: item envelopes with _id, _etag
// and _links meta, paginated _items listings, If-Match concurrency control
// and _issues validation errors. Documents are validated against the
// schema registry, which may be swapped at runtime by a schema watcher.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

// DefaultPageSize is the listing page size when the client sets none
const DefaultPageSize = 25

// Options configures a Server
type Options struct {
	Registry *schema.Registry
	Logger   *zap.Logger
	// PageSize defaults to DefaultPageSize
	PageSize int
	// AllowMissingIfMatch accepts writes without an If-Match header
	AllowMissingIfMatch bool
	// Now stamps _created and _updated. Default: time.Now
	Now func() time.Time
	// Metrics, when set, records every served request
	Metrics *transport.Metrics
	// MetricsHandler, when set, is mounted at /metrics
	MetricsHandler http.Handler
	// Auth, when set, guards every resource route
	Auth *Authenticator
}

// Server is the mock backend. It implements http.Handler.
type Server struct {
	registry       *schema.Registry
	store          *store
	logger         *zap.Logger
	pageSize       int
	requireIfMatch bool
	metrics        *transport.Metrics
	metricsHandler http.Handler
	auth           *Authenticator
	events         *Feed
	router         chi.Router
}

// New creates a server for the resources of opts.Registry
func New(opts Options) *Server {
	s := &Server{
		registry:       opts.Registry,
		store:          newStore(opts.Now),
		logger:         opts.Logger,
		pageSize:       opts.PageSize,
		requireIfMatch: !opts.AllowMissingIfMatch,
		metrics:        opts.Metrics,
		metricsHandler: opts.MetricsHandler,
		auth:           opts.Auth,
	}
	if s.registry == nil {
		s.registry = schema.NewRegistry()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	s.events = NewFeed(s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger, s.metrics))

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}
	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.middleware)
		}
		r.Get("/", s.handleHome)
		r.Handle(EventsPath, s.events)
		r.Route("/{resource}", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Delete("/", s.handleDrop)

			r.Get("/{id}", s.handleGet)
			r.Patch("/{id}", s.handlePatch)
			r.Put("/{id}", s.handleReplace)
			r.Delete("/{id}", s.handleDelete)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, http.StatusNotFound, notFoundMessage)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, http.StatusMethodNotAllowed, "The method is not allowed for the requested URL.")
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Events returns the change feed of the server
func (s *Server) Events() *Feed {
	return s.events
}

// NotifySchemas tells subscribers that the schemas were reloaded
func (s *Server) NotifySchemas() {
	s.events.Publish(Event{Type: EventSchemas})
}

// Close disconnects event subscribers
func (s *Server) Close() {
	s.events.Close()
}

// Seed stores documents of resource name as if they had been posted
func (s *Server) Seed(name string, docs ...map[string]any) ([]map[string]any, error) {
	if _, err := s.registry.Get(name); err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = s.store.insert(name, doc)
	}
	return out, nil
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock backend listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("mock backend shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger tags every request with an ID, logs its outcome and records
// it in m when set
func requestLogger(logger *zap.Logger, m *transport.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if m != nil {
				m.RequestsInFlight.Inc()
				defer m.RequestsInFlight.Dec()
			}
			next.ServeHTTP(ww, r)

			if m != nil {
				m.Observe(r.Method, r.URL.Path, ww.Status(), time.Since(start))
			}
			logger.Debug("request served",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
