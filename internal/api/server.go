// Package api exposes the reconciliation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/route-geocoder/internal/model"
	"github.com/sells-group/route-geocoder/internal/store"
	"github.com/sells-group/route-geocoder/pkg/geocode"
)

// Reconciler is the engine surface the handlers need.
type Reconciler interface {
	Run(ctx context.Context, inputs []model.AddressInput) ([]model.AddressResult, error)
	Reverse(ctx context.Context, lat, lon float64) *geocode.Candidate
}

// Server holds the handler dependencies. A nil store disables the
// learned-locations endpoints.
type Server struct {
	engine   Reconciler
	store    store.Store
	maxBatch int
}

// Option configures the Server.
type Option func(*Server)

// WithStore enables the learned-locations endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithMaxBatch rejects batches larger than n rows. Zero means unlimited.
func WithMaxBatch(n int) Option {
	return func(s *Server) {
		s.maxBatch = n
	}
}

// NewServer creates a Server over the given engine.
func NewServer(engine Reconciler, opts ...Option) *Server {
	s := &Server{engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/batch-geocode", s.handleBatch)
	r.Post("/reverse-geocode", s.handleReverse)
	r.Route("/learned-locations", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Get("/", s.handleGetLearned)
		r.Post("/", s.handlePutLearned)
	})
	return r
}

type ctxKey struct{}

// requestID tags each request with a UUID, echoed in X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		zap.L().Debug("api: request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// RequestID returns the ID assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "Learned locations are not configured.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
