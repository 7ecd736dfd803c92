// Package http provides the HTTP delivery layer for the URL shortener service.
// It decodes and validates requests, calls the URL use case and renders JSON
// responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
)

type routerOptions struct {
	limiter  *limiter.Limiter
	docsPath string
}

type RouterOption func(*routerOptions)

// WithRateLimiter limits the endpoints that write URLs, keyed by client IP.
func WithRateLimiter(lim *limiter.Limiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = lim
	}
}

// WithDocsPath sets the file served at /docs/swagger.yml.
func WithDocsPath(path string) RouterOption {
	return func(o *routerOptions) {
		o.docsPath = path
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts ...RouterOption) *chi.Mux {
	o := routerOptions{docsPath: "./docs/swagger.yml"}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, o.docsPath)
	})

	r.Get("/ping", handlePing)

	h := newURLHandler(urlUseCase, validator.New())

	r.Group(func(r chi.Router) {
		if o.limiter != nil {
			r.Use(stdlib.NewMiddleware(o.limiter,
				stdlib.WithLimitReachedHandler(tooManyRequests),
				stdlib.WithErrorHandler(rateLimitError),
			).Handler)
		}

		r.Post("/shorten", h.shortenURL)
		r.Post("/urls/batch", h.shortenBatch)
	})

	r.Get("/stats/active", h.getActiveStats)
	r.Get("/urls/recent", h.getRecentURLs)

	return r
}
