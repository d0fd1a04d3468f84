package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/api/middleware"
	"github.com/ArnavT27/Chat-Application/internal/handlers"
	"github.com/ArnavT27/Chat-Application/internal/store"
	"github.com/ArnavT27/Chat-Application/internal/ws"
)

// Deps holds everything the router wires together.
type Deps struct {
	Logger         zerolog.Logger
	Store          store.DataStore
	Redis          *redis.Client // nil disables rate limiting
	Handler        *handlers.Handler
	Hub            *ws.Hub
	AssetDir       string
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(10 * 1024 * 1024)) // base64 image payloads
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (only when Redis is configured)
	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis, d.Logger, d.RateLimit)
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.HeaderUserID, middleware.HeaderUserName, middleware.HeaderUserPic},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	identity := middleware.NewIdentity(d.Store)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", d.Handler.Root)
	r.Get("/health", d.Handler.Health)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(d.AssetDir))))

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(identity.RequireUser)

		r.Get("/ws", d.Hub.HandleWS)

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/users", d.Handler.GetUsersForSidebar)
			r.Get("/{id}", d.Handler.GetMessages)
			r.Post("/send/{id}", d.Handler.SendMessage)
			r.Put("/mark/{id}", d.Handler.MarkMessageSeen)
		})
	})

	return r
}
