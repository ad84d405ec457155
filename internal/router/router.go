package router

import (
	"net/http"

	"steam-trade-farm/internal/handler"
	"steam-trade-farm/internal/middleware"
	"steam-trade-farm/pkg/apierror"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler *handler.Handler
	Logger  *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	if cfg.Handler == nil {
		return r
	}

	r.Get("/", cfg.Handler.Liveness)
	r.Get("/api/status", cfg.Handler.Status)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)
		r.Get("/accounts/{username}/inventory", cfg.Handler.Inventory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.NotFound("").Write(w)
	})

	return r
}
