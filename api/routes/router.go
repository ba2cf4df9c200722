package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packlist-backend/api/controllers"
	"github.com/angelmondragon/packlist-backend/api/middleware"
	"github.com/angelmondragon/packlist-backend/internal/packs"
	"github.com/angelmondragon/packlist-backend/pkg/auth/session"
	"github.com/angelmondragon/packlist-backend/pkg/config"
	"github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
	"github.com/angelmondragon/packlist-backend/pkg/metrics"
	"github.com/angelmondragon/packlist-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient may be nil, in which case
// idempotent replay is disabled and readiness skips the cache check.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	packService packs.Service,
) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	checks := []controllers.ReadinessCheck{{Name: "db", Pinger: dbP}}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient, Optional: true})
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/packs", func(r chi.Router) {
		r.Get("/public", controllers.PacksPublic(packService, logg))
		r.Get("/view/{id}", controllers.PackView(packService, logg))
		r.Get("/user/{id}", controllers.PacksByUser(packService, logg))
		r.With(middleware.OptionalAuth(cfg.JWT, sessions, logg)).Get("/{id}", controllers.PackGet(packService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(middleware.Idempotency(idempotencyStore, cfg.Eventing.IdempotencyTTL, logg))

			r.Post("/", controllers.PackCreate(packService, logg))
			r.Put("/", controllers.PackUpdate(packService, logg))
			r.Get("/export/{id}", controllers.PackExport(packService, logg))
			r.Post("/delete", controllers.PackDelete(packService, logg))
			r.Post("/add-item", controllers.PackAddItem(packService, logg))
			r.Post("/remove-item", controllers.PackRemoveItem(packService, logg))
			r.Post("/copy-pack", controllers.PackCopy(packService, logg))
		})
	})

	return r
}
