package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vuminh/adsboard-backend/api/controllers"
	"github.com/vuminh/adsboard-backend/api/middleware"
	"github.com/vuminh/adsboard-backend/internal/warehouse/performance"
	"github.com/vuminh/adsboard-backend/internal/warehouse/refresh"
	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/db"
	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	refreshService *refresh.Service,
	performanceService *performance.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/warehouses/{warehouse}", func(r chi.Router) {
			r.Post("/refresh", controllers.TriggerRefresh(refreshService, logg))
			r.Get("/refresh/status", controllers.RefreshStatus(refreshService, logg))
		})
		r.Get("/performance", controllers.PerformanceSummary(performanceService, logg))
	})

	return r
}
