package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AhmedAl-shari/GoldVision/internal/api/handlers"
	"github.com/AhmedAl-shari/GoldVision/internal/config"
	"github.com/AhmedAl-shari/GoldVision/internal/logging"
	"github.com/AhmedAl-shari/GoldVision/internal/middleware"
)

// Dependencies are the collaborators wired into the router
type Dependencies struct {
	Engine    handlers.ForecastService
	Evaluator handlers.EvaluationService
	// Cache, CacheAdmin and Redis are nil when redis is disabled.
	Cache      handlers.ForecastCache
	CacheAdmin handlers.CacheAdmin
	Redis      handlers.HealthChecker
	Logger     *logging.StandardLogger
	// ServiceLogger is the logrus logger shared with the services.
	ServiceLogger  *logrus.Logger
	Metrics        config.MetricsConfig
	Gatherer       prometheus.Gatherer
	ServiceName    string
	Version        string
	AllowedOrigins []string
}

// NewRouter builds a gin engine with the standard middleware chain and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(deps.ServiceName))
	router.Use(middleware.RequestID())
	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger))
	}
	router.Use(middleware.CORS(deps.AllowedOrigins))

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	health := handlers.NewHealthHandler(deps.Redis, deps.Version)
	router.GET("/health", health.HealthCheck)
	router.HEAD("/health", health.HealthCheck)
	router.GET("/live", health.LivenessCheck)

	if deps.Metrics.Enabled {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		path := deps.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	forecast := handlers.NewForecastHandler(deps.Engine, deps.Evaluator, deps.Cache, deps.ServiceLogger)

	v1 := router.Group("/api/v1")
	{
		forecasts := v1.Group("/forecast")
		{
			forecasts.POST("", forecast.Forecast)
			forecasts.POST("/evaluate", forecast.Evaluate)
		}

		if deps.CacheAdmin != nil {
			cacheHandler := handlers.NewCacheHandler(deps.CacheAdmin, deps.ServiceLogger)
			v1.GET("/cache/stats", cacheHandler.GetCacheStats)
			v1.DELETE("/cache", cacheHandler.ClearCache)
		}
	}
}
