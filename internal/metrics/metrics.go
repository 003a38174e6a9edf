package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports forecast engine and cache observations to Prometheus.
type Recorder struct {
	forecastsTotal    *prometheus.CounterVec
	fallbacksTotal    *prometheus.CounterVec
	forecastDuration  *prometheus.HistogramVec
	overallConfidence prometheus.Histogram
	cacheRequests     *prometheus.CounterVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		forecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldvision_forecasts_total",
				Help: "Total number of forecasts generated",
			},
			[]string{"mode", "regime"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldvision_adapter_fallbacks_total",
				Help: "Total number of model fits that fell back to the heuristic forecast",
			},
			[]string{"model"},
		),
		forecastDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goldvision_forecast_duration_seconds",
				Help:    "Duration of forecast generation in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		overallConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goldvision_overall_confidence",
				Help:    "Overall confidence reported with each forecast",
				Buckets: prometheus.LinearBuckets(0.75, 0.025, 9),
			},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldvision_cache_requests_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordForecast records one completed forecast.
func (r *Recorder) RecordForecast(mode, regime string, confidence float64, duration time.Duration) {
	r.forecastsTotal.WithLabelValues(mode, regime).Inc()
	r.forecastDuration.WithLabelValues(mode).Observe(duration.Seconds())
	r.overallConfidence.Observe(confidence)
}

// RecordAdapterFallback records a model that could not be fitted.
func (r *Recorder) RecordAdapterFallback(model string) {
	r.fallbacksTotal.WithLabelValues(model).Inc()
}

// RecordCacheRequest records a cache lookup outcome.
func (r *Recorder) RecordCacheRequest(result string) {
	r.cacheRequests.WithLabelValues(result).Inc()
}
