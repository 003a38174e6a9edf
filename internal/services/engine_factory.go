package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AhmedAl-shari/GoldVision/internal/config"
)

// NewForecastEngineFromConfig builds an engine from the forecast config
// section. max_workers 0 sizes the adapter pool from host resources and a
// non-empty regime_priors_file replaces the built-in prior table.
func NewForecastEngineFromConfig(cfg config.ForecastConfig, logger *logrus.Logger, metrics MetricsRecorder) (*ForecastEngine, error) {
	workers := cfg.MaxWorkers
	if workers == 0 {
		workers = NewResourceOptimizer(ResourceOptimizerConfig{}, logger).OptimalWorkers()
	}

	var priors RegimePriors
	if cfg.RegimePriorsFile != "" {
		loaded, err := LoadRegimePriors(cfg.RegimePriorsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load regime priors: %w", err)
		}
		priors = loaded
	}

	return NewForecastEngine(ForecastEngineConfig{
		MinPoints:         cfg.MinPoints,
		DefaultHorizon:    cfg.DefaultHorizon,
		MaxHorizon:        cfg.MaxHorizon,
		MaxWorkers:        workers,
		RandomSeed:        cfg.RandomSeed,
		CapOutliers:       cfg.CapOutliers,
		ConfidenceFloor:   cfg.ConfidenceFloor,
		ConfidenceCeiling: cfg.ConfidenceCeiling,
		Priors:            priors,
	}, logger, metrics), nil
}

// Workers returns the adapter concurrency limit.
func (e *ForecastEngine) Workers() int {
	return e.config.MaxWorkers
}
