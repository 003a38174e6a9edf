package services

import (
	"math"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	smoothingAlpha       = 0.3
	smoothingBeta        = 0.1
	trendStabilityWindow = 10
)

// SmoothingAdapter extrapolates a double exponentially smoothed level and trend.
type SmoothingAdapter struct {
	alpha float64
	beta  float64
}

// NewSmoothingAdapter creates the smoothed-trend adapter with level 0.3 and trend 0.1.
func NewSmoothingAdapter() *SmoothingAdapter {
	return &SmoothingAdapter{alpha: smoothingAlpha, beta: smoothingBeta}
}

// ID implements ModelAdapter.
func (a *SmoothingAdapter) ID() models.ModelID {
	return models.ModelSmoothing
}

// Forecast implements ModelAdapter.
func (a *SmoothingAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, flatFallback(0.70))
}

func (a *SmoothingAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	prices := in.Prices
	smoothed := make([]float64, len(prices))
	trend := make([]float64, len(prices))
	smoothed[0] = prices[0]

	for i := 1; i < len(prices); i++ {
		s := a.alpha*prices[i] + (1-a.alpha)*(smoothed[i-1]+trend[i-1])
		trend[i] = a.beta*(s-smoothed[i-1]) + (1-a.beta)*trend[i-1]
		smoothed[i] = s
	}

	level, slope := smoothed[len(smoothed)-1], trend[len(trend)-1]
	predictions := make([]float64, in.Horizon)
	for i := 1; i <= in.Horizon; i++ {
		predictions[i-1] = level + float64(i)*slope
	}

	return models.ModelPrediction{
		Predictions: predictions,
		Confidence:  trendStabilityConfidence(trend),
	}, nil
}

// trendStabilityConfidence rewards a trailing trend term with low dispersion
// relative to its magnitude. Range [0.70, 0.92].
func trendStabilityConfidence(trend []float64) float64 {
	tail := trend[max(0, len(trend)-trendStabilityWindow):]
	absSum := 0.0
	for _, t := range tail {
		absSum += math.Abs(t)
	}
	stability := 1 - populationStd(tail)/(absSum/float64(len(tail))+1e-10)
	return clamp(0.70+(stability-0.5)*0.44, 0.70, 0.92)
}
