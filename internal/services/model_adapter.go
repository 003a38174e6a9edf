package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

// Outcome tells whether an adapter's prediction came from its fitted model
// or from its naive fallback policy.
type Outcome string

const (
	OutcomeFitted   Outcome = "fitted"
	OutcomeFallback Outcome = "fallback"
)

// AdapterInput is the read-only request data shared by every adapter.
type AdapterInput struct {
	Series     models.PriceSeries
	Prices     []float64
	Indicators IndicatorSet
	Signals    []models.ExternalSignal
	Horizon    int
}

// NewAdapterInput derives prices and indicators from the series once per request.
func NewAdapterInput(series models.PriceSeries, signals []models.ExternalSignal, horizon int) AdapterInput {
	prices := series.Prices()
	return AdapterInput{
		Series:     series,
		Prices:     prices,
		Indicators: CalculateIndicators(prices),
		Signals:    signals,
		Horizon:    horizon,
	}
}

// LastPrice returns the most recent observed price.
func (in AdapterInput) LastPrice() float64 {
	return in.Prices[len(in.Prices)-1]
}

// AdapterResult carries the prediction plus how it was produced.
// Err is a *utils.ModelFitError when Outcome is OutcomeFallback.
type AdapterResult struct {
	Prediction models.ModelPrediction
	Outcome    Outcome
	Err        error
	Duration   time.Duration
}

// ModelAdapter is one forecasting technique behind the uniform model contract.
// Forecast always returns a horizon-length prediction; fitting failures are
// absorbed by the adapter's fallback.
type ModelAdapter interface {
	ID() models.ModelID
	Forecast(in AdapterInput) AdapterResult
}

type fitFunc func(in AdapterInput) (models.ModelPrediction, error)
type fallbackFunc func(in AdapterInput) models.ModelPrediction

var errNonFiniteForecast = errors.New("forecast contains non-finite values")

// runWithFallback executes fit and substitutes the fallback on error, panic,
// wrong-length or non-finite output.
func runWithFallback(id models.ModelID, in AdapterInput, fit fitFunc, fallback fallbackFunc) (result AdapterResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = fallbackResult(id, in, fallback, fmt.Errorf("panic: %v", r))
		}
		result.Duration = time.Since(start)
	}()

	if len(in.Prices) == 0 {
		// nothing to fall back on either; the engine validates before this point
		return AdapterResult{
			Prediction: models.ModelPrediction{Model: id, Predictions: make([]float64, in.Horizon)},
			Outcome:    OutcomeFallback,
			Err:        utils.NewModelFitError(string(id), errors.New("empty price series")),
		}
	}

	prediction, err := fit(in)
	if err == nil {
		switch {
		case len(prediction.Predictions) != in.Horizon:
			err = fmt.Errorf("expected %d predictions, got %d", in.Horizon, len(prediction.Predictions))
		case !allFinite(prediction.Predictions) || math.IsNaN(prediction.Confidence):
			err = errNonFiniteForecast
		}
	}
	if err != nil {
		return fallbackResult(id, in, fallback, err)
	}

	prediction.Model = id
	return AdapterResult{Prediction: prediction, Outcome: OutcomeFitted}
}

func fallbackResult(id models.ModelID, in AdapterInput, fallback fallbackFunc, cause error) AdapterResult {
	prediction := fallback(in)
	prediction.Model = id
	return AdapterResult{
		Prediction: prediction,
		Outcome:    OutcomeFallback,
		Err:        utils.NewModelFitError(string(id), cause),
	}
}

// flatFallback repeats the last observed price at a fixed confidence.
func flatFallback(confidence float64) fallbackFunc {
	return func(in AdapterInput) models.ModelPrediction {
		return models.ModelPrediction{
			Predictions: flatLine(in.LastPrice(), in.Horizon),
			Confidence:  confidence,
		}
	}
}

// errorConfidence maps an in-sample MAPE (percent) to a confidence in [0.70, 0.95].
func errorConfidence(mape float64) float64 {
	return clamp(0.90-(mape/50)*0.20, 0.70, 0.95)
}

// DefaultAdapters returns the six ensemble adapters in canonical order.
func DefaultAdapters(randomSeed uint64) []ModelAdapter {
	return []ModelAdapter{
		NewDecompositionAdapter(),
		NewSmoothingAdapter(),
		NewGradientBoostingAdapter(),
		NewRandomForestAdapter(randomSeed),
		NewARIMAAdapter(),
		NewSentimentAdapter(),
	}
}
