package services

import (
	"errors"
	"math"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	arimaMinPoints  = 10
	arimaConfidence = 0.80
	arimaCoefBound  = 0.99
)

// ARIMAAdapter fits an ARIMA(1,1,1) without constant by conditional sum of squares.
type ARIMAAdapter struct{}

// NewARIMAAdapter creates the autoregressive-integrated adapter.
func NewARIMAAdapter() *ARIMAAdapter {
	return &ARIMAAdapter{}
}

// ID implements ModelAdapter.
func (a *ARIMAAdapter) ID() models.ModelID {
	return models.ModelARIMA
}

// Forecast implements ModelAdapter.
func (a *ARIMAAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, flatFallback(0.75))
}

func (a *ARIMAAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	if len(in.Prices) < arimaMinPoints {
		return models.ModelPrediction{}, errors.New("insufficient data for ARIMA")
	}

	diffs := make([]float64, len(in.Prices)-1)
	for i := 1; i < len(in.Prices); i++ {
		diffs[i-1] = in.Prices[i] - in.Prices[i-1]
	}

	phi, theta := fitARMA11(diffs)
	residuals := armaResiduals(diffs, phi, theta)

	predictions := make([]float64, in.Horizon)
	level := in.LastPrice()
	prevDiff := diffs[len(diffs)-1]
	for step := 0; step < in.Horizon; step++ {
		next := phi * prevDiff
		if step == 0 {
			next += theta * residuals[len(residuals)-1]
		}
		level += next
		predictions[step] = level
		prevDiff = next
	}

	return models.ModelPrediction{
		Predictions: predictions,
		Confidence:  arimaConfidence,
	}, nil
}

// fitARMA11 minimizes the conditional sum of squares over a coarse grid,
// then refines twice around the best point.
func fitARMA11(d []float64) (phi, theta float64) {
	bestPhi, bestTheta := 0.0, 0.0
	bestSSE := armaSSE(d, 0, 0)

	search := func(phiLo, phiHi, thetaLo, thetaHi, step float64) {
		for p := phiLo; p <= phiHi+1e-9; p += step {
			for q := thetaLo; q <= thetaHi+1e-9; q += step {
				if math.Abs(p) > arimaCoefBound || math.Abs(q) > arimaCoefBound {
					continue
				}
				if sse := armaSSE(d, p, q); sse < bestSSE {
					bestSSE, bestPhi, bestTheta = sse, p, q
				}
			}
		}
	}

	search(-0.95, 0.95, -0.95, 0.95, 0.05)
	search(bestPhi-0.05, bestPhi+0.05, bestTheta-0.05, bestTheta+0.05, 0.005)
	search(bestPhi-0.005, bestPhi+0.005, bestTheta-0.005, bestTheta+0.005, 0.0005)

	return bestPhi, bestTheta
}

func armaSSE(d []float64, phi, theta float64) float64 {
	sse := 0.0
	for _, e := range armaResiduals(d, phi, theta) {
		sse += e * e
	}
	return sse
}

// armaResiduals computes e_t = d_t - phi*d_{t-1} - theta*e_{t-1} for t >= 1,
// conditioning on e_0 = 0.
func armaResiduals(d []float64, phi, theta float64) []float64 {
	e := make([]float64, len(d))
	for t := 1; t < len(d); t++ {
		e[t] = d[t] - phi*d[t-1] - theta*e[t-1]
	}
	return e
}
