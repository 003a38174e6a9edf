package services

import (
	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	regimeWindow              = 20
	defaultRegimeVolatility   = 0.15
	volatileRegimeThreshold   = 0.25
	directionalTrendThreshold = 0.05
)

// DetectMarketRegime labels the market from the last 20 prices and volatility values.
// High volatility dominates directional trend.
func DetectMarketRegime(prices, volatility []float64) models.Regime {
	n := len(prices)
	if n < regimeWindow {
		return models.RegimeStable
	}

	start := prices[n-regimeWindow]
	trend := (prices[n-1] - start) / start

	avgVol := defaultRegimeVolatility
	if len(volatility) >= regimeWindow {
		if v, ok := nanMean(volatility[len(volatility)-regimeWindow:]); ok {
			avgVol = v
		}
	}

	switch {
	case avgVol > volatileRegimeThreshold:
		return models.RegimeVolatile
	case trend > directionalTrendThreshold:
		return models.RegimeBull
	case trend < -directionalTrendThreshold:
		return models.RegimeBear
	default:
		return models.RegimeStable
	}
}
