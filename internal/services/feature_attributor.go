package services

import (
	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

// Feature family names reported in attributions.
const (
	FeaturePriceHistory = "Price History"
	FeatureRSI          = "RSI"
	FeatureMACD         = "MACD"
	FeatureVolatility   = "Volatility"
	FeatureDXY          = "DXY (USD Index)"
	FeatureSentiment    = "News Sentiment"
)

// AttributeFeatures assigns the fixed nominal share of each present feature
// family and renormalizes the shares to 100.
func AttributeFeatures(prices []float64, signals []models.ExternalSignal) []models.FeatureImportance {
	type share struct {
		name    string
		percent float64
	}

	var shares []share
	if len(prices) > 1 {
		shares = append(shares, share{FeaturePriceHistory, 35})
	}
	// indicators are always derived, with neutral fallbacks on short series
	shares = append(shares,
		share{FeatureRSI, 15},
		share{FeatureMACD, 12},
		share{FeatureVolatility, 10},
	)

	hasDXY, hasSentiment := false, false
	for _, s := range signals {
		hasDXY = hasDXY || s.DXY != nil
		hasSentiment = hasSentiment || s.SentimentScore != nil
	}
	if hasDXY {
		shares = append(shares, share{FeatureDXY, 15})
	}
	if hasSentiment {
		shares = append(shares, share{FeatureSentiment, 8})
	}

	total := 0.0
	for _, s := range shares {
		total += s.percent
	}

	out := make([]models.FeatureImportance, 0, len(shares))
	for _, s := range shares {
		pct := s.percent / total * 100
		out = append(out, models.FeatureImportance{
			FeatureName:         s.name,
			ImportanceScore:     pct / 100,
			ContributionPercent: pct,
		})
	}
	return out
}
