package services

import (
	"math"
	"sort"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	sentimentLookback   = 7
	sentimentImpact     = 0.02
	sentimentDecayStep  = 0.1
	sentimentDecayFloor = 0.5
)

// SentimentAdapter nudges the last price by recent average sentiment,
// with the adjustment decaying across the horizon.
type SentimentAdapter struct{}

// NewSentimentAdapter creates the sentiment-decay adapter.
func NewSentimentAdapter() *SentimentAdapter {
	return &SentimentAdapter{}
}

// ID implements ModelAdapter.
func (a *SentimentAdapter) ID() models.ModelID {
	return models.ModelSentiment
}

// Forecast implements ModelAdapter.
func (a *SentimentAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, flatFallback(0.70))
}

func (a *SentimentAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	avg, ok := recentSentiment(in.Signals)
	if !ok {
		// no sentiment is a valid neutral view, not a fit failure
		return models.ModelPrediction{
			Predictions: flatLine(in.LastPrice(), in.Horizon),
			Confidence:  0.70,
		}, nil
	}

	last := in.LastPrice()
	predictions := make([]float64, in.Horizon)
	for i := range predictions {
		decay := math.Max(sentimentDecayFloor, 1-float64(i)*sentimentDecayStep)
		predictions[i] = last * (1 + avg*sentimentImpact*decay)
	}

	return models.ModelPrediction{
		Predictions: predictions,
		Confidence:  0.65 + math.Abs(avg)*0.25,
	}, nil
}

// recentSentiment averages the sentiment scores present among the last
// seven signal records by date.
func recentSentiment(signals []models.ExternalSignal) (float64, bool) {
	if len(signals) == 0 {
		return 0, false
	}

	sorted := append([]models.ExternalSignal(nil), signals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	recent := sorted[max(0, len(sorted)-sentimentLookback):]

	scores := make([]float64, 0, len(recent))
	for _, s := range recent {
		if s.SentimentScore != nil && !math.IsNaN(*s.SentimentScore) {
			scores = append(scores, *s.SentimentScore)
		}
	}
	if len(scores) == 0 {
		return 0, false
	}
	return mean(scores), true
}
