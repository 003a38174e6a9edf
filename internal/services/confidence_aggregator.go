package services

import (
	"math"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	baseConfidenceFloor = 0.65
	ensembleBoost       = 1.15
)

// ModelAgreement maps the dispersion of first-step predictions to [0.5, 0.95].
// A single model agrees with itself perfectly.
func ModelAgreement(predictions []models.ModelPrediction) float64 {
	if len(predictions) < 2 {
		return 1.0
	}

	first := make([]float64, len(predictions))
	for i, p := range orderedPredictions(predictions) {
		if len(p.Predictions) > 0 {
			first[i] = p.Predictions[0]
		}
	}

	m := mean(first)
	if m == 0 {
		return 0.5
	}
	cv := populationStd(first) / math.Abs(m)
	return clamp(1.0-cv*5, 0.5, 0.95)
}

// AggregateConfidence folds model confidences, the ensemble boost, the
// agreement boost and the regime/data normalizer into one overall confidence.
func AggregateConfidence(
	predictions []models.ModelPrediction,
	agreement float64,
	regime models.Regime,
	dataPoints int,
	normalizer *ConfidenceNormalizer,
) float64 {
	confidences := make([]float64, len(predictions))
	for i, p := range orderedPredictions(predictions) {
		confidences[i] = p.Confidence
	}

	avg := mean(confidences)
	if avg < baseConfidenceFloor {
		avg = baseConfidenceFloor + (avg-0.60)*0.5
	}
	base := math.Max(baseConfidenceFloor, avg)

	overall := base * ensembleBoost * agreementBoost(agreement)
	overall = normalizer.Normalize(overall, regime, dataPoints)
	return normalizer.Clamp(overall)
}

func agreementBoost(agreement float64) float64 {
	switch {
	case agreement >= 0.8:
		return 1.20
	case agreement >= 0.7:
		return 1.15
	case agreement >= 0.6:
		return 1.10
	default:
		return 1.05
	}
}
