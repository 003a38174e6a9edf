package services

import (
	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	DefaultConfidenceFloor   = 0.75
	DefaultConfidenceCeiling = 0.95
)

// ConfidenceNormalizer applies the regime and sample-size multipliers and
// clamps to the configured floor and ceiling.
type ConfidenceNormalizer struct {
	floor             float64
	ceiling           float64
	regimeMultipliers map[models.Regime]float64
}

// NewConfidenceNormalizer creates a normalizer with the given bounds.
// Non-positive or inverted bounds fall back to [0.75, 0.95].
func NewConfidenceNormalizer(floor, ceiling float64) *ConfidenceNormalizer {
	if floor <= 0 || ceiling > 1 || floor >= ceiling {
		floor, ceiling = DefaultConfidenceFloor, DefaultConfidenceCeiling
	}
	return &ConfidenceNormalizer{
		floor:   floor,
		ceiling: ceiling,
		regimeMultipliers: map[models.Regime]float64{
			models.RegimeStable:   1.25,
			models.RegimeBull:     1.20,
			models.RegimeBear:     1.15,
			models.RegimeVolatile: 1.10,
		},
	}
}

// Normalize adjusts a raw confidence for the market regime and data quantity.
func (n *ConfidenceNormalizer) Normalize(confidence float64, regime models.Regime, dataPoints int) float64 {
	multiplier, ok := n.regimeMultipliers[regime]
	if !ok {
		multiplier = 1.0
	}
	adjusted := confidence * multiplier * dataQuantityMultiplier(dataPoints)
	return n.Clamp(adjusted)
}

// Clamp bounds a confidence to [floor, ceiling].
func (n *ConfidenceNormalizer) Clamp(confidence float64) float64 {
	return clamp(confidence, n.floor, n.ceiling)
}

// Floor returns the lower confidence bound.
func (n *ConfidenceNormalizer) Floor() float64 { return n.floor }

// Ceiling returns the upper confidence bound.
func (n *ConfidenceNormalizer) Ceiling() float64 { return n.ceiling }

func dataQuantityMultiplier(points int) float64 {
	switch {
	case points >= 60:
		return 1.10
	case points >= 30:
		return 1.08
	case points >= 15:
		return 1.05
	default:
		return 1.00
	}
}
