package services

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const unknownModelBaseWeight = 0.1

// RegimePriors maps each regime to its base model weights. Each row sums to 1.
// It is built once at startup and never mutated afterwards.
type RegimePriors map[models.Regime]map[models.ModelID]float64

// DefaultRegimePriors returns the built-in weight table.
func DefaultRegimePriors() RegimePriors {
	return RegimePriors{
		models.RegimeStable: {
			models.ModelDecomposition:    0.30,
			models.ModelSmoothing:        0.20,
			models.ModelGradientBoosting: 0.25,
			models.ModelRandomForest:     0.15,
			models.ModelARIMA:            0.08,
			models.ModelSentiment:        0.02,
		},
		models.RegimeBull: {
			models.ModelDecomposition:    0.25,
			models.ModelSmoothing:        0.30,
			models.ModelGradientBoosting: 0.25,
			models.ModelRandomForest:     0.12,
			models.ModelARIMA:            0.05,
			models.ModelSentiment:        0.03,
		},
		models.RegimeBear: {
			models.ModelDecomposition:    0.20,
			models.ModelSmoothing:        0.25,
			models.ModelGradientBoosting: 0.30,
			models.ModelRandomForest:     0.15,
			models.ModelARIMA:            0.08,
			models.ModelSentiment:        0.02,
		},
		models.RegimeVolatile: {
			models.ModelDecomposition:    0.15,
			models.ModelSmoothing:        0.20,
			models.ModelGradientBoosting: 0.35,
			models.ModelRandomForest:     0.20,
			models.ModelARIMA:            0.05,
			models.ModelSentiment:        0.05,
		},
	}
}

// Validate checks that every regime is present, weights are non-negative
// and each row sums to 1.
func (p RegimePriors) Validate() error {
	for _, regime := range models.AllRegimes() {
		row, ok := p[regime]
		if !ok {
			return fmt.Errorf("regime %q missing from priors", regime)
		}
		sum := 0.0
		for model, w := range row {
			if w < 0 || math.IsNaN(w) {
				return fmt.Errorf("regime %q model %q has invalid weight %v", regime, model, w)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-3 {
			return fmt.Errorf("regime %q weights sum to %.4f, want 1", regime, sum)
		}
	}
	for regime := range p {
		if !regime.IsValid() {
			return fmt.Errorf("unknown regime %q in priors", regime)
		}
	}
	return nil
}

// LoadRegimePriors reads a YAML weight table such as
//
//	stable:
//	  decomposition: 0.30
//	  smoothing: 0.20
//
// and validates it.
func LoadRegimePriors(path string) (RegimePriors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regime priors: %w", err)
	}

	var priors RegimePriors
	if err := yaml.Unmarshal(data, &priors); err != nil {
		return nil, fmt.Errorf("failed to parse regime priors: %w", err)
	}
	if err := priors.Validate(); err != nil {
		return nil, err
	}
	return priors, nil
}

// WeightAllocator turns regime priors plus model confidence and error into
// ensemble weights.
type WeightAllocator struct {
	priors RegimePriors
}

// NewWeightAllocator creates an allocator; nil priors select the built-in table.
func NewWeightAllocator(priors RegimePriors) *WeightAllocator {
	if priors == nil {
		priors = DefaultRegimePriors()
	}
	return &WeightAllocator{priors: priors}
}

// Allocate returns weights over exactly the models in predictions, summing to 1.
func (a *WeightAllocator) Allocate(predictions []models.ModelPrediction, regime models.Regime) models.WeightMap {
	weights := make(models.WeightMap, len(predictions))
	if len(predictions) == 0 {
		return weights
	}

	base, ok := a.priors[regime]
	if !ok {
		base = a.priors[models.RegimeStable]
	}

	total := 0.0
	for _, p := range orderedPredictions(predictions) {
		w, ok := base[p.Model]
		if !ok {
			w = unknownModelBaseWeight
		}
		adjusted := w * (0.5 + 0.5*p.Confidence)
		if p.MAPE != nil && *p.MAPE > 0 {
			adjusted *= 0.7 + 0.3/(1+*p.MAPE/10)
		}
		weights[p.Model] = adjusted
		total += adjusted
	}

	return normalizeWeights(weights, total, predictions)
}

// ApplyOverride replaces the computed map with caller weights restricted to
// the models that ran. Unknown ids are ignored, negatives count as zero and
// models the caller omitted get 1/k before renormalizing.
func (a *WeightAllocator) ApplyOverride(override map[models.ModelID]float64, predictions []models.ModelPrediction) models.WeightMap {
	weights := make(models.WeightMap, len(predictions))
	if len(predictions) == 0 {
		return weights
	}

	k := float64(len(predictions))
	total := 0.0
	for _, p := range orderedPredictions(predictions) {
		w, ok := override[p.Model]
		switch {
		case !ok:
			w = 1 / k
		case w < 0 || math.IsNaN(w) || math.IsInf(w, 0):
			w = 0
		}
		weights[p.Model] = w
		total += w
	}

	return normalizeWeights(weights, total, predictions)
}

func normalizeWeights(weights models.WeightMap, total float64, predictions []models.ModelPrediction) models.WeightMap {
	if total <= 0 {
		equal := 1 / float64(len(predictions))
		for _, p := range predictions {
			weights[p.Model] = equal
		}
		return weights
	}
	for id := range weights {
		weights[id] /= total
	}
	return weights
}

// orderedPredictions sorts predictions into canonical model order so float
// accumulation is reproducible; unknown ids keep their relative order at the end.
func orderedPredictions(predictions []models.ModelPrediction) []models.ModelPrediction {
	rank := make(map[models.ModelID]int)
	for i, id := range models.AllModels() {
		rank[id] = i
	}
	ordered := make([]models.ModelPrediction, 0, len(predictions))
	for _, id := range models.AllModels() {
		for _, p := range predictions {
			if p.Model == id {
				ordered = append(ordered, p)
			}
		}
	}
	for _, p := range predictions {
		if _, known := rank[p.Model]; !known {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
