package services

import (
	"fmt"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

// CombineEnsemble returns the weighted sum of the model prediction vectors.
// Models missing from weights contribute nothing.
func CombineEnsemble(predictions []models.ModelPrediction, weights models.WeightMap) ([]float64, error) {
	if len(predictions) == 0 {
		return nil, utils.ErrInsufficientPredictions
	}

	horizon := len(predictions[0].Predictions)
	combined := make([]float64, horizon)
	for _, p := range orderedPredictions(predictions) {
		if len(p.Predictions) != horizon {
			return nil, fmt.Errorf("model %s returned %d predictions, want %d", p.Model, len(p.Predictions), horizon)
		}
		w := weights[p.Model]
		for i, v := range p.Predictions {
			combined[i] += w * v
		}
	}
	return combined, nil
}
