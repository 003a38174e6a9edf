package services

import (
	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

// GradientBoostingConfig holds the boosted-tree hyperparameters.
type GradientBoostingConfig struct {
	Estimators   int     `yaml:"estimators" default:"100"`
	MaxDepth     int     `yaml:"max_depth" default:"5"`
	LearningRate float64 `yaml:"learning_rate" default:"0.1"`
}

// GradientBoostingAdapter regresses the h-step-ahead price on 5 lags, the
// indicators and up to four exogenous signals with squared-error boosting.
type GradientBoostingAdapter struct {
	config GradientBoostingConfig
	spec   laggedFeatureSpec
}

// NewGradientBoostingAdapter creates the adapter with 100 trees of depth 5 and rate 0.1.
func NewGradientBoostingAdapter() *GradientBoostingAdapter {
	return &GradientBoostingAdapter{
		config: GradientBoostingConfig{Estimators: 100, MaxDepth: 5, LearningRate: 0.1},
		spec: laggedFeatureSpec{
			lags: 5,
			signals: []signalField{
				func(s models.ExternalSignal) *float64 { return s.DXY },
				func(s models.ExternalSignal) *float64 { return s.BTCPrice },
				func(s models.ExternalSignal) *float64 { return s.OilPrice },
				func(s models.ExternalSignal) *float64 { return s.SentimentScore },
			},
		},
	}
}

// ID implements ModelAdapter.
func (a *GradientBoostingAdapter) ID() models.ModelID {
	return models.ModelGradientBoosting
}

// Forecast implements ModelAdapter.
func (a *GradientBoostingAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, flatFallback(0.70))
}

func (a *GradientBoostingAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	set, err := buildTrainingSet(in, a.spec)
	if err != nil {
		return models.ModelPrediction{}, err
	}

	model := fitGradientBoosting(set.x, set.y, a.config)
	mae, mape := set.inSampleError(model.predict)

	return models.ModelPrediction{
		Predictions: set.recursiveForecast(model.predict, in.Horizon),
		Confidence:  errorConfidence(mape),
		MAE:         &mae,
		MAPE:        &mape,
	}, nil
}

type gradientBoosting struct {
	init         float64
	learningRate float64
	trees        []*regressionTree
}

// fitGradientBoosting starts from the target mean and fits each tree to the
// current residuals.
func fitGradientBoosting(x [][]float64, y []float64, cfg GradientBoostingConfig) *gradientBoosting {
	model := &gradientBoosting{
		init:         mean(y),
		learningRate: cfg.LearningRate,
		trees:        make([]*regressionTree, 0, cfg.Estimators),
	}

	current := flatLine(model.init, len(y))
	residuals := make([]float64, len(y))
	idx := indexRange(len(y))
	params := treeParams{maxDepth: cfg.MaxDepth}

	for m := 0; m < cfg.Estimators; m++ {
		for i := range y {
			residuals[i] = y[i] - current[i]
		}
		tree := fitRegressionTree(x, residuals, idx, params)
		model.trees = append(model.trees, tree)
		for i, row := range x {
			current[i] += model.learningRate * tree.predict(row)
		}
	}
	return model
}

func (m *gradientBoosting) predict(row []float64) float64 {
	out := m.init
	for _, tree := range m.trees {
		out += m.learningRate * tree.predict(row)
	}
	return out
}
