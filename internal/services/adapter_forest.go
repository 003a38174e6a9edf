package services

import (
	"math/rand/v2"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

// RandomForestConfig holds the bagged-tree hyperparameters.
type RandomForestConfig struct {
	Estimators int    `yaml:"estimators" default:"100"`
	MaxDepth   int    `yaml:"max_depth" default:"10"`
	Seed       uint64 `yaml:"seed" default:"42"`
}

// RandomForestAdapter averages bootstrap-trained trees over 3 lags, the
// indicators, the currency index and sentiment.
type RandomForestAdapter struct {
	config RandomForestConfig
	spec   laggedFeatureSpec
}

// NewRandomForestAdapter creates the adapter with 100 trees of depth 10.
// The seed fixes the bootstrap samples so repeated runs are identical.
func NewRandomForestAdapter(seed uint64) *RandomForestAdapter {
	return &RandomForestAdapter{
		config: RandomForestConfig{Estimators: 100, MaxDepth: 10, Seed: seed},
		spec: laggedFeatureSpec{
			lags: 3,
			signals: []signalField{
				func(s models.ExternalSignal) *float64 { return s.DXY },
				func(s models.ExternalSignal) *float64 { return s.SentimentScore },
			},
		},
	}
}

// ID implements ModelAdapter.
func (a *RandomForestAdapter) ID() models.ModelID {
	return models.ModelRandomForest
}

// Forecast implements ModelAdapter.
func (a *RandomForestAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, flatFallback(0.70))
}

func (a *RandomForestAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	set, err := buildTrainingSet(in, a.spec)
	if err != nil {
		return models.ModelPrediction{}, err
	}

	forest := fitRandomForest(set.x, set.y, a.config)
	mae, mape := set.inSampleError(forest.predict)

	return models.ModelPrediction{
		Predictions: set.recursiveForecast(forest.predict, in.Horizon),
		Confidence:  errorConfidence(mape),
		MAE:         &mae,
		MAPE:        &mape,
	}, nil
}

type randomForest struct {
	trees []*regressionTree
}

// fitRandomForest grows each tree on a bootstrap sample drawn from a
// generator local to this call.
func fitRandomForest(x [][]float64, y []float64, cfg RandomForestConfig) *randomForest {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	params := treeParams{maxDepth: cfg.MaxDepth}
	forest := &randomForest{trees: make([]*regressionTree, 0, cfg.Estimators)}

	n := len(y)
	for t := 0; t < cfg.Estimators; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		forest.trees = append(forest.trees, fitRegressionTree(x, y, sample, params))
	}
	return forest
}

func (f *randomForest) predict(row []float64) float64 {
	sum := 0.0
	for _, tree := range f.trees {
		sum += tree.predict(row)
	}
	return sum / float64(len(f.trees))
}
