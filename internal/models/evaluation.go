package models

import "time"

// Baseline model identifiers used only by holdout evaluation
const (
	BaselineNaiveLast     ModelID = "naive_last"
	BaselineSeasonalNaive ModelID = "seasonal_naive"
)

// ModelEvaluation is the holdout accuracy of one model
type ModelEvaluation struct {
	Model    ModelID  `json:"model"`
	Outcome  string   `json:"outcome,omitempty"`
	MAE      float64  `json:"mae"`
	MAPE     float64  `json:"mape"`
	MASE     *float64 `json:"mase"`
	DMPValue float64  `json:"dm_p_value"`
}

// EvaluationReport compares every model on the last Holdout observations
type EvaluationReport struct {
	Holdout     int               `json:"holdout"`
	TrainPoints int               `json:"train_points"`
	Regime      Regime            `json:"market_regime"`
	Models      []ModelEvaluation `json:"models"`
	BestModel   ModelID           `json:"best_model"`
	GeneratedAt time.Time         `json:"generated_at"`
}
