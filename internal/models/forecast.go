package models

import (
	"math"
	"time"
)

// ModelID identifies a forecasting model inside the ensemble
type ModelID string

const (
	ModelDecomposition    ModelID = "decomposition"
	ModelSmoothing        ModelID = "smoothing"
	ModelGradientBoosting ModelID = "gradient_boosting"
	ModelRandomForest     ModelID = "random_forest"
	ModelARIMA            ModelID = "arima"
	ModelSentiment        ModelID = "sentiment"
)

// AllModels returns every model identifier in canonical order.
// Combination and weighting iterate in this order so float sums are reproducible.
func AllModels() []ModelID {
	return []ModelID{
		ModelDecomposition,
		ModelSmoothing,
		ModelGradientBoosting,
		ModelRandomForest,
		ModelARIMA,
		ModelSentiment,
	}
}

// Regime is a coarse market-behaviour label used to bias ensemble weights
type Regime string

const (
	RegimeStable   Regime = "stable"
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeVolatile Regime = "volatile"
)

// AllRegimes returns every regime label.
func AllRegimes() []Regime {
	return []Regime{RegimeStable, RegimeBull, RegimeBear, RegimeVolatile}
}

// IsValid reports whether r is one of the known regimes.
func (r Regime) IsValid() bool {
	switch r {
	case RegimeStable, RegimeBull, RegimeBear, RegimeVolatile:
		return true
	}
	return false
}

// PricePoint is one observation of the asset price on a calendar day
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceSeries is an ascending, duplicate-free sequence of price points
type PriceSeries []PricePoint

// Len returns the number of observations.
func (s PriceSeries) Len() int {
	return len(s)
}

// Prices returns the raw price values in date order.
func (s PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s))
	for i, p := range s {
		prices[i] = p.Price
	}
	return prices
}

// Last returns the most recent observation. The series must not be empty.
func (s PriceSeries) Last() PricePoint {
	return s[len(s)-1]
}

// ExternalSignal is a sparse bag of exogenous market features for one date.
// A nil field means the feature is absent and contributes zero.
type ExternalSignal struct {
	Date           time.Time `json:"date"`
	DXY            *float64  `json:"dxy,omitempty"`
	BTCPrice       *float64  `json:"btc_price,omitempty"`
	OilPrice       *float64  `json:"oil_price,omitempty"`
	SP500          *float64  `json:"sp500,omitempty"`
	Treasury10Y    *float64  `json:"treasury_10y,omitempty"`
	Volatility     *float64  `json:"volatility,omitempty"`
	RSI            *float64  `json:"rsi,omitempty"`
	MACD           *float64  `json:"macd,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	Volume         *float64  `json:"volume,omitempty"`
}

// ValueOrZero dereferences an optional feature value.
func ValueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

// ModelPrediction is the output of one model adapter for one request
type ModelPrediction struct {
	Model       ModelID   `json:"model_name"`
	Predictions []float64 `json:"predictions"`
	Confidence  float64   `json:"confidence"`
	MAE         *float64  `json:"mae,omitempty"`
	MAPE        *float64  `json:"mape,omitempty"`
}

// WeightMap maps model identifiers to ensemble weights
type WeightMap map[ModelID]float64

// Sum returns the total weight.
func (w WeightMap) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// ForecastPoint is one dated point of the combined forecast with its band
type ForecastPoint struct {
	Date     string  `json:"ds"`
	Estimate float64 `json:"yhat"`
	Lower    float64 `json:"yhat_lower"`
	Upper    float64 `json:"yhat_upper"`
}

// FeatureImportance is the share of the forecast attributed to one feature family
type FeatureImportance struct {
	FeatureName         string  `json:"feature_name"`
	ImportanceScore     float64 `json:"importance_score"`
	ContributionPercent float64 `json:"contribution_percent"`
}

// EnsembleForecast is the terminal artifact returned to the caller
type EnsembleForecast struct {
	ID                 string              `json:"id"`
	Forecast           []ForecastPoint     `json:"forecast"`
	EnsemblePrediction []float64           `json:"ensemble_prediction"`
	IndividualModels   []ModelPrediction   `json:"individual_models"`
	Weights            WeightMap           `json:"weights,omitempty"`
	FeatureImportance  []FeatureImportance `json:"feature_importance,omitempty"`
	MarketRegime       Regime              `json:"market_regime"`
	ModelAgreement     float64             `json:"model_agreement"`
	OverallConfidence  float64             `json:"overall_confidence"`
	ModelVersion       string              `json:"model_version"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

const (
	// ModelVersionEnsemble tags responses produced by the full ensemble
	ModelVersionEnsemble = "enhanced-ensemble-1.0"
	// ModelVersionBasic tags responses produced by the single-model mode
	ModelVersionBasic = "basic-decomposition-1.0"
)
