package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PriceRow is one raw price observation as received on the wire
type PriceRow struct {
	Ds    string  `json:"ds" validate:"required"`
	Price float64 `json:"price" validate:"gt=0"`
}

// ExternalFeatureRow is one raw exogenous-signal record as received on the wire
type ExternalFeatureRow struct {
	Ds             string   `json:"ds" validate:"required"`
	DXY            *float64 `json:"dxy,omitempty"`
	BTCPrice       *float64 `json:"btc_price,omitempty"`
	OilPrice       *float64 `json:"oil_price,omitempty"`
	SP500          *float64 `json:"sp500,omitempty"`
	Treasury10Y    *float64 `json:"treasury_10y,omitempty"`
	Volatility     *float64 `json:"volatility,omitempty"`
	RSI            *float64 `json:"rsi,omitempty"`
	MACD           *float64 `json:"macd,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Volume         *float64 `json:"volume,omitempty"`
}

// ForecastRequest is the payload consumed by the forecast endpoint and CLI
type ForecastRequest struct {
	Rows                     []PriceRow           `json:"rows" validate:"required,min=5,dive"`
	ExternalFeatures         []ExternalFeatureRow `json:"external_features,omitempty" validate:"omitempty,dive"`
	HorizonDays              int                  `json:"horizon_days,omitempty" validate:"gte=0"`
	UseEnsemble              *FlexBool            `json:"use_ensemble,omitempty" default:"true"`
	ModelWeights             map[string]float64   `json:"model_weights,omitempty"`
	IncludeFeatureImportance *FlexBool            `json:"include_feature_importance,omitempty" default:"false"`
}

// EvaluateRequest asks for a holdout evaluation of every model
type EvaluateRequest struct {
	Rows             []PriceRow           `json:"rows" validate:"required,min=6,dive"`
	ExternalFeatures []ExternalFeatureRow `json:"external_features,omitempty" validate:"omitempty,dive"`
	HorizonDays      int                  `json:"horizon_days,omitempty" validate:"gte=0"`
	Holdout          int                  `json:"holdout,omitempty" validate:"gte=0"`
}

// FlexBool is a boolean that also accepts the strings "true"/"false"/"1"/"0"/"yes"
// (case-insensitive) and the numbers 1/0.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		return nil
	case raw == "true" || raw == "false":
		*b = FlexBool(raw == "true")
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FlexBool(ParseFlexBool(s))
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid boolean value %s", raw)
		}
		*b = FlexBool(n != 0)
		return nil
	}
}

// Resolve returns the flag value, or def when the flag was absent or null.
func (b *FlexBool) Resolve(def bool) bool {
	if b == nil {
		return def
	}
	return bool(*b)
}

// ParseFlexBool interprets the accepted truthy strings; anything else is false.
func ParseFlexBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// NewFlexBool returns a pointer to a FlexBool holding v.
func NewFlexBool(v bool) *FlexBool {
	b := FlexBool(v)
	return &b
}
