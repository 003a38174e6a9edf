package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

const (
	DefaultMinPoints  = 5
	DefaultMaxHorizon = 365
	outlierIQRFactor  = 10.0
	outlierMinPoints  = 20
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// PreprocessorConfig controls input cleaning.
type PreprocessorConfig struct {
	MinPoints   int
	MaxHorizon  int
	CapOutliers bool
}

// SeriesPreprocessor turns raw wire rows into a clean, ascending PriceSeries.
type SeriesPreprocessor struct {
	config PreprocessorConfig
}

// NewSeriesPreprocessor creates a preprocessor, defaulting zero limits.
func NewSeriesPreprocessor(config PreprocessorConfig) *SeriesPreprocessor {
	if config.MinPoints < DefaultMinPoints {
		config.MinPoints = DefaultMinPoints
	}
	if config.MaxHorizon <= 0 {
		config.MaxHorizon = DefaultMaxHorizon
	}
	return &SeriesPreprocessor{config: config}
}

// MinPoints returns the minimum series length accepted.
func (p *SeriesPreprocessor) MinPoints() int {
	return p.config.MinPoints
}

// ParseDate accepts a calendar date or an ISO-8601 timestamp and returns the
// calendar day at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, utils.NewFieldValidationError("ds", "unparseable date %q", value)
}

// ValidateHorizon rejects non-positive horizons and horizons above the limit.
func (p *SeriesPreprocessor) ValidateHorizon(horizon int) error {
	if horizon <= 0 {
		return utils.NewFieldValidationError("horizon_days", "must be positive, got %d", horizon)
	}
	if horizon > p.config.MaxHorizon {
		return utils.NewFieldValidationError("horizon_days", "must be at most %d, got %d", p.config.MaxHorizon, horizon)
	}
	return nil
}

func (p *SeriesPreprocessor) validateLength(n int) error {
	if n < p.config.MinPoints {
		return utils.NewFieldValidationError("rows", "at least %d data points required, got %d", p.config.MinPoints, n)
	}
	return nil
}

// PrepareSeries parses, sorts and deduplicates rows. A later row for the same
// day replaces an earlier one.
func (p *SeriesPreprocessor) PrepareSeries(rows []models.PriceRow) (models.PriceSeries, error) {
	if err := p.validateLength(len(rows)); err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]float64, len(rows))
	for i, row := range rows {
		date, err := ParseDate(row.Ds)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(row.Price) || math.IsInf(row.Price, 0) || row.Price <= 0 {
			return nil, utils.NewFieldValidationError("rows", "row %d: price must be a positive finite number", i)
		}
		byDay[date] = row.Price
	}

	series := make(models.PriceSeries, 0, len(byDay))
	for date, price := range byDay {
		series = append(series, models.PricePoint{Date: date, Price: price})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	if len(series) < p.config.MinPoints {
		return nil, utils.NewFieldValidationError("rows", "at least %d distinct dates required, got %d", p.config.MinPoints, len(series))
	}

	if p.config.CapOutliers {
		capOutliers(series)
	}
	return series, nil
}

// PrepareSignals parses signal rows and sorts them by date.
func (p *SeriesPreprocessor) PrepareSignals(rows []models.ExternalFeatureRow) ([]models.ExternalSignal, error) {
	signals := make([]models.ExternalSignal, 0, len(rows))
	for _, row := range rows {
		date, err := ParseDate(row.Ds)
		if err != nil {
			return nil, err
		}
		signals = append(signals, models.ExternalSignal{
			Date:           date,
			DXY:            row.DXY,
			BTCPrice:       row.BTCPrice,
			OilPrice:       row.OilPrice,
			SP500:          row.SP500,
			Treasury10Y:    row.Treasury10Y,
			Volatility:     row.Volatility,
			RSI:            row.RSI,
			MACD:           row.MACD,
			SentimentScore: row.SentimentScore,
			Volume:         row.Volume,
		})
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Date.Before(signals[j].Date) })
	return signals, nil
}

// capOutliers clips prices to [Q1-10*IQR, Q3+10*IQR] in place.
func capOutliers(series models.PriceSeries) {
	if len(series) <= outlierMinPoints {
		return
	}
	sorted := series.Prices()
	sort.Float64s(sorted)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr <= 0 {
		return
	}
	lower := math.Max(q1-outlierIQRFactor*iqr, sorted[0])
	upper := q3 + outlierIQRFactor*iqr
	for i := range series {
		series[i].Price = clamp(series[i].Price, lower, upper)
	}
}
