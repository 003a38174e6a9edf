package services

import (
	"errors"
	"math"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	minTrainingSamples = 5
	minTrainingRows    = 3
	maxLags            = 5
	dateKeyLayout      = "2006-01-02"
)

var (
	errInsufficientSamples = errors.New("insufficient data for lagged regression")
	errInsufficientRows    = errors.New("insufficient training data")
)

// signalField extracts one exogenous feature from a signal record.
type signalField func(s models.ExternalSignal) *float64

// laggedFeatureSpec describes the design matrix of a tree regressor:
// lag columns first, then the four indicators, then exogenous columns.
type laggedFeatureSpec struct {
	lags    int
	signals []signalField
}

// trainingSet is the imputed design matrix with targets h steps ahead.
type trainingSet struct {
	x    [][]float64
	y    []float64
	lags int
}

// buildTrainingSet builds one row per index i in [5, n) while a target
// i+h-1 exists, then imputes every column with its median.
func buildTrainingSet(in AdapterInput, spec laggedFeatureSpec) (*trainingSet, error) {
	prices := in.Prices
	n := len(prices)
	h := in.Horizon

	samples := n - 1
	if n > h {
		samples = n - h
	}
	if samples < minTrainingSamples {
		return nil, errInsufficientSamples
	}

	useSignals := len(in.Signals) > 0 && len(spec.signals) > 0
	byDate := signalsByDate(in.Signals)

	set := &trainingSet{lags: spec.lags}
	for i := maxLags; i < n; i++ {
		if i+h >= n {
			break
		}

		row := make([]float64, 0, spec.lags+4+len(spec.signals))
		for lag := 1; lag <= spec.lags; lag++ {
			row = append(row, prices[i-lag])
		}
		rsi, macd, sma20, vol := in.Indicators.At(i)
		row = append(row, rsi, macd, sma20, vol)

		if useSignals {
			sig, ok := byDate[in.Series[i].Date.Format(dateKeyLayout)]
			for _, field := range spec.signals {
				if ok {
					row = append(row, models.ValueOrZero(field(sig)))
				} else {
					row = append(row, 0)
				}
			}
		}

		set.x = append(set.x, row)
		set.y = append(set.y, prices[i+h-1])
	}

	if len(set.x) < minTrainingRows {
		return nil, errInsufficientRows
	}

	imputeMedian(set.x)
	return set, nil
}

func signalsByDate(signals []models.ExternalSignal) map[string]models.ExternalSignal {
	byDate := make(map[string]models.ExternalSignal, len(signals))
	for _, s := range signals {
		byDate[s.Date.Format(dateKeyLayout)] = s
	}
	return byDate
}

// imputeMedian replaces NaN cells with their column median, or zero when a
// column has no finite value.
func imputeMedian(x [][]float64) {
	if len(x) == 0 {
		return
	}
	column := make([]float64, len(x))
	for c := range x[0] {
		for r := range x {
			column[r] = x[r][c]
		}
		fill := median(column)
		if math.IsNaN(fill) {
			fill = 0
		}
		for r := range x {
			if math.IsNaN(x[r][c]) || math.IsInf(x[r][c], 0) {
				x[r][c] = fill
			}
		}
	}
}

// recursiveForecast predicts h steps by feeding each prediction back as
// lag 1 and shifting the remaining lag columns; other columns stay fixed.
func (s *trainingSet) recursiveForecast(predict func([]float64) float64, horizon int) []float64 {
	row := append([]float64(nil), s.x[len(s.x)-1]...)
	out := make([]float64, horizon)
	for step := 0; step < horizon; step++ {
		pred := predict(row)
		out[step] = pred
		for lag := s.lags - 1; lag > 0; lag-- {
			row[lag] = row[lag-1]
		}
		row[0] = pred
	}
	return out
}

// inSampleError returns MAE and MAPE (percent) of predict over the training rows.
func (s *trainingSet) inSampleError(predict func([]float64) float64) (mae, mape float64) {
	absSum, pctSum := 0.0, 0.0
	for i, row := range s.x {
		diff := math.Abs(s.y[i] - predict(row))
		absSum += diff
		pctSum += diff / math.Max(math.Abs(s.y[i]), 1e-12)
	}
	count := float64(len(s.x))
	return absSum / count, pctSum / count * 100
}
