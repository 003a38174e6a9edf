package services

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

const (
	seasonalMinPoints = 14
	intervalZ         = 1.96
	day               = 24 * time.Hour
)

// DecompositionAdapter fits an additive linear trend plus weekly seasonality.
type DecompositionAdapter struct{}

// NewDecompositionAdapter creates the seasonal-trend decomposition adapter.
func NewDecompositionAdapter() *DecompositionAdapter {
	return &DecompositionAdapter{}
}

// ID implements ModelAdapter.
func (a *DecompositionAdapter) ID() models.ModelID {
	return models.ModelDecomposition
}

// Forecast implements ModelAdapter.
func (a *DecompositionAdapter) Forecast(in AdapterInput) AdapterResult {
	return runWithFallback(a.ID(), in, a.fit, trendFallback)
}

// decompositionFit is the fitted additive model.
type decompositionFit struct {
	origin    time.Time
	intercept float64
	slope     float64
	seasonal  map[time.Weekday]float64
	sigma     float64
	n         int
	tMean     float64
	sxx       float64
}

func (a *DecompositionAdapter) fit(in AdapterInput) (models.ModelPrediction, error) {
	model, err := fitDecomposition(in.Series)
	if err != nil {
		return models.ModelPrediction{}, err
	}

	last := in.Series.Last().Date
	predictions := make([]float64, in.Horizon)
	widthSum := 0.0
	for i := 1; i <= in.Horizon; i++ {
		date := last.Add(time.Duration(i) * day)
		predictions[i-1] = model.predict(date)
		widthSum += model.intervalWidth(date)
	}

	avgWidth := widthSum / float64(in.Horizon)
	meanPrice := mean(in.Prices)
	uncertaintyPct := 0.1
	if meanPrice > 0 {
		uncertaintyPct = avgWidth / meanPrice
	}

	return models.ModelPrediction{
		Predictions: predictions,
		Confidence:  decompositionConfidence(uncertaintyPct, len(in.Prices)),
	}, nil
}

// decompositionConfidence falls as the interval widens relative to price and
// rises with sample size.
func decompositionConfidence(uncertaintyPct float64, points int) float64 {
	base := clamp(1.0-uncertaintyPct*2.0, 0.75, 0.95)
	switch {
	case points >= 60:
		base = math.Min(0.95, base*1.12)
	case points >= 30:
		base = math.Min(0.95, base*1.08)
	case points >= 15:
		base = math.Min(0.95, base*1.05)
	}
	return math.Max(0.75, base)
}

func fitDecomposition(series models.PriceSeries) (*decompositionFit, error) {
	n := series.Len()
	if n < 2 {
		return nil, errors.New("insufficient valid data for decomposition")
	}

	origin := series[0].Date
	ts := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range series {
		ts[i] = p.Date.Sub(origin).Hours() / 24
		ys[i] = p.Price
	}

	tMean := stat.Mean(ts, nil)
	sxx := stat.PopVariance(ts, nil) * float64(n)
	if sxx == 0 {
		return nil, errors.New("degenerate time axis")
	}

	intercept, slope := stat.LinearRegression(ts, ys, nil, false)
	model := &decompositionFit{
		origin:    origin,
		intercept: intercept,
		slope:     slope,
		n:         n,
		tMean:     tMean,
		sxx:       sxx,
	}

	residuals := make([]float64, n)
	for i := range ys {
		residuals[i] = ys[i] - (model.intercept + model.slope*ts[i])
	}

	seasonalParams := 0
	if n >= seasonalMinPoints {
		model.seasonal = weeklySeasonality(series, residuals)
		seasonalParams = len(model.seasonal) - 1
		for i, p := range series {
			residuals[i] -= model.seasonal[p.Date.Weekday()]
		}
	}

	dof := n - 2 - seasonalParams
	if dof < 1 {
		dof = 1
	}
	sse := 0.0
	for _, r := range residuals {
		sse += r * r
	}
	model.sigma = math.Sqrt(sse / float64(dof))

	return model, nil
}

// weeklySeasonality averages detrended residuals per weekday, centered on zero.
func weeklySeasonality(series models.PriceSeries, residuals []float64) map[time.Weekday]float64 {
	sums := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]int)
	for i, p := range series {
		wd := p.Date.Weekday()
		sums[wd] += residuals[i]
		counts[wd]++
	}

	seasonal := make(map[time.Weekday]float64, len(sums))
	total := 0.0
	for wd, s := range sums {
		seasonal[wd] = s / float64(counts[wd])
		total += seasonal[wd]
	}
	center := total / float64(len(seasonal))
	for wd := range seasonal {
		seasonal[wd] -= center
	}
	return seasonal
}

func (m *decompositionFit) offset(date time.Time) float64 {
	return date.Sub(m.origin).Hours() / 24
}

func (m *decompositionFit) predict(date time.Time) float64 {
	return m.intercept + m.slope*m.offset(date) + m.seasonal[date.Weekday()]
}

// intervalWidth is the width of the 95% prediction interval at date.
func (m *decompositionFit) intervalWidth(date time.Time) float64 {
	dt := m.offset(date) - m.tMean
	se := m.sigma * math.Sqrt(1+1/float64(m.n)+dt*dt/m.sxx)
	return 2 * intervalZ * se
}

// trendFallback extrapolates the relative change over the last week of observations.
func trendFallback(in AdapterInput) models.ModelPrediction {
	n := len(in.Prices)
	last := in.LastPrice()
	ref := in.Prices[n-min(7, n)]
	trend := 0.0
	if ref != 0 {
		trend = (last - ref) / ref
	}

	predictions := make([]float64, in.Horizon)
	for i := 1; i <= in.Horizon; i++ {
		predictions[i-1] = last * (1 + trend*float64(i))
	}
	return models.ModelPrediction{
		Predictions: predictions,
		Confidence:  0.70,
	}
}
