package services

import (
	"math"
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"gonum.org/v1/gonum/stat"
)

// rollingMean returns the trailing window mean aligned to the input index.
// Positions without a full window are NaN.
func rollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	result := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	offset := len(values) - len(result)
	for i, v := range result {
		out[offset+i] = v
	}
	return out
}

// rollingStd returns the trailing window sample standard deviation (ddof=1)
// aligned to the input index. Positions without a full window are NaN.
// volatility.MovingStd is ddof=0, so it cannot stand in here.
func rollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = sampleStd(values[i-window+1 : i+1])
	}
	return out
}

// ema is an exponential moving average seeded with the first value,
// alpha = 2/(span+1), no bias adjustment. trend.Ema seeds with an SMA
// and drops the warm-up rows.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// nanMean averages the finite values; ok is false when there are none.
func nanMean(values []float64) (float64, bool) {
	finite := finiteValues(values)
	if len(finite) == 0 {
		return 0, false
	}
	return stat.Mean(finite, nil), true
}

// populationStd is the standard deviation with ddof=0.
func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopStdDev(values, nil)
}

// sampleStd is the standard deviation with ddof=1.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.StdDev(values, nil)
}

// median of the finite values; NaN when there are none.
func median(values []float64) float64 {
	finite := finiteValues(values)
	sort.Float64s(finite)
	return quantile(finite, 0.5)
}

// quantile interpolates linearly between closest ranks (R type 7).
// stat.Quantile only offers the empirical and type 4 estimators.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func finiteValues(values []float64) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	return finite
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func flatLine(value float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = value
	}
	return out
}
