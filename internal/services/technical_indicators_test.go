package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearPrices(n int, start, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)*step
	}
	return prices
}

func alternatingPrices(n int, start, swing float64) []float64 {
	prices := make([]float64, n)
	prices[0] = start
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			prices[i] = prices[i-1] * (1 + swing)
		} else {
			prices[i] = prices[i-1] * (1 - swing)
		}
	}
	return prices
}

func TestRollingMean_AlignsToInputIndex(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4, 5}, 2)

	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5, 4.5}, out[1:], 1e-9)
}

func TestRollingMean_WindowLongerThanInput(t *testing.T) {
	out := rollingMean([]float64{1, 2}, 3)

	require.Len(t, out, 2)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRollingStd_SampleDeviation(t *testing.T) {
	out := rollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)

	require.Len(t, out, 8)
	assert.InDelta(t, 2.138089935, out[7], 1e-6)
	assert.True(t, math.IsNaN(out[6]))
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	out := ema([]float64{10, 20, 30}, 3)

	// alpha = 0.5
	assert.InDeltaSlice(t, []float64{10, 15, 22.5}, out, 1e-9)
}

func TestMedian_SkipsNaN(t *testing.T) {
	assert.Equal(t, 3.0, median([]float64{5, math.NaN(), 1, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
	assert.True(t, math.IsNaN(median([]float64{math.NaN()})))
}

func TestSeriesStats(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, mean(values), 1e-12)
	assert.InDelta(t, 2.0, populationStd(values), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), sampleStd(values), 1e-12)

	assert.Zero(t, mean(nil))
	assert.Zero(t, populationStd(nil))
	assert.True(t, math.IsNaN(sampleStd([]float64{3})))

	avg, ok := nanMean([]float64{1, math.NaN(), 3, math.Inf(1)})
	assert.True(t, ok)
	assert.Equal(t, 2.0, avg)
	_, ok = nanMean([]float64{math.NaN()})
	assert.False(t, ok)
}

func TestRollingStd_SampleWindow(t *testing.T) {
	out := rollingStd([]float64{1, 2, 3, 4}, 3)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDeltaSlice(t, []float64{1, 1}, out[2:], 1e-12)
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 2.0, quantile(sorted, 0.25))
	assert.Equal(t, 4.0, quantile(sorted, 0.75))
	assert.Equal(t, 3.0, quantile(sorted, 0.5))
	assert.InDelta(t, 1.4, quantile(sorted, 0.1), 1e-12)
	assert.True(t, math.IsNaN(quantile(nil, 0.5)))
}

func TestCalculateIndicators_ShortSeriesFallbacks(t *testing.T) {
	prices := []float64{100, 101, 102, 103}

	set := CalculateIndicators(prices)

	assert.Equal(t, []float64{50, 50, 50, 50}, set.RSI)
	assert.Equal(t, []float64{0, 0, 0, 0}, set.MACD)
	assert.Equal(t, []float64{0, 0, 0, 0}, set.MACDSignal)
	assert.Equal(t, prices, set.SMA20)
	assert.Equal(t, prices, set.SMA50)
	assert.Equal(t, []float64{0, 0, 0, 0}, set.Volatility)
}

func TestCalculateIndicators_LengthsMatchInput(t *testing.T) {
	for _, n := range []int{1, 5, 13, 14, 19, 20, 25, 26, 60} {
		set := CalculateIndicators(linearPrices(n, 100, 1))

		assert.Len(t, set.RSI, n, "rsi n=%d", n)
		assert.Len(t, set.MACD, n, "macd n=%d", n)
		assert.Len(t, set.MACDSignal, n, "macd signal n=%d", n)
		assert.Len(t, set.SMA20, n, "sma20 n=%d", n)
		assert.Len(t, set.SMA50, n, "sma50 n=%d", n)
		assert.Len(t, set.Volatility, n, "volatility n=%d", n)
	}
}

func TestCalculateIndicators_RSIOnRisingSeries(t *testing.T) {
	set := CalculateIndicators(linearPrices(30, 100, 1))

	for i := 0; i < rsiPeriod; i++ {
		assert.True(t, math.IsNaN(set.RSI[i]), "index %d", i)
	}
	assert.InDelta(t, 100, set.RSI[29], 1e-6)
}

func TestCalculateIndicators_MACDOnRisingSeries(t *testing.T) {
	set := CalculateIndicators(linearPrices(40, 100, 1))

	assert.Equal(t, 0.0, set.MACD[0])
	assert.Greater(t, set.MACD[39], 0.0)
	assert.Greater(t, set.MACD[39], set.MACD[20])
	assert.Greater(t, set.MACD[39], set.MACDSignal[39])
}

func TestCalculateIndicators_MovingAverages(t *testing.T) {
	prices := linearPrices(30, 100, 1)
	set := CalculateIndicators(prices)

	assert.True(t, math.IsNaN(set.SMA20[18]))
	assert.InDelta(t, 109.5, set.SMA20[19], 1e-9)
	assert.InDelta(t, 119.5, set.SMA20[29], 1e-9)
	// long window shrinks to the series length
	assert.InDelta(t, 114.5, set.SMA50[29], 1e-9)
	assert.True(t, math.IsNaN(set.SMA50[28]))
}

func TestCalculateIndicators_Volatility(t *testing.T) {
	flat := CalculateIndicators([]float64{100, 100, 100, 100, 100, 100, 100})
	assert.True(t, math.IsNaN(flat.Volatility[4]))
	assert.Equal(t, 0.0, flat.Volatility[5])

	swings := CalculateIndicators(alternatingPrices(20, 100, 0.1))
	last := swings.Volatility[19]
	assert.InDelta(t, 0.1095445*math.Sqrt(252), last, 1e-3)
}

func TestIndicatorSet_At(t *testing.T) {
	set := CalculateIndicators(linearPrices(4, 100, 1))

	rsi, macd, sma20, vol := set.At(2)
	assert.Equal(t, 50.0, rsi)
	assert.Equal(t, 0.0, macd)
	assert.Equal(t, 102.0, sma20)
	assert.Equal(t, 0.0, vol)

	rsi, _, _, _ = set.At(10)
	assert.True(t, math.IsNaN(rsi))
}
