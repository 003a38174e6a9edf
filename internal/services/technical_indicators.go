package services

import (
	"math"
)

const (
	rsiPeriod        = 14
	macdFastSpan     = 12
	macdSlowSpan     = 26
	macdSignalSpan   = 9
	smaShortWindow   = 20
	smaLongWindow    = 50
	volatilityWindow = 5
	tradingDays      = 252
	neutralRSI       = 50.0
)

// IndicatorSet holds technical features aligned 1:1 with the price index.
// NaN marks positions without enough history for the rolling window.
type IndicatorSet struct {
	RSI        []float64 `json:"rsi"`
	MACD       []float64 `json:"macd"`
	MACDSignal []float64 `json:"macd_signal"`
	SMA20      []float64 `json:"sma20"`
	SMA50      []float64 `json:"sma50"`
	Volatility []float64 `json:"volatility"`
}

// CalculateIndicators derives the indicator set from a price array.
// Short series never fail; each indicator degrades to its neutral fallback.
func CalculateIndicators(prices []float64) IndicatorSet {
	n := len(prices)
	set := IndicatorSet{}

	// RSI (14-period, simple average of gains and losses)
	if n >= rsiPeriod {
		set.RSI = calculateRSI(prices)
	} else {
		set.RSI = flatLine(neutralRSI, n)
	}

	// MACD (12, 26, 9)
	if n >= macdSlowSpan {
		fast := ema(prices, macdFastSpan)
		slow := ema(prices, macdSlowSpan)
		line := make([]float64, n)
		for i := range prices {
			line[i] = fast[i] - slow[i]
		}
		set.MACD = line
		set.MACDSignal = ema(line, macdSignalSpan)
	} else {
		set.MACD = make([]float64, n)
		set.MACDSignal = make([]float64, n)
	}

	// Moving averages
	if n >= smaShortWindow {
		set.SMA20 = rollingMean(prices, smaShortWindow)
		set.SMA50 = rollingMean(prices, min(smaLongWindow, n))
	} else {
		set.SMA20 = append([]float64(nil), prices...)
		set.SMA50 = append([]float64(nil), prices...)
	}

	// Annualized rolling volatility of simple returns
	if n >= volatilityWindow {
		set.Volatility = calculateVolatility(prices)
	} else {
		set.Volatility = make([]float64, n)
	}

	return set
}

// calculateRSI averages the first differences over 14 periods. Position i uses
// the differences ending at i, so the first 14 positions are NaN.
// Simple averages, not the Wilder smoothing of momentum.Rsi.
func calculateRSI(prices []float64) []float64 {
	n := len(prices)
	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else if delta < 0 {
			losses[i-1] = -delta
		}
	}

	avgGain := rollingMean(gains, rsiPeriod)
	avgLoss := rollingMean(losses, rsiPeriod)

	rsi := nanSlice(n)
	for i := range avgGain {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		rs := avgGain[i] / (avgLoss[i] + 1e-10)
		rsi[i+1] = 100 - 100/(1+rs)
	}
	return rsi
}

func calculateVolatility(prices []float64) []float64 {
	n := len(prices)
	returns := make([]float64, n-1)
	for i := 1; i < n; i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}

	rolling := rollingStd(returns, volatilityWindow)
	vol := nanSlice(n)
	annualize := math.Sqrt(tradingDays)
	for i, v := range rolling {
		if !math.IsNaN(v) {
			vol[i+1] = v * annualize
		}
	}
	return vol
}

// At returns the indicator row at index i with NaN for missing values.
func (s IndicatorSet) At(i int) (rsi, macd, sma20, volatility float64) {
	pick := func(values []float64) float64 {
		if i < 0 || i >= len(values) {
			return math.NaN()
		}
		return values[i]
	}
	return pick(s.RSI), pick(s.MACD), pick(s.SMA20), pick(s.Volatility)
}
