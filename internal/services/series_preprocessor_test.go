package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

func TestNewSeriesPreprocessor_Defaults(t *testing.T) {
	p := NewSeriesPreprocessor(PreprocessorConfig{MinPoints: 2})

	assert.Equal(t, DefaultMinPoints, p.MinPoints())
	assert.NoError(t, p.ValidateHorizon(DefaultMaxHorizon))
	assert.Error(t, p.ValidateHorizon(DefaultMaxHorizon+1))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	for _, value := range []string{
		"2024-01-05",
		" 2024-01-05 ",
		"2024-01-05T13:45:00Z",
		"2024-01-05T23:30:00+05:00",
		"2024-01-05T08:00:00.123456Z",
		"2024-01-05T10:00:00",
		"2024-01-05 10:00:00",
	} {
		got, err := ParseDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	_, err := ParseDate("05/01/2024")
	require.Error(t, err)
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ds", ve.Field)
}

func TestSeriesPreprocessor_ValidateHorizon(t *testing.T) {
	p := NewSeriesPreprocessor(PreprocessorConfig{MaxHorizon: 30})

	assert.NoError(t, p.ValidateHorizon(1))
	assert.NoError(t, p.ValidateHorizon(30))
	assert.True(t, utils.IsValidationError(p.ValidateHorizon(0)))
	assert.True(t, utils.IsValidationError(p.ValidateHorizon(31)))
}

func TestSeriesPreprocessor_PrepareSeries(t *testing.T) {
	p := NewSeriesPreprocessor(PreprocessorConfig{})
	rows := []models.PriceRow{
		{Ds: "2024-01-03", Price: 103},
		{Ds: "2024-01-01", Price: 101},
		{Ds: "2024-01-02", Price: 102},
		{Ds: "2024-01-05T09:00:00Z", Price: 105},
		{Ds: "2024-01-04", Price: 104},
		{Ds: "2024-01-02", Price: 202},
	}

	series, err := p.PrepareSeries(rows)

	require.NoError(t, err)
	require.Equal(t, 5, series.Len())
	assert.Equal(t, []float64{101, 202, 103, 104, 105}, series.Prices())
	for i := 1; i < series.Len(); i++ {
		assert.True(t, series[i-1].Date.Before(series[i].Date))
	}
}

func TestSeriesPreprocessor_PrepareSeriesErrors(t *testing.T) {
	p := NewSeriesPreprocessor(PreprocessorConfig{})

	tests := []struct {
		name    string
		rows    []models.PriceRow
		wantErr string
	}{
		{
			name:    "too few rows",
			rows:    rowsFrom([]float64{1, 2, 3, 4}),
			wantErr: "rows: at least 5 data points required, got 4",
		},
		{
			name: "too few distinct dates",
			rows: append(rowsFrom([]float64{1, 2, 3, 4}),
				models.PriceRow{Ds: seriesStart.Format("2006-01-02"), Price: 9}),
			wantErr: "distinct dates",
		},
		{
			name:    "non-positive price",
			rows:    rowsFrom([]float64{1, 2, 0, 4, 5}),
			wantErr: "row 2",
		},
		{
			name: "bad date",
			rows: append(rowsFrom([]float64{1, 2, 3, 4}),
				models.PriceRow{Ds: "yesterday", Price: 9}),
			wantErr: "unparseable date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PrepareSeries(tt.rows)
			require.Error(t, err)
			assert.True(t, utils.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeriesPreprocessor_CapOutliers(t *testing.T) {
	prices := append(linearPrices(24, 100, 1), 10000)
	rows := rowsFrom(prices)

	capped, err := NewSeriesPreprocessor(PreprocessorConfig{CapOutliers: true}).PrepareSeries(rows)
	require.NoError(t, err)
	assert.Equal(t, 238.0, capped.Last().Price)
	assert.Equal(t, 100.0, capped[0].Price)

	raw, err := NewSeriesPreprocessor(PreprocessorConfig{}).PrepareSeries(rows)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, raw.Last().Price)
}

func TestCapOutliers_ShortSeriesUntouched(t *testing.T) {
	series := seriesFrom(append(linearPrices(19, 100, 1), 10000))

	capOutliers(series)

	assert.Equal(t, 10000.0, series.Last().Price)
}

func TestSeriesPreprocessor_PrepareSignals(t *testing.T) {
	p := NewSeriesPreprocessor(PreprocessorConfig{})

	signals, err := p.PrepareSignals([]models.ExternalFeatureRow{
		{Ds: "2024-01-03", DXY: floatPtr(104)},
		{Ds: "2024-01-01", SentimentScore: floatPtr(0.4), BTCPrice: floatPtr(42000)},
	})

	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, seriesStart, signals[0].Date)
	assert.Equal(t, 0.4, *signals[0].SentimentScore)
	assert.Equal(t, 42000.0, *signals[0].BTCPrice)
	assert.Nil(t, signals[0].DXY)
	assert.Equal(t, 104.0, *signals[1].DXY)

	_, err = p.PrepareSignals([]models.ExternalFeatureRow{{Ds: "soon"}})
	assert.True(t, utils.IsValidationError(err))
}
