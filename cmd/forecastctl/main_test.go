package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

func writeRequest(t *testing.T, points int) string {
	t.Helper()
	rows := make([]models.PriceRow, points)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = models.PriceRow{Ds: start.AddDate(0, 0, i).Format("2006-01-02"), Price: 2000 + float64(i%7)*3}
	}
	data, err := json.Marshal(models.ForecastRequest{Rows: rows, HorizonDays: 5})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_JSON(t *testing.T) {
	path := writeRequest(t, 40)

	out, err := execute(t, "", "run", "--file", path, "--format", "json")
	require.NoError(t, err)

	var forecast models.EnsembleForecast
	require.NoError(t, json.Unmarshal([]byte(out), &forecast))
	assert.Len(t, forecast.Forecast, 5)
	assert.NotEmpty(t, forecast.IndividualModels)
	assert.InDelta(t, 1.0, forecast.Weights.Sum(), 1e-3)
}

func TestRun_TableFromStdin(t *testing.T) {
	data, err := os.ReadFile(writeRequest(t, 40))
	require.NoError(t, err)

	out, err := execute(t, string(data), "run", "--file", "-", "--horizon", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "Regime:")
	assert.Contains(t, strings.ToUpper(out), "ESTIMATE")
	assert.Contains(t, out, "2024-02-10")
	assert.Contains(t, out, "2024-02-12")
	assert.NotContains(t, out, "2024-02-13")
}

func TestEvaluate_Table(t *testing.T) {
	path := writeRequest(t, 60)

	out, err := execute(t, "", "evaluate", "--file", path, "--holdout", "6")
	require.NoError(t, err)

	assert.Contains(t, out, "Holdout: 6")
	assert.Contains(t, out, "baseline")
	assert.Contains(t, strings.ToUpper(out), "MASE")
}

func TestRun_Errors(t *testing.T) {
	path := writeRequest(t, 40)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"run"}, "required flag"},
		{"unknown format", []string{"run", "--file", path, "--format", "xml"}, "unknown format"},
		{"missing file", []string{"run", "--file", filepath.Join(t.TempDir(), "nope.json")}, "opening request"},
		{"insufficient data", []string{"run", "--file", writeRequest(t, 3)}, "forecast failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_BadJSON(t *testing.T) {
	_, err := execute(t, "{not json", "run", "--file", "-")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding request")
}
