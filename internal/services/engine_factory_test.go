package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AhmedAl-shari/GoldVision/internal/config"
)

func forecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		MinPoints:         5,
		DefaultHorizon:    7,
		MaxHorizon:        365,
		MaxWorkers:        3,
		RandomSeed:        42,
		ConfidenceFloor:   0.75,
		ConfidenceCeiling: 0.95,
	}
}

func TestNewForecastEngineFromConfig(t *testing.T) {
	engine, err := NewForecastEngineFromConfig(forecastConfig(), quietLogger(), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, engine.Workers())
	assert.Len(t, engine.Adapters(), 6)
	assert.Equal(t, 5, engine.Preprocessor().MinPoints())
}

func TestNewForecastEngineFromConfig_DerivedWorkers(t *testing.T) {
	cfg := forecastConfig()
	cfg.MaxWorkers = 0

	engine, err := NewForecastEngineFromConfig(cfg, quietLogger(), nil)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, engine.Workers(), 1)
	assert.LessOrEqual(t, engine.Workers(), len(DefaultAdapters(0)))
}

func TestNewForecastEngineFromConfig_PriorsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "priors.yaml")
	data, err := yaml.Marshal(DefaultRegimePriors())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, data, 0o600))

	cfg := forecastConfig()
	cfg.RegimePriorsFile = good
	_, err = NewForecastEngineFromConfig(cfg, quietLogger(), nil)
	require.NoError(t, err)

	cfg.RegimePriorsFile = filepath.Join(dir, "missing.yaml")
	_, err = NewForecastEngineFromConfig(cfg, quietLogger(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load regime priors")
}
