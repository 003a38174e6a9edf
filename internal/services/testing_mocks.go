package services

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
)

// MockModelAdapter implements ModelAdapter for testing within the services package
type MockModelAdapter struct {
	mock.Mock
	Model models.ModelID
}

func (m *MockModelAdapter) ID() models.ModelID {
	return m.Model
}

func (m *MockModelAdapter) Forecast(in AdapterInput) AdapterResult {
	args := m.Called(in)
	return args.Get(0).(AdapterResult)
}

// MockMetricsRecorder implements MetricsRecorder for testing within the services package
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordForecast(mode string, regime string, confidence float64, duration time.Duration) {
	m.Called(mode, regime, confidence, duration)
}

func (m *MockMetricsRecorder) RecordAdapterFallback(model string) {
	m.Called(model)
}
