package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AhmedAl-shari/GoldVision/internal/cache"
	"github.com/AhmedAl-shari/GoldVision/internal/middleware"
	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/testutil"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

type MockForecastService struct {
	mock.Mock
}

func (m *MockForecastService) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.EnsembleForecast, error) {
	args := m.Called(ctx, req)
	if f := args.Get(0); f != nil {
		return f.(*models.EnsembleForecast), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEvaluationService struct {
	mock.Mock
}

func (m *MockEvaluationService) Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluationReport, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*models.EvaluationReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRouter(h *ForecastHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/v1/forecast", h.Forecast)
	router.POST("/api/v1/forecast/evaluate", h.Evaluate)
	return router
}

func postJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validRows(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"ds":    start.AddDate(0, 0, i).Format("2006-01-02"),
			"price": 2000 + float64(i),
		}
	}
	return rows
}

func sampleForecast() *models.EnsembleForecast {
	return &models.EnsembleForecast{
		ID: "f-1",
		Forecast: []models.ForecastPoint{
			{Date: "2024-01-11", Estimate: 2010, Lower: 1949.7, Upper: 2070.3},
		},
		EnsemblePrediction: []float64{2010},
		MarketRegime:       models.RegimeBull,
		ModelAgreement:     0.98,
		OverallConfidence:  0.9,
		ModelVersion:       models.ModelVersionEnsemble,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestForecastHandler_Success(t *testing.T) {
	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.MatchedBy(func(req *models.ForecastRequest) bool {
		return len(req.Rows) == 10 &&
			req.HorizonDays == 1 &&
			req.UseEnsemble.Resolve(false) &&
			!req.IncludeFeatureImportance.Resolve(true) &&
			req.ModelWeights["arima"] == 2
	})).Return(sampleForecast(), nil).Once()

	router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))
	w := postJSON(router, "/api/v1/forecast", map[string]interface{}{
		"rows":          validRows(10),
		"horizon_days":  1,
		"model_weights": map[string]float64{"arima": 2},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.EnsembleForecast
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "f-1", got.ID)
	assert.Equal(t, models.RegimeBull, got.MarketRegime)
	assert.Empty(t, w.Header().Get(cacheHeader))
	engine.AssertExpectations(t)
}

func TestForecastHandler_FlexibleFlags(t *testing.T) {
	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.MatchedBy(func(req *models.ForecastRequest) bool {
		return !req.UseEnsemble.Resolve(true) && req.IncludeFeatureImportance.Resolve(false)
	})).Return(sampleForecast(), nil).Once()

	router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))
	w := postJSON(router, "/api/v1/forecast", map[string]interface{}{
		"rows":                       validRows(6),
		"use_ensemble":               "false",
		"include_feature_importance": 1,
	})

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	engine.AssertExpectations(t)
}

func TestForecastHandler_NegativeWeightsReachEngine(t *testing.T) {
	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.MatchedBy(func(req *models.ForecastRequest) bool {
		return req.ModelWeights["arima"] == -1 && req.ModelWeights["sentiment"] == 0.5
	})).Return(sampleForecast(), nil).Once()

	router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))
	w := postJSON(router, "/api/v1/forecast", map[string]interface{}{
		"rows":          validRows(5),
		"model_weights": map[string]float64{"arima": -1, "sentiment": 0.5},
	})

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	engine.AssertExpectations(t)
}

func TestForecastHandler_RequestValidation(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantField string
		wantCode  string
	}{
		{
			name:     "malformed json",
			body:     `{"rows": [`,
			wantCode: "ERR_INVALID_BODY",
		},
		{
			name:      "missing rows",
			body:      map[string]interface{}{"horizon_days": 7},
			wantField: "rows",
			wantCode:  "ERR_REQUIRED",
		},
		{
			name:      "too few rows",
			body:      map[string]interface{}{"rows": validRows(4)},
			wantField: "rows",
			wantCode:  "ERR_MIN",
		},
		{
			name: "non-positive price",
			body: map[string]interface{}{"rows": append(validRows(5),
				map[string]interface{}{"ds": "2024-02-01", "price": -1})},
			wantField: "rows[5].price",
			wantCode:  "ERR_GT",
		},
		{
			name:      "negative horizon",
			body:      map[string]interface{}{"rows": validRows(5), "horizon_days": -3},
			wantField: "horizon_days",
			wantCode:  "ERR_GTE",
		},
		{
			name: "sentiment out of range",
			body: map[string]interface{}{
				"rows":              validRows(5),
				"external_features": []map[string]interface{}{{"ds": "2024-01-01", "sentiment_score": 3}},
			},
			wantField: "external_features[0].sentiment_score",
			wantCode:  "ERR_LTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockForecastService{}
			router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))

			w := postJSON(router, "/api/v1/forecast", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeError(t, w)
			require.NotEmpty(t, resp.Details)
			assert.Equal(t, tt.wantCode, resp.Details[0].Code)
			assert.Equal(t, tt.wantField, resp.Details[0].Field)
			assert.NotEmpty(t, resp.RequestID)
			engine.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
		})
	}
}

func TestForecastHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation",
			err:        utils.NewFieldValidationError("rows", "at least 5 data points required, got 4"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "wrapped validation",
			err:        fmt.Errorf("preprocess: %w", utils.NewValidationError("bad horizon")),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "insufficient predictions",
			err:        fmt.Errorf("combine: %w", utils.ErrInsufficientPredictions),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "combine: " + utils.ErrInsufficientPredictions.Error(),
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockForecastService{}
			engine.On("Forecast", mock.Anything, mock.Anything).Return(nil, tt.err)
			router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))

			w := postJSON(router, "/api/v1/forecast", map[string]interface{}{"rows": validRows(5)})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestForecastHandler_ValidationDetails(t *testing.T) {
	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.Anything).
		Return(nil, utils.NewFieldValidationError("rows", "at least 5 data points required, got 4"))
	router := newTestRouter(NewForecastHandler(engine, nil, nil, quietLogger()))

	w := postJSON(router, "/api/v1/forecast", map[string]interface{}{"rows": validRows(5)})

	resp := decodeError(t, w)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "rows", resp.Details[0].Field)
	assert.Equal(t, "at least 5 data points required, got 4", resp.Details[0].Message)
}

func TestForecastHandler_Cache(t *testing.T) {
	_, client := testutil.NewMiniRedis(t)
	forecastCache := cache.NewRedisForecastCache(client, time.Minute, "", quietLogger(), nil)

	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.Anything).Return(sampleForecast(), nil).Once()
	router := newTestRouter(NewForecastHandler(engine, nil, forecastCache, quietLogger()))
	body := map[string]interface{}{"rows": validRows(8), "horizon_days": 3}

	first := postJSON(router, "/api/v1/forecast", body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(cacheHeader))

	second := postJSON(router, "/api/v1/forecast", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(cacheHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.Equal(t, int64(1), forecastCache.GetStats().Hits)
	engine.AssertNumberOfCalls(t, "Forecast", 1)
}

func TestForecastHandler_CacheErrorsDoNotFailRequest(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	forecastCache := cache.NewRedisForecastCache(client, time.Minute, "", quietLogger(), nil)
	mr.Close()

	engine := &MockForecastService{}
	engine.On("Forecast", mock.Anything, mock.Anything).Return(sampleForecast(), nil)
	router := newTestRouter(NewForecastHandler(engine, nil, forecastCache, quietLogger()))

	w := postJSON(router, "/api/v1/forecast", map[string]interface{}{"rows": validRows(5)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(cacheHeader))
}

func TestEvaluateHandler(t *testing.T) {
	report := &models.EvaluationReport{
		Holdout:     3,
		TrainPoints: 7,
		Regime:      models.RegimeStable,
		BestModel:   models.ModelARIMA,
		Models:      []models.ModelEvaluation{{Model: models.ModelARIMA, MAE: 1.5, DMPValue: 0.2}},
	}

	t.Run("success", func(t *testing.T) {
		evaluator := &MockEvaluationService{}
		evaluator.On("Evaluate", mock.Anything, mock.MatchedBy(func(req *models.EvaluateRequest) bool {
			return req.Holdout == 3 && len(req.Rows) == 10
		})).Return(report, nil)
		router := newTestRouter(NewForecastHandler(nil, evaluator, nil, quietLogger()))

		w := postJSON(router, "/api/v1/forecast/evaluate", map[string]interface{}{
			"rows":    validRows(10),
			"holdout": 3,
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got models.EvaluationReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, models.ModelARIMA, got.BestModel)
		assert.Nil(t, got.Models[0].MASE)
	})

	t.Run("holdout too large", func(t *testing.T) {
		evaluator := &MockEvaluationService{}
		evaluator.On("Evaluate", mock.Anything, mock.Anything).
			Return(nil, utils.NewFieldValidationError("holdout", "training window needs at least 5 points"))
		router := newTestRouter(NewForecastHandler(nil, evaluator, nil, quietLogger()))

		w := postJSON(router, "/api/v1/forecast/evaluate", map[string]interface{}{
			"rows":    validRows(8),
			"holdout": 5,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "holdout", decodeError(t, w).Details[0].Field)
	})

	t.Run("too few rows", func(t *testing.T) {
		evaluator := &MockEvaluationService{}
		router := newTestRouter(NewForecastHandler(nil, evaluator, nil, quietLogger()))

		w := postJSON(router, "/api/v1/forecast/evaluate", map[string]interface{}{"rows": validRows(5)})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		evaluator.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
	})
}
