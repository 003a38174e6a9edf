package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AhmedAl-shari/GoldVision/internal/middleware"
	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

const cacheHeader = "X-Cache"

// ForecastService produces ensemble forecasts
type ForecastService interface {
	Forecast(ctx context.Context, req *models.ForecastRequest) (*models.EnsembleForecast, error)
}

// EvaluationService backtests the models on a holdout window
type EvaluationService interface {
	Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluationReport, error)
}

// ForecastCache stores finished forecasts by request fingerprint
type ForecastCache interface {
	Get(ctx context.Context, req *models.ForecastRequest) (*models.EnsembleForecast, bool)
	Set(ctx context.Context, req *models.ForecastRequest, forecast *models.EnsembleForecast) error
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string       `json:"error"`
	Details   []FieldError `json:"details,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// ForecastHandler serves the forecast and evaluation endpoints
type ForecastHandler struct {
	engine    ForecastService
	evaluator EvaluationService
	cache     ForecastCache
	logger    *logrus.Logger
}

// NewForecastHandler creates the handler. cache may be nil.
func NewForecastHandler(engine ForecastService, evaluator EvaluationService, cache ForecastCache, logger *logrus.Logger) *ForecastHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ForecastHandler{
		engine:    engine,
		evaluator: evaluator,
		cache:     cache,
		logger:    logger,
	}
}

// Forecast handles POST /api/v1/forecast
func (h *ForecastHandler) Forecast(c *gin.Context) {
	var req models.ForecastRequest
	if errs := bindAndValidate(c, &req); errs != nil {
		h.reject(c, errs)
		return
	}

	ctx := c.Request.Context()
	middleware.AddSpanAttribute(c, "forecast.rows", len(req.Rows))
	middleware.AddSpanAttribute(c, "forecast.horizon", req.HorizonDays)

	if h.cache != nil {
		if cached, ok := h.cache.Get(ctx, &req); ok {
			middleware.AddSpanAttribute(c, "forecast.cached", true)
			c.Header(cacheHeader, "HIT")
			c.JSON(http.StatusOK, cached)
			return
		}
		c.Header(cacheHeader, "MISS")
	}

	forecast, err := h.engine.Forecast(ctx, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, &req, forecast); err != nil {
			h.logger.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Warn("Failed to cache forecast")
		}
	}

	c.JSON(http.StatusOK, forecast)
}

// Evaluate handles POST /api/v1/forecast/evaluate
func (h *ForecastHandler) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if errs := bindAndValidate(c, &req); errs != nil {
		h.reject(c, errs)
		return
	}

	report, err := h.evaluator.Evaluate(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ForecastHandler) reject(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid request",
		Details:   errs,
		RequestID: middleware.GetRequestID(c),
	})
}

// fail maps engine errors onto status codes.
func (h *ForecastHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	requestID := middleware.GetRequestID(c)

	body := ErrorResponse{Error: err.Error(), RequestID: requestID}
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		body.Error = "invalid request"
		body.Details = []FieldError{{Code: "ERR_VALIDATION", Field: ve.Field, Message: ve.Message}}
	}

	if status == http.StatusInternalServerError {
		middleware.RecordError(c, err)
		h.logger.WithError(err).WithField("request_id", requestID).Error("Forecast request failed")
		body.Error = "internal error"
	} else {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     status,
		}).Debug("Forecast request rejected")
	}

	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrInsufficientPredictions):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
