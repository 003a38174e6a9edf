package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

const (
	tracerName = "github.com/AhmedAl-shari/GoldVision/internal/services"

	ModeEnsemble = "ensemble"
	ModeBasic    = "basic"

	bandLowerFactor = 0.97
	bandUpperFactor = 1.03
)

// MetricsRecorder receives engine observations. A nil recorder is a no-op.
type MetricsRecorder interface {
	RecordForecast(mode string, regime string, confidence float64, duration time.Duration)
	RecordAdapterFallback(model string)
}

// EventLogger receives the structured forecast events.
type EventLogger interface {
	WithModel(model string) *slog.Logger
	LogForecast(mode string, regime string, confidence float64, duration int64)
}

// ForecastEngineConfig holds the read-only engine settings.
type ForecastEngineConfig struct {
	MinPoints         int
	DefaultHorizon    int
	MaxHorizon        int
	MaxWorkers        int
	RandomSeed        uint64
	CapOutliers       bool
	ConfidenceFloor   float64
	ConfidenceCeiling float64
	Priors            RegimePriors
	// Adapters replaces the default ensemble when set.
	Adapters []ModelAdapter
}

// ForecastOptions are the per-request switches.
type ForecastOptions struct {
	Horizon                  int
	UseEnsemble              bool
	WeightOverride           map[models.ModelID]float64
	IncludeFeatureImportance bool
}

// ForecastEngine orchestrates indicators, regime detection, the adapters and
// the combination policy. It holds no per-request state.
type ForecastEngine struct {
	config       ForecastEngineConfig
	adapters     []ModelAdapter
	basic        ModelAdapter
	allocator    *WeightAllocator
	normalizer   *ConfidenceNormalizer
	preprocessor *SeriesPreprocessor
	logger       *logrus.Logger
	events       EventLogger
	tracer       trace.Tracer
	metrics      MetricsRecorder
	now          func() time.Time
}

// NewForecastEngine creates the engine. logger and metrics may be nil.
func NewForecastEngine(config ForecastEngineConfig, logger *logrus.Logger, metrics MetricsRecorder) *ForecastEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.DefaultHorizon <= 0 {
		config.DefaultHorizon = 7
	}

	adapters := config.Adapters
	if len(adapters) == 0 {
		adapters = DefaultAdapters(config.RandomSeed)
	}

	var basic ModelAdapter = NewDecompositionAdapter()
	for _, a := range adapters {
		if a.ID() == models.ModelDecomposition {
			basic = a
			break
		}
	}

	workers := config.MaxWorkers
	if workers <= 0 {
		workers = len(adapters)
	}
	config.MaxWorkers = workers

	return &ForecastEngine{
		config:     config,
		adapters:   adapters,
		basic:      basic,
		allocator:  NewWeightAllocator(config.Priors),
		normalizer: NewConfidenceNormalizer(config.ConfidenceFloor, config.ConfidenceCeiling),
		preprocessor: NewSeriesPreprocessor(PreprocessorConfig{
			MinPoints:   config.MinPoints,
			MaxHorizon:  config.MaxHorizon,
			CapOutliers: config.CapOutliers,
		}),
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
		now:     time.Now,
	}
}

// SetEventLogger routes forecast and fallback events to l.
func (e *ForecastEngine) SetEventLogger(l EventLogger) {
	e.events = l
}

// Preprocessor exposes the engine's input cleaner.
func (e *ForecastEngine) Preprocessor() *SeriesPreprocessor {
	return e.preprocessor
}

// Adapters returns the ensemble adapters in execution order.
func (e *ForecastEngine) Adapters() []ModelAdapter {
	return e.adapters
}

// Forecast validates a wire request and runs the engine on it.
func (e *ForecastEngine) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.EnsembleForecast, error) {
	if req == nil {
		return nil, utils.NewValidationError("request body is required")
	}
	series, err := e.preprocessor.PrepareSeries(req.Rows)
	if err != nil {
		return nil, err
	}
	signals, err := e.preprocessor.PrepareSignals(req.ExternalFeatures)
	if err != nil {
		return nil, err
	}

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = e.config.DefaultHorizon
	}

	var override map[models.ModelID]float64
	if len(req.ModelWeights) > 0 {
		override = make(map[models.ModelID]float64, len(req.ModelWeights))
		for id, w := range req.ModelWeights {
			override[models.ModelID(id)] = w
		}
	}

	return e.Run(ctx, series, signals, ForecastOptions{
		Horizon:                  horizon,
		UseEnsemble:              req.UseEnsemble.Resolve(true),
		WeightOverride:           override,
		IncludeFeatureImportance: req.IncludeFeatureImportance.Resolve(false),
	})
}

// Run forecasts a clean series. The series must be ascending and duplicate-free.
func (e *ForecastEngine) Run(ctx context.Context, series models.PriceSeries, signals []models.ExternalSignal, opts ForecastOptions) (*models.EnsembleForecast, error) {
	start := time.Now()
	mode := ModeBasic
	if opts.UseEnsemble {
		mode = ModeEnsemble
	}

	ctx, span := e.tracer.Start(ctx, "forecast.run", trace.WithAttributes(
		attribute.String("forecast.mode", mode),
		attribute.Int("forecast.horizon", opts.Horizon),
		attribute.Int("forecast.points", series.Len()),
	))
	defer span.End()

	if err := e.preprocessor.validateLength(series.Len()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := e.preprocessor.ValidateHorizon(opts.Horizon); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	in := NewAdapterInput(series, signals, opts.Horizon)
	regime := DetectMarketRegime(in.Prices, in.Indicators.Volatility)

	e.logger.WithFields(logrus.Fields{
		"mode":        mode,
		"horizon":     opts.Horizon,
		"data_points": series.Len(),
		"signals":     len(signals),
		"regime":      regime,
	}).Info("Generating forecast")

	var result *models.EnsembleForecast
	var err error
	if opts.UseEnsemble {
		result, err = e.runEnsemble(ctx, in, regime, opts)
	} else {
		result, err = e.runBasic(ctx, in, regime)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("forecast.regime", string(regime)),
		attribute.Float64("forecast.overall_confidence", result.OverallConfidence),
	)

	if e.metrics != nil {
		e.metrics.RecordForecast(mode, string(regime), result.OverallConfidence, time.Since(start))
	}

	elapsed := time.Since(start).Milliseconds()
	e.logger.WithFields(logrus.Fields{
		"mode":               mode,
		"regime":             regime,
		"overall_confidence": result.OverallConfidence,
		"model_agreement":    result.ModelAgreement,
		"duration_ms":        elapsed,
	}).Info("Forecast generated")
	if e.events != nil {
		e.events.LogForecast(mode, string(regime), result.OverallConfidence, elapsed)
	}

	return result, nil
}

func (e *ForecastEngine) runBasic(ctx context.Context, in AdapterInput, regime models.Regime) (*models.EnsembleForecast, error) {
	res := e.runAdapter(ctx, e.basic, in)
	prediction := res.Prediction

	overall := e.normalizer.Normalize(prediction.Confidence, regime, len(in.Prices))
	e.logger.WithFields(logrus.Fields{
		"base_confidence":  prediction.Confidence,
		"regime":           regime,
		"final_confidence": overall,
	}).Debug("Basic mode confidence")

	return e.assemble(in, prediction.Predictions, []models.ModelPrediction{prediction}, nil, nil, regime, 1.0, overall, models.ModelVersionBasic)
}

func (e *ForecastEngine) runEnsemble(ctx context.Context, in AdapterInput, regime models.Regime, opts ForecastOptions) (*models.EnsembleForecast, error) {
	results := e.runAdapters(ctx, in)

	predictions := make([]models.ModelPrediction, 0, len(results))
	for _, r := range results {
		predictions = append(predictions, r.Prediction)
	}

	var weights models.WeightMap
	if opts.WeightOverride != nil {
		weights = e.allocator.ApplyOverride(opts.WeightOverride, predictions)
	} else {
		weights = e.allocator.Allocate(predictions, regime)
	}

	combined, err := CombineEnsemble(predictions, weights)
	if err != nil {
		return nil, fmt.Errorf("failed to combine predictions: %w", err)
	}

	agreement := ModelAgreement(predictions)
	overall := AggregateConfidence(predictions, agreement, regime, len(in.Prices), e.normalizer)

	e.logger.WithFields(logrus.Fields{
		"regime":    regime,
		"weights":   weights,
		"agreement": agreement,
	}).Debug("Ensemble weights computed")

	var importance []models.FeatureImportance
	if opts.IncludeFeatureImportance {
		importance = AttributeFeatures(in.Prices, in.Signals)
	}

	return e.assemble(in, combined, predictions, weights, importance, regime, agreement, overall, models.ModelVersionEnsemble)
}

// runAdapters fans the adapters out over a bounded worker group. Results keep
// adapter order regardless of completion order.
func (e *ForecastEngine) runAdapters(ctx context.Context, in AdapterInput) []AdapterResult {
	results := make([]AdapterResult, len(e.adapters))

	var g errgroup.Group
	g.SetLimit(e.config.MaxWorkers)
	for i, adapter := range e.adapters {
		g.Go(func() error {
			results[i] = e.runAdapter(ctx, adapter, in)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *ForecastEngine) runAdapter(ctx context.Context, adapter ModelAdapter, in AdapterInput) AdapterResult {
	_, span := e.tracer.Start(ctx, "forecast.adapter", trace.WithAttributes(
		attribute.String("model.id", string(adapter.ID())),
	))
	defer span.End()

	res := adapter.Forecast(in)
	span.SetAttributes(
		attribute.String("model.outcome", string(res.Outcome)),
		attribute.Float64("model.confidence", res.Prediction.Confidence),
	)

	if res.Outcome == OutcomeFallback {
		span.RecordError(res.Err)
		if e.events != nil {
			e.events.WithModel(string(adapter.ID())).Warn("Model fit failed, using fallback forecast", "error", fmt.Sprint(res.Err))
		} else {
			e.logger.WithFields(logrus.Fields{
				"model": adapter.ID(),
				"error": res.Err,
			}).Warn("Model fit failed, using fallback forecast")
		}
		if e.metrics != nil {
			e.metrics.RecordAdapterFallback(string(adapter.ID()))
		}
	} else {
		e.logger.WithFields(logrus.Fields{
			"model":       adapter.ID(),
			"confidence":  res.Prediction.Confidence,
			"duration_ms": res.Duration.Milliseconds(),
		}).Debug("Model fitted")
	}
	return res
}

func (e *ForecastEngine) assemble(
	in AdapterInput,
	combined []float64,
	predictions []models.ModelPrediction,
	weights models.WeightMap,
	importance []models.FeatureImportance,
	regime models.Regime,
	agreement float64,
	overall float64,
	version string,
) (*models.EnsembleForecast, error) {
	if !allFinite([]float64{agreement, overall}) {
		return nil, utils.NewValidationErrorf("forecast statistics are not finite for prices up to %g", maxPrice(in.Prices))
	}

	last := in.Series.Last().Date
	points := make([]models.ForecastPoint, len(combined))
	rounded := make([]float64, len(combined))
	for i, v := range combined {
		lower, upper := v*bandLowerFactor, v*bandUpperFactor
		if lower > upper {
			lower, upper = upper, lower
		}
		if !allFinite([]float64{v, lower, upper}) {
			return nil, utils.NewValidationErrorf("forecast step %d overflows for prices up to %g", i+1, maxPrice(in.Prices))
		}
		rounded[i] = roundTo(v, 2)
		points[i] = models.ForecastPoint{
			Date:     last.AddDate(0, 0, i+1).Format(dateKeyLayout),
			Estimate: rounded[i],
			Lower:    roundTo(lower, 2),
			Upper:    roundTo(upper, 2),
		}
	}

	return &models.EnsembleForecast{
		ID:                 uuid.NewString(),
		Forecast:           points,
		EnsemblePrediction: rounded,
		IndividualModels:   orderedPredictions(predictions),
		Weights:            weights,
		FeatureImportance:  importance,
		MarketRegime:       regime,
		ModelAgreement:     roundTo(agreement, 3),
		OverallConfidence:  roundTo(overall, 3),
		ModelVersion:       version,
		GeneratedAt:        e.now().UTC(),
	}, nil
}

func maxPrice(prices []float64) float64 {
	m := math.Inf(-1)
	for _, p := range prices {
		m = math.Max(m, p)
	}
	return m
}

// roundTo rounds half away from zero. Non-finite values pass through.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
