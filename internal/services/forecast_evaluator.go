package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/utils"
)

const seasonalPeriod = 7

// ForecastEvaluator backtests the engine's adapters on a holdout window.
type ForecastEvaluator struct {
	engine *ForecastEngine
	logger *logrus.Logger
}

// NewForecastEvaluator creates an evaluator sharing the engine's adapters.
func NewForecastEvaluator(engine *ForecastEngine) *ForecastEvaluator {
	return &ForecastEvaluator{engine: engine, logger: engine.logger}
}

// Evaluate holds out the last observations, forecasts them from the rest and
// scores every adapter against naive baselines.
func (ev *ForecastEvaluator) Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluationReport, error) {
	pre := ev.engine.preprocessor
	series, err := pre.PrepareSeries(req.Rows)
	if err != nil {
		return nil, err
	}
	signals, err := pre.PrepareSignals(req.ExternalFeatures)
	if err != nil {
		return nil, err
	}

	holdout := req.Holdout
	if holdout <= 0 {
		holdout = req.HorizonDays
	}
	if holdout <= 0 {
		holdout = ev.engine.config.DefaultHorizon
	}
	if err := pre.ValidateHorizon(holdout); err != nil {
		return nil, err
	}
	if series.Len()-holdout < pre.MinPoints() {
		return nil, utils.NewFieldValidationError("holdout",
			"training window needs at least %d points, %d remain after holding out %d",
			pre.MinPoints(), series.Len()-holdout, holdout)
	}

	ctx, span := ev.engine.tracer.Start(ctx, "forecast.evaluate", trace.WithAttributes(
		attribute.Int("evaluate.holdout", holdout),
		attribute.Int("evaluate.points", series.Len()),
	))
	defer span.End()

	train := series[:series.Len()-holdout]
	actual := series[series.Len()-holdout:].Prices()

	in := NewAdapterInput(train, signals, holdout)
	regime := DetectMarketRegime(in.Prices, in.Indicators.Volatility)
	results := ev.engine.runAdapters(ctx, in)

	naive := flatLine(in.LastPrice(), holdout)
	naiveErrors := forecastErrors(actual, naive)
	scale := inSampleNaiveMAE(in.Prices)

	report := &models.EvaluationReport{
		Holdout:     holdout,
		TrainPoints: train.Len(),
		Regime:      regime,
		GeneratedAt: time.Now().UTC(),
	}

	for _, r := range results {
		eval := scoreForecast(r.Prediction.Model, actual, r.Prediction.Predictions, naiveErrors, scale)
		eval.Outcome = string(r.Outcome)
		report.Models = append(report.Models, eval)
	}
	report.Models = append(report.Models,
		scoreForecast(models.BaselineNaiveLast, actual, naive, naiveErrors, scale),
		scoreForecast(models.BaselineSeasonalNaive, actual, seasonalNaive(in.Prices, holdout), naiveErrors, scale),
	)

	best := report.Models[0]
	for _, m := range report.Models[1:] {
		if m.MAE < best.MAE {
			best = m
		}
	}
	report.BestModel = best.Model

	ev.logger.WithFields(logrus.Fields{
		"holdout":    holdout,
		"regime":     regime,
		"best_model": best.Model,
		"best_mae":   best.MAE,
	}).Info("Holdout evaluation completed")

	return report, nil
}

func scoreForecast(id models.ModelID, actual, predicted, naiveErrors []float64, scale float64) models.ModelEvaluation {
	errs := forecastErrors(actual, predicted)
	absSum, pctSum := 0.0, 0.0
	for i, e := range errs {
		absSum += math.Abs(e)
		pctSum += math.Abs(e) / math.Max(math.Abs(actual[i]), 1e-12)
	}
	h := float64(len(errs))
	mae := absSum / h

	eval := models.ModelEvaluation{
		Model:    id,
		MAE:      mae,
		MAPE:     pctSum / h * 100,
		DMPValue: dieboldMarianoPValue(errs, naiveErrors),
	}
	if scale > 0 {
		mase := mae / scale
		eval.MASE = &mase
	}
	return eval
}

func forecastErrors(actual, predicted []float64) []float64 {
	errs := make([]float64, len(actual))
	for i := range actual {
		errs[i] = actual[i] - predicted[i]
	}
	return errs
}

// inSampleNaiveMAE is the mean absolute one-step change, the MASE denominator.
func inSampleNaiveMAE(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(prices); i++ {
		sum += math.Abs(prices[i] - prices[i-1])
	}
	return sum / float64(len(prices)-1)
}

// seasonalNaive repeats the last observed week; shorter histories fall back to
// the last price.
func seasonalNaive(prices []float64, horizon int) []float64 {
	n := len(prices)
	if n < seasonalPeriod {
		return flatLine(prices[n-1], horizon)
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = prices[n-seasonalPeriod+i%seasonalPeriod]
	}
	return out
}

// dieboldMarianoPValue tests equal squared-error accuracy against a reference
// with a normal approximation. Undefined statistics report 1.
func dieboldMarianoPValue(errs, reference []float64) float64 {
	h := len(errs)
	if h < 2 {
		return 1
	}
	d := make([]float64, h)
	for i := range errs {
		d[i] = errs[i]*errs[i] - reference[i]*reference[i]
	}
	variance := populationStd(d)
	variance *= variance
	if variance == 0 {
		return 1
	}
	stat := mean(d) / math.Sqrt(variance/float64(h))
	return math.Erfc(math.Abs(stat) / math.Sqrt2)
}
