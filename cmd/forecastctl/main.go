package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/AhmedAl-shari/GoldVision/internal/config"
	"github.com/AhmedAl-shari/GoldVision/internal/logging"
	"github.com/AhmedAl-shari/GoldVision/internal/models"
	"github.com/AhmedAl-shari/GoldVision/internal/services"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type options struct {
	file     string
	format   string
	horizon  int
	holdout  int
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "Run the gold price forecast ensemble offline",
		Long: `forecastctl runs the forecast engine on a JSON request file without the HTTP service.

Examples:
  forecastctl run --file request.json
  forecastctl run --file - --format json < request.json
  forecastctl evaluate --file request.json --holdout 7`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "request file, - for stdin")
	root.PersistentFlags().StringVar(&opts.format, "format", formatTable, "output format: table, json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level for engine diagnostics on stderr")
	_ = root.MarkPersistentFlagRequired("file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast the series in the request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, opts, stdin, stdout)
		},
	}
	runCmd.Flags().IntVar(&opts.horizon, "horizon", 0, "override horizon_days from the request")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Backtest every model on a holdout window of the request series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts, stdin, stdout)
		},
	}
	evaluateCmd.Flags().IntVar(&opts.horizon, "horizon", 0, "override horizon_days from the request")
	evaluateCmd.Flags().IntVar(&opts.holdout, "holdout", 0, "number of trailing points to hold out (default: horizon)")

	root.AddCommand(runCmd, evaluateCmd)
	return root
}

func newEngine(opts *options) (*services.ForecastEngine, error) {
	if opts.format != formatTable && opts.format != formatJSON {
		return nil, fmt.Errorf("unknown format %q: use table or json", opts.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogrus(opts.logLevel, cfg.Environment)
	logger.SetOutput(os.Stderr)

	return services.NewForecastEngineFromConfig(cfg.Forecast, logger, nil)
}

func readRequest(path string, stdin io.Reader, v interface{}) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening request: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}

func runForecast(cmd *cobra.Command, opts *options, stdin io.Reader, stdout io.Writer) error {
	engine, err := newEngine(opts)
	if err != nil {
		return err
	}

	var req models.ForecastRequest
	if err := readRequest(opts.file, stdin, &req); err != nil {
		return err
	}
	if opts.horizon > 0 {
		req.HorizonDays = opts.horizon
	}

	forecast, err := engine.Forecast(cmd.Context(), &req)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	if opts.format == formatJSON {
		return writeJSON(stdout, forecast)
	}
	return renderForecast(stdout, forecast)
}

func runEvaluate(cmd *cobra.Command, opts *options, stdin io.Reader, stdout io.Writer) error {
	engine, err := newEngine(opts)
	if err != nil {
		return err
	}

	var req models.EvaluateRequest
	if err := readRequest(opts.file, stdin, &req); err != nil {
		return err
	}
	if opts.horizon > 0 {
		req.HorizonDays = opts.horizon
	}
	if opts.holdout > 0 {
		req.Holdout = opts.holdout
	}

	report, err := services.NewForecastEvaluator(engine).Evaluate(cmd.Context(), &req)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if opts.format == formatJSON {
		return writeJSON(stdout, report)
	}
	return renderEvaluation(stdout, report)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderForecast(w io.Writer, f *models.EnsembleForecast) error {
	fmt.Fprintf(w, "Regime: %s  Confidence: %.3f  Agreement: %.3f  Version: %s\n\n",
		f.MarketRegime, f.OverallConfidence, f.ModelAgreement, f.ModelVersion)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Date", "Estimate", "Lower", "Upper"}),
	)
	for _, p := range f.Forecast {
		if err := table.Append([]string{
			p.Date,
			fmt.Sprintf("%.2f", p.Estimate),
			fmt.Sprintf("%.2f", p.Lower),
			fmt.Sprintf("%.2f", p.Upper),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(f.Weights) > 0 {
		fmt.Fprintln(w)
		ids := make([]string, 0, len(f.Weights))
		for id := range f.Weights {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)

		weights := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"Model", "Weight", "Confidence"}),
		)
		confidence := make(map[string]float64, len(f.IndividualModels))
		for _, m := range f.IndividualModels {
			confidence[string(m.Model)] = m.Confidence
		}
		for _, id := range ids {
			if err := weights.Append([]string{
				id,
				fmt.Sprintf("%.3f", f.Weights[models.ModelID(id)]),
				fmt.Sprintf("%.3f", confidence[id]),
			}); err != nil {
				return err
			}
		}
		if err := weights.Render(); err != nil {
			return err
		}
	}

	if len(f.FeatureImportance) > 0 {
		fmt.Fprintln(w)
		importance := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"Feature", "Importance", "Contribution"}),
		)
		for _, fi := range f.FeatureImportance {
			if err := importance.Append([]string{
				fi.FeatureName,
				fmt.Sprintf("%.3f", fi.ImportanceScore),
				fmt.Sprintf("%.1f%%", fi.ContributionPercent),
			}); err != nil {
				return err
			}
		}
		if err := importance.Render(); err != nil {
			return err
		}
	}
	return nil
}

func renderEvaluation(w io.Writer, r *models.EvaluationReport) error {
	fmt.Fprintf(w, "Holdout: %d  Train points: %d  Regime: %s  Best: %s\n\n",
		r.Holdout, r.TrainPoints, r.Regime, r.BestModel)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Model", "MAE", "MAPE %", "MASE", "DM p", "Outcome"}),
	)
	for _, m := range r.Models {
		mase := "n/a"
		if m.MASE != nil {
			mase = fmt.Sprintf("%.3f", *m.MASE)
		}
		outcome := m.Outcome
		if outcome == "" {
			outcome = "baseline"
		}
		if err := table.Append([]string{
			string(m.Model),
			fmt.Sprintf("%.3f", m.MAE),
			fmt.Sprintf("%.2f", m.MAPE),
			mase,
			fmt.Sprintf("%.3f", m.DMPValue),
			outcome,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
