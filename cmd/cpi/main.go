package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cpicli/internal/config"
	"cpicli/internal/cpi"
	"cpicli/internal/exporter"
	"cpicli/internal/infrastructure"
	"cpicli/internal/loader"
	"cpicli/internal/report"
	"cpicli/internal/results"
	"cpicli/internal/services"
	"cpicli/internal/table"
	"cpicli/pkg/contracts"
)

// options holds the parsed command line
type options struct {
	configPath string
	base       string
	report     string
	normalize  bool
	series     bool
	mode       string
	engine     string
	out        string
	breakdown  string
	upload     bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("cpi", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (defaults to config.yaml or configs/config.yaml)")
	fs.StringVar(&opts.base, "base", "", "base date YYYY-MM-DD (overrides calculation.base_date)")
	fs.StringVar(&opts.report, "report", "", "report date YYYY-MM-DD, latest price date when empty")
	fs.BoolVar(&opts.normalize, "normalize", false, "divide by the matched leaf weight")
	fs.BoolVar(&opts.series, "series", true, "build the index series and write a report")
	fs.StringVar(&opts.mode, "mode", "", "series mode: fixed | chain")
	fs.StringVar(&opts.engine, "engine", "", "report engine: png | xlsx | csv")
	fs.StringVar(&opts.out, "out", "", "report directory (overrides output.dir)")
	fs.StringVar(&opts.breakdown, "breakdown", "", "write the per-category breakdown to this CSV file")
	fs.BoolVar(&opts.upload, "upload", false, "upload the report to output.bucket")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply overlays command line values on the loaded configuration
func (o *options) apply(cfg *config.Config) error {
	if o.base != "" {
		cfg.Calculation.BaseDate = o.base
	}
	if o.report != "" {
		cfg.Calculation.ReportDate = o.report
	}
	if o.normalize {
		cfg.Calculation.Weighting = string(cpi.WeightingNormalized)
	}
	if o.mode != "" {
		cfg.Calculation.SeriesMode = o.mode
	}
	if o.engine != "" {
		cfg.Output.Engine = o.engine
	}
	if o.out != "" {
		cfg.Output.Dir = o.out
	}
	if o.upload {
		cfg.Output.Upload = true
	}
	if cfg.Calculation.BaseDate == "" {
		return errors.New("a base date is required (-base or calculation.base_date)")
	}
	return cfg.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("cpi failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run executes one computation. A nil logger initializes the global logger
// from the configuration.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	if logger == nil {
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer infrastructure.CloseLogFile()
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	logger.InfoContext(ctx, "Starting index computation",
		slog.String("version", contracts.Version),
		slog.String("source", cfg.Source.Kind),
		slog.String("base_date", cfg.Calculation.BaseDate),
		slog.String("report_date", cfg.Calculation.ReportDate),
		slog.String("weighting", cfg.Calculation.Weighting))

	source, err := loader.Open(ctx, cfg.Source, logger)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	store, err := results.Open(ctx, cfg.Results, logger)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer store.Close()

	service := services.NewCPIService(source, store, services.CPIServiceConfig{
		Calculation:   cfg.Calculation,
		SourceTimeout: cfg.Source.Timeout,
	}, logger)

	computation, err := service.Compute(ctx, services.ComputeRequest{})
	if err != nil {
		return err
	}
	printResult(stdout, computation.Result, cfg.Output.Scale)

	if opts.breakdown != "" {
		path, err := exporter.NewCSVWriter(cfg.Output.Dir, logger).ExportBreakdown(computation.Result, opts.breakdown)
		if err != nil {
			return fmt.Errorf("failed to write breakdown: %w", err)
		}
		fmt.Fprintf(stdout, "Breakdown written to %s\n", path)
	}

	if !opts.series {
		return nil
	}
	return writeReport(ctx, stdout, service, cfg, logger)
}

func writeReport(ctx context.Context, stdout io.Writer, service *services.CPIService, cfg *config.Config, logger *slog.Logger) error {
	points, err := service.Series(ctx, services.SeriesRequest{})
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return report.ErrEmptySeries
	}

	path := filepath.Join(cfg.Output.Dir, report.FileName(cfg.Output.Engine, points[len(points)-1].Date))
	err = report.Generate(points, report.Options{
		Path:   path,
		Engine: cfg.Output.Engine,
		Scale:  cfg.Output.Scale,
		Title:  cfg.Output.Title,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Series of %d points (%s) written to %s\n", len(points), cfg.Calculation.SeriesMode, path)

	if !cfg.Output.Upload {
		return nil
	}
	bucket, err := loader.NewGCSStore(ctx, cfg.Output.Bucket, cfg.Source.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to open report bucket: %w", err)
	}
	defer bucket.Close()

	object, err := report.Upload(ctx, bucket, path, cfg.Output.Prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Uploaded to gs://%s/%s\n", cfg.Output.Bucket, object)
	return nil
}

func printResult(w io.Writer, result *cpi.Result, scale float64) {
	fmt.Fprintf(w, "CPI %s -> %s (%s weighting)\n",
		result.BaseDate.Format(table.DateLayout),
		result.ReportDate.Format(table.DateLayout),
		result.Weighting)
	if !result.HasData {
		fmt.Fprintln(w, "  no matching price data")
	}
	fmt.Fprintf(w, "  index:    %.4f\n", result.Index*scale)
	fmt.Fprintf(w, "  ratio:    %.6f\n", result.Index)
	fmt.Fprintf(w, "  coverage: %.2f%% of leaf weight, %d categories, %d products\n",
		result.Coverage()*100, len(result.Categories), result.Comparisons)
	if dropped := result.Diagnostics.Dropped(); dropped > 0 {
		fmt.Fprintf(w, "  dropped:  %d price rows\n", dropped)
	}
}
