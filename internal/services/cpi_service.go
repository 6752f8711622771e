package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"cpicli/internal/config"
	"cpicli/internal/cpi"
	apierrors "cpicli/internal/errors"
	"cpicli/internal/infrastructure"
	"cpicli/internal/loader"
	"cpicli/internal/results"
	"cpicli/internal/table"
)

// CPIServiceConfig carries the calculation defaults and instrumentation
type CPIServiceConfig struct {
	Calculation   config.CalculationConfig
	SourceTimeout time.Duration
	Tracer        trace.Tracer
	Metrics       *infrastructure.CPIMetrics
}

// ComputeRequest selects one index window. Zero values fall back to the
// configured calculation defaults.
type ComputeRequest struct {
	BaseDate   time.Time
	ReportDate time.Time
	Weighting  cpi.Weighting
}

// SeriesRequest selects a series starting at BaseDate
type SeriesRequest struct {
	BaseDate time.Time
	Mode     cpi.SeriesMode
}

// Computation is a calculator result together with its stored record
type Computation struct {
	Result *cpi.Result
	Record results.Record
}

// CPIService loads inputs, runs the calculator and records results
type CPIService struct {
	source loader.Source
	store  results.Store
	cfg    CPIServiceConfig
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
}

// NewCPIService creates the service. A nil tracer disables spans.
func NewCPIService(source loader.Source, store results.Store, cfg CPIServiceConfig, logger *slog.Logger) *CPIService {
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("cpi")
	}
	return &CPIService{
		source: source,
		store:  store,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With(slog.String("service", "cpi")),
		now:    time.Now,
	}
}

// Compute calculates one index value and appends it to the results history
func (s *CPIService) Compute(ctx context.Context, req ComputeRequest) (*Computation, error) {
	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "cpi.compute", trace.WithAttributes(
		attribute.String("cpi.base_date", opts.BaseDate.Format(table.DateLayout)),
		attribute.String("cpi.weighting", string(opts.Weighting)),
	))
	defer span.End()

	start := time.Now()
	result, err := s.compute(ctx, opts)
	infrastructure.RecordComputation(ctx, s.cfg.Metrics, "compute", result, time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("cpi.report_date", result.ReportDate.Format(table.DateLayout)),
		attribute.Float64("cpi.index", result.Index),
		attribute.Bool("cpi.has_data", result.HasData),
	)

	rec := results.NewRecord(result, s.now())
	if err := s.store.Save(ctx, rec); err != nil {
		// The computed value is still returned; history is best effort
		s.logger.ErrorContext(ctx, "failed to store index record",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "index computed",
		slog.String("record_id", rec.ID),
		slog.String("base_date", rec.BaseDate),
		slog.String("report_date", rec.ReportDate),
		slog.Float64("index", result.Index),
		slog.Bool("has_data", result.HasData),
		slog.Duration("duration", time.Since(start)))

	return &Computation{Result: result, Record: rec}, nil
}

func (s *CPIService) compute(ctx context.Context, opts cpi.Options) (*cpi.Result, error) {
	prices, categories, err := s.load(ctx, opts.BaseDate, opts.ReportDate)
	if err != nil {
		return nil, err
	}

	calc, err := cpi.NewCalculator(opts, s.logger)
	if err != nil {
		return nil, err
	}
	return calc.Calculate(ctx, prices, categories)
}

// Series computes one point per price date on or after the base date
func (s *CPIService) Series(ctx context.Context, req SeriesRequest) ([]cpi.Point, error) {
	opts, err := s.cfg.Calculation.SeriesOptions()
	if err != nil {
		return nil, apierrors.NewConfigError("calculation settings", err)
	}
	if !req.BaseDate.IsZero() {
		opts.BaseDate = req.BaseDate
	}
	if req.Mode != "" {
		opts.Mode = req.Mode
	}
	if opts.BaseDate.IsZero() {
		return nil, apierrors.ErrValidation("base_date", "base_date is required")
	}

	ctx, span := s.tracer.Start(ctx, "cpi.series", trace.WithAttributes(
		attribute.String("cpi.base_date", opts.BaseDate.Format(table.DateLayout)),
		attribute.String("cpi.mode", string(opts.Mode)),
	))
	defer span.End()

	start := time.Now()
	points, err := s.series(ctx, opts)
	infrastructure.RecordComputation(ctx, s.cfg.Metrics, "series", nil, time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("cpi.points", len(points)))
	return points, nil
}

func (s *CPIService) series(ctx context.Context, opts cpi.SeriesOptions) ([]cpi.Point, error) {
	prices, categories, err := s.load(ctx, opts.BaseDate, time.Time{})
	if err != nil {
		return nil, err
	}
	return cpi.BuildSeries(ctx, prices, categories, opts, s.logger)
}

// Latest returns the most recent stored record
func (s *CPIService) Latest(ctx context.Context) (*results.Record, error) {
	rec, err := s.store.Latest(ctx)
	if errors.Is(err, results.ErrNoRecords) {
		return nil, apierrors.ErrNoResults
	}
	if err != nil {
		return nil, fmt.Errorf("read latest record: %w", err)
	}
	return rec, nil
}

// History returns up to limit stored records, newest first
func (s *CPIService) History(ctx context.Context, limit int) ([]results.Record, error) {
	records, err := s.store.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read record history: %w", err)
	}
	return records, nil
}

// options merges a request with the configured defaults
func (s *CPIService) options(req ComputeRequest) (cpi.Options, error) {
	opts, err := s.cfg.Calculation.Options()
	if err != nil {
		return opts, apierrors.NewConfigError("calculation settings", err)
	}
	if !req.BaseDate.IsZero() {
		opts.BaseDate = req.BaseDate
	}
	if !req.ReportDate.IsZero() {
		opts.ReportDate = req.ReportDate
	}
	if req.Weighting != "" {
		opts.Weighting = req.Weighting
	}
	if opts.BaseDate.IsZero() {
		return opts, apierrors.ErrValidation("base_date", "base_date is required")
	}
	return opts, nil
}

// load reads both tables for the window [from, to]. A zero bound is open.
// A report date before the base date still needs both days loaded.
func (s *CPIService) load(ctx context.Context, base, report time.Time) (*table.Table, *table.Table, error) {
	from, to := base, report
	if !report.IsZero() && report.Before(base) {
		from, to = report, base
	}

	if s.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
		defer cancel()
	}

	prices, categories, err := loader.LoadBoth(ctx, s.source, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load inputs: %w", err)
	}
	return prices, categories, nil
}
