package cpi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cpicli/internal/table"
)

// SeriesMode selects how consecutive index points relate to each other
type SeriesMode string

const (
	// SeriesFixedBase compares every date against the base date
	SeriesFixedBase SeriesMode = "fixed"
	// SeriesChain multiplies period-on-period links onto the base date level.
	// Links always use normalized weighting so a flat period links at 1.
	SeriesChain SeriesMode = "chain"
)

// DefaultSeriesConcurrency bounds the number of points computed at once
const DefaultSeriesConcurrency = 4

// ParseSeriesMode converts a configuration string to a SeriesMode
func ParseSeriesMode(s string) (SeriesMode, error) {
	switch SeriesMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeriesFixedBase, "fixed_base":
		return SeriesFixedBase, nil
	case SeriesChain:
		return SeriesChain, nil
	}
	return "", fmt.Errorf("unknown series mode %q (use fixed or chain)", s)
}

// SeriesOptions configures BuildSeries
type SeriesOptions struct {
	BaseDate    time.Time
	Mode        SeriesMode
	Weighting   Weighting
	Duplicates  DuplicatePolicy
	Concurrency int
}

// Point is one entry of an index series
type Point struct {
	Date    time.Time `json:"date"`
	Index   float64   `json:"cpi_index"`
	HasData bool      `json:"has_data"`
}

// BuildSeries computes one index value for every price date on or after the
// base date. Each point runs on its own Calculator over a shared, read-only
// decode of the inputs.
func BuildSeries(ctx context.Context, prices, categories *table.Table, opts SeriesOptions, logger *slog.Logger) ([]Point, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseDate.IsZero() {
		return nil, &ValidationError{Field: "base_date", Message: "base date is required"}
	}
	mode := opts.Mode
	if mode == "" {
		mode = SeriesFixedBase
	}
	if mode != SeriesFixedBase && mode != SeriesChain {
		return nil, &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown series mode %q", mode)}
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultSeriesConcurrency
	}

	in, err := decodeInputs(prices, categories)
	if err != nil {
		logger.ErrorContext(ctx, "input validation failed", "error", err)
		return nil, fmt.Errorf("validate inputs: %w", err)
	}

	base := table.Day(opts.BaseDate)
	dates := seriesDates(in.observations, base)
	if len(dates) == 0 {
		logger.WarnContext(ctx, "no price dates on or after base date", "base_date", base.Format(table.DateLayout))
		return []Point{}, nil
	}

	logger.InfoContext(ctx, "building index series",
		"mode", string(mode),
		"base_date", base.Format(table.DateLayout),
		"points", len(dates),
		"concurrency", limit,
	)

	// In chain mode window k runs from dates[k-1] to dates[k]; the first
	// window is always base to base in the requested weighting. Later links
	// are normalized: a summed link is scaled by its matched weight, and that
	// shrinkage would compound across links.
	results := make([]*Result, len(dates))
	// Per-point logging is noisy for long series
	quiet := slog.New(slog.DiscardHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, date := range dates {
		from, weighting := base, opts.Weighting
		if mode == SeriesChain && i > 0 {
			from, weighting = dates[i-1], WeightingNormalized
		}
		g.Go(func() error {
			calc, err := NewCalculator(Options{
				BaseDate:   from,
				ReportDate: date,
				Weighting:  weighting,
				Duplicates: opts.Duplicates,
			}, quiet)
			if err != nil {
				return err
			}
			res, err := calc.calculate(gctx, in)
			if err != nil {
				return fmt.Errorf("compute %s: %w", date.Format(table.DateLayout), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "index series failed", "error", err)
		return nil, err
	}

	points := make([]Point, len(dates))
	level := 0.0
	for i, res := range results {
		points[i] = Point{Date: dates[i], HasData: res.HasData}
		switch {
		case mode == SeriesFixedBase, i == 0:
			level = res.Index
		case res.HasData:
			level *= res.Index
		}
		points[i].Index = level
	}

	logger.InfoContext(ctx, "index series complete",
		"points", len(points),
		"last_value", points[len(points)-1].Index,
	)
	return points, nil
}

// seriesDates returns the distinct observation dates on or after base, ascending
func seriesDates(observations []PriceObservation, base time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, obs := range observations {
		if obs.Date.Before(base) {
			continue
		}
		if _, ok := seen[obs.Date]; ok {
			continue
		}
		seen[obs.Date] = struct{}{}
		dates = append(dates, obs.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
