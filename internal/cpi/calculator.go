package cpi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cpicli/internal/table"
)

// Calculator computes a weighted price index between a base date and a
// report date. The report date, when not configured, is resolved from the
// first price table seen and remembered. A Calculator must not be shared
// between goroutines; build one per computation window instead.
type Calculator struct {
	baseDate   time.Time
	reportDate time.Time
	weighting  Weighting
	duplicates DuplicatePolicy
	logger     *slog.Logger
}

// NewCalculator creates a calculator for the given options
func NewCalculator(opts Options, logger *slog.Logger) (*Calculator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseDate.IsZero() {
		return nil, &ValidationError{Field: "base_date", Message: "base date is required"}
	}

	weighting := opts.Weighting
	if weighting == "" {
		weighting = WeightingSum
	}
	if weighting != WeightingSum && weighting != WeightingNormalized {
		return nil, &ValidationError{Field: "weighting", Message: fmt.Sprintf("unknown weighting %q", weighting)}
	}
	duplicates := opts.Duplicates
	if duplicates == "" {
		duplicates = DuplicateKeepLast
	}
	if duplicates != DuplicateKeepLast && duplicates != DuplicateReject {
		return nil, &ValidationError{Field: "duplicates", Message: fmt.Sprintf("unknown duplicate policy %q", duplicates)}
	}

	c := &Calculator{
		baseDate:   table.Day(opts.BaseDate),
		weighting:  weighting,
		duplicates: duplicates,
		logger:     logger,
	}
	if !opts.ReportDate.IsZero() {
		c.reportDate = table.Day(opts.ReportDate)
	}
	return c, nil
}

// BaseDate returns the reference date
func (c *Calculator) BaseDate() time.Time {
	return c.baseDate
}

// ReportDate returns the configured or resolved report date. It is zero
// until a computation has resolved it from data.
func (c *Calculator) ReportDate() time.Time {
	return c.reportDate
}

// Weighting returns the aggregation mode
func (c *Calculator) Weighting() Weighting {
	return c.weighting
}

// Compute returns the weighted index for the two tables. It returns 0 when
// no leaf category has matching price data.
func (c *Calculator) Compute(ctx context.Context, prices, categories *table.Table) (float64, error) {
	result, err := c.Calculate(ctx, prices, categories)
	if err != nil {
		return 0, err
	}
	return result.Index, nil
}

// Calculate is Compute with the per-category breakdown and diagnostics
func (c *Calculator) Calculate(ctx context.Context, prices, categories *table.Table) (*Result, error) {
	in, err := decodeInputs(prices, categories)
	if err != nil {
		c.logger.ErrorContext(ctx, "input validation failed", "error", err)
		return nil, fmt.Errorf("validate inputs: %w", err)
	}
	return c.calculate(ctx, in)
}

// inputs holds decoded tables so several calculators can share one decode
type inputs struct {
	observations []PriceObservation
	latest       time.Time
	categories   []Category
	leaves       []Category
	diag         Diagnostics
}

func decodeInputs(prices, categories *table.Table) (*inputs, error) {
	if err := ValidateTables(prices, categories); err != nil {
		return nil, err
	}

	in := &inputs{}
	var err error
	in.observations, in.latest, err = DecodePrices(prices, &in.diag)
	if err != nil {
		return nil, err
	}
	in.categories, err = DecodeCategories(categories)
	if err != nil {
		return nil, err
	}
	in.leaves = LeafCategories(in.categories)
	return in, nil
}

func (c *Calculator) calculate(ctx context.Context, in *inputs) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	diag := in.diag

	c.logger.InfoContext(ctx, "identified leaf categories",
		"leaf_count", len(in.leaves),
		"categories", len(in.categories),
	)

	if c.reportDate.IsZero() {
		c.reportDate = in.latest
		c.logger.InfoContext(ctx, "resolved report date from price data",
			"report_date", c.reportDate.Format(table.DateLayout),
		)
	}

	result := &Result{
		BaseDate:   c.baseDate,
		ReportDate: c.reportDate,
		Weighting:  c.weighting,
		LeafCount:  len(in.leaves),
		Categories: []CategoryIndex{},
	}

	comparisons, err := PreparePriceComparison(in.observations, c.baseDate, c.reportDate, c.duplicates, &diag)
	if err != nil {
		c.logger.ErrorContext(ctx, "price comparison failed", "error", err)
		return nil, fmt.Errorf("prepare price comparison: %w", err)
	}
	merged := MergeCategories(comparisons, in.categories, in.leaves, &diag)
	indexes := CategoryIndexes(merged, &diag)
	agg := WeightedIndex(indexes, in.leaves, c.weighting)
	diag.UnmatchedLeaves = agg.Unmatched

	result.Index = agg.Value
	result.HasData = len(agg.Categories) > 0
	result.LeafWeight = agg.LeafWeight
	result.MatchedWeight = agg.MatchedWeight
	result.Comparisons = len(comparisons)
	result.Categories = agg.Categories
	result.Diagnostics = diag

	if !result.HasData {
		c.logger.WarnContext(ctx, "no leaf category has matching price data",
			"base_date", c.baseDate.Format(table.DateLayout),
			"report_date", c.reportDate.Format(table.DateLayout),
			"dropped_rows", diag.Dropped(),
		)
	}

	c.logger.InfoContext(ctx, "computed price index",
		"base_date", c.baseDate.Format(table.DateLayout),
		"report_date", c.reportDate.Format(table.DateLayout),
		"weighting", string(c.weighting),
		"value", result.Index,
		"matched_categories", len(result.Categories),
		"coverage", result.Coverage(),
		"duration", time.Since(start),
	)
	return result, nil
}
