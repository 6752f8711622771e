// Package cpi computes a consumer price index from two in-memory tables:
// price observations keyed by product and date, and a weighted category
// hierarchy.
//
// # Pipeline
//
// A computation runs the following stages in order, each exported so it can
// be exercised on its own:
//
//   - ValidateTables: required columns on both inputs
//   - LeafCategories: categories nobody names as parent
//   - PreparePriceComparison: base/report pivot per product
//   - MergeCategories: keep products mapped to a leaf category
//   - CategoryIndexes: geometric mean of price relatives per leaf
//   - WeightedIndex: Σ ratio × weight over matched leaves
//
// Rows dropped by the soft filters are counted in Diagnostics rather than
// reported as errors. Only structural problems (missing columns, cells that
// cannot be decoded) fail a computation with a *ValidationError.
//
// # Scale
//
// Index values are ratios around 1.0. Presentation layers apply their own
// scale, typically 100.
//
// # Usage
//
//	calc, err := cpi.NewCalculator(cpi.Options{BaseDate: base}, logger)
//	if err != nil {
//	    return err
//	}
//	value, err := calc.Compute(ctx, prices, categories)
//
// BuildSeries runs one calculator per date to produce a fixed-base or
// chained series for charting.
package cpi
