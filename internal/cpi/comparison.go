package cpi

import (
	"fmt"
	"sort"
	"time"
)

// PreparePriceComparison pivots observations on the base and report dates
// into one row per product. Products missing either price are dropped.
// When base and report fall on the same day both sides take that day's price.
// A product keeps the category of its base observation; report rows only
// supply a category when no base row exists. Output is sorted by product id.
func PreparePriceComparison(observations []PriceObservation, base, report time.Time, policy DuplicatePolicy, diag *Diagnostics) ([]PriceComparison, error) {
	type pair struct {
		categoryID   string
		base, report float64
		hasBase      bool
		hasReport    bool
	}

	pairs := make(map[string]*pair)
	for _, obs := range observations {
		isBase := obs.Date.Equal(base)
		isReport := obs.Date.Equal(report)
		if !isBase && !isReport {
			diag.OutsideWindow++
			continue
		}

		p, ok := pairs[obs.ProductID]
		if !ok {
			p = &pair{}
			pairs[obs.ProductID] = p
		}

		if (isBase && p.hasBase) || (isReport && !isBase && p.hasReport) {
			diag.Duplicates++
			if policy == DuplicateReject {
				return nil, &ValidationError{
					Table:   PriceTable,
					Field:   ColumnProductID,
					Message: fmt.Sprintf("%s has duplicate observations for product %s on %s", PriceTable, obs.ProductID, obs.Date.Format("2006-01-02")),
				}
			}
		}

		if isBase || !p.hasBase {
			p.categoryID = obs.CategoryID
		}
		if isBase {
			p.base, p.hasBase = obs.Price, true
		}
		if isReport {
			p.report, p.hasReport = obs.Price, true
		}
	}

	comparisons := make([]PriceComparison, 0, len(pairs))
	for productID, p := range pairs {
		if !p.hasBase || !p.hasReport {
			diag.IncompletePairs++
			continue
		}
		comparisons = append(comparisons, PriceComparison{
			ProductID:   productID,
			CategoryID:  p.categoryID,
			BasePrice:   p.base,
			ReportPrice: p.report,
		})
	}

	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].ProductID < comparisons[j].ProductID
	})
	return comparisons, nil
}

// MergeCategories keeps comparisons whose category resolves to a leaf.
// Unknown categories and categories with children are dropped silently.
func MergeCategories(comparisons []PriceComparison, categories, leaves []Category, diag *Diagnostics) []PriceComparison {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	leafSet := make(map[string]struct{}, len(leaves))
	for _, c := range leaves {
		leafSet[c.ID] = struct{}{}
	}

	merged := make([]PriceComparison, 0, len(comparisons))
	for _, pc := range comparisons {
		if _, ok := known[pc.CategoryID]; !ok || pc.CategoryID == "" {
			diag.Unmapped++
			continue
		}
		if _, ok := leafSet[pc.CategoryID]; !ok {
			diag.NonLeaf++
			continue
		}
		merged = append(merged, pc)
	}
	return merged
}
