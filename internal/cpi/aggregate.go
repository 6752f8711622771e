package cpi

import (
	"math"
	"sort"
)

// CategoryIndexes groups merged comparisons by category and returns the
// geometric mean of report/base ratios for each group, sorted by category id.
// Ratios that are not strictly positive and finite are discarded and
// counted in diag.
func CategoryIndexes(merged []PriceComparison, diag *Diagnostics) []CategoryIndex {
	type acc struct {
		logSum float64
		n      int
	}

	groups := make(map[string]*acc)
	for _, pc := range merged {
		ratio := pc.Ratio()
		switch {
		case math.IsNaN(ratio) || math.IsInf(ratio, 0):
			diag.NonFiniteRatio++
			continue
		case ratio <= 0:
			diag.NonPositiveRatio++
			continue
		}
		g, ok := groups[pc.CategoryID]
		if !ok {
			g = &acc{}
			groups[pc.CategoryID] = g
		}
		g.logSum += math.Log(ratio)
		g.n++
	}

	indexes := make([]CategoryIndex, 0, len(groups))
	for id, g := range groups {
		indexes = append(indexes, CategoryIndex{
			CategoryID: id,
			PriceRatio: math.Exp(g.logSum / float64(g.n)),
			Products:   g.n,
		})
	}
	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].CategoryID < indexes[j].CategoryID
	})
	return indexes
}

// GeometricMean returns exp(mean(ln x)) over positive values, or 0 when
// there are none.
func GeometricMean(values []float64) float64 {
	var logSum float64
	var n int
	for _, v := range values {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		logSum += math.Log(v)
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Exp(logSum / float64(n))
}

// Aggregate is the weighted combination of category indexes
type Aggregate struct {
	Value         float64
	LeafWeight    float64
	MatchedWeight float64
	Unmatched     int
	Categories    []CategoryIndex
}

// WeightedIndex joins category indexes with leaf weights and sums
// ratio × weight. Leaves without an index contribute nothing. Under
// WeightingNormalized the sum is divided by the matched weight.
func WeightedIndex(indexes []CategoryIndex, leaves []Category, weighting Weighting) Aggregate {
	weights := make(map[string]float64, len(leaves))
	var agg Aggregate
	for _, leaf := range leaves {
		weights[leaf.ID] = leaf.Weight
		agg.LeafWeight += leaf.Weight
	}

	matched := make(map[string]struct{}, len(indexes))
	agg.Categories = make([]CategoryIndex, 0, len(indexes))
	for _, idx := range indexes {
		weight, ok := weights[idx.CategoryID]
		if !ok {
			continue
		}
		idx.Weight = weight
		idx.Contribution = idx.PriceRatio * weight
		agg.Value += idx.Contribution
		agg.MatchedWeight += weight
		agg.Categories = append(agg.Categories, idx)
		matched[idx.CategoryID] = struct{}{}
	}
	agg.Unmatched = len(weights) - len(matched)

	if weighting == WeightingNormalized {
		if agg.MatchedWeight > 0 {
			agg.Value /= agg.MatchedWeight
		} else {
			agg.Value = 0
		}
	}
	return agg
}
