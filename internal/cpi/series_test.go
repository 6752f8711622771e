package cpi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesPrices() [][]any {
	return [][]any{
		{"1", "food", "2022-12-01", 9.0},
		{"1", "food", "2023-01-01", 10.0},
		{"1", "food", "2023-02-01", 11.0},
		{"1", "food", "2023-03-01", 12.1},
	}
}

func TestBuildSeries(t *testing.T) {
	ctx := context.Background()
	categories := categoryTable([]any{"food", "", 1.0})

	tests := []struct {
		name     string
		mode     SeriesMode
		expected []float64
	}{
		{"fixed base", SeriesFixedBase, []float64{1.0, 1.1, 1.21}},
		{"chain", SeriesChain, []float64{1.0, 1.1, 1.21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := BuildSeries(ctx, priceTable(seriesPrices()...), categories, SeriesOptions{
				BaseDate:    baseDay,
				Mode:        tt.mode,
				Concurrency: 2,
			}, testLogger())
			require.NoError(t, err)
			require.Len(t, points, len(tt.expected))

			assert.Equal(t, baseDay, points[0].Date)
			for i, want := range tt.expected {
				assert.InDelta(t, want, points[i].Index, 1e-9, "point %d", i)
				assert.True(t, points[i].HasData)
			}
		})
	}
}

func TestBuildSeriesGaps(t *testing.T) {
	ctx := context.Background()
	categories := categoryTable([]any{"food", "", 1.0})

	// Product 2 is unmapped, so 2023-02-15 carries no usable data
	rows := append(seriesPrices(), []any{"2", "unknown", "2023-02-15", 5.0})

	t.Run("fixed base reports zero for the gap", func(t *testing.T) {
		points, err := BuildSeries(ctx, priceTable(rows...), categories, SeriesOptions{BaseDate: baseDay}, testLogger())
		require.NoError(t, err)
		require.Len(t, points, 4)
		assert.Equal(t, time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), points[2].Date)
		assert.False(t, points[2].HasData)
		assert.Equal(t, 0.0, points[2].Index)
		assert.InDelta(t, 1.21, points[3].Index, 1e-9)
	})

	t.Run("chain keeps the previous level", func(t *testing.T) {
		points, err := BuildSeries(ctx, priceTable(rows...), categories, SeriesOptions{BaseDate: baseDay, Mode: SeriesChain}, testLogger())
		require.NoError(t, err)
		require.Len(t, points, 4)
		assert.False(t, points[2].HasData)
		assert.InDelta(t, 1.1, points[2].Index, 1e-9)
		// The next link starts at the gap date and has no base prices either
		assert.InDelta(t, 1.1, points[3].Index, 1e-9)
	})
}

// Two of three categories priced and flat over a year: the summed level is
// the matched weight and must not decay when chained.
func TestBuildSeriesFlatPartialCoverage(t *testing.T) {
	ctx := context.Background()
	categories := categoryTable(
		[]any{"food", "", 0.3},
		[]any{"clothing", "", 0.2},
		[]any{"electronics", "", 0.5},
	)
	var rows [][]any
	for m := 0; m < 12; m++ {
		date := baseDay.AddDate(0, m, 0).Format("2006-01-02")
		rows = append(rows,
			[]any{"1", "food", date, 10.0},
			[]any{"3", "electronics", date, 30.0},
		)
	}

	tests := []struct {
		name      string
		mode      SeriesMode
		weighting Weighting
		level     float64
	}{
		{"fixed sum", SeriesFixedBase, WeightingSum, 0.8},
		{"chain sum", SeriesChain, WeightingSum, 0.8},
		{"fixed normalized", SeriesFixedBase, WeightingNormalized, 1.0},
		{"chain normalized", SeriesChain, WeightingNormalized, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := BuildSeries(ctx, priceTable(rows...), categories, SeriesOptions{
				BaseDate:  baseDay,
				Mode:      tt.mode,
				Weighting: tt.weighting,
			}, testLogger())
			require.NoError(t, err)
			require.Len(t, points, 12)
			for i, p := range points {
				assert.InDelta(t, tt.level, p.Index, 1e-9, "point %d", i)
			}
		})
	}
}

// With summed weighting the chain starts at the base level and its links are
// normalized relatives, so it agrees with the fixed base series here.
func TestBuildSeriesChainSumMatchesFixed(t *testing.T) {
	ctx := context.Background()
	categories := categoryTable(
		[]any{"food", "", 0.3},
		[]any{"clothing", "", 0.2},
		[]any{"electronics", "", 0.5},
	)
	prices := priceTable(
		[]any{"1", "food", "2023-01-01", 10.0},
		[]any{"2", "food", "2023-01-01", 20.0},
		[]any{"3", "electronics", "2023-01-01", 30.0},
		[]any{"1", "food", "2023-02-01", 11.0},
		[]any{"2", "food", "2023-02-01", 22.0},
		[]any{"3", "electronics", "2023-02-01", 30.0},
	)

	fixed, err := BuildSeries(ctx, prices, categories, SeriesOptions{BaseDate: baseDay, Mode: SeriesFixedBase}, testLogger())
	require.NoError(t, err)
	chain, err := BuildSeries(ctx, prices, categories, SeriesOptions{BaseDate: baseDay, Mode: SeriesChain}, testLogger())
	require.NoError(t, err)

	require.Len(t, chain, 2)
	assert.InDelta(t, 0.8, chain[0].Index, 1e-9)
	assert.InDelta(t, 0.83, chain[1].Index, 1e-9)
	for i := range fixed {
		assert.InDelta(t, fixed[i].Index, chain[i].Index, 1e-9, "point %d", i)
	}
}

func TestBuildSeriesErrors(t *testing.T) {
	ctx := context.Background()
	categories := categoryTable([]any{"food", "", 1.0})

	t.Run("base date required", func(t *testing.T) {
		_, err := BuildSeries(ctx, priceTable(), categories, SeriesOptions{}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := BuildSeries(ctx, priceTable(), categories, SeriesOptions{BaseDate: baseDay, Mode: "rolling"}, nil)
		assert.Error(t, err)
	})

	t.Run("no dates after base", func(t *testing.T) {
		points, err := BuildSeries(ctx, priceTable(seriesPrices()...), categories, SeriesOptions{
			BaseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := BuildSeries(cctx, priceTable(seriesPrices()...), categories, SeriesOptions{BaseDate: baseDay}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
