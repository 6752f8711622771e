// Package datagen produces reproducible sample price and category data.
package datagen

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

// Division groups leaf categories under one root
type Division struct {
	ID     string
	Name   string
	Leaves []string
}

// DefaultDivisions is a small consumption basket
var DefaultDivisions = []Division{
	{ID: "food", Name: "Food and beverages", Leaves: []string{"grains", "meat", "dairy", "vegetables", "fruit"}},
	{ID: "clothing", Name: "Clothing and footwear", Leaves: []string{"apparel", "footwear"}},
	{ID: "housing", Name: "Housing and utilities", Leaves: []string{"rent", "utilities"}},
	{ID: "transport", Name: "Transport", Leaves: []string{"fuel", "vehicles", "fares"}},
	{ID: "recreation", Name: "Recreation and culture", Leaves: []string{"electronics", "books"}},
}

// Options configures a generation run
type Options struct {
	Seed          uint64
	Start         time.Time
	Days          int
	Products      int     // size of the product pool
	DailyProducts int     // products observed per day
	AdjustEvery   int     // days between price revisions
	AdjustChance  float64 // probability that a product is repriced at a revision
	Divisions     []Division
}

// DefaultOptions generates 1000 products with 120
// observed per day, revisions every 45 days
func DefaultOptions() Options {
	return Options{
		Seed:          42,
		Start:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:          30,
		Products:      1000,
		DailyProducts: 120,
		AdjustEvery:   45,
		AdjustChance:  0.02,
		Divisions:     DefaultDivisions,
	}
}

// CategoryRow is one generated category
type CategoryRow struct {
	ID        string
	Name      string
	Weight    float64
	Hierarchy int
	Parent    string
}

// PriceRow is one generated price observation
type PriceRow struct {
	Date       time.Time
	ProductID  string
	CategoryID string
	Name       string
	Price      float64
}

// Dataset is the output of one run
type Dataset struct {
	Categories []CategoryRow
	Prices     []PriceRow
}

type product struct {
	id       string
	category string
	weight   float64
	price    float64
}

// Generator produces datasets from a seeded source
type Generator struct {
	opts   Options
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator validates options and seeds the generator
func NewGenerator(opts Options, logger *slog.Logger) (*Generator, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", opts.Days)
	}
	if opts.Products <= 0 || opts.DailyProducts <= 0 {
		return nil, fmt.Errorf("product counts must be positive")
	}
	if opts.DailyProducts > opts.Products {
		opts.DailyProducts = opts.Products
	}
	if opts.AdjustEvery <= 0 {
		opts.AdjustEvery = 45
	}
	if opts.AdjustChance < 0 || opts.AdjustChance > 1 {
		return nil, fmt.Errorf("adjust chance must be within [0, 1], got %g", opts.AdjustChance)
	}
	if len(opts.Divisions) == 0 {
		opts.Divisions = DefaultDivisions
	}
	if opts.Start.IsZero() {
		opts.Start = DefaultOptions().Start
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}, nil
}

// CategoryWeights draws exponential weights, normalizes them, rounds to four
// decimals and adjusts the last weight so the rounded weights sum to 1
func CategoryWeights(rng *rand.Rand, n int) []float64 {
	if n == 0 {
		return nil
	}
	weights := make([]float64, n)
	var total float64
	for i := range weights {
		weights[i] = rng.ExpFloat64()
		total += weights[i]
	}

	var sum float64
	for i := range weights {
		weights[i] = round4(weights[i] / total)
		if i < n-1 {
			sum += weights[i]
		}
	}
	weights[n-1] = round4(1 - sum)
	return weights
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Generate builds the category tree and the daily price observations
func (g *Generator) Generate(ctx context.Context) (*Dataset, error) {
	categories, leaves := g.categories()
	pool := g.productPool(leaves)

	daily := g.pick(pool, g.opts.DailyProducts)
	ds := &Dataset{Categories: categories}

	for day := 0; day < g.opts.Days; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := g.opts.Start.AddDate(0, 0, day)

		if day > 0 {
			daily = g.rotate(pool, daily)
		}
		if day%g.opts.AdjustEvery == 0 {
			g.adjustPrices(pool)
		}

		seen := make(map[string]bool, len(daily))
		for _, p := range daily {
			if seen[p.id] {
				continue
			}
			seen[p.id] = true
			ds.Prices = append(ds.Prices, PriceRow{
				Date:       date,
				ProductID:  p.id,
				CategoryID: p.category,
				Name:       "product " + p.id,
				Price:      math.Round(p.price*100) / 100,
			})
		}
	}

	sort.SliceStable(ds.Prices, func(i, j int) bool {
		if !ds.Prices[i].Date.Equal(ds.Prices[j].Date) {
			return ds.Prices[i].Date.Before(ds.Prices[j].Date)
		}
		return ds.Prices[i].ProductID < ds.Prices[j].ProductID
	})

	g.logger.InfoContext(ctx, "sample data generated",
		slog.Int("categories", len(ds.Categories)),
		slog.Int("price_rows", len(ds.Prices)),
		slog.Int("days", g.opts.Days))
	return ds, nil
}

// categories returns divisions as roots followed by their leaves. Only
// leaves carry weight; a root's weight is the sum of its children.
func (g *Generator) categories() ([]CategoryRow, []string) {
	var leafIDs []string
	for _, d := range g.opts.Divisions {
		leafIDs = append(leafIDs, d.Leaves...)
	}
	weights := CategoryWeights(g.rng, len(leafIDs))

	rows := make([]CategoryRow, 0, len(g.opts.Divisions)+len(leafIDs))
	i := 0
	for _, d := range g.opts.Divisions {
		root := CategoryRow{ID: d.ID, Name: d.Name, Hierarchy: 1}
		children := make([]CategoryRow, 0, len(d.Leaves))
		for _, leaf := range d.Leaves {
			children = append(children, CategoryRow{
				ID:        leaf,
				Name:      leaf,
				Weight:    weights[i],
				Hierarchy: 2,
				Parent:    d.ID,
			})
			root.Weight += weights[i]
			i++
		}
		root.Weight = round4(root.Weight)
		rows = append(rows, root)
		rows = append(rows, children...)
	}
	return rows, leafIDs
}

func (g *Generator) productPool(leaves []string) []product {
	pool := make([]product, g.opts.Products)
	for i := range pool {
		pool[i] = product{
			id:       fmt.Sprintf("P%04d", i+1),
			category: leaves[g.rng.IntN(len(leaves))],
			weight:   float64(1 + g.rng.IntN(10)),
			price:    10 + 90*g.rng.Float64(),
		}
	}
	return pool
}

// pick draws k products with replacement, proportional to product weight
func (g *Generator) pick(pool []product, k int) []*product {
	cumulative := make([]float64, len(pool))
	var total float64
	for i, p := range pool {
		total += p.weight
		cumulative[i] = total
	}

	out := make([]*product, k)
	for i := range out {
		r := g.rng.Float64() * total
		idx := sort.SearchFloat64s(cumulative, r)
		if idx >= len(pool) {
			idx = len(pool) - 1
		}
		out[i] = &pool[idx]
	}
	return out
}

// rotate replaces one or two of the observed products
func (g *Generator) rotate(pool []product, daily []*product) []*product {
	next := make([]*product, len(daily))
	copy(next, daily)
	changes := 1 + g.rng.IntN(2)
	for range changes {
		next[g.rng.IntN(len(next))] = g.pick(pool, 1)[0]
	}
	return next
}

// adjustPrices reprices each product with AdjustChance by ±10%
func (g *Generator) adjustPrices(pool []product) {
	for i := range pool {
		if g.rng.Float64() < g.opts.AdjustChance {
			pool[i].price *= 0.9 + 0.2*g.rng.Float64()
		}
	}
}
