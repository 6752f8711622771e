package cpi

import (
	"fmt"
	"strings"
	"time"
)

// Column names required on the input tables
const (
	ColumnProductID  = "product_id"
	ColumnDate       = "date"
	ColumnPrice      = "price"
	ColumnCategoryID = "category_id"

	ColumnID     = "id"
	ColumnParent = "parent"
	ColumnWeight = "weight"
)

// Table names used in validation errors
const (
	PriceTable    = "price data"
	CategoryTable = "category data"
)

// RequiredPriceColumns lists the columns every price table must carry
var RequiredPriceColumns = []string{ColumnProductID, ColumnDate, ColumnPrice}

// RequiredCategoryColumns lists the columns every category table must carry
var RequiredCategoryColumns = []string{ColumnID, ColumnParent, ColumnWeight}

// Weighting selects how matched leaf weights are combined
type Weighting string

const (
	// WeightingSum sums ratio × weight over matched leaves without renormalizing.
	// Leaves without price data shrink the result.
	WeightingSum Weighting = "sum"
	// WeightingNormalized divides the weighted sum by the matched weight,
	// producing a true weighted average over covered leaves.
	WeightingNormalized Weighting = "normalized"
)

// ParseWeighting converts a configuration string to a Weighting
func ParseWeighting(s string) (Weighting, error) {
	switch Weighting(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeightingSum:
		return WeightingSum, nil
	case WeightingNormalized:
		return WeightingNormalized, nil
	}
	return "", fmt.Errorf("unknown weighting %q (use sum or normalized)", s)
}

// DuplicatePolicy decides what happens when a product has several
// observations on the same date
type DuplicatePolicy string

const (
	// DuplicateKeepLast keeps the last observation in input order
	DuplicateKeepLast DuplicatePolicy = "last"
	// DuplicateReject fails the computation with a ValidationError
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy converts a configuration string to a DuplicatePolicy
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateKeepLast:
		return DuplicateKeepLast, nil
	case DuplicateReject:
		return DuplicateReject, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (use last or reject)", s)
}

// PriceObservation is one decoded row of the price table
type PriceObservation struct {
	ProductID  string    `json:"product_id"`
	CategoryID string    `json:"category_id,omitempty"`
	Date       time.Time `json:"date"`
	Price      float64   `json:"price"`
}

// Category is one decoded row of the category table
type Category struct {
	ID     string  `json:"id"`
	Parent string  `json:"parent,omitempty"`
	Weight float64 `json:"weight"`
}

// IsRoot reports whether the category has no parent
func (c Category) IsRoot() bool {
	return c.Parent == ""
}

// PriceComparison pairs the base and report price of one product
type PriceComparison struct {
	ProductID   string  `json:"product_id"`
	CategoryID  string  `json:"category_id"`
	BasePrice   float64 `json:"base_price"`
	ReportPrice float64 `json:"report_price"`
}

// Ratio returns report price over base price
func (pc PriceComparison) Ratio() float64 {
	return pc.ReportPrice / pc.BasePrice
}

// CategoryIndex is the aggregated price relative of one leaf category
type CategoryIndex struct {
	CategoryID   string  `json:"category_id"`
	PriceRatio   float64 `json:"price_ratio"`
	Products     int     `json:"products"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // PriceRatio × Weight
}

// Diagnostics counts rows discarded by each filtering stage
type Diagnostics struct {
	PriceRows        int `json:"price_rows"`
	MalformedRows    int `json:"malformed_rows"`     // missing product id or date
	MissingPrice     int `json:"missing_price"`      // price cell absent
	OutsideWindow    int `json:"outside_window"`     // neither base nor report date
	Duplicates       int `json:"duplicates"`         // same product and date seen again
	IncompletePairs  int `json:"incomplete_pairs"`   // products missing one side
	Unmapped         int `json:"unmapped"`           // no resolvable category
	NonLeaf          int `json:"non_leaf"`           // mapped to a category with children
	NonPositiveRatio int `json:"non_positive_ratio"` // ratio <= 0
	NonFiniteRatio   int `json:"non_finite_ratio"`   // zero base price
	UnmatchedLeaves  int `json:"unmatched_leaves"`   // leaves without any surviving product
}

// Dropped returns the number of product rows excluded from aggregation
func (d Diagnostics) Dropped() int {
	return d.MalformedRows + d.MissingPrice + d.OutsideWindow + d.Duplicates +
		d.IncompletePairs + d.Unmapped + d.NonLeaf + d.NonPositiveRatio + d.NonFiniteRatio
}

// Result is the full outcome of one computation
type Result struct {
	BaseDate      time.Time       `json:"base_date"`
	ReportDate    time.Time       `json:"report_date"`
	Index         float64         `json:"index"`
	HasData       bool            `json:"has_data"`
	Weighting     Weighting       `json:"weighting"`
	LeafCount     int             `json:"leaf_count"`
	LeafWeight    float64         `json:"leaf_weight"`
	MatchedWeight float64         `json:"matched_weight"`
	Comparisons   int             `json:"comparisons"`
	Categories    []CategoryIndex `json:"categories"`
	Diagnostics   Diagnostics     `json:"diagnostics"`
}

// Coverage returns the share of leaf weight backed by price data
func (r Result) Coverage() float64 {
	if r.LeafWeight <= 0 {
		return 0
	}
	return r.MatchedWeight / r.LeafWeight
}

// Options configures a Calculator
type Options struct {
	BaseDate   time.Time
	ReportDate time.Time // zero means latest date in the price data
	Weighting  Weighting
	Duplicates DuplicatePolicy
}
