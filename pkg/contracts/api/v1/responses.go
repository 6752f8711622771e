package api

import "time"

// CategoryIndex is one leaf category of a computed index
type CategoryIndex struct {
	CategoryID   string  `json:"category_id"`
	PriceRatio   float64 `json:"price_ratio"`
	Products     int     `json:"products"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Diagnostics counts the rows dropped at each filtering stage
type Diagnostics struct {
	PriceRows        int `json:"price_rows"`
	MalformedRows    int `json:"malformed_rows"`
	MissingPrice     int `json:"missing_price"`
	OutsideWindow    int `json:"outside_window"`
	Duplicates       int `json:"duplicates"`
	IncompletePairs  int `json:"incomplete_pairs"`
	Unmapped         int `json:"unmapped"`
	NonLeaf          int `json:"non_leaf"`
	NonPositiveRatio int `json:"non_positive_ratio"`
	NonFiniteRatio   int `json:"non_finite_ratio"`
	UnmatchedLeaves  int `json:"unmatched_leaves"`
}

// ComputeResponse is the result of one computation. Index is the raw ratio;
// ScaledIndex multiplies it by the configured presentation scale.
type ComputeResponse struct {
	ID            string          `json:"id"`
	BaseDate      string          `json:"base_date"`
	ReportDate    string          `json:"report_date"`
	Index         float64         `json:"index"`
	ScaledIndex   float64         `json:"scaled_index"`
	Scale         float64         `json:"scale"`
	HasData       bool            `json:"has_data"`
	Weighting     string          `json:"weighting"`
	LeafCount     int             `json:"leaf_count"`
	Coverage      float64         `json:"coverage"`
	MatchedWeight float64         `json:"matched_weight"`
	Comparisons   int             `json:"comparisons"`
	Categories    []CategoryIndex `json:"categories"`
	Diagnostics   Diagnostics     `json:"diagnostics"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// SeriesPoint is one point of an index series
type SeriesPoint struct {
	Date        string  `json:"date"`
	Index       float64 `json:"cpi_index"`
	ScaledIndex float64 `json:"scaled_index"`
	HasData     bool    `json:"has_data"`
}

// SeriesResponse is the body of GET /api/v1/cpi/series
type SeriesResponse struct {
	BaseDate string        `json:"base_date"`
	Mode     string        `json:"mode"`
	Scale    float64       `json:"scale"`
	Points   []SeriesPoint `json:"points"`
}

// Record is one stored computation
type Record struct {
	ID          string    `json:"id"`
	BaseDate    string    `json:"base_date"`
	ReportDate  string    `json:"report_date"`
	Index       float64   `json:"index"`
	ScaledIndex float64   `json:"scaled_index"`
	HasData     bool      `json:"has_data"`
	Weighting   string    `json:"weighting"`
	Coverage    float64   `json:"coverage"`
	Categories  int       `json:"categories"`
	DroppedRows int       `json:"dropped_rows"`
	ComputedAt  time.Time `json:"computed_at"`
}

// HistoryResponse is the body of GET /api/v1/cpi/history
type HistoryResponse struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
}
