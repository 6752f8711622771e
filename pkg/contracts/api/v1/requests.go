// Package api contains the HTTP contract of the index calculator.
// Version v1 represents the current stable API version.
package api

// ComputeRequest is the body of POST /api/v1/cpi/compute. Dates are
// YYYY-MM-DD; an empty report date resolves to the latest price date.
type ComputeRequest struct {
	BaseDate   string `json:"base_date" validate:"required,date"`
	ReportDate string `json:"report_date,omitempty" validate:"omitempty,date"`
	Weighting  string `json:"weighting,omitempty" validate:"omitempty,oneof=sum normalized"`
}
