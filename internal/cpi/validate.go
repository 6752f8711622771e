package cpi

import (
	"fmt"
	"strings"
	"time"

	"cpicli/internal/table"
)

// ValidationError reports malformed input. Missing lists absent columns;
// Field and Row locate a bad cell.
type ValidationError struct {
	Table   string   `json:"table,omitempty"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Row     int      `json:"row,omitempty"` // 1-based data row, 0 when not row specific
	Message string   `json:"message"`
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	return ve.Message
}

func missingColumnsError(tableName string, missing []string) *ValidationError {
	return &ValidationError{
		Table:   tableName,
		Field:   strings.Join(missing, ","),
		Missing: missing,
		Message: fmt.Sprintf("%s missing required fields: %s", tableName, strings.Join(missing, ", ")),
	}
}

func cellError(tableName, field string, row int, err error) *ValidationError {
	return &ValidationError{
		Table:   tableName,
		Field:   field,
		Row:     row + 1,
		Message: fmt.Sprintf("%s row %d field %s: %v", tableName, row+1, field, err),
	}
}

// ValidateTables checks that both inputs carry their required columns.
// The price table is checked first.
func ValidateTables(prices, categories *table.Table) error {
	if prices == nil {
		return missingColumnsError(PriceTable, RequiredPriceColumns)
	}
	if missing := prices.Missing(RequiredPriceColumns...); len(missing) > 0 {
		return missingColumnsError(PriceTable, missing)
	}
	if categories == nil {
		return missingColumnsError(CategoryTable, RequiredCategoryColumns)
	}
	if missing := categories.Missing(RequiredCategoryColumns...); len(missing) > 0 {
		return missingColumnsError(CategoryTable, missing)
	}
	return nil
}

// DecodePrices converts a validated price table into observations and
// returns the latest date seen on any row, priced or not.
// Rows without a product id or date are counted as malformed, rows without
// a price as missing; both are skipped. Unparseable cells are fatal.
func DecodePrices(t *table.Table, diag *Diagnostics) ([]PriceObservation, time.Time, error) {
	mapped := t.Has(ColumnCategoryID)
	observations := make([]PriceObservation, 0, t.Len())
	var latest time.Time

	for i := 0; i < t.Len(); i++ {
		diag.PriceRows++

		productID := t.String(i, ColumnProductID)
		date, hasDate, err := t.Date(i, ColumnDate)
		if err != nil {
			return nil, time.Time{}, cellError(PriceTable, ColumnDate, i, err)
		}
		if productID == "" || !hasDate {
			diag.MalformedRows++
			continue
		}
		if date.After(latest) {
			latest = date
		}

		price, hasPrice, err := t.Float(i, ColumnPrice)
		if err != nil {
			return nil, time.Time{}, cellError(PriceTable, ColumnPrice, i, err)
		}
		if !hasPrice {
			diag.MissingPrice++
			continue
		}

		categoryID := productID
		if mapped {
			categoryID = t.String(i, ColumnCategoryID)
		}
		observations = append(observations, PriceObservation{
			ProductID:  productID,
			CategoryID: categoryID,
			Date:       date,
			Price:      price,
		})
	}

	return observations, latest, nil
}

// DecodeCategories converts a validated category table into categories.
// Rows without an id are skipped; an absent weight counts as zero.
func DecodeCategories(t *table.Table) ([]Category, error) {
	categories := make([]Category, 0, t.Len())

	for i := 0; i < t.Len(); i++ {
		id := t.String(i, ColumnID)
		if id == "" {
			continue
		}
		weight, _, err := t.Float(i, ColumnWeight)
		if err != nil {
			return nil, cellError(CategoryTable, ColumnWeight, i, err)
		}
		if weight < 0 {
			return nil, cellError(CategoryTable, ColumnWeight, i, fmt.Errorf("weight %g is negative", weight))
		}
		categories = append(categories, Category{
			ID:     id,
			Parent: t.String(i, ColumnParent),
			Weight: weight,
		})
	}

	return categories, nil
}
