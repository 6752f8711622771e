package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"cpicli/internal/table"
)

// Reference dates of the three product fixture
const (
	BaseDate   = "2023-01-01"
	ReportDate = "2023-02-01"
)

// PriceHeader and CategoryHeader follow the warehouse schema column order
var (
	PriceHeader    = []string{"date", "product_id", "category_id", "name", "price"}
	CategoryHeader = []string{"id", "name", "weight", "hierarchy", "parent_id"}
)

// PriceRows is the three product fixture: products 1 and 2 in food rise 10%,
// product 3 in electronics is flat. Its index is 0.83 summed over matched
// weights and 1.0375 normalized.
func PriceRows() [][]string {
	return [][]string{
		{BaseDate, "1", "food", "bread", "10"},
		{BaseDate, "2", "food", "milk", "20"},
		{BaseDate, "3", "electronics", "radio", "30"},
		{ReportDate, "1", "food", "bread", "11"},
		{ReportDate, "2", "food", "milk", "22"},
		{ReportDate, "3", "electronics", "radio", "30"},
	}
}

// CategoryRows holds three root categories; clothing has no products
func CategoryRows() [][]string {
	return [][]string{
		{"food", "Food", "0.3", "1", ""},
		{"clothing", "Clothing", "0.2", "1", ""},
		{"electronics", "Electronics", "0.5", "1", ""},
	}
}

// ExamplePrices returns PriceRows as a table
func ExamplePrices() *table.Table {
	return toTable("price", PriceHeader, PriceRows())
}

// ExampleCategories returns CategoryRows as a table with the parent column
// the calculator expects
func ExampleCategories() *table.Table {
	t := table.New("category", "id", "name", "weight", "hierarchy", "parent")
	for _, r := range CategoryRows() {
		t.MustAppend(r[0], r[1], r[2], r[3], r[4])
	}
	return t
}

func toTable(name string, header []string, rows [][]string) *table.Table {
	t := table.New(name, header...)
	for _, r := range rows {
		values := make([]any, len(r))
		for i, v := range r {
			values[i] = v
		}
		t.MustAppend(values...)
	}
	return t
}

// WriteCSV writes header and rows to dir/name and returns the path
func WriteCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return path
}

// WriteExampleCSV writes the reference fixture and returns both paths
func WriteExampleCSV(t *testing.T, dir string) (pricesPath, categoriesPath string) {
	t.Helper()
	pricesPath = WriteCSV(t, dir, "prices.csv", PriceHeader, PriceRows())
	categoriesPath = WriteCSV(t, dir, "categories.csv", CategoryHeader, CategoryRows())
	return pricesPath, categoriesPath
}
