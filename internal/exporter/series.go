package exporter

import (
	"cpicli/internal/cpi"
)

// SeriesHeaders is the header row of an exported index series
var SeriesHeaders = []string{"date", "cpi_index"}

// BreakdownHeaders is the header row of an exported per-category breakdown
var BreakdownHeaders = []string{"category_id", "price_ratio", "weight", "products", "contribution"}

// ExportSeries writes one row per point with the index multiplied by scale.
// It returns the resolved path.
func (w *CSVWriter) ExportSeries(points []cpi.Point, filePath string, scale float64) (string, error) {
	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{formatDate(p.Date), formatFloat(p.Index * scale)})
	}
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   SeriesHeaders,
		Records:   records,
		BOMPrefix: true,
	})
}

// ExportBreakdown writes the per-category rows of a result
func (w *CSVWriter) ExportBreakdown(result *cpi.Result, filePath string) (string, error) {
	records := make([][]string, 0, len(result.Categories))
	for _, c := range result.Categories {
		records = append(records, []string{
			c.CategoryID,
			formatFloat(c.PriceRatio),
			formatWeight(c.Weight),
			formatInt(c.Products),
			formatFloat(c.Contribution),
		})
	}
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   BreakdownHeaders,
		Records:   records,
		BOMPrefix: true,
	})
}
