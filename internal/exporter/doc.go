// Package exporter writes CSV files for the index calculator.
//
// CSVWriter is the core writer with support for headers, appends, streaming
// and a UTF-8 BOM for Excel compatibility. Relative paths resolve against the
// writer's output directory.
//
// ExportSeries and ExportBreakdown format index series points and
// per-category breakdowns on top of it.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter("reports", logger)
//	err := writer.ExportSeries(points, "cpi_series.csv", 100)
package exporter
