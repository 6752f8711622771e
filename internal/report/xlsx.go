package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"cpicli/internal/cpi"
	"cpicli/internal/table"
)

const seriesSheet = "CPI"

// renderXLSX writes a data sheet and a line chart next to it
func renderXLSX(points []cpi.Point, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", seriesSheet); err != nil {
		return err
	}

	headers := []any{"date", "cpi_index", "has_data"}
	if err := f.SetSheetRow(seriesSheet, "A1", &headers); err != nil {
		return err
	}

	values, _, _ := scaled(points, opts.Scale)
	for i, p := range points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.Date.Format(table.DateLayout), values[i], p.HasData}
		if err := f.SetSheetRow(seriesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}
	last := len(points) + 1
	if err := f.SetCellStyle(seriesSheet, "B2", fmt.Sprintf("B%d", last), style); err != nil {
		return err
	}
	if err := f.SetColWidth(seriesSheet, "A", "C", 14); err != nil {
		return err
	}

	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", seriesSheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", seriesSheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", seriesSheet, last),
		}},
		Title:        []excelize.RichTextRun{{Text: opts.Title}},
		Legend:       excelize.ChartLegend{Position: "none"},
		Dimension:    excelize.ChartDimension{Width: 720, Height: 400},
		ShowBlanksAs: "gap",
	}
	if err := f.AddChart(seriesSheet, "E2", chart); err != nil {
		return fmt.Errorf("add chart: %w", err)
	}

	return f.SaveAs(opts.Path)
}
