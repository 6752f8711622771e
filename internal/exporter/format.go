package exporter

import (
	"strconv"
	"time"

	"cpicli/internal/table"
)

// formatFloat formats an index value for CSV output.
// Index values keep four decimals so chained series stay comparable.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// formatWeight keeps weights at full precision
func formatWeight(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

func formatDate(t time.Time) string {
	return t.Format(table.DateLayout)
}
