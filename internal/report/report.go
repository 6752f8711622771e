// Package report renders an index series as a PNG trend chart, an Excel
// workbook with a line chart, or a plain date,cpi_index CSV file.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cpicli/internal/cpi"
	"cpicli/internal/exporter"
)

// Engine names
const (
	EnginePNG  = "png"
	EngineXLSX = "xlsx"
	EngineCSV  = "csv"
)

var (
	// ErrUnsupportedEngine is returned for an engine other than png, xlsx or csv
	ErrUnsupportedEngine = errors.New("unsupported plot engine")
	// ErrEmptySeries is returned when there is nothing to draw
	ErrEmptySeries = errors.New("report data is empty")
)

// Options configures one report
type Options struct {
	Path   string
	Engine string
	Scale  float64 // multiplies every index value, 100 when zero
	Title  string
	Logger *slog.Logger
}

// Generate writes points to opts.Path with the selected engine
func Generate(points []cpi.Point, opts Options) error {
	if len(points) == 0 {
		return ErrEmptySeries
	}
	if opts.Scale == 0 {
		opts.Scale = 100
	}
	if opts.Title == "" {
		opts.Title = "Consumer Price Index"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := strings.ToLower(opts.Engine)
	var render func([]cpi.Point, Options) error
	switch engine {
	case EnginePNG:
		render = renderPNG
	case EngineXLSX:
		render = renderXLSX
	case EngineCSV:
		render = func(points []cpi.Point, opts Options) error {
			_, err := exporter.NewCSVWriter("", logger).ExportSeries(points, opts.Path, opts.Scale)
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEngine, opts.Engine)
	}

	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := render(points, opts); err != nil {
		return fmt.Errorf("render %s report: %w", engine, err)
	}

	logger.Info("report written",
		slog.String("engine", engine),
		slog.String("path", opts.Path),
		slog.Int("points", len(points)))
	return nil
}

// FileName returns the conventional report name for a series ending at last
func FileName(engine string, last time.Time) string {
	return fmt.Sprintf("cpi_%s.%s", last.Format("20060102"), strings.ToLower(engine))
}

// ContentType returns the MIME type of a report engine's output
func ContentType(engine string) string {
	switch strings.ToLower(engine) {
	case EnginePNG:
		return "image/png"
	case EngineXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case EngineCSV:
		return "text/csv"
	}
	return "application/octet-stream"
}

// scaled returns the presentation values and their range
func scaled(points []cpi.Point, scale float64) (values []float64, lo, hi float64) {
	values = make([]float64, len(points))
	for i, p := range points {
		v := p.Index * scale
		values[i] = v
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return values, lo, hi
}
