package report

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/fogleman/gg"

	"cpicli/internal/cpi"
	"cpicli/internal/table"
)

const (
	chartWidth  = 1000
	chartHeight = 600
	marginLeft  = 80
	marginRight = 40
	marginTop   = 60
	marginBot   = 70
	yTicks      = 5
)

var (
	lineColor  = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	gridColor  = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	emptyColor = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
)

// renderPNG draws the series as a line chart using the default gg font
func renderPNG(points []cpi.Point, opts Options) error {
	values, lo, hi := scaled(points, opts.Scale)
	lo, hi = padRange(lo, hi)

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.DrawRectangle(0, 0, chartWidth, chartHeight)
	dc.Fill()

	plotW := float64(chartWidth - marginLeft - marginRight)
	plotH := float64(chartHeight - marginTop - marginBot)
	x := func(i int) float64 {
		if len(points) == 1 {
			return marginLeft + plotW/2
		}
		return marginLeft + plotW*float64(i)/float64(len(points)-1)
	}
	y := func(v float64) float64 {
		return marginTop + plotH*(1-(v-lo)/(hi-lo))
	}

	// Grid and y labels
	dc.SetLineWidth(1)
	for i := 0; i <= yTicks; i++ {
		v := lo + (hi-lo)*float64(i)/yTicks
		dc.SetColor(gridColor)
		dc.DrawLine(marginLeft, y(v), marginLeft+plotW, y(v))
		dc.Stroke()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", v), marginLeft-8, y(v), 1, 0.5)
	}

	// Axes
	dc.SetColor(color.Black)
	dc.DrawLine(marginLeft, marginTop, marginLeft, marginTop+plotH)
	dc.DrawLine(marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)
	dc.Stroke()

	// X labels, at most ten
	step := int(math.Ceil(float64(len(points)) / 10))
	for i := 0; i < len(points); i += step {
		dc.DrawStringAnchored(points[i].Date.Format(table.DateLayout), x(i), marginTop+plotH+18, 0.5, 0.5)
	}

	// Series line
	dc.SetColor(lineColor)
	dc.SetLineWidth(2)
	for i, v := range values {
		if i == 0 {
			dc.MoveTo(x(i), y(v))
			continue
		}
		dc.LineTo(x(i), y(v))
	}
	dc.Stroke()

	for i, v := range values {
		dc.SetColor(lineColor)
		if !points[i].HasData {
			dc.SetColor(emptyColor)
		}
		dc.DrawCircle(x(i), y(v), 3.5)
		dc.Fill()
	}

	dc.SetColor(color.Black)
	dc.DrawStringAnchored(opts.Title, chartWidth/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored("date", marginLeft+plotW/2, chartHeight-20, 0.5, 0.5)

	file, err := os.Create(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := dc.EncodePNG(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return file.Close()
}

// padRange widens a value range by 5% on each side, or by one unit for a
// flat series
func padRange(lo, hi float64) (float64, float64) {
	if hi-lo < 1e-9 {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}
