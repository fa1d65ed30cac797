// Package gauge paints the live download/upload meters.
//
// Rates are mapped onto a bounded arc with Amount, drawn by Renderer on a
// Surface once per Loop tick. Geometry is computed by Layout so that it can
// be checked without rasterizing anything.
package gauge

import (
	"math"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// maxAmount is the largest float64 below 1; rates of tens of Gbit/s and up
// saturate there instead of rounding to a full gauge.
var maxAmount = math.Nextafter(1, 0)

// Amount maps a rate in Mbit/s onto the [0, 1) fill fraction of a gauge.
// The curve is steep for small rates and never reaches 1.
func Amount(mbps float64) float64 {
	if mbps <= 0 || math.IsNaN(mbps) {
		return 0
	}
	return math.Min(1-1/math.Pow(1.3, math.Sqrt(mbps)), maxAmount)
}

// Oscillate is the needle tremor factor applied to the rate of the active
// phase so the gauge keeps moving between telemetry updates.
func Oscillate(t time.Time) float64 {
	return 1 + 0.02*math.Sin(float64(t.UnixMilli())/100)
}

// Format renders a measurement with two decimals below 10, one below 100
// and none above, so the text keeps a stable width.
func Format(d float64) string {
	switch {
	case d < 10:
		return strconv.FormatFloat(d, 'f', 2, 64)
	case d < 100:
		return strconv.FormatFloat(d, 'f', 1, 64)
	default:
		return strconv.FormatFloat(d, 'f', 0, 64)
	}
}

// Palette holds the gauge colours.
type Palette struct {
	Track    drawing.Color
	Download drawing.Color
	Upload   drawing.Color
	Progress drawing.Color
}

// DefaultPalette is a translucent grey track with blue download and grey
// upload arcs.
var DefaultPalette = Palette{
	Track:    drawing.Color{R: 0x80, G: 0x80, B: 0x80, A: 0x40},
	Download: drawing.Color{R: 0x60, G: 0x60, B: 0xAA, A: 0xFF},
	Upload:   drawing.Color{R: 0x61, G: 0x61, B: 0x61, A: 0xFF},
	Progress: drawing.Color{R: 0x80, G: 0x80, B: 0x80, A: 0x40},
}
