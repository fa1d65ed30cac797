package gauge

import "math"

// Arc sweeps clockwise from Start to End (radians, screen coordinates).
type Arc struct {
	CX, CY float64
	Radius float64
	Width  float64
	Start  float64
	End    float64
}

// Sweep returns the angular extent of the arc.
func (a Arc) Sweep() float64 { return a.End - a.Start }

// Rect is an axis-aligned rectangle in device pixels.
type Rect struct {
	X, Y, W, H float64
}

// Geometry is everything one gauge paints in a frame.
type Geometry struct {
	Track  Arc
	Fill   Arc
	Bar    Rect
	BarMax float64
}

const (
	arcStart = -math.Pi * 1.1
	arcSweep = math.Pi * 1.2
)

// Layout computes gauge geometry for a surface of pw×ph device pixels. All
// sizes scale with the surface height; the arc opens towards the bottom.
func Layout(pw, ph int, amount, progress float64) Geometry {
	cw, ch := float64(pw), float64(ph)
	scale := ch * 0.0055
	width := 12 * scale

	track := Arc{
		CX:     cw / 2,
		CY:     ch - 58*scale,
		Radius: ch/1.8 - width,
		Width:  width,
		Start:  arcStart,
		End:    arcStart + arcSweep,
	}
	fill := track
	fill.End = arcStart + clamp01(amount)*arcSweep

	barMax := cw * 0.4
	return Geometry{
		Track: track,
		Fill:  fill,
		Bar: Rect{
			X: cw * 0.3,
			Y: ch - 16*scale,
			W: barMax * clamp01(progress),
			H: 4 * scale,
		},
		BarMax: barMax,
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
