package gauge

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"sync"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Surface is a paintable target with a logical size and a pixel density.
type Surface interface {
	LogicalSize() (width, height, ratio float64)
	PixelSize() (width, height int)
	// Resize reallocates the backing store, which also clears it.
	Resize(width, height int)
	Clear()
	StrokeArc(a Arc, c drawing.Color)
	FillRect(r Rect, c drawing.Color)
	// Commit publishes everything painted since the last Resize or Clear.
	Commit()
}

// DrawMeter paints one gauge. A nil surface is skipped.
func DrawMeter(s Surface, amount, progress float64, fg drawing.Color, p Palette) (Geometry, bool) {
	if s == nil {
		return Geometry{}, false
	}

	lw, lh, ratio := s.LogicalSize()
	if ratio <= 0 {
		ratio = 1
	}
	pw, ph := int(lw*ratio), int(lh*ratio)
	if pw <= 0 || ph <= 0 {
		return Geometry{}, false
	}

	if cw, ch := s.PixelSize(); cw != pw || ch != ph {
		s.Resize(pw, ph)
	} else {
		s.Clear()
	}

	g := Layout(pw, ph, amount, progress)
	s.StrokeArc(g.Track, p.Track)
	if g.Fill.Sweep() > 0 {
		s.StrokeArc(g.Fill, fg)
	}
	if g.Bar.W > 0 {
		s.FillRect(g.Bar, p.Progress)
	}
	s.Commit()
	return g, true
}

// RasterSurface paints into an in-memory RGBA back buffer. Readers only
// see the last committed frame.
type RasterSurface struct {
	mu     sync.Mutex
	width  float64
	height float64
	ratio  float64
	img    *image.RGBA
	gc     *drawing.RasterGraphicContext
	front  *image.RGBA
}

// NewRasterSurface creates a surface of the given logical size. The backing
// image is allocated on first draw.
func NewRasterSurface(width, height, ratio float64) *RasterSurface {
	return &RasterSurface{width: width, height: height, ratio: ratio}
}

func (s *RasterSurface) LogicalSize() (float64, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height, s.ratio
}

func (s *RasterSurface) PixelSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *RasterSurface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	gc, err := drawing.NewRasterGraphicContext(s.img)
	if err != nil {
		s.gc = nil
		return
	}
	s.gc = gc
}

func (s *RasterSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (s *RasterSurface) StrokeArc(a Arc, c drawing.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gc == nil {
		return
	}
	s.gc.SetStrokeColor(c)
	s.gc.SetLineWidth(a.Width)
	s.gc.BeginPath()
	s.gc.ArcTo(a.CX, a.CY, a.Radius, a.Radius, a.Start, a.Sweep())
	s.gc.Stroke()
}

func (s *RasterSurface) FillRect(r Rect, c drawing.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gc == nil {
		return
	}
	s.gc.SetFillColor(c)
	s.gc.BeginPath()
	s.gc.MoveTo(r.X, r.Y)
	s.gc.LineTo(r.X+r.W, r.Y)
	s.gc.LineTo(r.X+r.W, r.Y+r.H)
	s.gc.LineTo(r.X, r.Y+r.H)
	s.gc.Close()
	s.gc.Fill()
}

func (s *RasterSurface) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return
	}
	if s.front == nil || s.front.Bounds() != s.img.Bounds() {
		s.front = image.NewRGBA(s.img.Bounds())
	}
	copy(s.front.Pix, s.img.Pix)
}

// Image returns a copy of the last committed frame, or nil before the
// first one.
func (s *RasterSurface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == nil {
		return nil
	}
	out := image.NewRGBA(s.front.Bounds())
	copy(out.Pix, s.front.Pix)
	return out
}

// WritePNG encodes the current frame.
func (s *RasterSurface) WritePNG(w io.Writer) error {
	img := s.Image()
	if img == nil {
		return fmt.Errorf("surface has not been drawn yet")
	}
	return png.Encode(w, img)
}

// Compose places frames side by side on one image.
func Compose(frames ...*image.RGBA) *image.RGBA {
	var width, height int
	for _, f := range frames {
		if f == nil {
			continue
		}
		width += f.Bounds().Dx()
		if h := f.Bounds().Dy(); h > height {
			height = h
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, f := range frames {
		if f == nil {
			continue
		}
		r := image.Rect(x, 0, x+f.Bounds().Dx(), f.Bounds().Dy())
		draw.Draw(out, r, f, f.Bounds().Min, draw.Over)
		x += f.Bounds().Dx()
	}
	return out
}
