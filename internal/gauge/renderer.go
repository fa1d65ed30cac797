package gauge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/controller"
	"speedgauge/internal/models"
)

// Source is read once per frame.
type Source interface {
	Session() controller.Session
}

// PhaseReader reports the measurement engine's current phase.
type PhaseReader interface {
	Phase() models.Phase
}

// Renderer paints the download and upload gauges from the latest session.
// It only reads; it never drives the controller.
type Renderer struct {
	source   Source
	phase    PhaseReader
	download Surface
	upload   Surface
	palette  Palette
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.Mutex
	frames atomic.Uint64
}

// NewRenderer creates a renderer. The idle check asks phase, or the
// session when phase is nil. A nil surface is never painted.
func NewRenderer(source Source, phase PhaseReader, download, upload Surface, logger zerolog.Logger) *Renderer {
	return &Renderer{
		source:   source,
		phase:    phase,
		download: download,
		upload:   upload,
		palette:  DefaultPalette,
		now:      time.Now,
		logger:   logger.With().Str("component", "renderer").Logger(),
	}
}

// Frame paints one frame and reports whether anything was drawn. Frames are
// skipped while the engine is idle unless force is set.
func (r *Renderer) Frame(force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.source.Session()
	if s.Snapshot == nil {
		r.draw(0, 0, 0, 0)
		return true
	}
	if !force && r.idle(s) {
		return false
	}

	snap := s.Snapshot
	dl, ul := snap.DownloadMbps, snap.UploadMbps
	switch s.Phase {
	case models.PhaseDownload:
		dl *= Oscillate(r.now())
	case models.PhaseUpload:
		ul *= Oscillate(r.now())
	}
	r.draw(dl, snap.DownloadProgress, ul, snap.UploadProgress)

	if force {
		r.logger.Debug().Str("phase", s.Phase.String()).Msg("Forced redraw")
	}
	return true
}

func (r *Renderer) idle(s controller.Session) bool {
	if r.phase != nil {
		return r.phase.Phase() == models.PhaseIdle
	}
	return s.Phase == models.PhaseIdle
}

func (r *Renderer) draw(dl, dlProgress, ul, ulProgress float64) {
	DrawMeter(r.download, Amount(dl), dlProgress, r.palette.Download, r.palette)
	DrawMeter(r.upload, Amount(ul), ulProgress, r.palette.Upload, r.palette)
	r.frames.Add(1)
}

// Frames returns how many frames have been painted.
func (r *Renderer) Frames() uint64 {
	return r.frames.Load()
}

// Loop calls tick at a fixed cadence until its context is cancelled. Step
// runs a single tick so tests can advance frames by hand.
type Loop struct {
	interval time.Duration
	tick     func()
	steps    atomic.Uint64
}

// NewLoop creates a loop; interval defaults to ~60 Hz.
func NewLoop(interval time.Duration, tick func()) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{interval: interval, tick: tick}
}

// Step runs one tick.
func (l *Loop) Step() {
	l.tick()
	l.steps.Add(1)
}

// Steps returns the number of ticks run so far.
func (l *Loop) Steps() uint64 {
	return l.steps.Load()
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		}
	}
}
