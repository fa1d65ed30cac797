// Package controller owns the lifecycle of a measurement run: it starts and
// aborts the engine, consumes the engine's events and publishes immutable
// session values that renderers and the presentation layer read.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/engine"
	"speedgauge/internal/models"
	"speedgauge/internal/share"
)

// Session is the published state of the controller. Values are replaced,
// never mutated; Snapshot is nil until the first telemetry of a run.
type Session struct {
	Phase    models.Phase
	Snapshot *models.Snapshot
	Running  bool
}

// Controller is the single writer of the current Session.
type Controller struct {
	engine engine.Engine
	share  share.Formatter
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	runID    uint64
	redraw   []func(force bool)
	onFinish []func(models.Result)

	session atomic.Pointer[Session]
	wg      sync.WaitGroup
}

// New creates an idle controller.
func New(eng engine.Engine, formatter share.Formatter, logger zerolog.Logger) *Controller {
	c := &Controller{
		engine: eng,
		share:  formatter,
		logger: logger.With().Str("component", "controller").Logger(),
		now:    time.Now,
	}
	c.session.Store(&Session{Phase: models.PhaseIdle})
	return c
}

// OnRedraw registers a hook invoked with force=true whenever a run stops or
// ends, so the resting state gets painted.
func (c *Controller) OnRedraw(fn func(force bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redraw = append(c.redraw, fn)
}

// OnFinish registers a hook invoked once per run that completes normally.
func (c *Controller) OnFinish(fn func(models.Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinish = append(c.onFinish, fn)
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	s := *c.session.Load()
	s.Snapshot = s.Snapshot.Clone()
	return s
}

// Phase returns the current phase.
func (c *Controller) Phase() models.Phase {
	return c.session.Load().Phase
}

// Running reports whether a run is in progress.
func (c *Controller) Running() bool {
	return c.session.Load().Running
}

// Start begins a new run, discarding the previous snapshot. It returns false
// without side effects when a run is already active.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.session.Load().Running {
		c.mu.Unlock()
		c.logger.Debug().Msg("Start ignored, run already active")
		return false
	}
	c.runID++
	id := c.runID
	c.publish(Session{Phase: models.PhaseNotStarted, Running: true})
	events := c.engine.Start(ctx)
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info().Uint64("run", id).Msg("Test started")
	go c.consume(id, events)
	return true
}

// Stop aborts the active run. Local state switches to Aborted immediately;
// the engine's later confirmation is ignored. It returns false when idle.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if !c.session.Load().Running {
		c.mu.Unlock()
		return false
	}
	c.publish(Session{Phase: models.PhaseAborted})
	hooks := c.redrawHooks()
	c.mu.Unlock()

	c.engine.Abort()
	c.logger.Info().Msg("Test stopped by user")
	for _, fn := range hooks {
		fn(true)
	}
	return true
}

// Wait blocks until every event stream handed out so far has been drained.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) consume(id uint64, events <-chan engine.Event) {
	defer c.wg.Done()
	for ev := range events {
		c.handle(id, ev)
	}
}

func (c *Controller) handle(id uint64, ev engine.Event) {
	c.mu.Lock()
	cur := c.session.Load()
	if id != c.runID || !cur.Running {
		// stale run, or a late event after Stop
		c.mu.Unlock()
		return
	}

	switch ev := ev.(type) {
	case engine.Telemetry:
		snap := ev.Snapshot
		c.publish(Session{Phase: snap.Phase, Snapshot: &snap, Running: true})
		c.mu.Unlock()

	case engine.End:
		if ev.Aborted {
			c.publish(Session{Phase: models.PhaseAborted, Snapshot: cur.Snapshot})
			hooks := c.redrawHooks()
			c.mu.Unlock()

			c.logger.Warn().Uint64("run", id).Msg("Test aborted by engine")
			for _, fn := range hooks {
				fn(true)
			}
			return
		}

		var snap models.Snapshot
		if cur.Snapshot != nil {
			snap = *cur.Snapshot
		}
		if u, ok := c.share.URL(snap.TestID); ok {
			snap = snap.WithShareURL(u)
		}
		c.publish(Session{Phase: models.PhaseFinished, Snapshot: &snap})
		hooks := c.redrawHooks()
		finish := append([]func(models.Result){}, c.onFinish...)
		c.mu.Unlock()

		c.logger.Info().
			Uint64("run", id).
			Str("test_id", snap.TestID).
			Float64("dl_mbps", snap.DownloadMbps).
			Float64("ul_mbps", snap.UploadMbps).
			Float64("ping_ms", snap.PingMs).
			Msg("Test finished")
		for _, fn := range hooks {
			fn(true)
		}
		result := models.ResultFromSnapshot(snap, c.now())
		for _, fn := range finish {
			fn(result)
		}

	default:
		c.mu.Unlock()
	}
}

// publish must be called with mu held.
func (c *Controller) publish(s Session) {
	c.session.Store(&s)
}

func (c *Controller) redrawHooks() []func(bool) {
	return append([]func(bool){}, c.redraw...)
}
