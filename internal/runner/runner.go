// Package runner wires the catalog, engine, controller and gauges into one
// process and keeps its background workers running.
package runner

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/catalog"
	"speedgauge/internal/config"
	"speedgauge/internal/controller"
	"speedgauge/internal/engine"
	"speedgauge/internal/gauge"
	"speedgauge/internal/geo"
	"speedgauge/internal/models"
	"speedgauge/internal/ping"
	"speedgauge/internal/share"
)

// ErrRunning is returned by RunOnce when a measurement is already active.
var ErrRunning = errors.New("a measurement is already running")

// Runner coordinates a measurement session and its persistence.
type Runner struct {
	config     *config.Config
	store      models.ResultStore
	engine     engine.Engine
	catalog    *catalog.Catalog
	controller *controller.Controller
	renderer   *gauge.Renderer
	download   *gauge.RasterSurface
	upload     *gauge.RasterSurface
	loop       *gauge.Loop
	locator    geo.Locator
	closeGeo   func() error
	logger     zerolog.Logger

	results      chan models.Result
	outputFrames atomic.Bool

	mu      sync.Mutex
	initErr error

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Build creates a runner with the HTTP engine and the configured prober.
func Build(cfg *config.Config, store models.ResultStore, logger zerolog.Logger) (*Runner, error) {
	client := &http.Client{}

	var prober models.Prober
	switch cfg.Probe {
	case config.ProbeICMP:
		prober = ping.NewICMP(cfg.ProbeTimeout, logger)
	default:
		prober = ping.NewHTTP(&http.Client{Timeout: cfg.ProbeTimeout}, 3, logger)
	}

	eng := engine.NewHTTP(client, prober, engine.DefaultParams(), logger)

	r := New(cfg, store, eng, logger)
	if cfg.GeoIPDatabase != "" {
		g, err := geo.Open(cfg.GeoIPDatabase)
		if err != nil {
			return nil, err
		}
		r.locator = g
		r.closeGeo = g.Close
	}
	return r, nil
}

// New creates a runner around an existing engine and passes the configured
// measurement options to it.
func New(cfg *config.Config, store models.ResultStore, eng engine.Engine, logger zerolog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		config:   cfg,
		store:    store,
		engine:   eng,
		catalog:  catalog.New(eng, logger),
		download: gauge.NewRasterSurface(cfg.Gauge.Width, cfg.Gauge.Height, cfg.Gauge.PixelRatio),
		upload:   gauge.NewRasterSurface(cfg.Gauge.Width, cfg.Gauge.Height, cfg.Gauge.PixelRatio),
		logger:   logger.With().Str("component", "runner").Logger(),
		results:  make(chan models.Result, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
	r.configureEngine()
	r.controller = controller.New(eng, share.New(cfg.Origin), logger)
	r.renderer = gauge.NewRenderer(r.controller, eng, r.download, r.upload, logger)
	r.loop = gauge.NewLoop(cfg.FrameInterval, func() { r.renderer.Frame(false) })

	r.controller.OnRedraw(r.redraw)
	r.controller.OnFinish(r.enqueue)
	return r
}

func (r *Runner) configureEngine() {
	seconds := func(d time.Duration) string {
		return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	}
	options := [][2]string{
		{"telemetry_level", r.config.TelemetryLevel},
		{"time_dl", seconds(r.config.DownloadDuration)},
		{"time_ul", seconds(r.config.UploadDuration)},
		{"count_ping", strconv.Itoa(r.config.PingCount)},
		{"streams", strconv.Itoa(r.config.Streams)},
	}
	for _, o := range options {
		r.engine.Configure(o[0], o[1])
	}
}

func (r *Runner) Controller() *controller.Controller { return r.controller }
func (r *Runner) Catalog() *catalog.Catalog          { return r.catalog }
func (r *Runner) Renderer() *gauge.Renderer          { return r.renderer }
func (r *Runner) Store() models.ResultStore          { return r.store }

// Locator returns the geoip locator, or nil when none is configured.
func (r *Runner) Locator() geo.Locator { return r.locator }

// Surfaces returns the live download and upload gauges.
func (r *Runner) Surfaces() (download, upload *gauge.RasterSurface) {
	return r.download, r.upload
}

// Init loads the configured server list and picks a server. Without a list
// the engine is pointed at the local backend under the configured origin.
func (r *Runner) Init(ctx context.Context) (catalog.Selection, error) {
	var raw []models.Server
	if r.config.ServersFile != "" {
		servers, err := models.LoadServers(r.config.ServersFile)
		if err != nil {
			return catalog.Selection{}, err
		}
		raw = servers
	}

	sel, err := r.catalog.Initialize(ctx, raw)
	r.mu.Lock()
	r.initErr = err
	r.mu.Unlock()
	if err != nil {
		return sel, err
	}
	if len(raw) == 0 {
		local := LocalServer(r.config.Origin)
		r.engine.SetSelectedServer(local)
		r.logger.Info().Str("url", local.URL).Msg("Using local backend")
	}
	return sel, nil
}

// LocalServer describes the backend served by this process under origin.
func LocalServer(origin string) models.Server {
	return models.Server{
		Name:        "Local",
		URL:         strings.TrimRight(origin, "/") + "/backend/",
		DownloadURL: "garbage.php",
		UploadURL:   "empty.php",
		PingURL:     "empty.php",
		GetIPURL:    "getIP.php",
		PingTime:    models.Unreachable,
	}
}

// Start launches the frame loop, the result processor and maintenance.
func (r *Runner) Start() error {
	r.logger.Info().
		Dur("frame_interval", r.config.FrameInterval).
		Int("retention_days", r.config.RetentionDays).
		Msg("Starting runner")

	r.wg.Add(1)
	go r.processResults()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.loop.Run(r.ctx)
	}()

	if r.store != nil && r.config.RetentionDays > 0 {
		r.wg.Add(1)
		go r.maintenanceWorker()
	}
	return nil
}

// Stop aborts any active measurement and stops the workers.
func (r *Runner) Stop() {
	r.logger.Info().Msg("Stopping runner...")
	r.controller.Stop()
	r.cancel()
}

// Wait blocks until all goroutines finish.
func (r *Runner) Wait() {
	r.controller.Wait()
	r.wg.Wait()
	if r.closeGeo != nil {
		if err := r.closeGeo(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to close geoip database")
		}
	}
	r.logger.Info().Msg("Runner stopped")
}

// Ready returns the error of the last Init, e.g. when no server answered.
func (r *Runner) Ready() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initErr
}

// Session returns the controller's current session.
func (r *Runner) Session() controller.Session {
	return r.controller.Session()
}

// Selection returns the catalog state.
func (r *Runner) Selection() catalog.Selection {
	return r.catalog.Selection()
}

// SelectServer switches to the i-th reachable server. Switching is refused
// while a measurement runs.
func (r *Runner) SelectServer(i int) (models.Server, error) {
	if r.controller.Running() {
		return models.Server{}, ErrRunning
	}
	return r.catalog.SelectIndex(i)
}

// StartTest begins a measurement bound to the runner's lifetime.
func (r *Runner) StartTest() bool {
	return r.controller.Start(r.ctx)
}

// StopTest aborts the active measurement.
func (r *Runner) StopTest() bool {
	return r.controller.Stop()
}

// RunOnce performs a single measurement and blocks until it ends or ctx is
// cancelled, in which case the run is stopped. Gauges are written to the
// output directory on every forced frame.
func (r *Runner) RunOnce(ctx context.Context) (controller.Session, error) {
	r.outputFrames.Store(true)
	defer r.outputFrames.Store(false)

	if !r.controller.Start(ctx) {
		return r.controller.Session(), ErrRunning
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.controller.Stop()
		case <-done:
		}
	}()
	r.controller.Wait()
	close(done)

	s := r.controller.Session()
	if ctx.Err() != nil {
		return s, ctx.Err()
	}
	return s, nil
}

func (r *Runner) redraw(force bool) {
	r.renderer.Frame(force)
	if r.outputFrames.Load() {
		if err := r.WriteGauges(r.config.OutputDir); err != nil {
			r.logger.Error().Err(err).Msg("Failed to write gauges")
		}
	}
}

func (r *Runner) enqueue(result models.Result) {
	select {
	case r.results <- result:
	default:
		r.logger.Warn().Str("test_id", result.TestID).Msg("Result channel full, dropping result")
	}
}
