package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speedgauge/internal/models"
	"speedgauge/internal/ping"
)

// Params are the tunables of HTTPEngine.
type Params struct {
	TelemetryLevel   string
	DownloadDuration time.Duration
	UploadDuration   time.Duration
	PingCount        int
	Streams          int
	ChunkSizeMB      int
	UploadChunkBytes int
	UpdateInterval   time.Duration
}

// DefaultParams mirrors the usual browser speed test defaults.
func DefaultParams() Params {
	return Params{
		TelemetryLevel:   "basic",
		DownloadDuration: 15 * time.Second,
		UploadDuration:   15 * time.Second,
		PingCount:        10,
		Streams:          6,
		ChunkSizeMB:      100,
		UploadChunkBytes: 1 << 20,
		UpdateInterval:   200 * time.Millisecond,
	}
}

// HTTPEngine measures against speed test backends that expose download,
// upload, ping and client-IP endpoints over plain HTTP.
type HTTPEngine struct {
	client *http.Client
	prober models.Prober
	logger zerolog.Logger
	newID  func() string

	mu       sync.Mutex
	params   Params
	servers  []models.Server
	selected *models.Server
	cancel   context.CancelFunc
	payload  []byte

	phase atomic.Int32
}

// NewHTTP creates an engine. prober is used for best-server selection.
func NewHTTP(client *http.Client, prober models.Prober, params Params, logger zerolog.Logger) *HTTPEngine {
	if client == nil {
		client = http.DefaultClient
	}
	e := &HTTPEngine{
		client: client,
		prober: prober,
		logger: logger.With().Str("component", "engine").Logger(),
		newID:  uuid.NewString,
		params: params,
	}
	e.phase.Store(int32(models.PhaseIdle.Code()))
	return e
}

// Configure accepts the option names used by browser speed test engines.
func (e *HTTPEngine) Configure(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seconds := func() (time.Duration, bool) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return time.Duration(v * float64(time.Second)), true
	}
	positive := func() (int, bool) {
		v, err := strconv.Atoi(value)
		return v, err == nil && v > 0
	}

	applied := true
	switch name {
	case "telemetry_level":
		e.params.TelemetryLevel = value
	case "time_dl", "time_dl_max":
		if d, ok := seconds(); ok {
			e.params.DownloadDuration = d
		}
	case "time_ul", "time_ul_max":
		if d, ok := seconds(); ok {
			e.params.UploadDuration = d
		}
	case "count_ping":
		if v, ok := positive(); ok {
			e.params.PingCount = v
		}
	case "streams", "xhr_dlMultistream":
		if v, ok := positive(); ok {
			e.params.Streams = v
		}
	case "garbagePhp_chunkSize":
		if v, ok := positive(); ok {
			e.params.ChunkSizeMB = v
		}
	default:
		applied = false
	}
	e.logger.Debug().Str("name", name).Str("value", value).Bool("applied", applied).Msg("Configure")
}

func (e *HTTPEngine) RegisterServers(servers []models.Server) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.servers = append([]models.Server(nil), servers...)
}

// SelectBestServer probes all registered servers concurrently.
func (e *HTTPEngine) SelectBestServer(ctx context.Context) Probe {
	e.mu.Lock()
	servers := append([]models.Server(nil), e.servers...)
	e.mu.Unlock()

	var wg sync.WaitGroup
	for i := range servers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rtt, err := e.prober.Probe(ctx, servers[i])
			if err != nil {
				e.logger.Debug().Err(err).Str("server", servers[i].Name).Msg("Server unreachable")
				rtt = models.Unreachable
			}
			servers[i].PingTime = rtt
		}(i)
	}
	wg.Wait()

	probe := Probe{Servers: servers}
	for i := range servers {
		if !servers[i].Reachable() {
			continue
		}
		if probe.Best == nil || servers[i].PingTime < probe.Best.PingTime {
			best := servers[i]
			probe.Best = &best
		}
	}

	e.mu.Lock()
	e.servers = servers
	e.selected = probe.Best
	e.mu.Unlock()

	if probe.Best != nil {
		e.logger.Info().Str("server", probe.Best.Name).Float64("ping_ms", probe.Best.PingTime).Msg("Selected best server")
	}
	return probe
}

func (e *HTTPEngine) SetSelectedServer(server models.Server) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = &server
}

func (e *HTTPEngine) Phase() models.Phase {
	return models.PhaseFromCode(int(e.phase.Load()))
}

func (e *HTTPEngine) setPhase(p models.Phase) {
	e.phase.Store(int32(p.Code()))
}

// Start launches a run in the background.
func (e *HTTPEngine) Start(ctx context.Context) <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	var server *models.Server
	if e.selected != nil {
		s := *e.selected
		server = &s
	}
	if e.payload == nil {
		e.payload = make([]byte, e.params.UploadChunkBytes)
		_, _ = rand.Read(e.payload)
	}

	events := make(chan Event, 16)
	e.setPhase(models.PhaseNotStarted)
	go e.run(runCtx, server, e.params, e.payload, events)
	return events
}

// Abort cancels the running measurement; the run reports End{Aborted: true}.
func (e *HTTPEngine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

type run struct {
	e       *HTTPEngine
	ctx     context.Context
	server  models.Server
	params  Params
	payload []byte
	events  chan<- Event
	snap    models.Snapshot
}

func (e *HTTPEngine) run(ctx context.Context, server *models.Server, params Params, payload []byte, events chan Event) {
	defer close(events)

	if server == nil {
		e.logger.Error().Msg("No server selected")
		e.finish(events, true)
		return
	}

	r := &run{
		e:       e,
		ctx:     ctx,
		server:  *server,
		params:  params,
		payload: payload,
		events:  events,
		snap:    models.Snapshot{Phase: models.PhaseNotStarted, Server: server.Name},
	}

	start := time.Now()
	e.logger.Info().Str("server", server.Name).Msg("Measurement started")

	steps := []func() error{r.clientIP, r.measurePing, r.download, r.upload}
	for _, step := range steps {
		if err := step(); err != nil {
			if ctx.Err() == nil {
				e.logger.Error().Err(err).Msg("Measurement failed")
			}
			e.finish(events, true)
			return
		}
	}

	if params.TelemetryLevel != "disabled" {
		r.snap.TestID = e.newID()
	}
	r.snap.Phase = models.PhaseFinished
	r.emit()
	e.logger.Info().
		Dur("elapsed", time.Since(start)).
		Float64("dl_mbps", r.snap.DownloadMbps).
		Float64("ul_mbps", r.snap.UploadMbps).
		Msg("Measurement complete")
	e.finish(events, false)
}

func (e *HTTPEngine) finish(events chan<- Event, aborted bool) {
	if aborted {
		e.setPhase(models.PhaseAborted)
	} else {
		e.setPhase(models.PhaseFinished)
	}
	events <- End{Aborted: aborted}
}

func (r *run) emit() {
	r.e.setPhase(r.snap.Phase)
	select {
	case r.events <- Telemetry{Snapshot: r.snap}:
	case <-r.ctx.Done():
	}
}

func (r *run) clientIP() error {
	r.emit()
	if r.server.GetIPURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.server.Endpoint(r.server.GetIPURL), nil)
	if err != nil {
		return err
	}
	resp, err := r.e.client.Do(req)
	if err != nil {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		// The address is cosmetic.
		r.e.logger.Warn().Err(err).Msg("Failed to resolve client IP")
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	r.snap.ClientIP = parseClientIP(body)
	return nil
}

// parseClientIP accepts plain text or the {"processedString": ...} form.
func parseClientIP(body []byte) string {
	var processed struct {
		ProcessedString string `json:"processedString"`
	}
	if json.Unmarshal(body, &processed) == nil && processed.ProcessedString != "" {
		return processed.ProcessedString
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(body)), "\n")
	return strings.TrimSpace(line)
}

func (r *run) measurePing() error {
	r.snap.Phase = models.PhasePing
	r.emit()

	var stats pingStats
	endpoint := r.server.Endpoint(r.server.PingURL)
	for i := 0; i < r.params.PingCount; i++ {
		rtt, err := ping.RoundTrip(r.ctx, r.e.client, endpoint)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			return fmt.Errorf("ping: %w", err)
		}
		stats.add(rtt)
		r.snap.PingMs = stats.ping
		r.snap.JitterMs = stats.jitter
		r.emit()
	}
	return nil
}

// pingStats keeps the minimum RTT and a smoothed jitter estimate that
// reacts faster to rising jitter than to falling jitter.
type pingStats struct {
	samples int
	prev    float64
	ping    float64
	jitter  float64
}

func (p *pingStats) add(rtt float64) {
	switch p.samples {
	case 0:
		p.ping = rtt
	default:
		if rtt < p.ping {
			p.ping = rtt
		}
		delta := rtt - p.prev
		if delta < 0 {
			delta = -delta
		}
		if p.samples == 1 {
			p.jitter = delta
		} else if delta > p.jitter {
			p.jitter = p.jitter*0.3 + delta*0.7
		} else {
			p.jitter = p.jitter*0.8 + delta*0.2
		}
	}
	p.prev = rtt
	p.samples++
}

func (r *run) download() error {
	r.snap.Phase = models.PhaseDownload
	r.emit()

	endpoint := r.server.Endpoint(r.server.DownloadURL)
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	endpoint = fmt.Sprintf("%s%sckSize=%d", endpoint, sep, r.params.ChunkSizeMB)

	return r.transfer(r.params.DownloadDuration, func(ctx context.Context, counter *atomic.Int64) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Cache-Control", "no-cache")
		resp, err := r.e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
		}
		_, err = io.Copy(io.Discard, &countingReader{r: resp.Body, n: counter})
		return err
	}, func(rate, progress float64) {
		r.snap.DownloadMbps = rate
		r.snap.DownloadProgress = progress
	})
}

func (r *run) upload() error {
	r.snap.Phase = models.PhaseUpload
	r.emit()

	endpoint := r.server.Endpoint(r.server.UploadURL)
	return r.transfer(r.params.UploadDuration, func(ctx context.Context, counter *atomic.Int64) error {
		body := &countingReader{r: bytes.NewReader(r.payload), n: counter}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return err
		}
		req.ContentLength = int64(len(r.payload))
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := r.e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 400 {
			return fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
		}
		return nil
	}, func(rate, progress float64) {
		r.snap.UploadMbps = rate
		r.snap.UploadProgress = progress
	})
}

// transfer runs request in parallel streams for duration, publishing the
// aggregate rate on every update tick.
func (r *run) transfer(duration time.Duration, request func(context.Context, *atomic.Int64) error, update func(rate, progress float64)) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.ctx, duration)
	defer cancel()

	var (
		counter  atomic.Int64
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	streams := r.params.Streams
	if streams < 1 {
		streams = 1
	}
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if err := request(ctx, &counter); err != nil && ctx.Err() == nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
			}
		}()
	}

	ticker := time.NewTicker(r.params.UpdateInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			elapsed := time.Since(start)
			update(mbps(counter.Load(), elapsed), progress(elapsed, duration))
			r.emit()
		}
	}
	wg.Wait()

	if r.ctx.Err() != nil {
		return r.ctx.Err()
	}
	if counter.Load() == 0 && firstErr != nil {
		return firstErr
	}
	update(mbps(counter.Load(), time.Since(start)), 1)
	r.emit()
	return nil
}

func mbps(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) * 8 / elapsed.Seconds() / 1e6
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
