package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"speedgauge/internal/engine"
	"speedgauge/internal/models"
)

// ErrNoReachableServer means probing found no server that answered. It is
// distinct from an empty catalog, which is not an error.
var ErrNoReachableServer = errors.New("no measurement server is reachable")

// Selection is the outcome of Initialize.
type Selection struct {
	Servers  []models.Server
	Selected *models.Server
	// Chooser is false when no server list was configured; the UI then
	// hides the server picker.
	Chooser bool
}

// Catalog owns the candidate servers and the current selection.
type Catalog struct {
	engine engine.Engine
	logger zerolog.Logger

	mu        sync.RWMutex
	selection Selection
}

// New creates an empty catalog bound to an engine.
func New(eng engine.Engine, logger zerolog.Logger) *Catalog {
	return &Catalog{
		engine: eng,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Initialize registers raw with the engine, probes it and keeps the
// reachable subset. An empty list skips probing entirely.
func (c *Catalog) Initialize(ctx context.Context, raw []models.Server) (Selection, error) {
	if len(raw) == 0 {
		c.logger.Info().Msg("No server list configured, skipping server selection")
		c.store(Selection{})
		return Selection{}, nil
	}

	c.engine.RegisterServers(raw)
	probe := c.engine.SelectBestServer(ctx)
	if probe.Best == nil {
		c.store(Selection{})
		return Selection{}, fmt.Errorf("probed %d servers: %w", len(raw), ErrNoReachableServer)
	}

	sel := Selection{Chooser: true}
	for _, s := range probe.Servers {
		if s.Reachable() {
			sel.Servers = append(sel.Servers, s)
		}
	}
	best := *probe.Best
	sel.Selected = &best

	c.logger.Info().
		Int("configured", len(raw)).
		Int("reachable", len(sel.Servers)).
		Str("selected", best.Name).
		Msg("Server catalog initialized")

	c.store(sel)
	return cloneSelection(sel), nil
}

// Select overrides the engine's choice. Callers must not switch servers
// while a test is running.
func (c *Catalog) Select(server models.Server) {
	c.engine.SetSelectedServer(server)

	c.mu.Lock()
	s := server
	c.selection.Selected = &s
	c.mu.Unlock()

	c.logger.Info().Str("server", server.Name).Msg("Server selected")
}

// SelectIndex selects the i-th reachable server.
func (c *Catalog) SelectIndex(i int) (models.Server, error) {
	c.mu.RLock()
	n := len(c.selection.Servers)
	var server models.Server
	if i >= 0 && i < n {
		server = c.selection.Servers[i]
	}
	c.mu.RUnlock()

	if i < 0 || i >= n {
		return models.Server{}, fmt.Errorf("server index %d out of range [0,%d)", i, n)
	}
	c.Select(server)
	return server, nil
}

// Selection returns a copy of the current state.
func (c *Catalog) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSelection(c.selection)
}

// Servers returns the reachable servers.
func (c *Catalog) Servers() []models.Server {
	return c.Selection().Servers
}

// Selected returns the current server, or nil.
func (c *Catalog) Selected() *models.Server {
	return c.Selection().Selected
}

func (c *Catalog) store(sel Selection) {
	c.mu.Lock()
	c.selection = cloneSelection(sel)
	c.mu.Unlock()
}

func cloneSelection(sel Selection) Selection {
	out := Selection{Chooser: sel.Chooser}
	if sel.Servers != nil {
		out.Servers = append([]models.Server(nil), sel.Servers...)
	}
	if sel.Selected != nil {
		s := *sel.Selected
		out.Selected = &s
	}
	return out
}
