// Package engine defines the boundary between the test controller and the
// component that actually measures the network. Engines push typed events on
// a per-run channel; the controller never registers callbacks.
package engine

import (
	"context"

	"speedgauge/internal/models"
)

// Event is emitted by an engine during a run.
type Event interface {
	isEvent()
}

// Telemetry carries a complete progress snapshot.
type Telemetry struct {
	Snapshot models.Snapshot
}

// End is the last event of a run.
type End struct {
	Aborted bool
}

func (Telemetry) isEvent() {}
func (End) isEvent()       {}

// Probe is the outcome of best-server selection. Servers carries every
// registered server with its measured PingTime; Best is nil when none
// answered.
type Probe struct {
	Servers []models.Server
	Best    *models.Server
}

// Engine is the measurement engine contract.
type Engine interface {
	// Configure sets an engine option. Unknown names are ignored.
	Configure(name, value string)
	// RegisterServers replaces the candidate endpoint list.
	RegisterServers(servers []models.Server)
	// SelectBestServer probes every registered server and selects the
	// fastest. It returns exactly once per call.
	SelectBestServer(ctx context.Context) Probe
	// SetSelectedServer overrides the selection.
	SetSelectedServer(server models.Server)
	// Start begins a run. The returned channel delivers the run's events
	// and is closed after its End event.
	Start(ctx context.Context) <-chan Event
	// Abort cancels the current run. Repeated calls are harmless.
	Abort()
	// Phase reports the engine's current phase.
	Phase() models.Phase
}
