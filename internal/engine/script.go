package engine

import (
	"context"
	"sync"

	"speedgauge/internal/models"
)

// Script is an engine driven by hand. Tests push telemetry and completion
// events with Emit and Finish; probing returns the configured ping times.
type Script struct {
	mu         sync.Mutex
	params     map[string]string
	servers    []models.Server
	pingTimes  map[string]float64
	selected   *models.Server
	phase      models.Phase
	events     chan Event
	probeCalls int
	startCalls int
	abortCalls int
}

// NewScript creates a scripted engine. pingTimes maps server names to the
// RTT probing reports; missing names are unreachable.
func NewScript(pingTimes map[string]float64) *Script {
	return &Script{
		params:    make(map[string]string),
		pingTimes: pingTimes,
		phase:     models.PhaseIdle,
	}
}

func (s *Script) Configure(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[name] = value
}

// Param returns a configured option.
func (s *Script) Param(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[name]
}

func (s *Script) RegisterServers(servers []models.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = append([]models.Server(nil), servers...)
}

func (s *Script) SelectBestServer(ctx context.Context) Probe {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++

	probe := Probe{Servers: make([]models.Server, len(s.servers))}
	for i, srv := range s.servers {
		srv.PingTime = models.Unreachable
		if rtt, ok := s.pingTimes[srv.Name]; ok {
			srv.PingTime = rtt
		}
		probe.Servers[i] = srv
		if srv.Reachable() && (probe.Best == nil || srv.PingTime < probe.Best.PingTime) {
			best := srv
			probe.Best = &best
		}
	}
	s.selected = probe.Best
	return probe
}

func (s *Script) SetSelectedServer(server models.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &server
}

// Selected returns the server a run would use.
func (s *Script) Selected() (models.Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return models.Server{}, false
	}
	return *s.selected, true
}

func (s *Script) Start(ctx context.Context) <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	s.phase = models.PhaseNotStarted
	s.events = make(chan Event, 64)
	return s.events
}

// Emit pushes a telemetry snapshot into the current run.
func (s *Script) Emit(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return
	}
	s.phase = snap.Phase
	s.events <- Telemetry{Snapshot: snap}
}

// Finish ends the current run and closes its channel.
func (s *Script) Finish(aborted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(aborted)
}

func (s *Script) finishLocked(aborted bool) {
	if s.events == nil {
		return
	}
	if aborted {
		s.phase = models.PhaseAborted
	} else {
		s.phase = models.PhaseFinished
	}
	s.events <- End{Aborted: aborted}
	close(s.events)
	s.events = nil
}

// Abort records the call. Unlike a real engine it does not confirm the
// abort; call Finish(true) to deliver a late acknowledgement.
func (s *Script) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortCalls++
}

func (s *Script) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Calls reports how often probing, Start and Abort were invoked.
func (s *Script) Calls() (probe, start, abort int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCalls, s.startCalls, s.abortCalls
}
