package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"speedgauge/internal/catalog"
	"speedgauge/internal/database"
	"speedgauge/internal/view"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func (s *Server) currentView() view.View {
	return view.Build(s.tester.Session(), s.tester.Selection(), s.tester.Locator())
}

// handleStatus handles /api/status requests
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentView())
}

// handleServers handles /api/servers requests
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	v := s.currentView()
	servers := v.Servers
	if servers == nil {
		servers = []view.ServerOption{}
	}
	writeJSON(w, http.StatusOK, servers)
}

// handleSelect handles /api/select?index=N requests
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("index parameter required"))
		return
	}
	if s.tester.Session().Running {
		writeError(w, http.StatusConflict, errors.New("cannot change server while a test is running"))
		return
	}
	if _, err := s.tester.SelectServer(i); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentView())
}

// handleStart handles /api/start requests
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.tester.Ready(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrNoReachableServer) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	if !s.tester.StartTest() {
		writeError(w, http.StatusConflict, errors.New("a test is already running"))
		return
	}
	writeJSON(w, http.StatusAccepted, s.currentView())
}

// handleStop handles /api/stop requests
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.tester.StopTest() {
		writeError(w, http.StatusConflict, errors.New("no test is running"))
		return
	}
	writeJSON(w, http.StatusOK, s.currentView())
}

// handleResult handles /api/results/{id} requests
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetResult(r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRecent handles /api/results requests
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.GetRecent(queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleStats handles /api/stats requests
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(queryInt(r, "days", 30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
