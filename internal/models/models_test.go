package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase(t *testing.T) {
	tests := []struct {
		code     int
		name     string
		known    bool
		active   bool
		terminal bool
	}{
		{-1, "idle", true, false, false},
		{0, "not-started", true, false, false},
		{1, "download", true, true, false},
		{2, "ping", true, false, false},
		{3, "upload", true, true, false},
		{4, "finished", true, false, true},
		{5, "aborted", true, false, true},
		{42, "other(42)", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PhaseFromCode(tt.code)
			assert.Equal(t, tt.code, p.Code())
			assert.Equal(t, tt.name, p.String())
			assert.Equal(t, tt.known, p.Known())
			assert.Equal(t, tt.active, p.Active())
			assert.Equal(t, tt.terminal, p.Terminal())
		})
	}
}

func TestPhaseJSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{Phase: PhaseUpload})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"phase":3`)

	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"phase":7}`), &s))
	assert.Equal(t, PhaseFromCode(7), s.Phase)
	assert.False(t, s.Phase.Known())

	assert.Error(t, json.Unmarshal([]byte(`{"phase":"download"}`), &s))
}

func TestLoadServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	list := `[
		{"name": "Helsinki", "server": "//speed.example.fi/", "dlURL": "garbage.php", "ulURL": "empty.php", "pingURL": "empty.php", "getIpURL": "getIP.php"},
		{"name": "Oslo", "server": "https://speed.example.no/backend", "dlURL": "garbage.php", "pingT": 12.5}
	]`
	require.NoError(t, os.WriteFile(path, []byte(list), 0644))

	servers, err := LoadServers(path)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, "Helsinki", servers[0].Name)
	assert.False(t, servers[0].Reachable())
	assert.Equal(t, "https://speed.example.fi/garbage.php", servers[0].Endpoint(servers[0].DownloadURL))

	assert.Equal(t, 12.5, servers[1].PingTime)
	assert.Equal(t, "https://speed.example.no/backend/garbage.php", servers[1].Endpoint(servers[1].DownloadURL))
	assert.Equal(t, "https://other.example/x", servers[1].Endpoint("https://other.example/x"))
}

func TestLoadServersErrors(t *testing.T) {
	_, err := LoadServers(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "not a list"}`), 0644))
	_, err = LoadServers(path)
	assert.Error(t, err)
}

func TestServerEqualIgnoresPingTime(t *testing.T) {
	a := Server{Name: "A", URL: "https://a.example/", PingTime: 10}
	b := a
	b.PingTime = Unreachable
	assert.True(t, a.Equal(b))

	b.URL = "https://b.example/"
	assert.False(t, a.Equal(b))
}

func TestSnapshotClone(t *testing.T) {
	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Clone())

	s := &Snapshot{DownloadMbps: 10}
	c := s.Clone()
	c.DownloadMbps = 20
	assert.Equal(t, 10.0, s.DownloadMbps)
}

func TestResultFromSnapshot(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s := Snapshot{
		Phase:        PhaseFinished,
		DownloadMbps: 90,
		UploadMbps:   20,
		PingMs:       8,
		JitterMs:     1,
		ClientIP:     "203.0.113.7",
		Server:       "Helsinki",
		TestID:       "abc",
	}.WithShareURL("https://example.com/results/?id=abc")

	r := ResultFromSnapshot(s, at)
	assert.Equal(t, Result{
		TestID:       "abc",
		Timestamp:    at,
		Server:       "Helsinki",
		ClientIP:     "203.0.113.7",
		DownloadMbps: 90,
		UploadMbps:   20,
		PingMs:       8,
		JitterMs:     1,
		ShareURL:     "https://example.com/results/?id=abc",
	}, r)
}
