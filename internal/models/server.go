package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Unreachable is the PingTime of a server that did not answer probing, or
// that has not been probed yet.
const Unreachable = -1.0

// Server is a candidate measurement endpoint. The JSON layout follows the
// common speed test server-list format.
type Server struct {
	Name        string  `json:"name"`
	URL         string  `json:"server"`
	DownloadURL string  `json:"dlURL"`
	UploadURL   string  `json:"ulURL"`
	PingURL     string  `json:"pingURL"`
	GetIPURL    string  `json:"getIpURL"`
	PingTime    float64 `json:"pingT"` // milliseconds
}

// Reachable reports whether probing produced a ping time.
func (s Server) Reachable() bool {
	return s.PingTime != Unreachable
}

// Equal compares servers structurally. PingTime is ignored so that a probed
// copy still matches the configured entry.
func (s Server) Equal(o Server) bool {
	return s.Name == o.Name &&
		s.URL == o.URL &&
		s.DownloadURL == o.DownloadURL &&
		s.UploadURL == o.UploadURL &&
		s.PingURL == o.PingURL &&
		s.GetIPURL == o.GetIPURL
}

// Endpoint resolves a path of the server (e.g. DownloadURL) against its base URL.
func (s Server) Endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := s.URL
	if strings.HasPrefix(base, "//") {
		base = "https:" + base
	}
	if !strings.HasSuffix(base, "/") && path != "" && !strings.HasPrefix(path, "/") {
		base += "/"
	}
	return base + path
}

// LoadServers reads a server list file. Entries without an explicit pingT
// start as Unreachable.
func LoadServers(path string) ([]Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server list: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse server list: %w", err)
	}

	servers := make([]Server, 0, len(raw))
	for i, entry := range raw {
		s := Server{PingTime: Unreachable}
		if err := json.Unmarshal(entry, &s); err != nil {
			return nil, fmt.Errorf("server %d: %w", i, err)
		}
		servers = append(servers, s)
	}
	return servers, nil
}
