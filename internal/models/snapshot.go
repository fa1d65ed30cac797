package models

import "time"

// Snapshot is one complete picture of measurement progress. A new snapshot
// replaces the previous one wholesale; consumers never see it mutated.
type Snapshot struct {
	Phase            Phase   `json:"phase"`
	DownloadMbps     float64 `json:"dl_mbps"`
	UploadMbps       float64 `json:"ul_mbps"`
	DownloadProgress float64 `json:"dl_progress"` // 0..1
	UploadProgress   float64 `json:"ul_progress"` // 0..1
	PingMs           float64 `json:"ping_ms"`
	JitterMs         float64 `json:"jitter_ms"`
	ClientIP         string  `json:"client_ip"`
	Server           string  `json:"server,omitempty"`
	TestID           string  `json:"test_id,omitempty"`
	ShareURL         string  `json:"share_url,omitempty"`
}

// WithShareURL returns a copy carrying the derived share URL.
func (s Snapshot) WithShareURL(url string) Snapshot {
	s.ShareURL = url
	return s
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Result is the persisted summary of a run that finished normally.
type Result struct {
	TestID       string    `json:"test_id"`
	Timestamp    time.Time `json:"timestamp"`
	Server       string    `json:"server"`
	ClientIP     string    `json:"client_ip"`
	DownloadMbps float64   `json:"dl_mbps"`
	UploadMbps   float64   `json:"ul_mbps"`
	PingMs       float64   `json:"ping_ms"`
	JitterMs     float64   `json:"jitter_ms"`
	ShareURL     string    `json:"share_url"`
}

// ResultFromSnapshot summarises a final snapshot.
func ResultFromSnapshot(s Snapshot, at time.Time) Result {
	return Result{
		TestID:       s.TestID,
		Timestamp:    at,
		Server:       s.Server,
		ClientIP:     s.ClientIP,
		DownloadMbps: s.DownloadMbps,
		UploadMbps:   s.UploadMbps,
		PingMs:       s.PingMs,
		JitterMs:     s.JitterMs,
		ShareURL:     s.ShareURL,
	}
}

// Stats aggregates stored results over a period.
type Stats struct {
	Runs            int     `json:"runs"`
	AvgDownloadMbps float64 `json:"avg_dl_mbps"`
	MaxDownloadMbps float64 `json:"max_dl_mbps"`
	AvgUploadMbps   float64 `json:"avg_ul_mbps"`
	MaxUploadMbps   float64 `json:"max_ul_mbps"`
	AvgPingMs       float64 `json:"avg_ping_ms"`
	AvgJitterMs     float64 `json:"avg_jitter_ms"`
}
