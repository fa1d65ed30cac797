// Package view turns controller and catalog state into display values.
package view

import (
	"speedgauge/internal/catalog"
	"speedgauge/internal/controller"
	"speedgauge/internal/gauge"
	"speedgauge/internal/geo"
	"speedgauge/internal/models"
)

// Pending is shown instead of a rate while its phase runs but nothing has
// been measured yet.
const Pending = "..."

// ServerOption is one entry of the server chooser.
type ServerOption struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Ping     string `json:"ping"`
	Selected bool   `json:"selected"`
}

// View is the presentation model of the test page.
type View struct {
	Phase          string         `json:"phase"`
	PhaseCode      int            `json:"phase_code"`
	Running        bool           `json:"running"`
	Button         string         `json:"button"`
	ChooserVisible bool           `json:"chooser_visible"`
	ChooserEnabled bool           `json:"chooser_enabled"`
	Servers        []ServerOption `json:"servers"`
	Download       string         `json:"download"`
	Upload         string         `json:"upload"`
	Ping           string         `json:"ping"`
	Jitter         string         `json:"jitter"`
	ClientIP       string         `json:"client_ip"`
	Country        string         `json:"country,omitempty"`
	TestID         string         `json:"test_id,omitempty"`
	ShareURL       string         `json:"share_url,omitempty"`
}

// Build assembles the view. Missing telemetry renders as zero rates and
// blank latency fields. loc may be nil.
func Build(s controller.Session, sel catalog.Selection, loc geo.Locator) View {
	v := View{
		Phase:          s.Phase.String(),
		PhaseCode:      s.Phase.Code(),
		Running:        s.Running,
		Button:         "Start",
		ChooserVisible: sel.Chooser && len(sel.Servers) > 0,
		ChooserEnabled: !s.Running,
	}
	if s.Running {
		v.Button = "Stop"
	}

	for i, srv := range sel.Servers {
		v.Servers = append(v.Servers, ServerOption{
			Index:    i,
			Name:     srv.Name,
			Ping:     gauge.Format(srv.PingTime),
			Selected: sel.Selected != nil && srv.Equal(*sel.Selected),
		})
	}

	var snap models.Snapshot
	if s.Snapshot != nil {
		snap = *s.Snapshot
	}
	v.Download = rateText(snap.DownloadMbps, s.Phase == models.PhaseDownload)
	v.Upload = rateText(snap.UploadMbps, s.Phase == models.PhaseUpload)
	v.Ping = latencyText(snap.PingMs)
	v.Jitter = latencyText(snap.JitterMs)
	v.ClientIP = snap.ClientIP
	if loc != nil && snap.ClientIP != "" {
		v.Country = loc.Country(snap.ClientIP)
	}
	if snap.TestID != "" {
		v.TestID = snap.TestID
		v.ShareURL = snap.ShareURL
	}
	return v
}

func rateText(mbps float64, active bool) string {
	if active && mbps == 0 {
		return Pending
	}
	return gauge.Format(mbps)
}

func latencyText(ms float64) string {
	if ms == 0 {
		return ""
	}
	return gauge.Format(ms)
}
