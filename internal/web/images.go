package web

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"

	"speedgauge/internal/database"
	"speedgauge/internal/gauge"
	"speedgauge/internal/models"
	"speedgauge/internal/share"
)

// handleGauge serves the latest live frame of one gauge
func (s *Server) handleGauge(w http.ResponseWriter, r *http.Request) {
	dl, ul := s.tester.Surfaces()
	var surface *gauge.RasterSurface
	switch r.PathValue("name") {
	case "download.png":
		surface = dl
	case "upload.png":
		surface = ul
	default:
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := surface.WritePNG(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleResultImage renders the final gauges of a stored run; this is the
// image behind a share link
func (s *Server) handleResultImage(w http.ResponseWriter, r *http.Request) {
	id, ok := share.TestID(r.URL.String())
	if !ok {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}
	result, err := s.store.GetResult(id)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.renderResult(&buf, result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) renderResult(buf *bytes.Buffer, result models.Result) error {
	dl := gauge.NewRasterSurface(s.gauge.Width, s.gauge.Height, s.gauge.PixelRatio)
	ul := gauge.NewRasterSurface(s.gauge.Width, s.gauge.Height, s.gauge.PixelRatio)

	p := gauge.DefaultPalette
	if _, ok := gauge.DrawMeter(dl, gauge.Amount(result.DownloadMbps), 1, p.Download, p); !ok {
		return errors.New("gauge size is empty")
	}
	gauge.DrawMeter(ul, gauge.Amount(result.UploadMbps), 1, p.Upload, p)

	return png.Encode(buf, gauge.Compose(dl.Image(), ul.Image()))
}
