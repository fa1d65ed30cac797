package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"speedgauge/internal/gauge"
)

// WriteGauges saves the current download and upload frames as PNG files.
func (r *Runner) WriteGauges(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for name, s := range map[string]*gauge.RasterSurface{
		"download.png": r.download,
		"upload.png":   r.upload,
	} {
		if err := writePNG(filepath.Join(dir, name), s); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, s *gauge.RasterSurface) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
