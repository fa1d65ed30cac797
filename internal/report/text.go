package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"speedgauge/internal/models"
)

func (g *Generator) generateTextReport(outputDir string, days int, stats models.Stats, results []models.Result) error {
	filename := filepath.Join(outputDir, "summary.txt")
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "Speed Test Report\n")
	fmt.Fprintf(file, "Generated: %s\n", g.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Period: Last %d days\n\n", days)
	fmt.Fprintln(file, strings.Repeat("=", 60))

	fmt.Fprintln(file, "\nOVERALL STATISTICS")
	fmt.Fprintf(file, "  Runs: %d\n", stats.Runs)
	if stats.Runs > 0 {
		fmt.Fprintf(file, "  Download: avg %.2f Mbit/s, max %.2f Mbit/s\n", stats.AvgDownloadMbps, stats.MaxDownloadMbps)
		fmt.Fprintf(file, "  Upload: avg %.2f Mbit/s, max %.2f Mbit/s\n", stats.AvgUploadMbps, stats.MaxUploadMbps)
		fmt.Fprintf(file, "  Ping: avg %.2f ms\n", stats.AvgPingMs)
		fmt.Fprintf(file, "  Jitter: avg %.2f ms\n", stats.AvgJitterMs)
	}
	fmt.Fprintln(file)
	fmt.Fprintln(file, strings.Repeat("=", 60))

	fmt.Fprintln(file, "\nPER SERVER")
	for _, s := range perServer(results) {
		fmt.Fprintf(file, "Server: %s\n", s.name)
		fmt.Fprintf(file, "  Runs: %d\n", s.runs)
		fmt.Fprintf(file, "  Average Download: %.2f Mbit/s\n", s.download/float64(s.runs))
		fmt.Fprintf(file, "  Average Upload: %.2f Mbit/s\n", s.upload/float64(s.runs))
		fmt.Fprintf(file, "  Average Ping: %.2f ms\n", s.ping/float64(s.runs))
		fmt.Fprintln(file)
	}

	fmt.Fprintln(file, strings.Repeat("=", 60))

	fmt.Fprintln(file, "\nRUNS")
	if len(results) == 0 {
		fmt.Fprintln(file, "No runs recorded.")
	}
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		fmt.Fprintf(file, "%s  %-20s  down %8.2f  up %8.2f  ping %6.2f  %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Server, r.DownloadMbps, r.UploadMbps, r.PingMs, r.ShareURL)
	}

	fmt.Fprintln(file, strings.Repeat("=", 60))
	fmt.Fprintln(file, "\nCharts are available in the accompanying files.")

	return nil
}

type serverTotals struct {
	name                   string
	runs                   int
	download, upload, ping float64
}

func perServer(results []models.Result) []serverTotals {
	byName := make(map[string]*serverTotals)
	for _, r := range results {
		t, ok := byName[r.Server]
		if !ok {
			t = &serverTotals{name: r.Server}
			byName[r.Server] = t
		}
		t.runs++
		t.download += r.DownloadMbps
		t.upload += r.UploadMbps
		t.ping += r.PingMs
	}

	out := make([]serverTotals, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
