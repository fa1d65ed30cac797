// Package report renders the measurement history as charts and a text
// summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/models"
)

// maxResults bounds how much history a report reads.
const maxResults = 10000

// Generator creates static images and reports from stored results
type Generator struct {
	store  models.ResultStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewGenerator creates a new report generator
func NewGenerator(store models.ResultStore, logger zerolog.Logger) *Generator {
	return &Generator{
		store:  store,
		logger: logger.With().Str("component", "report").Logger(),
		now:    time.Now,
	}
}

// GenerateReport creates a report covering the last days and returns its
// directory
func (g *Generator) GenerateReport(outputDir string, days int) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	now := g.now()
	reportDir := filepath.Join(outputDir, fmt.Sprintf("speed_report_%s", now.Format("2006-01-02_15-04-05")))
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	results, err := g.history(now.AddDate(0, 0, -days))
	if err != nil {
		return "", fmt.Errorf("failed to load results: %w", err)
	}
	stats, err := g.store.GetStats(days)
	if err != nil {
		return "", fmt.Errorf("failed to load stats: %w", err)
	}

	if err := g.generateThroughputChart(reportDir, results); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to generate throughput chart")
	}

	if err := g.generateLatencyCharts(reportDir, results); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to generate latency charts")
	}

	if err := g.generateTextReport(reportDir, days, stats, results); err != nil {
		return "", fmt.Errorf("failed to generate text report: %w", err)
	}

	g.logger.Info().Str("dir", reportDir).Int("results", len(results)).Msg("Report generated")
	return reportDir, nil
}

// history returns results newer than since, oldest first
func (g *Generator) history(since time.Time) ([]models.Result, error) {
	recent, err := g.store.GetRecent(maxResults)
	if err != nil {
		return nil, err
	}
	var results []models.Result
	for _, r := range recent {
		if r.Timestamp.After(since) {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}
