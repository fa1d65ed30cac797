package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"speedgauge/internal/models"
)

// minChartPoints is the smallest series go-chart can scale an axis for.
const minChartPoints = 2

var (
	downloadColor = drawing.Color{R: 0x60, G: 0x60, B: 0xAA, A: 0xFF}
	uploadColor   = drawing.Color{R: 0x61, G: 0x61, B: 0x61, A: 0xFF}
	gridColor     = drawing.Color{R: 200, G: 200, B: 200, A: 255}
)

func baseChart(title, yName string) chart.Chart {
	return chart.Chart{
		Title: title,
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  1200,
		Height: 400,
		XAxis: chart.XAxis{
			Name: "Time",
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yName,
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			GridMajorStyle: chart.Style{
				StrokeColor: gridColor,
				StrokeWidth: 1.0,
			},
		},
	}
}

func (g *Generator) generateThroughputChart(outputDir string, results []models.Result) error {
	if len(results) < minChartPoints {
		g.logger.Debug().Int("results", len(results)).Msg("Not enough results for a throughput chart")
		return nil
	}

	timestamps := make([]time.Time, len(results))
	download := make([]float64, len(results))
	upload := make([]float64, len(results))
	for i, r := range results {
		timestamps[i] = r.Timestamp
		download[i] = r.DownloadMbps
		upload[i] = r.UploadMbps
	}

	graph := baseChart("Throughput", "Mbit/s")
	graph.Series = []chart.Series{
		chart.TimeSeries{
			Name: "Download",
			Style: chart.Style{
				StrokeColor: downloadColor,
				StrokeWidth: 2,
			},
			XValues: timestamps,
			YValues: download,
		},
		chart.TimeSeries{
			Name: "Upload",
			Style: chart.Style{
				StrokeColor: uploadColor,
				StrokeWidth: 2,
			},
			XValues: timestamps,
			YValues: upload,
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return renderPNG(filepath.Join(outputDir, "throughput.png"), graph)
}

// generateLatencyCharts draws one ping chart per server
func (g *Generator) generateLatencyCharts(outputDir string, results []models.Result) error {
	type series struct {
		timestamps []time.Time
		values     []float64
	}
	servers := make(map[string]*series)
	for _, r := range results {
		s, ok := servers[r.Server]
		if !ok {
			s = &series{}
			servers[r.Server] = s
		}
		s.timestamps = append(s.timestamps, r.Timestamp)
		s.values = append(s.values, r.PingMs)
	}

	for server, data := range servers {
		if len(data.values) < minChartPoints {
			continue
		}

		graph := baseChart(fmt.Sprintf("Ping - %s", server), "Ping (ms)")
		ts := chart.TimeSeries{
			Name: server,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(0),
				StrokeWidth: 2,
			},
			XValues: data.timestamps,
			YValues: data.values,
		}
		graph.Series = []chart.Series{ts}

		// Add moving average
		if len(data.values) > 10 {
			graph.Series = append(graph.Series, chart.SMASeries{
				Name: "Moving Avg",
				Style: chart.Style{
					StrokeColor:     chart.GetDefaultColor(1),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5, 5},
				},
				InnerSeries: ts,
				Period:      10,
			})
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("ping_%s.png", sanitizeFilename(server)))
		if err := renderPNG(filename, graph); err != nil {
			return err
		}
	}

	return nil
}

func renderPNG(filename string, graph chart.Chart) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
