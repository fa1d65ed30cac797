package ping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/models"
)

// HTTPProber measures the round-trip time of small GET requests against the
// server's ping endpoint and keeps the fastest of several attempts.
type HTTPProber struct {
	client   *http.Client
	attempts int
	logger   zerolog.Logger
}

// NewHTTP creates a new HTTPProber
func NewHTTP(client *http.Client, attempts int, logger zerolog.Logger) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPProber{
		client:   client,
		attempts: attempts,
		logger:   logger.With().Str("component", "http-prober").Logger(),
	}
}

// Probe returns the minimum RTT in milliseconds over the configured attempts
func (p *HTTPProber) Probe(ctx context.Context, server models.Server) (float64, error) {
	endpoint := server.Endpoint(server.PingURL)
	best := models.Unreachable
	var lastErr error

	for i := 0; i < p.attempts; i++ {
		rtt, err := RoundTrip(ctx, p.client, endpoint)
		if err != nil {
			lastErr = err
			p.logger.Debug().Err(err).Str("server", server.Name).Msg("Probe attempt failed")
			continue
		}
		if best == models.Unreachable || rtt < best {
			best = rtt
		}
	}

	if best == models.Unreachable {
		if lastErr == nil {
			lastErr = errors.New("no attempts made")
		}
		return models.Unreachable, fmt.Errorf("probe %s: %w", server.Name, lastErr)
	}
	return best, nil
}

// RoundTrip performs one uncached GET and returns its duration in milliseconds
func RoundTrip(ctx context.Context, client *http.Client, endpoint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cacheBust(endpoint), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return float64(elapsed.Microseconds()) / 1000, nil
}

func cacheBust(endpoint string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sr=%d", endpoint, sep, time.Now().UnixNano())
}
