package ping

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"speedgauge/internal/models"
)

var rttPatterns = []*regexp.Regexp{
	regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`),
	regexp.MustCompile(`time[=<]([0-9.]+)ms`),
	regexp.MustCompile(`(?:round-trip|rtt) min/avg/max(?:/(?:stddev|mdev))? = [0-9.]+/([0-9.]+)/`),
}

// ICMPProber probes servers with the system ping binary
type ICMPProber struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewICMP creates a new ICMPProber
func NewICMP(timeout time.Duration, logger zerolog.Logger) *ICMPProber {
	return &ICMPProber{
		timeout: timeout,
		logger:  logger.With().Str("component", "icmp-prober").Logger(),
	}
}

// Probe pings the host part of the server URL once and returns the RTT in milliseconds
func (p *ICMPProber) Probe(ctx context.Context, server models.Server) (float64, error) {
	host, err := hostOf(server)
	if err != nil {
		return models.Unreachable, err
	}

	// Platform-specific ping command
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", strconv.Itoa(int(p.timeout.Milliseconds())), host)
	} else {
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(int(p.timeout.Seconds())), host)
	}
	p.logger.Debug().Str("cmd", shellescape.QuoteCommand(cmd.Args)).Msg("Probing server")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return models.Unreachable, fmt.Errorf("ping %s: %w", host, err)
	}

	rtt := parsePingOutput(string(output))
	if rtt <= 0 {
		return models.Unreachable, fmt.Errorf("ping %s: no round-trip time in output", host)
	}
	return rtt, nil
}

func hostOf(server models.Server) (string, error) {
	u, err := url.Parse(server.Endpoint(""))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", server.URL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("server %q has no host", server.Name)
	}
	return u.Hostname(), nil
}

// parsePingOutput parses RTT from ping output
func parsePingOutput(output string) float64 {
	// Linux/Mac: "time=XX.X ms"
	// Windows: "time=XXms" or "time<1ms"
	for _, re := range rttPatterns {
		matches := re.FindStringSubmatch(output)
		if len(matches) > 1 {
			if rtt, err := strconv.ParseFloat(matches[1], 64); err == nil {
				return rtt
			}
		}
	}

	return 0
}
