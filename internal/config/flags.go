package config

import (
	"github.com/urfave/cli/v2"
)

// Flags are the command-line overrides shared by every command
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path of the YAML configuration file (created with defaults if missing)",
			Value:   "speedgauge.yaml",
		},
		&cli.StringFlag{
			Name:  "servers",
			Usage: "Server list JSON file; empty runs against the engine's built-in endpoints",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Database path",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "Web server port",
		},
		&cli.StringFlag{
			Name:  "origin",
			Usage: "Public origin used to build share links",
		},
		&cli.StringFlag{
			Name:  "probe",
			Usage: "Server latency probe: http or icmp",
		},
		&cli.StringFlag{
			Name:  "telemetry",
			Usage: "Telemetry level: disabled, basic, full or debug",
		},
		&cli.DurationFlag{
			Name:  "download-duration",
			Usage: "Download phase duration",
		},
		&cli.DurationFlag{
			Name:  "upload-duration",
			Usage: "Upload phase duration",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Directory for rendered gauges and reports",
		},
		&cli.StringFlag{
			Name:  "geoip",
			Usage: "MaxMind country database used to annotate the client address",
		},
	}
}

// FromContext loads the configuration file and applies flags that were
// set explicitly on the command line
func FromContext(ctx *cli.Context) (*Config, error) {
	cfg, err := Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	ApplyFlags(ctx, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFlags overrides cfg with explicitly set flags
func ApplyFlags(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet("servers") {
		cfg.ServersFile = ctx.String("servers")
	}
	if ctx.IsSet("db") {
		cfg.DatabasePath = ctx.String("db")
	}
	if ctx.IsSet("port") {
		cfg.Port = ctx.Int("port")
	}
	if ctx.IsSet("origin") {
		cfg.Origin = ctx.String("origin")
	}
	if ctx.IsSet("probe") {
		cfg.Probe = ctx.String("probe")
	}
	if ctx.IsSet("telemetry") {
		cfg.TelemetryLevel = ctx.String("telemetry")
	}
	if ctx.IsSet("download-duration") {
		cfg.DownloadDuration = ctx.Duration("download-duration")
	}
	if ctx.IsSet("upload-duration") {
		cfg.UploadDuration = ctx.Duration("upload-duration")
	}
	if ctx.IsSet("output") {
		cfg.OutputDir = ctx.String("output")
	}
	if ctx.IsSet("geoip") {
		cfg.GeoIPDatabase = ctx.String("geoip")
	}
}
