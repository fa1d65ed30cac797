package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Probe methods
const (
	ProbeHTTP = "http"
	ProbeICMP = "icmp"
)

// GaugeConfig sizes the rendered gauges in logical pixels
type GaugeConfig struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	PixelRatio float64 `yaml:"pixel_ratio"`
}

// Config holds all configuration for speedgauge
type Config struct {
	ServersFile    string        `yaml:"servers_file"`
	Origin         string        `yaml:"origin"`
	DatabasePath   string        `yaml:"database_path"`
	Port           int           `yaml:"port"`
	FrameInterval  time.Duration `yaml:"frame_interval"`
	TelemetryLevel string        `yaml:"telemetry_level"`

	Probe            string        `yaml:"probe"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	DownloadDuration time.Duration `yaml:"download_duration"`
	UploadDuration   time.Duration `yaml:"upload_duration"`
	PingCount        int           `yaml:"ping_count"`
	Streams          int           `yaml:"streams"`

	Gauge GaugeConfig `yaml:"gauge"`

	OutputDir     string `yaml:"output_dir"`
	GeoIPDatabase string `yaml:"geoip_database"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServersFile:      "",
		Origin:           "http://localhost:8080",
		DatabasePath:     "speedgauge.db",
		Port:             8080,
		FrameInterval:    time.Second / 60,
		TelemetryLevel:   "basic",
		Probe:            ProbeHTTP,
		ProbeTimeout:     2 * time.Second,
		DownloadDuration: 15 * time.Second,
		UploadDuration:   15 * time.Second,
		PingCount:        10,
		Streams:          6,
		Gauge: GaugeConfig{
			Width:      320,
			Height:     240,
			PixelRatio: 2,
		},
		OutputDir:     "output",
		RetentionDays: 90,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	switch c.TelemetryLevel {
	case "disabled", "basic", "full", "debug":
	default:
		return fmt.Errorf("unknown telemetry level %q", c.TelemetryLevel)
	}
	if c.Probe != ProbeHTTP && c.Probe != ProbeICMP {
		return fmt.Errorf("probe must be %q or %q, got %q", ProbeHTTP, ProbeICMP, c.Probe)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.DownloadDuration <= 0 || c.UploadDuration <= 0 {
		return fmt.Errorf("transfer durations must be positive")
	}
	if c.PingCount <= 0 {
		return fmt.Errorf("ping count must be positive")
	}
	if c.Streams <= 0 {
		return fmt.Errorf("streams must be positive")
	}
	if c.Gauge.Width <= 0 || c.Gauge.Height <= 0 || c.Gauge.PixelRatio <= 0 {
		return fmt.Errorf("gauge width, height and pixel ratio must be positive")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}
	return nil
}

// Load loads configuration from file, creates default if not exists
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return loadFromFile(configPath)
	} else if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	} else {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}
}

func loadFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// keys absent from the file keep their defaults
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeWithDefaults(cfg)

	return cfg, nil
}

// mergeWithDefaults replaces zero values that are never valid. A zero
// retention is kept: it disables pruning.
func mergeWithDefaults(cfg *Config) {
	d := DefaultConfig()

	if cfg.Origin == "" {
		cfg.Origin = d.Origin
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = d.DatabasePath
	}
	if cfg.Port == 0 {
		cfg.Port = d.Port
	}
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = d.FrameInterval
	}
	if cfg.TelemetryLevel == "" {
		cfg.TelemetryLevel = d.TelemetryLevel
	}
	if cfg.Probe == "" {
		cfg.Probe = d.Probe
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = d.ProbeTimeout
	}
	if cfg.DownloadDuration == 0 {
		cfg.DownloadDuration = d.DownloadDuration
	}
	if cfg.UploadDuration == 0 {
		cfg.UploadDuration = d.UploadDuration
	}
	if cfg.PingCount == 0 {
		cfg.PingCount = d.PingCount
	}
	if cfg.Streams == 0 {
		cfg.Streams = d.Streams
	}
	if cfg.Gauge.Width == 0 {
		cfg.Gauge.Width = d.Gauge.Width
	}
	if cfg.Gauge.Height == 0 {
		cfg.Gauge.Height = d.Gauge.Height
	}
	if cfg.Gauge.PixelRatio == 0 {
		cfg.Gauge.PixelRatio = d.Gauge.PixelRatio
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = d.OutputDir
	}
}

// Save saves configuration to YAML file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
