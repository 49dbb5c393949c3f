// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"strings"
	"time"
)

// Command line defaults. Zero values mean "keep what the configuration file
// says".
const (
	DefaultConfigPath  = ""    // Search radar.yaml / config.yaml, else built-in defaults
	DefaultInputFile   = ""    // Use capture.source from the configuration
	DefaultOutputFile  = ""    // No recording
	DefaultWorkers     = -1    // Keep pipeline.workers
	DefaultWSAddr      = ""    // Keep transport.websocket_addr
	DefaultUDPTarget   = ""    // Keep transport.udp_target_address
	DefaultMetricsAddr = ""    // Keep metrics.addr
	DefaultSynthetic   = false // Keep capture.source
	DefaultVerbosity   = false // Quiet operation
	DefaultFormat      = "wav" // Recording format
)

// Options holds the command line flags of the process command. They are
// applied on top of the loaded Config.
type Options struct {
	ConfigPath  string // YAML configuration file
	InputFile   string // WAV capture overriding capture.source
	Synthetic   bool   // Force the synthetic source
	OutputFile  string // WAV recording of the result
	Workers     int    // Intra-stage parallelism, -1 keeps the file value
	WSAddr      string // WebSocket listen address
	UDPTarget   string // host:port for UDP trace packets
	MetricsAddr string // Prometheus listen address
	Verbose     bool   // Debug logging
	Format      string // Recording format (wav only for now)
	Command     string // Subcommand selected on the command line

	// Chirp overrides; zero keeps the configured value.
	SampleRate     float64
	StartFrequency float64
	Bandwidth      float64
	Duration       float64
	Polarity       string
	ReplicaLength  int
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		ConfigPath:  DefaultConfigPath,
		InputFile:   DefaultInputFile,
		Synthetic:   DefaultSynthetic,
		OutputFile:  DefaultOutputFile,
		Workers:     DefaultWorkers,
		WSAddr:      DefaultWSAddr,
		UDPTarget:   DefaultUDPTarget,
		MetricsAddr: DefaultMetricsAddr,
		Verbose:     DefaultVerbosity,
		Format:      DefaultFormat,
	}
}

// Apply overrides cfg with every option that was set and re-validates it.
func (o *Options) Apply(cfg *Config) error {
	if o.InputFile != "" && o.Synthetic {
		return fmt.Errorf("--input and --synthetic are mutually exclusive")
	}
	if o.InputFile != "" {
		cfg.Capture.Source = "wav"
		cfg.Capture.Path = o.InputFile
	}
	if o.Synthetic {
		cfg.Capture.Source = "synthetic"
	}
	if o.OutputFile != "" {
		if !strings.HasSuffix(strings.ToLower(o.OutputFile), "."+o.Format) {
			o.OutputFile += "." + o.Format
		}
		cfg.Output.Path = o.OutputFile
	}
	if o.Workers >= 0 {
		cfg.Pipeline.Workers = o.Workers
	}
	if o.WSAddr != "" {
		cfg.Transport.WebSocketAddr = o.WSAddr
	}
	if o.UDPTarget != "" {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = o.UDPTarget
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if o.SampleRate != 0 {
		cfg.Radar.SampleRate = o.SampleRate
	}
	if o.StartFrequency != 0 {
		cfg.Chirp.StartFrequency = o.StartFrequency
	}
	if o.Bandwidth != 0 {
		cfg.Chirp.Bandwidth = o.Bandwidth
	}
	if o.Duration != 0 {
		cfg.Chirp.Duration = o.Duration
	}
	if o.Polarity != "" {
		cfg.Chirp.Polarity = o.Polarity
	}
	if o.ReplicaLength != 0 {
		cfg.Chirp.ReplicaLength = o.ReplicaLength
	}
	return cfg.Validate()
}

// DefaultRecordingName returns a timestamped output file name.
func DefaultRecordingName(now time.Time) string {
	return "radargram-" + now.UTC().Format("02-01-2006-150405") + "." + DefaultFormat
}
