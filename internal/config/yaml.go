// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	applog "radar/internal/log"
	"radar/internal/radar"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the processing configuration, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Radar     RadarConfig     `yaml:"radar"`     // Receive window geometry.
	Chirp     ChirpConfig     `yaml:"chirp"`     // Transmitted pulse, used to synthesize the replica.
	Pipeline  PipelineConfig  `yaml:"pipeline"`  // Ordered processing stages.
	Capture   CaptureConfig   `yaml:"capture"`   // Where raw traces come from.
	Transport TransportConfig `yaml:"transport"` // Result delivery (websocket, UDP).
	Metrics   MetricsConfig   `yaml:"metrics"`   // Prometheus endpoint.
	Output    OutputConfig    `yaml:"output"`    // WAV recording of the result.
}

// RadarConfig holds settings describing the raw radargram.
type RadarConfig struct {
	SampleRate  float64 `yaml:"sample_rate"`  // Fast-time sample rate in Hz.
	TraceLength int     `yaml:"trace_length"` // Samples per trace (R).
	InputDomain string  `yaml:"input_domain"` // "complex" (default) or "detected".
}

// ChirpConfig describes the LFM transmit pulse.
type ChirpConfig struct {
	StartFrequency float64 `yaml:"start_frequency"` // Hz.
	Bandwidth      float64 `yaml:"bandwidth"`       // Hz.
	Duration       float64 `yaml:"duration"`        // Seconds.
	Polarity       string  `yaml:"polarity"`        // "up" or "down".
	ReplicaLength  int     `yaml:"replica_length"`  // 0 uses floor(duration * sample_rate).
}

// PipelineConfig lists the stages in execution order.
type PipelineConfig struct {
	Workers int         `yaml:"workers"` // Intra-stage parallelism, 0 for GOMAXPROCS.
	Stages  []StageSpec `yaml:"stages"`
}

// StageSpec is the YAML form of one stage. Only the fields relevant to Kind
// are read.
type StageSpec struct {
	Kind          string  `yaml:"kind"`          // "coherent", "compress" or "incoherent".
	StackFactor   float64 `yaml:"stack_factor"`  // Stacking stages; must be an integer >= 1.
	Remainder     string  `yaml:"remainder"`     // "drop" (default) or "partial".
	Mode          string  `yaml:"mode"`          // Incoherent: "magnitude" (default) or "power".
	Normalization string  `yaml:"normalization"` // Compression: "none" (default) or "energy".
	Padding       string  `yaml:"padding"`       // Compression: "linear" (default) or "circular".
	Window        string  `yaml:"window"`        // Compression: replica taper, "rectangular" by default.
}

// CaptureConfig selects the trace source.
type CaptureConfig struct {
	Source        string  `yaml:"source"`         // "synthetic" or "wav".
	Path          string  `yaml:"path"`           // WAV file for source "wav".
	Traces        int     `yaml:"traces"`         // Synthetic: number of traces (P).
	EchoDelay     int     `yaml:"echo_delay"`     // Synthetic: echo delay in samples.
	EchoAmplitude float64 `yaml:"echo_amplitude"` // Synthetic: echo amplitude.
	NoiseSigma    float64 `yaml:"noise_sigma"`    // Synthetic: noise RMS.
	Seed          uint64  `yaml:"seed"`           // Synthetic: random seed.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the /ws broadcast ("" disables).
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending trace packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Pacing between UDP packets.
	Gates            []GateSpec    `yaml:"gates"`              // Range gates summarized per published trace.
}

// GateSpec names a half-open sample window [start, end) of a result trace.
type GateSpec struct {
	Name  string `yaml:"name"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Listen address for /metrics ("" disables).
}

// OutputConfig holds settings for recording results.
type OutputConfig struct {
	Path     string `yaml:"path"`      // WAV file to write ("" disables).
	BitDepth int    `yaml:"bit_depth"` // 16, 24 or 32.
}

// Default returns the built-in configuration: a synthetic capture processed by
// the unfocused-SAR chain (coherent stack, pulse compression, incoherent stack).
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Radar: RadarConfig{
			SampleRate:  50e6,
			TraceLength: 1024,
			InputDomain: "complex",
		},
		Chirp: ChirpConfig{
			StartFrequency: 1e6,
			Bandwidth:      20e6,
			Duration:       2e-6,
			Polarity:       "up",
		},
		Pipeline: PipelineConfig{
			Workers: 0,
			Stages: []StageSpec{
				{Kind: "coherent", StackFactor: 4},
				{Kind: "compress", Window: "hann"},
				{Kind: "incoherent", StackFactor: 2, Mode: "magnitude"},
			},
		},
		Capture: CaptureConfig{
			Source:        "synthetic",
			Traces:        64,
			EchoDelay:     200,
			EchoAmplitude: 1,
			NoiseSigma:    0.5,
			Seed:          1,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  time.Millisecond,
		},
		Output: OutputConfig{
			BitDepth: 16,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("radar.yaml", "config.yaml"). If no file is found, it
// uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"radar.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded '%s'", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level '%s' is not recognised", c.LogLevel))
	}

	if c.Radar.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("radar.sample_rate must be positive"))
	}
	if c.Radar.TraceLength < 1 {
		errs = append(errs, fmt.Errorf("radar.trace_length must be at least 1"))
	}
	if _, err := radar.ParseDomain(c.Radar.InputDomain); err != nil {
		errs = append(errs, fmt.Errorf("radar.input_domain: %w", err))
	}

	if _, err := c.ChirpParameters(); err != nil {
		errs = append(errs, fmt.Errorf("chirp: %w", err))
	}
	if c.Chirp.ReplicaLength < 0 {
		errs = append(errs, fmt.Errorf("chirp.replica_length must not be negative"))
	}

	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must not be negative"))
	}
	if len(c.Pipeline.Stages) == 0 {
		errs = append(errs, fmt.Errorf("pipeline.stages: %w", radar.ErrEmptyPipeline))
	}
	for i, s := range c.Pipeline.Stages {
		if _, err := s.stageConfig(nil); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.stages[%d]: %w", i, err))
		}
	}

	switch strings.ToLower(c.Capture.Source) {
	case "synthetic":
		if c.Capture.Traces < 1 {
			errs = append(errs, fmt.Errorf("capture.traces must be at least 1"))
		}
		if c.Capture.NoiseSigma < 0 {
			errs = append(errs, fmt.Errorf("capture.noise_sigma must not be negative"))
		}
	case "wav":
		if c.Capture.Path == "" {
			errs = append(errs, fmt.Errorf("capture.path must be set for a wav source"))
		}
	default:
		errs = append(errs, fmt.Errorf("capture.source '%s' must be 'synthetic' or 'wav'", c.Capture.Source))
	}

	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			errs = append(errs, fmt.Errorf("transport.udp_target_address must be set when UDP is enabled"))
		} else if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}

	for i, g := range c.Transport.Gates {
		if g.Name == "" || g.Start < 0 || g.End <= g.Start {
			errs = append(errs, fmt.Errorf("transport.gates[%d] must be named with 0 <= start < end", i))
		}
	}

	if c.Output.Path != "" {
		switch c.Output.BitDepth {
		case 16, 24, 32:
		default:
			errs = append(errs, fmt.Errorf("output.bit_depth %d must be 16, 24 or 32", c.Output.BitDepth))
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the file configuration.
// Unparseable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_WORKERS
	if val, ok := os.LookupEnv("ENV_WORKERS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.Workers = n
			applog.Infof("Config: Overriding pipeline.workers from env: %d", n)
		} else {
			applog.Warnf("Config: Ignoring ENV_WORKERS=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_METRICS_ADDR
	if val, ok := os.LookupEnv("ENV_METRICS_ADDR"); ok {
		cfg.Metrics.Addr = val
		applog.Infof("Config: Overriding metrics.addr from env: %s", val)
	}
}
