// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"radar/internal/analysis"
	"radar/internal/pipeline"
	"radar/internal/radar"
	"strings"
)

// ChirpParameters returns the validated transmit pulse at the radar sample rate.
func (c *Config) ChirpParameters() (radar.ChirpParameters, error) {
	polarity, err := radar.ParsePolarity(c.Chirp.Polarity)
	if err != nil {
		return radar.ChirpParameters{}, err
	}
	p := radar.ChirpParameters{
		StartFrequency: c.Chirp.StartFrequency,
		Bandwidth:      c.Chirp.Bandwidth,
		Duration:       c.Chirp.Duration,
		SampleRate:     c.Radar.SampleRate,
		Polarity:       polarity,
	}
	return p, p.Validate()
}

// Replica synthesizes the matched-filter reference. Its length is
// chirp.replica_length, or the natural pulse length when that is zero.
func (c *Config) Replica() (radar.Trace, error) {
	p, err := c.ChirpParameters()
	if err != nil {
		return nil, err
	}
	length := c.Chirp.ReplicaLength
	if length == 0 {
		length = p.Samples()
	}
	return radar.Synthesize(p, length)
}

// InputDomain returns the domain raw buffers are expected in.
func (c *Config) InputDomain() (radar.Domain, error) {
	return radar.ParseDomain(c.Radar.InputDomain)
}

// RangeGates returns the configured gates. Bounds against the trace length are
// checked when they are evaluated.
func (c *Config) RangeGates() []analysis.RangeGate {
	gates := make([]analysis.RangeGate, len(c.Transport.Gates))
	for i, g := range c.Transport.Gates {
		gates[i] = analysis.RangeGate{Name: g.Name, Start: g.Start, End: g.End}
	}
	return gates
}

// StageConfigs converts the configured stages, handing replica to every
// compression stage.
func (c *Config) StageConfigs(replica radar.Trace) ([]pipeline.StageConfig, error) {
	out := make([]pipeline.StageConfig, len(c.Pipeline.Stages))
	for i, s := range c.Pipeline.Stages {
		sc, err := s.stageConfig(replica)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		out[i] = sc
	}
	return out, nil
}

func (s StageSpec) stageConfig(replica radar.Trace) (pipeline.StageConfig, error) {
	kind, err := analysis.ParseKind(s.Kind)
	if err != nil {
		return pipeline.StageConfig{}, err
	}

	switch kind {
	case analysis.KindCoherentStack, analysis.KindIncoherentStack:
		n, err := analysis.ParseStackFactor(s.StackFactor)
		if err != nil {
			return pipeline.StageConfig{}, err
		}
		remainder, err := analysis.ParseRemainder(s.Remainder)
		if err != nil {
			return pipeline.StageConfig{}, err
		}
		if kind == analysis.KindCoherentStack {
			sc := pipeline.CoherentStack(n)
			sc.Remainder = remainder
			return sc, nil
		}
		mode, err := analysis.ParseMode(s.Mode)
		if err != nil {
			return pipeline.StageConfig{}, err
		}
		sc := pipeline.IncoherentStack(n, mode)
		sc.Remainder = remainder
		return sc, nil

	default:
		norm, err := analysis.ParseNormalization(s.Normalization)
		if err != nil {
			return pipeline.StageConfig{}, err
		}
		padding, err := analysis.ParsePadding(s.Padding)
		if err != nil {
			return pipeline.StageConfig{}, err
		}
		window := analysis.Rectangular
		if strings.TrimSpace(s.Window) != "" {
			if window, err = analysis.ParseWindowFunc(s.Window); err != nil {
				return pipeline.StageConfig{}, err
			}
		}
		sc := pipeline.PulseCompress(replica)
		sc.Normalization = norm
		sc.Padding = padding
		sc.Window = window
		return sc, nil
	}
}
